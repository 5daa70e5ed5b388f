package handlers

import (
	"github.com/armon/go-metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/ArowuTest/qrng-bridge/internal/models"
	"github.com/ArowuTest/qrng-bridge/internal/rng"
)

// OperatorStore is the operator persistence the handlers need.
type OperatorStore interface {
	CreateOperator(op *models.Operator) error
	ListOperators() ([]models.Operator, error)
	GetOperator(id uuid.UUID) (*models.Operator, error)
	GetOperatorByUsername(username string) (*models.Operator, error)
	UpdateOperator(op *models.Operator) error
	DeleteOperator(id uuid.UUID) error
}

// EventStore is the audit trail.
type EventStore interface {
	RecordEvent(ev *models.GenerationEvent) error
	ListEvents(contextID uuid.UUID, limit int) ([]models.GenerationEvent, error)
}

// Handler serves the HTTP API on top of a randomness provider.
type Handler struct {
	provider  *rng.Provider
	contexts  *Registry
	operators OperatorStore
	events    EventStore
	sink      *metrics.InmemSink
	logger    hclog.Logger
}

// New wires a Handler. sink may be nil, in which case /metrics is not served.
func New(provider *rng.Provider, operators OperatorStore, events EventStore, sink *metrics.InmemSink, logger hclog.Logger) *Handler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Handler{
		provider:  provider,
		contexts:  NewRegistry(),
		operators: operators,
		events:    events,
		sink:      sink,
		logger:    logger,
	}
}

// Register mounts every route under /api/v1.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.GET("/health", h.Health)
		api.POST("/auth/login", h.Login)

		// Operators (admin only)
		ops := api.Group("/admin/users", h.RequireAuth(models.RoleAdmin))
		{
			ops.POST("", h.CreateOperator)
			ops.GET("", h.ListOperators)
			ops.GET("/:id", h.GetOperator)
			ops.PUT("/:id", h.UpdateOperator)
			ops.DELETE("/:id", h.DeleteOperator)
		}

		// Generation contexts
		ctxs := api.Group("/contexts", h.RequireAuth())
		{
			ctxs.POST("", h.NewContext)
			ctxs.GET("", h.ListContexts)
			ctxs.DELETE("/:id", h.FreeContext)
			ctxs.POST("/:id/instantiate", h.Instantiate)
			ctxs.POST("/:id/uninstantiate", h.Uninstantiate)
			ctxs.POST("/:id/enable-locking", h.EnableLocking)
			ctxs.POST("/:id/generate", h.Generate)
			ctxs.GET("/:id/params", h.Params)
		}

		api.GET("/events", h.RequireAuth(models.RoleAdmin), h.ListEvents)
		api.GET("/metrics", h.RequireAuth(models.RoleAdmin), h.Metrics)
	}
}
