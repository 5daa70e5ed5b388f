package handlers

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ArowuTest/qrng-bridge/internal/entropy"
	"github.com/ArowuTest/qrng-bridge/internal/models"
	"github.com/ArowuTest/qrng-bridge/internal/rng"
)

// GenerateRequest is the payload for POST /contexts/:id/generate.
// AdditionalInput is base64 in JSON; it is accepted and not used.
type GenerateRequest struct {
	Length               int    `json:"length" binding:"required,min=1"`
	Strength             uint   `json:"strength"`
	PredictionResistance bool   `json:"prediction_resistance"`
	AdditionalInput      []byte `json:"additional_input"`
	Encoding             string `json:"encoding"` // "base64" (default) or "hex"
}

// contextView is the JSON form of a registered context.
type contextView struct {
	ID        uuid.UUID `json:"id"`
	Owner     string    `json:"owner"`
	State     string    `json:"state"`
	Locked    bool      `json:"has_lock"`
	CreatedAt time.Time `json:"created_at"`
}

func viewOf(e *contextEntry) contextView {
	return contextView{
		ID:        e.ID,
		Owner:     e.Owner,
		State:     e.Ctx.State().String(),
		Locked:    e.Ctx.HasLock(),
		CreatedAt: e.CreatedAt,
	}
}

// lookupContext resolves :id and enforces ownership. Admins may act on any
// context; consumers only on their own.
func (h *Handler) lookupContext(c *gin.Context) (*contextEntry, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid UUID format"})
		return nil, false
	}
	e, ok := h.contexts.Get(id)
	if !ok || (!isAdmin(c) && e.Owner != c.GetString(keyOperatorID)) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Context not found"})
		return nil, false
	}
	return e, true
}

// statusFor maps provider errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, rng.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, rng.ErrContextFreed):
		return http.StatusGone
	case errors.Is(err, rng.ErrRequestTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, rng.ErrLockingDisabled):
		return http.StatusConflict
	default:
		return http.StatusServiceUnavailable
	}
}

// NewContext creates a context owned by the caller.
func (h *Handler) NewContext(c *gin.Context) {
	e := h.contexts.Add(c.GetString(keyOperatorID), h.provider.NewContext())
	h.logger.Debug("context created", "context", e.ID, "operator", e.Owner)
	c.JSON(http.StatusCreated, viewOf(e))
}

// ListContexts returns the caller's contexts, or all of them for admins.
func (h *Handler) ListContexts(c *gin.Context) {
	owner := c.GetString(keyOperatorID)
	if isAdmin(c) {
		owner = ""
	}
	entries := h.contexts.List(owner)
	out := make([]contextView, 0, len(entries))
	for _, e := range entries {
		out = append(out, viewOf(e))
	}
	c.JSON(http.StatusOK, out)
}

// FreeContext tears a context down and forgets it.
func (h *Handler) FreeContext(c *gin.Context) {
	e, ok := h.lookupContext(c)
	if !ok {
		return
	}
	h.contexts.Remove(e.ID)
	h.provider.FreeContext(e.Ctx)
	c.JSON(http.StatusOK, gin.H{"message": "Freed"})
}

// Instantiate moves a context to ready.
func (h *Handler) Instantiate(c *gin.Context) {
	e, ok := h.lookupContext(c)
	if !ok {
		return
	}
	if err := h.provider.Instantiate(e.Ctx, 0, false, nil); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, viewOf(e))
}

// Uninstantiate moves a context back to uninitialised.
func (h *Handler) Uninstantiate(c *gin.Context) {
	e, ok := h.lookupContext(c)
	if !ok {
		return
	}
	if err := h.provider.Uninstantiate(e.Ctx); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, viewOf(e))
}

// EnableLocking creates the context lock when the provider allows it.
func (h *Handler) EnableLocking(c *gin.Context) {
	e, ok := h.lookupContext(c)
	if !ok {
		return
	}
	if err := h.provider.EnableLocking(e.Ctx); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, viewOf(e))
}

// Generate draws random bytes from a ready context and records the outcome.
func (h *Handler) Generate(c *gin.Context) {
	e, ok := h.lookupContext(c)
	if !ok {
		return
	}

	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid payload: " + err.Error()})
		return
	}
	var encode func([]byte) string
	switch req.Encoding {
	case "", "base64":
		req.Encoding = "base64"
		encode = base64.StdEncoding.EncodeToString
	case "hex":
		encode = hex.EncodeToString
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid encoding: " + req.Encoding})
		return
	}
	if limit := h.provider.Config().MaxRequestSize; req.Length > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": rng.ErrRequestTooLarge.Error()})
		return
	}

	out := make([]byte, req.Length)
	res, err := h.generate(e.Ctx, out, req)
	h.record(c, e, req.Length, res, err)
	if err != nil {
		h.logger.Warn("generate failed", "context", e.ID, "length", req.Length, "error", err)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":     encode(out),
		"encoding": req.Encoding,
		"length":   res.Length,
		"source":   res.Source.String(),
		"mixed":    res.Mixed,
	})
	clear(out)
}

// generate performs the host sequencing: lock, generate, unlock.
func (h *Handler) generate(ctx *rng.Context, out []byte, req GenerateRequest) (rng.Result, error) {
	if ctx.HasLock() {
		if err := h.provider.Lock(ctx); err != nil {
			return rng.Result{}, err
		}
		defer h.provider.Unlock(ctx)
	}
	return h.provider.Generate(ctx, out, req.Strength, req.PredictionResistance, req.AdditionalInput)
}

func (h *Handler) record(c *gin.Context, e *contextEntry, length int, res rng.Result, genErr error) {
	if h.events == nil {
		return
	}
	ev := models.GenerationEvent{
		ID:         uuid.New(),
		ContextID:  e.ID,
		OperatorID: c.GetString(keyOperatorID),
		Length:     length,
		Source:     res.Source.String(),
		Mixed:      res.Mixed,
		Success:    genErr == nil,
		CreatedAt:  time.Now().UTC(),
	}
	if genErr != nil {
		ev.Source = entropy.SourceNone.String()
		ev.Error = genErr.Error()
	}
	if err := h.events.RecordEvent(&ev); err != nil {
		h.logger.Error("failed to record generation event", "context", e.ID, "error", err)
	}
}

// Params reports the provider parameters for a context.
func (h *Handler) Params(c *gin.Context) {
	e, ok := h.lookupContext(c)
	if !ok {
		return
	}
	params, err := h.provider.Params(e.Ctx)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"params":   params,
		"gettable": h.provider.GettableParams(),
	})
}
