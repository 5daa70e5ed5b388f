package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Health reports liveness and the configured entropy source.
func (h *Handler) Health(c *gin.Context) {
	cfg := h.provider.Config()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"source":   cfg.SourceKind.String(),
		"device":   cfg.DeviceIndex,
		"strategy": cfg.ReadStrategy.String(),
		"mix":      cfg.MixWithFallback,
		"contexts": h.contexts.Len(),
	})
}

// Metrics dumps the in-memory metrics sink.
func (h *Handler) Metrics(c *gin.Context) {
	if h.sink == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Metrics are disabled"})
		return
	}
	summary, err := h.sink.DisplayMetrics(c.Writer, c.Request)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, summary)
}
