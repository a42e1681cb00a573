package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Readiness is satisfied by the embedding and risk services.
type Readiness interface {
	Trained() bool
}

type HealthHandler struct {
	embeddings Readiness
	risk       Readiness
}

func NewHealthHandler(embeddings, risk Readiness) *HealthHandler {
	return &HealthHandler{embeddings: embeddings, risk: risk}
}

// GET /healthz
func (h *HealthHandler) Healthz(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}

// GET /readyz reports 503 until an embedding model has been trained.
func (h *HealthHandler) Readyz(c *gin.Context) {
	embReady := h.embeddings != nil && h.embeddings.Trained()
	riskReady := h.risk != nil && h.risk.Trained()
	status := http.StatusOK
	if !embReady {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"embedding_model_trained": embReady,
		"risk_model_trained":      riskReady,
	})
}
