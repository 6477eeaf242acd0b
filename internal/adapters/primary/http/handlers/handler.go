package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"iris-model-pipeline/internal/core/services"
)

type Handler struct {
	predictionSvc *services.PredictionService
}

func New(predictionSvc *services.PredictionService) *Handler {
	return &Handler{predictionSvc: predictionSvc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/predict", h.Predict)
	r.GET("/model", h.GetModel)
	r.POST("/reload", h.Reload)
}

// Healthz reports ready only once a model is loaded.
func (h *Handler) Healthz(c *gin.Context) {
	m := h.predictionSvc.Current()
	if m == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "no model loaded"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "model_version": m.Version})
}
