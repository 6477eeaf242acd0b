package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"iris-model-pipeline/internal/adapters/primary/http/dto"
	"iris-model-pipeline/internal/core/domain"
)

func (h *Handler) Predict(c *gin.Context) {
	var req dto.PredictRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	out, err := h.predictionSvc.Predict(req.Instances)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToPredictResponse(out))
}

func (h *Handler) GetModel(c *gin.Context) {
	m := h.predictionSvc.Current()
	if m == nil {
		mapDomainError(c, domain.ErrNoProductionModel)
		return
	}
	c.JSON(http.StatusOK, dto.ToModelResponse(m))
}

func (h *Handler) Reload(c *gin.Context) {
	m, err := h.predictionSvc.Reload(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("reload model failed")
		mapDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ToModelResponse(m))
}
