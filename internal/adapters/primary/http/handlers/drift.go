package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/adapters/primary/http/dto"
	"ml-governance-service/internal/metrics"
)

// BufferInferenceLogs queues feature rows for the background drift job and
// returns immediately; nothing here blocks the inference path.
func (h *Handler) BufferInferenceLogs(c *gin.Context) {
	var req dto.FeatureBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch := req.ToBatch()
	h.driftSvc.BufferInferenceRows(req.ModelName, batch.Rows)

	c.JSON(http.StatusAccepted, gin.H{"buffered": len(batch.Rows)})
}

func (h *Handler) DetectDrift(c *gin.Context) {
	modelName := c.Param("name")

	var req dto.FeatureBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.driftSvc.DetectDrift(c.Request.Context(), modelName, req.ToBatch())
	if err != nil {
		log.WithError(err).Error("drift detection failed")
		mapDomainError(c, err)
		return
	}

	outcome := "no_drift"
	for _, res := range results {
		if res.DriftDetected {
			outcome = "drift"
			break
		}
	}
	metrics.DriftEvaluationsTotal.WithLabelValues(modelName, outcome).Inc()

	c.JSON(http.StatusOK, gin.H{"results": dto.ToDriftResultResponses(results)})
}

func (h *Handler) ShouldRetrain(c *gin.Context) {
	modelName := c.Param("name")

	retrain, err := h.driftSvc.ShouldRetrain(c.Request.Context(), modelName)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ShouldRetrainResponse{
		ModelName:     modelName,
		ShouldRetrain: retrain,
	})
}

func (h *Handler) DriftHistory(c *gin.Context) {
	modelName := c.Param("name")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	results, err := h.driftSvc.History(c.Request.Context(), modelName, limit)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": dto.ToDriftResultResponses(results)})
}
