package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/adapters/primary/http/dto"
	"ml-governance-service/internal/metrics"
)

func (h *Handler) ValidateDataset(c *gin.Context) {
	var req dto.ValidateDatasetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	batch, err := req.ToBatch()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	report, err := h.validationSvc.Validate(c.Request.Context(), batch, req.Strict)
	if err != nil && report == nil {
		log.WithError(err).Error("dataset validation failed")
		mapDomainError(c, err)
		return
	}

	switch {
	case report.Quarantined:
		metrics.ValidationsTotal.WithLabelValues("quarantined").Inc()
	case report.Passed:
		metrics.ValidationsTotal.WithLabelValues("passed").Inc()
	default:
		metrics.ValidationsTotal.WithLabelValues("failed").Inc()
	}

	// Hard-gate failures still carry the report so the caller sees what
	// tripped, under a non-2xx status.
	if err != nil {
		status := http.StatusUnprocessableEntity
		c.JSON(status, gin.H{
			"error":  err.Error(),
			"report": dto.ToQualityReportResponse(report),
		})
		return
	}

	c.JSON(http.StatusOK, dto.ToQualityReportResponse(report))
}

func (h *Handler) GetReport(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}

	report, err := h.validationSvc.Report(c.Request.Context(), id)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToQualityReportResponse(report))
}

func (h *Handler) ClearQuarantine(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid dataset id"})
		return
	}

	if err := h.validationSvc.ClearQuarantine(c.Request.Context(), id); err != nil {
		log.WithError(err).Error("clear quarantine failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
