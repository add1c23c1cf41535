package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/adapters/primary/http/dto"
	"ml-governance-service/internal/core/domain"
	"ml-governance-service/internal/metrics"
)

func (h *Handler) RecordIngested(c *gin.Context) {
	var req dto.RecordIngestedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.governanceSvc.RecordIngested(c.Request.Context(), c.Param("name"), req.Count); err != nil {
		log.WithError(err).Error("record ingestion count failed")
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "recorded"})
}

// TriggerRetraining starts a cycle manually, or re-evaluates the automatic
// triggers when no reason is given.
func (h *Handler) TriggerRetraining(c *gin.Context) {
	modelName := c.Param("name")

	var req dto.TriggerRetrainingRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var decision *domain.RetrainingDecision
	var err error
	if req.Reason == "" {
		decision, err = h.governanceSvc.EvaluateTriggers(c.Request.Context(), modelName)
	} else {
		decision, err = h.governanceSvc.Trigger(c.Request.Context(), modelName, domain.TriggerReason(req.Reason))
	}
	if err != nil {
		log.WithError(err).Error("retraining trigger failed")
		mapDomainError(c, err)
		return
	}
	if decision == nil {
		c.JSON(http.StatusOK, gin.H{"triggered": false})
		return
	}

	metrics.RetrainingTriggersTotal.WithLabelValues(modelName, string(decision.Reason)).Inc()
	c.JSON(http.StatusCreated, gin.H{
		"triggered": true,
		"decision":  dto.ToRetrainingDecisionResponse(decision),
	})
}

func (h *Handler) MarkTraining(c *gin.Context) {
	if err := h.governanceSvc.MarkTraining(c.Request.Context(), c.Param("name")); err != nil {
		mapDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "training"})
}

func (h *Handler) SubmitCandidate(c *gin.Context) {
	modelName := c.Param("name")

	var req dto.SubmitCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var referenceBatch *domain.Batch
	if len(req.ReferenceRows) > 0 {
		fb := dto.FeatureBatchRequest{ModelName: modelName, Rows: req.ReferenceRows}
		referenceBatch = fb.ToBatch()
	}

	candidate, promoted, err := h.governanceSvc.SubmitCandidate(c.Request.Context(),
		modelName, req.ArtifactRef, req.Metrics, req.DatasetVersion, req.Hyperparams, referenceBatch)
	if err != nil {
		log.WithError(err).Error("candidate submission failed")
		mapDomainError(c, err)
		return
	}

	outcome := "archived"
	if promoted {
		outcome = "promoted"
	}
	metrics.PromotionsTotal.WithLabelValues(modelName, outcome).Inc()

	c.JSON(http.StatusOK, dto.CandidateDecisionResponse{
		Candidate: dto.ToModelVersionResponse(candidate),
		Promoted:  promoted,
	})
}

// RetryPromotion re-runs the promotion rule after a failed admin
// notification aborted the swap.
func (h *Handler) RetryPromotion(c *gin.Context) {
	modelName := c.Param("name")

	candidate, promoted, err := h.governanceSvc.RetryPromotion(c.Request.Context(), modelName)
	if err != nil {
		log.WithError(err).Error("promotion retry failed")
		mapDomainError(c, err)
		return
	}

	outcome := "archived"
	if promoted {
		outcome = "promoted"
	}
	metrics.PromotionsTotal.WithLabelValues(modelName, outcome).Inc()

	c.JSON(http.StatusOK, dto.CandidateDecisionResponse{
		Candidate: dto.ToModelVersionResponse(candidate),
		Promoted:  promoted,
	})
}

func (h *Handler) ListDecisions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	decisions, err := h.governanceSvc.Decisions(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	items := make([]dto.RetrainingDecisionResponse, 0, len(decisions))
	for _, d := range decisions {
		items = append(items, dto.ToRetrainingDecisionResponse(d))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ListJobs(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	jobs, err := h.governanceSvc.Jobs(c.Request.Context(), c.Param("name"), limit)
	if err != nil {
		mapDomainError(c, err)
		return
	}

	items := make([]dto.RetrainingJobResponse, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, dto.ToRetrainingJobResponse(job))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
