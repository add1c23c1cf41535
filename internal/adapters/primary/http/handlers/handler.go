package handlers

import (
	"github.com/gin-gonic/gin"

	"ml-governance-service/internal/core/services"
)

type Handler struct {
	validationSvc *services.ValidationService
	driftSvc      *services.DriftService
	registrySvc   *services.RegistryService
	governanceSvc *services.GovernanceService
}

func New(validationSvc *services.ValidationService, driftSvc *services.DriftService, registrySvc *services.RegistryService, governanceSvc *services.GovernanceService) *Handler {
	return &Handler{
		validationSvc: validationSvc,
		driftSvc:      driftSvc,
		registrySvc:   registrySvc,
		governanceSvc: governanceSvc,
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	// Dataset validation
	r.POST("/datasets/validate", h.ValidateDataset)
	r.GET("/datasets/:id/report", h.GetReport)
	r.POST("/datasets/:id/quarantine/clear", h.ClearQuarantine)

	// Drift monitoring
	r.POST("/inference-logs", h.BufferInferenceLogs)
	r.POST("/models/:name/drift/detect", h.DetectDrift)
	r.GET("/models/:name/drift/should-retrain", h.ShouldRetrain)
	r.GET("/models/:name/drift/history", h.DriftHistory)

	// Model registry
	r.POST("/models", h.RegisterVersion)
	r.GET("/models/:name/versions", h.ListVersions)
	r.GET("/models/:name/production", h.GetProduction)
	r.GET("/versions/compare", h.CompareVersions)
	r.GET("/versions/:id", h.GetVersion)
	r.POST("/versions/:id/promote", h.PromoteVersion)
	r.POST("/models/:name/rollback", h.Rollback)

	// Governance coordinator
	r.POST("/models/:name/records", h.RecordIngested)
	r.POST("/models/:name/retrain", h.TriggerRetraining)
	r.POST("/models/:name/training-started", h.MarkTraining)
	r.POST("/models/:name/candidate", h.SubmitCandidate)
	r.POST("/models/:name/candidate/retry", h.RetryPromotion)
	r.GET("/models/:name/decisions", h.ListDecisions)
	r.GET("/models/:name/jobs", h.ListJobs)
}
