package ports

import (
	"context"

	"github.com/google/uuid"

	"ml-governance-service/internal/core/domain"
)

// RecordCounter accumulates new-record counts per model name between
// retraining cycles.
type RecordCounter interface {
	Add(ctx context.Context, modelName string, n int64) (int64, error)
	Get(ctx context.Context, modelName string) (int64, error)
	Reset(ctx context.Context, modelName string) error
}

// QuarantineStore flags datasets held back by the PHI gate. Quarantine is
// terminal until an operator clears it, and survives restarts.
type QuarantineStore interface {
	Quarantine(ctx context.Context, datasetID uuid.UUID, reason string) error
	IsQuarantined(ctx context.Context, datasetID uuid.UUID) (bool, error)
	Clear(ctx context.Context, datasetID uuid.UUID) error
}

// PromotionNotice is delivered to administrators before a production swap.
type PromotionNotice struct {
	ModelName string               `json:"model_name"`
	Candidate *domain.ModelVersion `json:"candidate"`
	Previous  *domain.ModelVersion `json:"previous,omitempty"`
	Reason    string               `json:"reason"`
}

// AdminNotifier dispatches governance notifications. Delivery happens-before
// the production swap; a failed delivery aborts the swap.
type AdminNotifier interface {
	NotifyPromotion(ctx context.Context, notice PromotionNotice) error
	NotifyRetraining(ctx context.Context, decision *domain.RetrainingDecision) error
}
