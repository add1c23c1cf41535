package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ml-governance-service/internal/core/domain"
)

// QualityReportRepository persists validation reports keyed by dataset id.
type QualityReportRepository interface {
	Save(ctx context.Context, report *domain.QualityReport) error
	GetByDataset(ctx context.Context, datasetID uuid.UUID) (*domain.QualityReport, error)
}

// DriftRepository persists reference distributions and drift history per
// model name.
type DriftRepository interface {
	SaveReference(ctx context.Context, ref *domain.ReferenceDistribution) error
	GetReference(ctx context.Context, modelName string) (*domain.ReferenceDistribution, error)
	SaveResults(ctx context.Context, results []*domain.DriftResult) error
	ListResults(ctx context.Context, modelName string, limit int) ([]*domain.DriftResult, error)
}

// VersionListFilter narrows registry listings.
type VersionListFilter struct {
	Status string
	Limit  int
	Offset int
}

// RegistryRepository is the versioned model store. SwapProduction and
// RestoreProduction are single transactions: the registry is never observed
// with two production versions of one model name.
type RegistryRepository interface {
	Create(ctx context.Context, version *domain.ModelVersion) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error)
	GetProduction(ctx context.Context, modelName string) (*domain.ModelVersion, error)
	ListByModel(ctx context.Context, modelName string, filter VersionListFilter) ([]*domain.ModelVersion, int, error)
	NextVersion(ctx context.Context, modelName string) (int, error)

	// UpdateStatus is a compare-and-swap on status; a stale `from` yields
	// domain.ErrRegistryConflict.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.VersionStatus, deployedAt *time.Time) error

	// SwapProduction archives the current production version (if any) and
	// promotes newID in one transaction, appending a deployment event.
	SwapProduction(ctx context.Context, modelName string, newID uuid.UUID, at time.Time, reason string) (previous *domain.ModelVersion, err error)

	DeploymentHistory(ctx context.Context, modelName string, limit int) ([]*domain.DeploymentEvent, error)
}

// RetrainingRepository persists decisions and job checkpoints.
type RetrainingRepository interface {
	SaveDecision(ctx context.Context, decision *domain.RetrainingDecision) error
	UpdateDecisionOutcome(ctx context.Context, id uuid.UUID, outcome string) error
	ListDecisions(ctx context.Context, modelName string, limit int) ([]*domain.RetrainingDecision, error)

	SaveJob(ctx context.Context, job *domain.RetrainingJob) error
	UpdateJob(ctx context.Context, job *domain.RetrainingJob) error
	GetActiveJob(ctx context.Context, modelName string) (*domain.RetrainingJob, error)
	ListJobs(ctx context.Context, modelName string, limit int) ([]*domain.RetrainingJob, error)
}
