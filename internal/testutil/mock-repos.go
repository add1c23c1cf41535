package testutil

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

// MockQualityReportRepo is a mock of QualityReportRepository.
type MockQualityReportRepo struct {
	mock.Mock
}

func (m *MockQualityReportRepo) Save(ctx context.Context, report *domain.QualityReport) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockQualityReportRepo) GetByDataset(ctx context.Context, datasetID uuid.UUID) (*domain.QualityReport, error) {
	args := m.Called(ctx, datasetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.QualityReport), args.Error(1)
}

// MockDriftRepo is a mock of DriftRepository.
type MockDriftRepo struct {
	mock.Mock
}

func (m *MockDriftRepo) SaveReference(ctx context.Context, ref *domain.ReferenceDistribution) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockDriftRepo) GetReference(ctx context.Context, modelName string) (*domain.ReferenceDistribution, error) {
	args := m.Called(ctx, modelName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReferenceDistribution), args.Error(1)
}

func (m *MockDriftRepo) SaveResults(ctx context.Context, results []*domain.DriftResult) error {
	args := m.Called(ctx, results)
	return args.Error(0)
}

func (m *MockDriftRepo) ListResults(ctx context.Context, modelName string, limit int) ([]*domain.DriftResult, error) {
	args := m.Called(ctx, modelName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DriftResult), args.Error(1)
}

// MockRegistryRepo is a mock of RegistryRepository.
type MockRegistryRepo struct {
	mock.Mock
}

func (m *MockRegistryRepo) Create(ctx context.Context, version *domain.ModelVersion) error {
	args := m.Called(ctx, version)
	return args.Error(0)
}

func (m *MockRegistryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelVersion), args.Error(1)
}

func (m *MockRegistryRepo) GetProduction(ctx context.Context, modelName string) (*domain.ModelVersion, error) {
	args := m.Called(ctx, modelName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelVersion), args.Error(1)
}

func (m *MockRegistryRepo) ListByModel(ctx context.Context, modelName string, filter ports.VersionListFilter) ([]*domain.ModelVersion, int, error) {
	args := m.Called(ctx, modelName, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*domain.ModelVersion), args.Int(1), args.Error(2)
}

func (m *MockRegistryRepo) NextVersion(ctx context.Context, modelName string) (int, error) {
	args := m.Called(ctx, modelName)
	return args.Int(0), args.Error(1)
}

func (m *MockRegistryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.VersionStatus, deployedAt *time.Time) error {
	args := m.Called(ctx, id, from, to, deployedAt)
	return args.Error(0)
}

func (m *MockRegistryRepo) SwapProduction(ctx context.Context, modelName string, newID uuid.UUID, at time.Time, reason string) (*domain.ModelVersion, error) {
	args := m.Called(ctx, modelName, newID, at, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ModelVersion), args.Error(1)
}

func (m *MockRegistryRepo) DeploymentHistory(ctx context.Context, modelName string, limit int) ([]*domain.DeploymentEvent, error) {
	args := m.Called(ctx, modelName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.DeploymentEvent), args.Error(1)
}

// MockRetrainingRepo is a mock of RetrainingRepository.
type MockRetrainingRepo struct {
	mock.Mock
}

func (m *MockRetrainingRepo) SaveDecision(ctx context.Context, decision *domain.RetrainingDecision) error {
	args := m.Called(ctx, decision)
	return args.Error(0)
}

func (m *MockRetrainingRepo) UpdateDecisionOutcome(ctx context.Context, id uuid.UUID, outcome string) error {
	args := m.Called(ctx, id, outcome)
	return args.Error(0)
}

func (m *MockRetrainingRepo) ListDecisions(ctx context.Context, modelName string, limit int) ([]*domain.RetrainingDecision, error) {
	args := m.Called(ctx, modelName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RetrainingDecision), args.Error(1)
}

func (m *MockRetrainingRepo) SaveJob(ctx context.Context, job *domain.RetrainingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockRetrainingRepo) UpdateJob(ctx context.Context, job *domain.RetrainingJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockRetrainingRepo) GetActiveJob(ctx context.Context, modelName string) (*domain.RetrainingJob, error) {
	args := m.Called(ctx, modelName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RetrainingJob), args.Error(1)
}

func (m *MockRetrainingRepo) ListJobs(ctx context.Context, modelName string, limit int) ([]*domain.RetrainingJob, error) {
	args := m.Called(ctx, modelName, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RetrainingJob), args.Error(1)
}

// MockRecordCounter is a mock of RecordCounter.
type MockRecordCounter struct {
	mock.Mock
}

func (m *MockRecordCounter) Add(ctx context.Context, modelName string, n int64) (int64, error) {
	args := m.Called(ctx, modelName, n)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordCounter) Get(ctx context.Context, modelName string) (int64, error) {
	args := m.Called(ctx, modelName)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockRecordCounter) Reset(ctx context.Context, modelName string) error {
	args := m.Called(ctx, modelName)
	return args.Error(0)
}

// MockQuarantineStore is a mock of QuarantineStore.
type MockQuarantineStore struct {
	mock.Mock
}

func (m *MockQuarantineStore) Quarantine(ctx context.Context, datasetID uuid.UUID, reason string) error {
	args := m.Called(ctx, datasetID, reason)
	return args.Error(0)
}

func (m *MockQuarantineStore) IsQuarantined(ctx context.Context, datasetID uuid.UUID) (bool, error) {
	args := m.Called(ctx, datasetID)
	return args.Bool(0), args.Error(1)
}

func (m *MockQuarantineStore) Clear(ctx context.Context, datasetID uuid.UUID) error {
	args := m.Called(ctx, datasetID)
	return args.Error(0)
}

// MockNotifier is a mock of AdminNotifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyPromotion(ctx context.Context, notice ports.PromotionNotice) error {
	args := m.Called(ctx, notice)
	return args.Error(0)
}

func (m *MockNotifier) NotifyRetraining(ctx context.Context, decision *domain.RetrainingDecision) error {
	args := m.Called(ctx, decision)
	return args.Error(0)
}
