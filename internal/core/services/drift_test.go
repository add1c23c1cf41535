package services

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ml-governance-service/internal/core/domain"
	"ml-governance-service/internal/testutil"
)

func normalRows(t *testing.T, seed int64, n int, mean, std float64) []domain.Row {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	rows := make([]domain.Row, n)
	for i := range rows {
		rows[i] = domain.Row{"hippocampus_volume": rng.NormFloat64()*std + mean}
	}
	return rows
}

func newDriftForTest(t *testing.T) (*DriftService, *testutil.MockDriftRepo) {
	t.Helper()
	repo := new(testutil.MockDriftRepo)
	repo.On("SaveReference", mock.Anything, mock.Anything).Return(nil)
	repo.On("SaveResults", mock.Anything, mock.Anything).Return(nil)
	svc := NewDriftService(DefaultDriftConfig(), nil, repo)
	return svc, repo
}

func captureReference(t *testing.T, svc *DriftService, model string, rows []domain.Row) *domain.ReferenceDistribution {
	t.Helper()
	batch := &domain.Batch{Columns: []string{"hippocampus_volume"}, Rows: rows}
	ref, err := svc.CaptureReference(context.Background(), model, uuid.New(), batch)
	require.NoError(t, err)
	return ref
}

func TestDriftService_PSISelfIsZero(t *testing.T) {
	svc, _ := newDriftForTest(t)
	rows := normalRows(t, 1, 500, 100, 10)
	captureReference(t, svc, "cognition", rows)

	psi, err := svc.CalculatePSI(context.Background(), "cognition",
		&domain.Batch{Columns: []string{"hippocampus_volume"}, Rows: rows})
	require.NoError(t, err)
	assert.InDelta(t, 0, psi["hippocampus_volume"], 1e-12)
}

func TestDriftService_KSSelfNoDrift(t *testing.T) {
	svc, _ := newDriftForTest(t)
	rows := normalRows(t, 2, 500, 100, 10)
	captureReference(t, svc, "cognition", rows)

	results, err := svc.DetectDrift(context.Background(), "cognition",
		&domain.Batch{Columns: []string{"hippocampus_volume"}, Rows: rows})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].DriftDetected)
	assert.InDelta(t, 0, results[0].KSStatistic, 1e-12)
}

func TestDriftService_ThreeSigmaShiftDrifts(t *testing.T) {
	svc, _ := newDriftForTest(t)
	captureReference(t, svc, "cognition", normalRows(t, 3, 500, 100, 10))

	shifted := normalRows(t, 4, 500, 130, 10)
	results, err := svc.DetectDrift(context.Background(), "cognition",
		&domain.Batch{Columns: []string{"hippocampus_volume"}, Rows: shifted})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].DriftDetected)
	assert.Less(t, results[0].PValue, 0.05)
}

// A reference at mean 100 / std 10 against a batch at mean
// 130 over ten bins pushes PSI well past 0.2 and flips the retraining
// signal.
func TestDriftService_PSIScenarioTriggersRetrain(t *testing.T) {
	svc, _ := newDriftForTest(t)
	captureReference(t, svc, "cognition", normalRows(t, 5, 500, 100, 10))

	shifted := normalRows(t, 6, 500, 130, 10)
	results, err := svc.DetectDrift(context.Background(), "cognition",
		&domain.Batch{Columns: []string{"hippocampus_volume"}, Rows: shifted})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].PSI, 0.2)

	retrain, err := svc.ShouldRetrain(context.Background(), "cognition")
	require.NoError(t, err)
	assert.True(t, retrain)
}

// Features without a captured reference are skipped, never fatal.
func TestDriftService_MissingFeatureReferenceSkipped(t *testing.T) {
	svc, _ := newDriftForTest(t)
	captureReference(t, svc, "cognition", normalRows(t, 7, 200, 100, 10))

	rows := normalRows(t, 8, 200, 100, 10)
	for _, row := range rows {
		row["new_biomarker"] = 1.0
	}
	results, err := svc.DetectDrift(context.Background(), "cognition",
		&domain.Batch{Columns: []string{"hippocampus_volume", "new_biomarker"}, Rows: rows})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hippocampus_volume", results[0].Feature)
}

func TestDriftService_NoReferenceForModel(t *testing.T) {
	repo := new(testutil.MockDriftRepo)
	repo.On("GetReference", mock.Anything, "unknown").Return(nil, domain.ErrNoReference)
	svc := NewDriftService(DefaultDriftConfig(), nil, repo)

	_, err := svc.DetectDrift(context.Background(), "unknown",
		&domain.Batch{Columns: []string{"x"}, Rows: []domain.Row{{"x": 1.0}}})
	assert.ErrorIs(t, err, domain.ErrNoReference)
}

func TestAnySignalPolicy(t *testing.T) {
	policy := AnySignalPolicy{PSIThreshold: 0.2}

	assert.False(t, policy.ShouldRetrain([]*domain.DriftResult{
		{PSI: 0.05, DriftDetected: false},
		{PSI: 0.1, DriftDetected: false},
	}))
	assert.True(t, policy.ShouldRetrain([]*domain.DriftResult{
		{PSI: 0.05, DriftDetected: false},
		{PSI: 0.25, DriftDetected: false}, // PSI alone is enough
	}))
	assert.True(t, policy.ShouldRetrain([]*domain.DriftResult{
		{PSI: 0.05, DriftDetected: true}, // KS alone is enough
	}))
}
