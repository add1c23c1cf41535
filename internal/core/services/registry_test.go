package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
	"ml-governance-service/internal/testutil"
)

func newRegistryForTest(t *testing.T) (*RegistryService, *testutil.FakeRegistryRepo) {
	t.Helper()
	repo := testutil.NewFakeRegistryRepo()
	return NewRegistryService(repo), repo
}

func registerVersion(t *testing.T, svc *RegistryService, model string, rocAUC float64) *domain.ModelVersion {
	t.Helper()
	v, err := svc.Register(context.Background(), model, "s3://models/"+model,
		domain.Metrics{Accuracy: 0.9, ROCAUC: rocAUC}, "ds-v1", map[string]string{"lr": "0.01"})
	require.NoError(t, err)
	return v
}

func promoteToProduction(t *testing.T, svc *RegistryService, id uuid.UUID) *domain.ModelVersion {
	t.Helper()
	_, err := svc.Promote(context.Background(), id, domain.StatusStaging)
	require.NoError(t, err)
	v, err := svc.Promote(context.Background(), id, domain.StatusProduction)
	require.NoError(t, err)
	return v
}

func TestRegistryService_RegisterMonotonicVersions(t *testing.T) {
	svc, _ := newRegistryForTest(t)

	a := registerVersion(t, svc, "cognition", 0.80)
	b := registerVersion(t, svc, "cognition", 0.81)
	other := registerVersion(t, svc, "imaging", 0.70)

	assert.Equal(t, 1, a.Version)
	assert.Equal(t, 2, b.Version)
	assert.Equal(t, 1, other.Version) // counters are per model name
	assert.Equal(t, domain.StatusRegistered, a.Status)
}

func TestRegistryService_RejectsEmptyModelName(t *testing.T) {
	svc, _ := newRegistryForTest(t)
	_, err := svc.Register(context.Background(), "", "ref", domain.Metrics{}, "ds", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidModelName)
}

func TestRegistryService_LifecycleTransitions(t *testing.T) {
	svc, _ := newRegistryForTest(t)
	ctx := context.Background()
	v := registerVersion(t, svc, "cognition", 0.80)

	// registered cannot jump straight to production
	_, err := svc.Promote(ctx, v.ID, domain.StatusProduction)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	staged, err := svc.Promote(ctx, v.ID, domain.StatusStaging)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusStaging, staged.Status)

	// staging cannot move back to registered
	_, err = svc.Promote(ctx, v.ID, domain.StatusRegistered)
	assert.ErrorIs(t, err, domain.ErrIllegalTransition)

	prod, err := svc.Promote(ctx, v.ID, domain.StatusProduction)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProduction, prod.Status)
	require.NotNil(t, prod.DeployedAt)
}

func TestRegistryService_PromotionArchivesPrevious(t *testing.T) {
	svc, repo := newRegistryForTest(t)
	ctx := context.Background()

	first := registerVersion(t, svc, "cognition", 0.80)
	promoteToProduction(t, svc, first.ID)
	second := registerVersion(t, svc, "cognition", 0.85)
	promoteToProduction(t, svc, second.ID)

	prod, err := svc.Production(ctx, "cognition")
	require.NoError(t, err)
	assert.Equal(t, second.ID, prod.ID)

	archived, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, archived.Status)

	history, err := repo.DeploymentHistory(ctx, "cognition", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].VersionID)
	assert.Equal(t, "promotion", history[0].Reason)
}

func TestRegistryService_Rollback(t *testing.T) {
	svc, _ := newRegistryForTest(t)
	ctx := context.Background()

	first := registerVersion(t, svc, "cognition", 0.80)
	promoteToProduction(t, svc, first.ID)
	second := registerVersion(t, svc, "cognition", 0.85)
	promoteToProduction(t, svc, second.ID)

	restored, err := svc.Rollback(ctx, "cognition")
	require.NoError(t, err)
	assert.Equal(t, first.ID, restored.ID)
	assert.Equal(t, domain.StatusProduction, restored.Status)

	// the rolled-back version is archived, not deleted
	demoted, err := svc.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, demoted.Status)
}

func TestRegistryService_RollbackNeedsHistory(t *testing.T) {
	svc, _ := newRegistryForTest(t)
	ctx := context.Background()

	_, err := svc.Rollback(ctx, "cognition")
	assert.ErrorIs(t, err, domain.ErrNoProductionModel)

	only := registerVersion(t, svc, "cognition", 0.80)
	promoteToProduction(t, svc, only.ID)
	_, err = svc.Rollback(ctx, "cognition")
	assert.ErrorIs(t, err, domain.ErrNoPreviousVersion)
}

func TestRegistryService_ArchiveRules(t *testing.T) {
	svc, _ := newRegistryForTest(t)
	ctx := context.Background()

	candidate := registerVersion(t, svc, "cognition", 0.80)
	require.NoError(t, svc.Archive(ctx, candidate.ID))
	v, err := svc.Get(ctx, candidate.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, v.Status)

	// archiving again is a no-op
	require.NoError(t, svc.Archive(ctx, candidate.ID))

	prod := registerVersion(t, svc, "cognition", 0.85)
	promoteToProduction(t, svc, prod.ID)
	assert.ErrorIs(t, svc.Archive(ctx, prod.ID), domain.ErrIllegalTransition)
}

// Two goroutines race to promote their own staged version. Exactly one
// version may hold production when both settle.
func TestRegistryService_ConcurrentPromotionsSingleProduction(t *testing.T) {
	svc, _ := newRegistryForTest(t)
	ctx := context.Background()

	a := registerVersion(t, svc, "cognition", 0.80)
	b := registerVersion(t, svc, "cognition", 0.81)
	_, err := svc.Promote(ctx, a.ID, domain.StatusStaging)
	require.NoError(t, err)
	_, err = svc.Promote(ctx, b.ID, domain.StatusStaging)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, id := range []uuid.UUID{a.ID, b.ID} {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, _ = svc.Promote(ctx, id, domain.StatusProduction)
		}(id)
	}
	wg.Wait()

	inProduction, _, err := svc.List(ctx, "cognition", ports.VersionListFilter{Status: string(domain.StatusProduction)})
	require.NoError(t, err)
	assert.Len(t, inProduction, 1)
}

func TestRegistryService_Compare(t *testing.T) {
	svc, _ := newRegistryForTest(t)
	ctx := context.Background()

	a := registerVersion(t, svc, "cognition", 0.80)
	b := registerVersion(t, svc, "cognition", 0.88)

	diff, err := svc.Compare(ctx, []uuid.UUID{a.ID, b.ID})
	require.NoError(t, err)
	require.Len(t, diff.Versions, 2)

	var rocAUC *domain.MetricDelta
	for i := range diff.Deltas {
		if diff.Deltas[i].Metric == "roc_auc" {
			rocAUC = &diff.Deltas[i]
		}
	}
	require.NotNil(t, rocAUC)
	assert.Equal(t, 0.80, rocAUC.Values[a.ID.String()])
	assert.Equal(t, 0.88, rocAUC.Values[b.ID.String()])

	_, err = svc.Compare(ctx, []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
}
