package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
	"ml-governance-service/internal/testutil"
)

// recordingNotifier captures notifications and can be told to fail
// promotion delivery.
type recordingNotifier struct {
	mu              sync.Mutex
	promotionErr    error
	promotions      []ports.PromotionNotice
	retrainNotified int
}

func (n *recordingNotifier) NotifyPromotion(_ context.Context, notice ports.PromotionNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.promotionErr != nil {
		return n.promotionErr
	}
	n.promotions = append(n.promotions, notice)
	return nil
}

func (n *recordingNotifier) NotifyRetraining(_ context.Context, _ *domain.RetrainingDecision) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.retrainNotified++
	return nil
}

type governanceFixture struct {
	svc      *GovernanceService
	drift    *DriftService
	registry *RegistryService
	repo     *testutil.FakeRetrainingRepo
	counter  *testutil.FakeRecordCounter
	notifier *recordingNotifier
}

func newGovernanceForTest(t *testing.T, cfg GovernanceConfig) *governanceFixture {
	t.Helper()
	driftRepo := new(testutil.MockDriftRepo)
	driftRepo.On("SaveReference", mock.Anything, mock.Anything).Return(nil)
	driftRepo.On("SaveResults", mock.Anything, mock.Anything).Return(nil)
	driftRepo.On("GetReference", mock.Anything, mock.Anything).Return(nil, domain.ErrNoReference)
	driftRepo.On("ListResults", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)

	f := &governanceFixture{
		drift:    NewDriftService(DefaultDriftConfig(), nil, driftRepo),
		registry: NewRegistryService(testutil.NewFakeRegistryRepo()),
		repo:     testutil.NewFakeRetrainingRepo(),
		counter:  testutil.NewFakeRecordCounter(),
		notifier: &recordingNotifier{},
	}
	f.svc = NewGovernanceService(cfg, f.drift, f.registry, f.repo, f.counter, f.notifier)
	return f
}

func (f *governanceFixture) installProduction(t *testing.T, model string, rocAUC float64) *domain.ModelVersion {
	t.Helper()
	ctx := context.Background()
	v, err := f.registry.Register(ctx, model, "s3://models/base", domain.Metrics{ROCAUC: rocAUC}, "ds-v1", nil)
	require.NoError(t, err)
	_, err = f.registry.Promote(ctx, v.ID, domain.StatusStaging)
	require.NoError(t, err)
	_, err = f.registry.Promote(ctx, v.ID, domain.StatusProduction)
	require.NoError(t, err)
	return v
}

func TestGovernanceService_VolumeTrigger(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{VolumeThreshold: 1000})
	ctx := context.Background()

	require.NoError(t, f.svc.RecordIngested(ctx, "cognition", 999))
	decision, err := f.svc.EvaluateTriggers(ctx, "cognition")
	require.NoError(t, err)
	assert.Nil(t, decision)

	require.NoError(t, f.svc.RecordIngested(ctx, "cognition", 1))
	decision, err = f.svc.EvaluateTriggers(ctx, "cognition")
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, domain.TriggerVolume, decision.Reason)
	assert.Equal(t, 1, f.notifier.retrainNotified)

	job, err := f.repo.GetActiveJob(ctx, "cognition")
	require.NoError(t, err)
	assert.Equal(t, domain.StageTriggered, job.Stage)
}

func TestGovernanceService_DriftTriggerPrecedesVolume(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{VolumeThreshold: 10})
	ctx := context.Background()

	captureReference(t, f.drift, "cognition", normalRows(t, 11, 300, 100, 10))
	// accumulate enough volume to fire too; drift must win
	require.NoError(t, f.svc.RecordIngested(ctx, "cognition", 50))

	shifted := normalRows(t, 12, 300, 130, 10)
	_, err := f.drift.DetectDrift(ctx, "cognition",
		&domain.Batch{Columns: []string{"hippocampus_volume"}, Rows: shifted})
	require.NoError(t, err)

	decision, err := f.svc.EvaluateTriggers(ctx, "cognition")
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, domain.TriggerDrift, decision.Reason)
}

func TestGovernanceService_ScheduleTrigger(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{ScheduleInterval: time.Millisecond})
	ctx := context.Background()

	// no prior cycle means no schedule baseline
	decision, err := f.svc.EvaluateTriggers(ctx, "cognition")
	require.NoError(t, err)
	assert.Nil(t, decision)

	_, err = f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)
	f.svc.completeCycle(ctx, "cognition", "candidate archived")

	time.Sleep(5 * time.Millisecond)
	decision, err = f.svc.EvaluateTriggers(ctx, "cognition")
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, domain.TriggerSchedule, decision.Reason)
}

// The schedule baseline must survive a restart: when the in-memory map is
// cold, the newest persisted decision seeds it.
func TestGovernanceService_ScheduleTriggerSurvivesRestart(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{ScheduleInterval: time.Millisecond})
	ctx := context.Background()

	_, err := f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)
	f.svc.completeCycle(ctx, "cognition", "candidate archived")

	restarted := NewGovernanceService(GovernanceConfig{ScheduleInterval: time.Millisecond},
		f.drift, f.registry, f.repo, f.counter, f.notifier)

	time.Sleep(5 * time.Millisecond)
	decision, err := restarted.EvaluateTriggers(ctx, "cognition")
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, domain.TriggerSchedule, decision.Reason)
}

func TestGovernanceService_TriggerWhileJobActiveIsIgnored(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{})
	ctx := context.Background()

	first, err := f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)
	require.NotNil(t, first)

	second, err := f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)
	assert.Nil(t, second)

	jobs, err := f.svc.Jobs(ctx, "cognition", 10)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

// The in-memory in-progress flag is cold after a restart; a persisted
// active job must still suppress new triggers.
func TestGovernanceService_PersistedJobSuppressesTriggerAfterRestart(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{})
	ctx := context.Background()

	_, err := f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)

	restarted := NewGovernanceService(GovernanceConfig{}, f.drift, f.registry, f.repo, f.counter, f.notifier)
	decision, err := restarted.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)
	assert.Nil(t, decision)
}

func TestGovernanceService_CandidateBelowThresholdArchived(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{PromotionFactor: 1.05})
	ctx := context.Background()

	f.installProduction(t, "cognition", 0.80)
	_, err := f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)

	// +3% relative improvement does not clear the strict 5% bar
	candidate, promoted, err := f.svc.SubmitCandidate(ctx, "cognition", "s3://models/c1",
		domain.Metrics{ROCAUC: 0.824}, "ds-v2", nil, nil)
	require.NoError(t, err)
	assert.False(t, promoted)
	assert.Equal(t, domain.StatusArchived, candidate.Status)
	assert.Empty(t, f.notifier.promotions)

	prod, err := f.registry.Production(ctx, "cognition")
	require.NoError(t, err)
	assert.Equal(t, 0.80, prod.Metrics.ROCAUC)

	decisions, err := f.svc.Decisions(ctx, "cognition", 10)
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "candidate archived", decisions[0].Outcome)
}

func TestGovernanceService_ExactThresholdNotPromoted(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{PromotionFactor: 1.05})
	ctx := context.Background()
	f.installProduction(t, "cognition", 0.80)

	// exactly production * 1.05: the rule demands strictly greater
	_, promoted, err := f.svc.SubmitCandidate(ctx, "cognition", "s3://models/c1",
		domain.Metrics{ROCAUC: 0.80 * 1.05}, "ds-v2", nil, nil)
	require.NoError(t, err)
	assert.False(t, promoted)
}

func TestGovernanceService_CandidateAboveThresholdPromoted(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{PromotionFactor: 1.05})
	ctx := context.Background()

	previous := f.installProduction(t, "cognition", 0.80)
	_, err := f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)
	require.NoError(t, f.svc.RecordIngested(ctx, "cognition", 400))

	candidate, promoted, err := f.svc.SubmitCandidate(ctx, "cognition", "s3://models/c1",
		domain.Metrics{ROCAUC: 0.841}, "ds-v2", nil, nil)
	require.NoError(t, err)
	assert.True(t, promoted)
	assert.Equal(t, domain.StatusProduction, candidate.Status)

	demoted, err := f.registry.Get(ctx, previous.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusArchived, demoted.Status)

	require.Len(t, f.notifier.promotions, 1)
	assert.Equal(t, candidate.ID, f.notifier.promotions[0].Candidate.ID)

	// full cycle bookkeeping: job completed, outcome recorded, counter reset
	_, err = f.repo.GetActiveJob(ctx, "cognition")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
	decisions, err := f.svc.Decisions(ctx, "cognition", 10)
	require.NoError(t, err)
	assert.Equal(t, "candidate promoted", decisions[0].Outcome)
	count, err := f.counter.Get(ctx, "cognition")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestGovernanceService_FirstCandidatePromotedWithoutProduction(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{})
	ctx := context.Background()

	candidate, promoted, err := f.svc.SubmitCandidate(ctx, "cognition", "s3://models/c1",
		domain.Metrics{ROCAUC: 0.70}, "ds-v1", nil, nil)
	require.NoError(t, err)
	assert.True(t, promoted)
	assert.Equal(t, domain.StatusProduction, candidate.Status)
}

// A failed admin notification aborts the swap. The job stays checkpointed
// at evaluating and the same promotion can be retried once delivery works.
func TestGovernanceService_NotificationFailureAbortsSwap(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{PromotionFactor: 1.05})
	ctx := context.Background()

	previous := f.installProduction(t, "cognition", 0.80)
	_, err := f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)

	f.notifier.promotionErr = errors.New("webhook 503")
	candidate, promoted, err := f.svc.SubmitCandidate(ctx, "cognition", "s3://models/c1",
		domain.Metrics{ROCAUC: 0.90}, "ds-v2", nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotificationFailed)
	assert.False(t, promoted)

	// production untouched, job retriable
	prod, err := f.registry.Production(ctx, "cognition")
	require.NoError(t, err)
	assert.Equal(t, previous.ID, prod.ID)
	job, err := f.repo.GetActiveJob(ctx, "cognition")
	require.NoError(t, err)
	assert.Equal(t, domain.StageEvaluating, job.Stage)
	require.NotNil(t, job.CandidateID)
	assert.Equal(t, candidate.ID, *job.CandidateID)

	f.notifier.promotionErr = nil
	retried, promoted, err := f.svc.RetryPromotion(ctx, "cognition")
	require.NoError(t, err)
	assert.True(t, promoted)
	assert.Equal(t, candidate.ID, retried.ID)
	assert.Equal(t, domain.StatusProduction, retried.Status)

	_, err = f.repo.GetActiveJob(ctx, "cognition")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestGovernanceService_MarkTraining(t *testing.T) {
	f := newGovernanceForTest(t, GovernanceConfig{})
	ctx := context.Background()

	_, err := f.svc.Trigger(ctx, "cognition", domain.TriggerManual)
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkTraining(ctx, "cognition"))

	job, err := f.repo.GetActiveJob(ctx, "cognition")
	require.NoError(t, err)
	assert.Equal(t, domain.StageTraining, job.Stage)

	assert.ErrorIs(t, f.svc.MarkTraining(ctx, "imaging"), domain.ErrJobNotFound)
}
