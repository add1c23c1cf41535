package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

type GovernanceConfig struct {
	VolumeThreshold  int64         // accumulated new records that trigger retraining
	ScheduleInterval time.Duration // elapsed time that triggers retraining
	// PromotionFactor is the strict relative improvement a candidate's
	// roc_auc must exceed over production, e.g. 1.05.
	PromotionFactor float64
}

func DefaultGovernanceConfig() GovernanceConfig {
	return GovernanceConfig{
		VolumeThreshold:  1000,
		ScheduleInterval: 7 * 24 * time.Hour,
		PromotionFactor:  1.05,
	}
}

// GovernanceService couples drift, volume and schedule signals to
// retraining decisions and enforces the promotion policy against the
// registry.
type GovernanceService struct {
	cfg      GovernanceConfig
	drift    *DriftService
	registry *RegistryService
	repo     ports.RetrainingRepository
	counter  ports.RecordCounter
	notifier ports.AdminNotifier

	mu         sync.Mutex
	inProgress map[string]bool
	lastCycle  map[string]time.Time
}

func NewGovernanceService(cfg GovernanceConfig, drift *DriftService, registry *RegistryService, repo ports.RetrainingRepository, counter ports.RecordCounter, notifier ports.AdminNotifier) *GovernanceService {
	if cfg.VolumeThreshold == 0 {
		cfg.VolumeThreshold = 1000
	}
	if cfg.ScheduleInterval == 0 {
		cfg.ScheduleInterval = 7 * 24 * time.Hour
	}
	if cfg.PromotionFactor == 0 {
		cfg.PromotionFactor = 1.05
	}
	return &GovernanceService{
		cfg:        cfg,
		drift:      drift,
		registry:   registry,
		repo:       repo,
		counter:    counter,
		notifier:   notifier,
		inProgress: make(map[string]bool),
		lastCycle:  make(map[string]time.Time),
	}
}

// RecordIngested accumulates the new-record volume signal.
func (s *GovernanceService) RecordIngested(ctx context.Context, modelName string, n int64) error {
	_, err := s.counter.Add(ctx, modelName, n)
	return err
}

// EvaluateTriggers checks the drift, volume and schedule signals for one
// model and emits a RetrainingDecision when any fires. A trigger arriving
// while a retraining job is already active for the model is ignored, not
// queued: the returned decision is nil.
func (s *GovernanceService) EvaluateTriggers(ctx context.Context, modelName string) (*domain.RetrainingDecision, error) {
	reason, err := s.firedTrigger(ctx, modelName)
	if err != nil {
		return nil, err
	}
	if reason == "" {
		return nil, nil
	}
	return s.Trigger(ctx, modelName, reason)
}

// Trigger starts a retraining cycle for the given reason, manual included.
func (s *GovernanceService) Trigger(ctx context.Context, modelName string, reason domain.TriggerReason) (*domain.RetrainingDecision, error) {
	s.mu.Lock()
	if s.inProgress[modelName] {
		s.mu.Unlock()
		log.WithFields(log.Fields{"model": modelName, "reason": reason}).
			Info("retraining trigger ignored, job already active")
		return nil, nil
	}
	s.inProgress[modelName] = true
	s.mu.Unlock()

	// The in-memory flag may be cold after a restart; the persisted active
	// job is authoritative.
	if active, err := s.repo.GetActiveJob(ctx, modelName); err == nil && active != nil {
		log.WithFields(log.Fields{"model": modelName, "job": active.ID}).
			Info("retraining trigger ignored, persisted job active")
		return nil, nil
	} else if err != nil && !errors.Is(err, domain.ErrJobNotFound) {
		s.release(modelName)
		return nil, fmt.Errorf("active job lookup: %w", err)
	}

	now := time.Now().UTC()
	decision := &domain.RetrainingDecision{
		ID:        uuid.New(),
		ModelName: modelName,
		Reason:    reason,
		DecidedAt: now,
		Outcome:   "triggered",
	}
	if err := s.repo.SaveDecision(ctx, decision); err != nil {
		s.release(modelName)
		return nil, fmt.Errorf("save decision: %w", err)
	}

	job := &domain.RetrainingJob{
		ID:         uuid.New(),
		ModelName:  modelName,
		DecisionID: decision.ID,
		Stage:      domain.StageTriggered,
		StartedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.SaveJob(ctx, job); err != nil {
		s.release(modelName)
		return nil, fmt.Errorf("save job: %w", err)
	}

	s.mu.Lock()
	s.lastCycle[modelName] = now
	s.mu.Unlock()

	if s.notifier != nil {
		if err := s.notifier.NotifyRetraining(ctx, decision); err != nil {
			log.WithError(err).WithField("model", modelName).Warn("retraining notification failed")
		}
	}

	log.WithFields(log.Fields{"model": modelName, "reason": reason, "job": job.ID}).
		Info("retraining triggered")
	return decision, nil
}

// MarkTraining checkpoints the active job into the training stage, called
// when the external training collaborator picks the job up.
func (s *GovernanceService) MarkTraining(ctx context.Context, modelName string) error {
	return s.advanceJob(ctx, modelName, domain.StageTraining)
}

// SubmitCandidate receives a trained candidate's metrics and artifact
// reference, applies the promotion rule and finishes the retraining cycle.
// referenceBatch, when present, recaptures the drift baseline on promotion.
func (s *GovernanceService) SubmitCandidate(ctx context.Context, modelName, artifactRef string, metrics domain.Metrics, datasetVersion string, hyperparams map[string]string, referenceBatch *domain.Batch) (*domain.ModelVersion, bool, error) {
	candidate, err := s.registry.Register(ctx, modelName, artifactRef, metrics, datasetVersion, hyperparams)
	if err != nil {
		return nil, false, err
	}

	if err := s.advanceJobWithCandidate(ctx, modelName, domain.StageEvaluating, candidate.ID); err != nil &&
		!errors.Is(err, domain.ErrJobNotFound) {
		return nil, false, err
	}

	promoted, err := s.applyPromotionRule(ctx, candidate, referenceBatch)
	if err != nil {
		// A failed notification leaves the job checkpointed at evaluating so
		// the submission can be retried; anything else fails the job.
		if errors.Is(err, domain.ErrNotificationFailed) {
			return candidate, false, err
		}
		s.failJob(ctx, modelName, err)
		return candidate, false, err
	}

	outcome := "candidate archived"
	if promoted {
		outcome = "candidate promoted"
	}
	s.completeCycle(ctx, modelName, outcome)

	candidate, err = s.registry.Get(ctx, candidate.ID)
	if err != nil {
		return nil, promoted, err
	}
	return candidate, promoted, nil
}

// applyPromotionRule promotes the candidate only on strict relative roc_auc
// improvement over the current production version; otherwise the candidate
// is archived but kept for audit and comparison. Admin notification
// happens-before the production swap, and a failed notification aborts the
// swap (the whole call is retriable and idempotent through the registry).
func (s *GovernanceService) applyPromotionRule(ctx context.Context, candidate *domain.ModelVersion, referenceBatch *domain.Batch) (bool, error) {
	production, err := s.registry.Production(ctx, candidate.ModelName)
	if err != nil && !errors.Is(err, domain.ErrNoProductionModel) {
		return false, err
	}

	if production != nil && candidate.Metrics.ROCAUC <= production.Metrics.ROCAUC*s.cfg.PromotionFactor {
		log.WithFields(log.Fields{
			"model":          candidate.ModelName,
			"candidate_auc":  candidate.Metrics.ROCAUC,
			"production_auc": production.Metrics.ROCAUC,
		}).Info("candidate below promotion threshold, archiving")
		if err := s.registry.Archive(ctx, candidate.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	if s.notifier != nil {
		notice := ports.PromotionNotice{
			ModelName: candidate.ModelName,
			Candidate: candidate,
			Previous:  production,
			Reason:    "promotion rule satisfied",
		}
		if err := s.notifier.NotifyPromotion(ctx, notice); err != nil {
			return false, fmt.Errorf("%w: %v", domain.ErrNotificationFailed, err)
		}
	}

	if candidate.Status == domain.StatusRegistered {
		if _, err := s.registry.Promote(ctx, candidate.ID, domain.StatusStaging); err != nil {
			return false, err
		}
	}
	if _, err := s.registry.Promote(ctx, candidate.ID, domain.StatusProduction); err != nil {
		return false, err
	}

	if referenceBatch != nil {
		if _, err := s.drift.CaptureReference(ctx, candidate.ModelName, candidate.ID, referenceBatch); err != nil {
			log.WithError(err).WithField("model", candidate.ModelName).
				Error("reference capture after promotion failed")
		}
	}
	return true, nil
}

// RetryPromotion re-applies the promotion rule for the candidate attached
// to the active job, after a failed notification. Idempotent: the registry
// swap runs at most once.
func (s *GovernanceService) RetryPromotion(ctx context.Context, modelName string) (*domain.ModelVersion, bool, error) {
	job, err := s.repo.GetActiveJob(ctx, modelName)
	if err != nil {
		return nil, false, err
	}
	if job.CandidateID == nil {
		return nil, false, domain.ErrVersionNotFound
	}
	candidate, err := s.registry.Get(ctx, *job.CandidateID)
	if err != nil {
		return nil, false, err
	}
	if candidate.Status == domain.StatusProduction {
		s.completeCycle(ctx, modelName, "candidate promoted")
		return candidate, true, nil
	}

	promoted, err := s.applyPromotionRule(ctx, candidate, nil)
	if err != nil {
		if errors.Is(err, domain.ErrNotificationFailed) {
			return candidate, false, err
		}
		s.failJob(ctx, modelName, err)
		return candidate, false, err
	}

	outcome := "candidate archived"
	if promoted {
		outcome = "candidate promoted"
	}
	s.completeCycle(ctx, modelName, outcome)
	candidate, err = s.registry.Get(ctx, candidate.ID)
	return candidate, promoted, err
}

// Decisions lists retraining decisions, newest first.
func (s *GovernanceService) Decisions(ctx context.Context, modelName string, limit int) ([]*domain.RetrainingDecision, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListDecisions(ctx, modelName, limit)
}

// Jobs lists retraining jobs, newest first.
func (s *GovernanceService) Jobs(ctx context.Context, modelName string, limit int) ([]*domain.RetrainingJob, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListJobs(ctx, modelName, limit)
}

// Run evaluates triggers for the given models on a fixed interval.
func (s *GovernanceService) Run(ctx context.Context, models func(context.Context) []string, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, model := range models(ctx) {
				if _, err := s.EvaluateTriggers(ctx, model); err != nil {
					log.WithError(err).WithField("model", model).Error("trigger evaluation failed")
				}
			}
		}
	}
}

func (s *GovernanceService) firedTrigger(ctx context.Context, modelName string) (domain.TriggerReason, error) {
	drifted, err := s.drift.ShouldRetrain(ctx, modelName)
	if err != nil && !errors.Is(err, domain.ErrNoReference) {
		return "", err
	}
	if drifted {
		return domain.TriggerDrift, nil
	}

	count, err := s.counter.Get(ctx, modelName)
	if err != nil {
		return "", fmt.Errorf("record counter: %w", err)
	}
	if count >= s.cfg.VolumeThreshold {
		return domain.TriggerVolume, nil
	}

	s.mu.Lock()
	last, seen := s.lastCycle[modelName]
	s.mu.Unlock()
	if !seen {
		// The in-memory baseline is cold after a restart; the newest
		// persisted decision carries the last cycle time.
		decisions, err := s.repo.ListDecisions(ctx, modelName, 1)
		if err != nil {
			return "", fmt.Errorf("list decisions: %w", err)
		}
		if len(decisions) > 0 {
			last = decisions[0].DecidedAt
			seen = true
			s.mu.Lock()
			s.lastCycle[modelName] = last
			s.mu.Unlock()
		}
	}
	if seen && time.Since(last) >= s.cfg.ScheduleInterval {
		return domain.TriggerSchedule, nil
	}
	return "", nil
}

func (s *GovernanceService) advanceJob(ctx context.Context, modelName string, stage domain.JobStage) error {
	return s.advanceJobWithCandidate(ctx, modelName, stage, uuid.Nil)
}

func (s *GovernanceService) advanceJobWithCandidate(ctx context.Context, modelName string, stage domain.JobStage, candidateID uuid.UUID) error {
	job, err := s.repo.GetActiveJob(ctx, modelName)
	if err != nil {
		return err
	}
	job.Stage = stage
	job.UpdatedAt = time.Now().UTC()
	if candidateID != uuid.Nil {
		job.CandidateID = &candidateID
	}
	return s.repo.UpdateJob(ctx, job)
}

func (s *GovernanceService) completeCycle(ctx context.Context, modelName, outcome string) {
	if job, err := s.repo.GetActiveJob(ctx, modelName); err == nil {
		job.Stage = domain.StageCompleted
		job.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateJob(ctx, job); err != nil {
			log.WithError(err).WithField("model", modelName).Error("job completion checkpoint failed")
		}
		if err := s.repo.UpdateDecisionOutcome(ctx, job.DecisionID, outcome); err != nil {
			log.WithError(err).WithField("model", modelName).Error("decision outcome update failed")
		}
	}
	if err := s.counter.Reset(ctx, modelName); err != nil {
		log.WithError(err).WithField("model", modelName).Warn("record counter reset failed")
	}
	s.release(modelName)
}

func (s *GovernanceService) failJob(ctx context.Context, modelName string, cause error) {
	if job, err := s.repo.GetActiveJob(ctx, modelName); err == nil {
		job.Stage = domain.StageFailed
		job.Error = cause.Error()
		job.UpdatedAt = time.Now().UTC()
		if err := s.repo.UpdateJob(ctx, job); err != nil {
			log.WithError(err).WithField("model", modelName).Error("job failure checkpoint failed")
		}
	}
	s.release(modelName)
}

func (s *GovernanceService) release(modelName string) {
	s.mu.Lock()
	delete(s.inProgress, modelName)
	s.mu.Unlock()
}
