package domain

import (
	"time"

	"github.com/google/uuid"
)

type TriggerReason string

const (
	TriggerDrift    TriggerReason = "drift"
	TriggerVolume   TriggerReason = "volume"
	TriggerSchedule TriggerReason = "schedule"
	TriggerManual   TriggerReason = "manual"
)

// RetrainingDecision records why and when a retraining cycle was started,
// and how it ended.
type RetrainingDecision struct {
	ID        uuid.UUID     `json:"id"`
	ModelName string        `json:"model_name"`
	Reason    TriggerReason `json:"reason"`
	DecidedAt time.Time     `json:"decided_at"`
	Outcome   string        `json:"outcome"`
}

type JobStage string

const (
	StageTriggered  JobStage = "triggered"
	StageTraining   JobStage = "training"
	StageEvaluating JobStage = "evaluating"
	StageCompleted  JobStage = "completed"
	StageFailed     JobStage = "failed"
)

// Active reports whether the stage still occupies the per-model slot.
func (s JobStage) Active() bool {
	switch s {
	case StageTriggered, StageTraining, StageEvaluating:
		return true
	}
	return false
}

// RetrainingJob is the explicit retraining workflow. Each stage change is
// persisted so a crash mid-cycle resumes from the last checkpoint instead
// of restarting.
type RetrainingJob struct {
	ID          uuid.UUID  `json:"id"`
	ModelName   string     `json:"model_name"`
	DecisionID  uuid.UUID  `json:"decision_id"`
	Stage       JobStage   `json:"stage"`
	CandidateID *uuid.UUID `json:"candidate_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
