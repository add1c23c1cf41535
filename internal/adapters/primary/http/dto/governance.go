package dto

import (
	"time"

	"github.com/google/uuid"

	"ml-governance-service/internal/core/domain"
)

type TriggerRetrainingRequest struct {
	Reason string `json:"reason"`
}

type RecordIngestedRequest struct {
	Count int64 `json:"count" binding:"required,min=1"`
}

// SubmitCandidateRequest delivers a trained candidate from the training
// collaborator. ReferenceRows, when present, recapture the drift baseline
// if the candidate is promoted.
type SubmitCandidateRequest struct {
	ArtifactRef    string            `json:"artifact_ref" binding:"required"`
	Metrics        domain.Metrics    `json:"metrics" binding:"required"`
	DatasetVersion string            `json:"dataset_version"`
	Hyperparams    map[string]string `json:"hyperparams"`
	ReferenceRows  []map[string]any  `json:"reference_rows"`
}

type CandidateDecisionResponse struct {
	Candidate ModelVersionResponse `json:"candidate"`
	Promoted  bool                 `json:"promoted"`
}

type RetrainingDecisionResponse struct {
	ID        uuid.UUID `json:"id"`
	ModelName string    `json:"model_name"`
	Reason    string    `json:"reason"`
	DecidedAt string    `json:"decided_at"`
	Outcome   string    `json:"outcome"`
}

func ToRetrainingDecisionResponse(d *domain.RetrainingDecision) RetrainingDecisionResponse {
	return RetrainingDecisionResponse{
		ID:        d.ID,
		ModelName: d.ModelName,
		Reason:    string(d.Reason),
		DecidedAt: d.DecidedAt.Format(time.RFC3339),
		Outcome:   d.Outcome,
	}
}

type RetrainingJobResponse struct {
	ID          uuid.UUID  `json:"id"`
	ModelName   string     `json:"model_name"`
	DecisionID  uuid.UUID  `json:"decision_id"`
	Stage       string     `json:"stage"`
	CandidateID *uuid.UUID `json:"candidate_id,omitempty"`
	Error       string     `json:"error,omitempty"`
	StartedAt   string     `json:"started_at"`
	UpdatedAt   string     `json:"updated_at"`
}

func ToRetrainingJobResponse(job *domain.RetrainingJob) RetrainingJobResponse {
	return RetrainingJobResponse{
		ID:          job.ID,
		ModelName:   job.ModelName,
		DecisionID:  job.DecisionID,
		Stage:       string(job.Stage),
		CandidateID: job.CandidateID,
		Error:       job.Error,
		StartedAt:   job.StartedAt.Format(time.RFC3339),
		UpdatedAt:   job.UpdatedAt.Format(time.RFC3339),
	}
}
