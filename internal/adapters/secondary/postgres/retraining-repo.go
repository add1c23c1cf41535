package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

type retrainingRepo struct {
	pool *pgxpool.Pool
}

func NewRetrainingRepository(pool *pgxpool.Pool) ports.RetrainingRepository {
	return &retrainingRepo{pool: pool}
}

func (r *retrainingRepo) SaveDecision(ctx context.Context, decision *domain.RetrainingDecision) error {
	query := `
		INSERT INTO retraining_decision (id, model_name, reason, decided_at, outcome)
		VALUES ($1,$2,$3,$4,$5)
	`
	_, err := r.pool.Exec(ctx, query,
		decision.ID, decision.ModelName, string(decision.Reason),
		decision.DecidedAt, decision.Outcome,
	)
	if err != nil {
		return fmt.Errorf("save retraining decision: %w", err)
	}
	return nil
}

func (r *retrainingRepo) UpdateDecisionOutcome(ctx context.Context, id uuid.UUID, outcome string) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE retraining_decision SET outcome = $1 WHERE id = $2`, outcome, id)
	if err != nil {
		return fmt.Errorf("update decision outcome: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrDecisionNotFound
	}
	return nil
}

func (r *retrainingRepo) ListDecisions(ctx context.Context, modelName string, limit int) ([]*domain.RetrainingDecision, error) {
	query := `
		SELECT id, model_name, reason, decided_at, outcome
		FROM retraining_decision
		WHERE model_name = $1
		ORDER BY decided_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, modelName, limit)
	if err != nil {
		return nil, fmt.Errorf("list retraining decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*domain.RetrainingDecision
	for rows.Next() {
		d := &domain.RetrainingDecision{}
		var reason string
		if err := rows.Scan(&d.ID, &d.ModelName, &reason, &d.DecidedAt, &d.Outcome); err != nil {
			return nil, fmt.Errorf("scan retraining decision row: %w", err)
		}
		d.Reason = domain.TriggerReason(reason)
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retraining decision rows: %w", err)
	}
	return decisions, nil
}

func (r *retrainingRepo) SaveJob(ctx context.Context, job *domain.RetrainingJob) error {
	query := `
		INSERT INTO retraining_job
			(id, model_name, decision_id, stage, candidate_id, error, started_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	_, err := r.pool.Exec(ctx, query,
		job.ID, job.ModelName, job.DecisionID, string(job.Stage),
		job.CandidateID, job.Error, job.StartedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save retraining job: %w", err)
	}
	return nil
}

func (r *retrainingRepo) UpdateJob(ctx context.Context, job *domain.RetrainingJob) error {
	query := `
		UPDATE retraining_job
		SET stage = $1, candidate_id = $2, error = $3, updated_at = $4
		WHERE id = $5
	`
	result, err := r.pool.Exec(ctx, query,
		string(job.Stage), job.CandidateID, job.Error, job.UpdatedAt, job.ID)
	if err != nil {
		return fmt.Errorf("update retraining job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

func (r *retrainingRepo) GetActiveJob(ctx context.Context, modelName string) (*domain.RetrainingJob, error) {
	query := `
		SELECT id, model_name, decision_id, stage, candidate_id, error, started_at, updated_at
		FROM retraining_job
		WHERE model_name = $1 AND stage IN ('triggered','training','evaluating')
		ORDER BY started_at DESC
		LIMIT 1
	`

	job, err := scanJob(r.pool.QueryRow(ctx, query, modelName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("get active retraining job: %w", err)
	}
	return job, nil
}

func (r *retrainingRepo) ListJobs(ctx context.Context, modelName string, limit int) ([]*domain.RetrainingJob, error) {
	query := `
		SELECT id, model_name, decision_id, stage, candidate_id, error, started_at, updated_at
		FROM retraining_job
		WHERE model_name = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, modelName, limit)
	if err != nil {
		return nil, fmt.Errorf("list retraining jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.RetrainingJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan retraining job row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate retraining job rows: %w", err)
	}
	return jobs, nil
}

func scanJob(row pgx.Row) (*domain.RetrainingJob, error) {
	job := &domain.RetrainingJob{}
	var stage string
	err := row.Scan(
		&job.ID, &job.ModelName, &job.DecisionID, &stage,
		&job.CandidateID, &job.Error, &job.StartedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Stage = domain.JobStage(stage)
	return job, nil
}
