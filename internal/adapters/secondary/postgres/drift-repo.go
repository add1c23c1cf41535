package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

type driftRepo struct {
	pool *pgxpool.Pool
}

func NewDriftRepository(pool *pgxpool.Pool) ports.DriftRepository {
	return &driftRepo{pool: pool}
}

// SaveReference upserts the whole baseline for a model name in one
// statement, so readers only ever see the old or the new reference.
func (r *driftRepo) SaveReference(ctx context.Context, ref *domain.ReferenceDistribution) error {
	featuresJSON, err := json.Marshal(ref.Features)
	if err != nil {
		return fmt.Errorf("marshal reference features: %w", err)
	}

	query := `
		INSERT INTO reference_distribution (model_name, version_id, captured_at, features)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (model_name) DO UPDATE
		SET version_id = EXCLUDED.version_id,
			captured_at = EXCLUDED.captured_at,
			features = EXCLUDED.features
	`
	if _, err := r.pool.Exec(ctx, query, ref.ModelName, ref.VersionID, ref.CapturedAt, featuresJSON); err != nil {
		return fmt.Errorf("save reference distribution: %w", err)
	}
	return nil
}

func (r *driftRepo) GetReference(ctx context.Context, modelName string) (*domain.ReferenceDistribution, error) {
	query := `
		SELECT model_name, version_id, captured_at, features
		FROM reference_distribution
		WHERE model_name = $1
	`

	ref := &domain.ReferenceDistribution{}
	var featuresJSON []byte
	err := r.pool.QueryRow(ctx, query, modelName).
		Scan(&ref.ModelName, &ref.VersionID, &ref.CapturedAt, &featuresJSON)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoReference
		}
		return nil, fmt.Errorf("get reference distribution: %w", err)
	}

	if err := json.Unmarshal(featuresJSON, &ref.Features); err != nil {
		return nil, fmt.Errorf("unmarshal reference features: %w", err)
	}
	return ref, nil
}

func (r *driftRepo) SaveResults(ctx context.Context, results []*domain.DriftResult) error {
	if len(results) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO drift_result
			(id, model_name, feature, ks_statistic, p_value, psi, drift_detected, evaluated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`
	for _, res := range results {
		batch.Queue(query,
			res.ID, res.ModelName, res.Feature,
			res.KSStatistic, res.PValue, res.PSI,
			res.DriftDetected, res.EvaluatedAt,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range results {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("save drift results: %w", err)
		}
	}
	return nil
}

func (r *driftRepo) ListResults(ctx context.Context, modelName string, limit int) ([]*domain.DriftResult, error) {
	query := `
		SELECT id, model_name, feature, ks_statistic, p_value, psi, drift_detected, evaluated_at
		FROM drift_result
		WHERE model_name = $1
		ORDER BY evaluated_at DESC, feature ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, modelName, limit)
	if err != nil {
		return nil, fmt.Errorf("list drift results: %w", err)
	}
	defer rows.Close()

	var results []*domain.DriftResult
	for rows.Next() {
		res := &domain.DriftResult{}
		if err := rows.Scan(
			&res.ID, &res.ModelName, &res.Feature,
			&res.KSStatistic, &res.PValue, &res.PSI,
			&res.DriftDetected, &res.EvaluatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan drift result row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate drift result rows: %w", err)
	}
	return results, nil
}
