package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

type registryRepo struct {
	pool *pgxpool.Pool
}

func NewRegistryRepository(pool *pgxpool.Pool) ports.RegistryRepository {
	return &registryRepo{pool: pool}
}

const versionColumns = `
	id, model_name, version, metrics, hyperparams,
	dataset_version, artifact_ref, status, created_at, deployed_at
`

func (r *registryRepo) Create(ctx context.Context, version *domain.ModelVersion) error {
	metricsJSON, err := json.Marshal(version.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	hyperparamsJSON, err := json.Marshal(version.Hyperparams)
	if err != nil {
		return fmt.Errorf("marshal hyperparams: %w", err)
	}

	query := `
		INSERT INTO model_version
			(id, model_name, version, metrics, hyperparams,
			 dataset_version, artifact_ref, status, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`
	_, err = r.pool.Exec(ctx, query,
		version.ID, version.ModelName, version.Version,
		metricsJSON, hyperparamsJSON,
		version.DatasetVersion, version.ArtifactRef,
		string(version.Status), version.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrVersionConflict
		}
		return fmt.Errorf("create model version: %w", err)
	}
	return nil
}

func (r *registryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.ModelVersion, error) {
	query := fmt.Sprintf(`SELECT %s FROM model_version WHERE id = $1`, versionColumns)

	version, err := scanVersion(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, fmt.Errorf("get model version by id: %w", err)
	}
	return version, nil
}

func (r *registryRepo) GetProduction(ctx context.Context, modelName string) (*domain.ModelVersion, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM model_version
		WHERE model_name = $1 AND status = 'production'
	`, versionColumns)

	version, err := scanVersion(r.pool.QueryRow(ctx, query, modelName))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNoProductionModel
		}
		return nil, fmt.Errorf("get production version: %w", err)
	}
	return version, nil
}

func (r *registryRepo) ListByModel(ctx context.Context, modelName string, filter ports.VersionListFilter) ([]*domain.ModelVersion, int, error) {
	conditions := []string{"model_name = $1"}
	args := []interface{}{modelName}
	argPos := 2

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM model_version WHERE %s", whereClause)
	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count model versions: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT %s FROM model_version
		WHERE %s
		ORDER BY version DESC
		LIMIT $%d OFFSET $%d
	`, versionColumns, whereClause, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list model versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.ModelVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan model version row: %w", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate model version rows: %w", err)
	}
	return versions, total, nil
}

// NextVersion reserves the next monotonic version number for a model name
// through an upsert on the per-model counter row.
func (r *registryRepo) NextVersion(ctx context.Context, modelName string) (int, error) {
	query := `
		INSERT INTO model_version_counter (model_name, current)
		VALUES ($1, 1)
		ON CONFLICT (model_name) DO UPDATE
		SET current = model_version_counter.current + 1
		RETURNING current
	`
	var next int
	if err := r.pool.QueryRow(ctx, query, modelName).Scan(&next); err != nil {
		return 0, fmt.Errorf("next version number: %w", err)
	}
	return next, nil
}

func (r *registryRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.VersionStatus, deployedAt *time.Time) error {
	query := `
		UPDATE model_version
		SET status = $1, deployed_at = COALESCE($2, deployed_at)
		WHERE id = $3 AND status = $4
	`
	result, err := r.pool.Exec(ctx, query, string(to), deployedAt, id, string(from))
	if err != nil {
		return fmt.Errorf("update version status: %w", err)
	}
	if result.RowsAffected() == 0 {
		// either the id is unknown or the status moved underneath us
		if _, getErr := r.GetByID(ctx, id); getErr != nil {
			return getErr
		}
		return domain.ErrRegistryConflict
	}
	return nil
}

// SwapProduction archives the current production version and promotes newID
// in one transaction. The partial unique index on (model_name) WHERE
// status = 'production' backs the single-production invariant.
func (r *registryRepo) SwapProduction(ctx context.Context, modelName string, newID uuid.UUID, at time.Time, reason string) (*domain.ModelVersion, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin swap transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var previous *domain.ModelVersion
	currentQuery := fmt.Sprintf(`
		SELECT %s FROM model_version
		WHERE model_name = $1 AND status = 'production'
		FOR UPDATE
	`, versionColumns)
	current, err := scanVersion(tx.QueryRow(ctx, currentQuery, modelName))
	switch {
	case err == nil:
		if current.ID != newID {
			if _, err := tx.Exec(ctx,
				`UPDATE model_version SET status = 'archived' WHERE id = $1`, current.ID); err != nil {
				return nil, fmt.Errorf("archive previous production: %w", err)
			}
			current.Status = domain.StatusArchived
			previous = current
		}
	case errors.Is(err, pgx.ErrNoRows):
		// first deployment for this model name
	default:
		return nil, fmt.Errorf("lock production version: %w", err)
	}

	promote, err := tx.Exec(ctx, `
		UPDATE model_version
		SET status = 'production', deployed_at = $1
		WHERE id = $2 AND model_name = $3
	`, at, newID, modelName)
	if err != nil {
		return nil, fmt.Errorf("promote version: %w", err)
	}
	if promote.RowsAffected() == 0 {
		return nil, domain.ErrVersionNotFound
	}

	var incomingNumber int
	if err := tx.QueryRow(ctx,
		`SELECT version FROM model_version WHERE id = $1`, newID).Scan(&incomingNumber); err != nil {
		return nil, fmt.Errorf("read promoted version number: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO deployment_history (id, model_name, version_id, version, deployed_at, reason)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, uuid.New(), modelName, newID, incomingNumber, at, reason); err != nil {
		return nil, fmt.Errorf("append deployment event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit swap transaction: %w", err)
	}
	return previous, nil
}

func (r *registryRepo) DeploymentHistory(ctx context.Context, modelName string, limit int) ([]*domain.DeploymentEvent, error) {
	query := `
		SELECT id, model_name, version_id, version, deployed_at, reason
		FROM deployment_history
		WHERE model_name = $1
		ORDER BY deployed_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, modelName, limit)
	if err != nil {
		return nil, fmt.Errorf("list deployment history: %w", err)
	}
	defer rows.Close()

	var events []*domain.DeploymentEvent
	for rows.Next() {
		e := &domain.DeploymentEvent{}
		if err := rows.Scan(&e.ID, &e.ModelName, &e.VersionID, &e.Version, &e.DeployedAt, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan deployment event row: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployment event rows: %w", err)
	}
	return events, nil
}

// scanVersion scans one ModelVersion from a pgx.Row (same columns as
// versionColumns).
func scanVersion(row pgx.Row) (*domain.ModelVersion, error) {
	v := &domain.ModelVersion{}
	var metricsJSON, hyperparamsJSON []byte
	var status string

	err := row.Scan(
		&v.ID, &v.ModelName, &v.Version, &metricsJSON, &hyperparamsJSON,
		&v.DatasetVersion, &v.ArtifactRef, &status, &v.CreatedAt, &v.DeployedAt,
	)
	if err != nil {
		return nil, err
	}
	v.Status = domain.VersionStatus(status)

	if err := json.Unmarshal(metricsJSON, &v.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if len(hyperparamsJSON) > 0 {
		if err := json.Unmarshal(hyperparamsJSON, &v.Hyperparams); err != nil {
			return nil, fmt.Errorf("unmarshal hyperparams: %w", err)
		}
	}
	return v, nil
}
