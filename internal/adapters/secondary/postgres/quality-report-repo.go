package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

type qualityReportRepo struct {
	pool *pgxpool.Pool
}

func NewQualityReportRepository(pool *pgxpool.Pool) ports.QualityReportRepository {
	return &qualityReportRepo{pool: pool}
}

func (r *qualityReportRepo) Save(ctx context.Context, report *domain.QualityReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal quality report: %w", err)
	}

	query := `
		INSERT INTO quality_report
			(dataset_id, generated_at, score, grade, passed, quarantined, report)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`
	_, err = r.pool.Exec(ctx, query,
		report.DatasetID, report.GeneratedAt, report.Score,
		string(report.Grade), report.Passed, report.Quarantined, payload,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// one report per snapshot; the stored one wins
			return nil
		}
		return fmt.Errorf("save quality report: %w", err)
	}
	return nil
}

func (r *qualityReportRepo) GetByDataset(ctx context.Context, datasetID uuid.UUID) (*domain.QualityReport, error) {
	query := `SELECT report FROM quality_report WHERE dataset_id = $1`

	var payload []byte
	if err := r.pool.QueryRow(ctx, query, datasetID).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrReportNotFound
		}
		return nil, fmt.Errorf("get quality report: %w", err)
	}

	report := &domain.QualityReport{}
	if err := json.Unmarshal(payload, report); err != nil {
		return nil, fmt.Errorf("unmarshal quality report: %w", err)
	}
	return report, nil
}
