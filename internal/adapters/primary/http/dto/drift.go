package dto

import (
	"time"

	"github.com/google/uuid"

	"ml-governance-service/internal/core/domain"
)

// FeatureBatchRequest carries rows of numeric feature values for drift
// evaluation or inference-log buffering.
type FeatureBatchRequest struct {
	ModelName string           `json:"model_name" binding:"required"`
	Columns   []string         `json:"columns"`
	Rows      []map[string]any `json:"rows" binding:"required"`
}

func (r *FeatureBatchRequest) ToBatch() *domain.Batch {
	rows := make([]domain.Row, len(r.Rows))
	for i, raw := range r.Rows {
		rows[i] = domain.Row(raw)
	}
	columns := r.Columns
	if len(columns) == 0 {
		seen := map[string]bool{}
		for _, row := range rows {
			for col := range row {
				if !seen[col] {
					seen[col] = true
					columns = append(columns, col)
				}
			}
		}
	}
	return &domain.Batch{Columns: columns, Rows: rows}
}

type DriftResultResponse struct {
	ID            uuid.UUID `json:"id"`
	ModelName     string    `json:"model_name"`
	Feature       string    `json:"feature"`
	KSStatistic   float64   `json:"ks_statistic"`
	PValue        float64   `json:"p_value"`
	PSI           float64   `json:"psi"`
	DriftDetected bool      `json:"drift_detected"`
	EvaluatedAt   string    `json:"evaluated_at"`
}

func ToDriftResultResponse(res *domain.DriftResult) DriftResultResponse {
	return DriftResultResponse{
		ID:            res.ID,
		ModelName:     res.ModelName,
		Feature:       res.Feature,
		KSStatistic:   res.KSStatistic,
		PValue:        res.PValue,
		PSI:           res.PSI,
		DriftDetected: res.DriftDetected,
		EvaluatedAt:   res.EvaluatedAt.Format(time.RFC3339),
	}
}

func ToDriftResultResponses(results []*domain.DriftResult) []DriftResultResponse {
	items := make([]DriftResultResponse, 0, len(results))
	for _, res := range results {
		items = append(items, ToDriftResultResponse(res))
	}
	return items
}

type ShouldRetrainResponse struct {
	ModelName     string `json:"model_name"`
	ShouldRetrain bool   `json:"should_retrain"`
}
