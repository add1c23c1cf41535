package dto

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"ml-governance-service/internal/core/domain"
)

// ValidateDatasetRequest carries one immutable dataset snapshot plus its
// tabular rows. Cell values are null, number, string, or a date string in
// visit date columns.
type ValidateDatasetRequest struct {
	DatasetID     uuid.UUID        `json:"dataset_id" binding:"required"`
	Source        string           `json:"source"`
	SchemaVersion string           `json:"schema_version"`
	Columns       []string         `json:"columns" binding:"required"`
	Rows          []map[string]any `json:"rows" binding:"required"`
	Strict        bool             `json:"strict"`
}

// ToBatch converts the request into a domain batch, parsing visit_date
// cells into time values.
func (r *ValidateDatasetRequest) ToBatch() (*domain.Batch, error) {
	rows := make([]domain.Row, len(r.Rows))
	for i, raw := range r.Rows {
		row := domain.Row{}
		for col, val := range raw {
			if col == domain.ColumnVisitDate {
				parsed, err := parseDate(val)
				if err != nil {
					return nil, fmt.Errorf("row %d: %w", i, err)
				}
				row[col] = parsed
				continue
			}
			row[col] = val
		}
		rows[i] = row
	}

	return &domain.Batch{
		Snapshot: domain.DatasetSnapshot{
			ID:            r.DatasetID,
			Source:        r.Source,
			IngestedAt:    time.Now().UTC(),
			SchemaVersion: r.SchemaVersion,
			RowCount:      len(rows),
		},
		Columns: r.Columns,
		Rows:    rows,
	}, nil
}

func parseDate(val any) (any, error) {
	s, ok := val.(string)
	if !ok {
		return val, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return nil, fmt.Errorf("unparseable visit date %q", s)
}

type QualityReportResponse struct {
	DatasetID           uuid.UUID                  `json:"dataset_id"`
	GeneratedAt         string                     `json:"generated_at"`
	Completeness        map[string]float64         `json:"completeness,omitempty"`
	DatasetCompleteness float64                    `json:"dataset_completeness"`
	Outliers            []domain.OutlierFinding    `json:"outliers,omitempty"`
	RangeViolations     map[string]int             `json:"range_violations,omitempty"`
	Duplicates          domain.DuplicateFinding    `json:"duplicates"`
	TemporalViolations  []domain.TemporalViolation `json:"temporal_violations,omitempty"`
	PHIFindings         []domain.PHIFinding        `json:"phi_findings,omitempty"`
	KAnonymityViolated  bool                       `json:"k_anonymity_violated"`
	Score               float64                    `json:"score"`
	Grade               string                     `json:"grade"`
	Passed              bool                       `json:"passed"`
	FailedCheck         string                     `json:"failed_check,omitempty"`
	Quarantined         bool                       `json:"quarantined"`
}

func ToQualityReportResponse(report *domain.QualityReport) QualityReportResponse {
	return QualityReportResponse{
		DatasetID:           report.DatasetID,
		GeneratedAt:         report.GeneratedAt.Format(time.RFC3339),
		Completeness:        report.Completeness,
		DatasetCompleteness: report.DatasetCompleteness,
		Outliers:            report.Outliers,
		RangeViolations:     report.RangeViolations,
		Duplicates:          report.Duplicates,
		TemporalViolations:  report.TemporalViolations,
		PHIFindings:         report.PHIFindings,
		KAnonymityViolated:  report.KAnonymityViolated,
		Score:               report.Score,
		Grade:               string(report.Grade),
		Passed:              report.Passed,
		FailedCheck:         report.FailedCheck,
		Quarantined:         report.Quarantined,
	}
}
