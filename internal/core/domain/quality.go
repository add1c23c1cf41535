package domain

import (
	"time"

	"github.com/google/uuid"
)

type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// GradeForScore maps a composite score (0-100) to a letter grade.
func GradeForScore(score float64) Grade {
	switch {
	case score >= 90:
		return GradeA
	case score >= 80:
		return GradeB
	case score >= 70:
		return GradeC
	case score >= 60:
		return GradeD
	default:
		return GradeF
	}
}

// Range bounds one numeric field for range validation.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// OutlierFinding reports flagged values for one column. Outliers are
// reported, never removed.
type OutlierFinding struct {
	Column      string  `json:"column"`
	IQRCount    int     `json:"iqr_count"`
	ZScoreCount int     `json:"z_score_count"`
	Rate        float64 `json:"rate"`
}

// DuplicateFinding separates exact-row duplicates from key collisions on
// (patient_id, visit_date).
type DuplicateFinding struct {
	ExactRows     int `json:"exact_rows"`
	KeyCollisions int `json:"key_collisions"`
}

type TemporalViolationKind string

const (
	TemporalNotIncreasing TemporalViolationKind = "not_increasing"
	TemporalGapOutOfRange TemporalViolationKind = "gap_out_of_range"
)

// TemporalViolation reports a longitudinal ordering or gap problem for one
// patient. Non-fatal.
type TemporalViolation struct {
	PatientID string                `json:"patient_id"`
	Kind      TemporalViolationKind `json:"kind"`
	GapDays   int                   `json:"gap_days,omitempty"`
}

// PHIFinding reports suspected identifiers in a column. The matched values
// themselves are never carried, only the column, kind and count.
type PHIFinding struct {
	Column string `json:"column"`
	Kind   string `json:"kind"`
	Count  int    `json:"count"`
}

// QualityReport is the one-to-one validation result for a DatasetSnapshot.
// Immutable once produced; re-validating the same snapshot yields an equal
// report.
type QualityReport struct {
	DatasetID           uuid.UUID          `json:"dataset_id"`
	GeneratedAt         time.Time          `json:"generated_at"`
	Completeness        map[string]float64 `json:"completeness"`
	DatasetCompleteness float64            `json:"dataset_completeness"`
	Outliers            []OutlierFinding   `json:"outliers"`
	RangeViolations     map[string]int     `json:"range_violations"`
	Duplicates          DuplicateFinding   `json:"duplicates"`
	TemporalViolations  []TemporalViolation `json:"temporal_violations"`
	PHIFindings         []PHIFinding       `json:"phi_findings,omitempty"`
	KAnonymityViolated  bool               `json:"k_anonymity_violated"`
	Score               float64            `json:"score"`
	Grade               Grade              `json:"grade"`
	Passed              bool               `json:"passed"`
	FailedCheck         string             `json:"failed_check,omitempty"`
	Quarantined         bool               `json:"quarantined"`
}

// TotalRangeViolations sums per-field range violation counts.
func (r *QualityReport) TotalRangeViolations() int {
	total := 0
	for _, n := range r.RangeViolations {
		total += n
	}
	return total
}
