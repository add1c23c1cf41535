package domain

import (
	"time"

	"github.com/google/uuid"
)

// Well-known column names in feature store batches.
const (
	ColumnPatientID = "patient_id"
	ColumnVisitDate = "visit_date"
)

// DatasetSnapshot identifies one immutable ingested batch. It is created at
// ingestion time and never mutated afterwards.
type DatasetSnapshot struct {
	ID            uuid.UUID `json:"id"`
	Source        string    `json:"source"`
	IngestedAt    time.Time `json:"ingested_at"`
	SchemaVersion string    `json:"schema_version"`
	RowCount      int       `json:"row_count"`
}

// Row is one record of a tabular batch. Values are nil (null), float64,
// string, or time.Time.
type Row map[string]any

// Batch is a tabular slice of the feature store keyed by
// (patient_id, visit_date).
type Batch struct {
	Snapshot DatasetSnapshot `json:"snapshot"`
	Columns  []string        `json:"columns"`
	Rows     []Row           `json:"rows"`
}

// Float returns the numeric value of a cell, false when the cell is null or
// not numeric.
func (r Row) Float(column string) (float64, bool) {
	switch v := r[column].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String returns the string value of a cell, false when null or non-string.
func (r Row) String(column string) (string, bool) {
	s, ok := r[column].(string)
	return s, ok
}

// Time returns the time value of a cell, false when null or non-time.
func (r Row) Time(column string) (time.Time, bool) {
	t, ok := r[column].(time.Time)
	return t, ok
}

// FeatureValues extracts the non-null numeric values of one column.
func (b *Batch) FeatureValues(column string) []float64 {
	values := make([]float64, 0, len(b.Rows))
	for _, row := range b.Rows {
		if v, ok := row.Float(column); ok {
			values = append(values, v)
		}
	}
	return values
}

// NumericColumns returns the columns that hold at least one numeric value,
// in batch column order.
func (b *Batch) NumericColumns() []string {
	var cols []string
	for _, col := range b.Columns {
		for _, row := range b.Rows {
			if _, ok := row.Float(col); ok {
				cols = append(cols, col)
				break
			}
		}
	}
	return cols
}
