package config

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ml-governance-service/internal/core/domain"
	"ml-governance-service/internal/core/services"
)

func TestLoad_QualityDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"patient_id", "visit_date", "mmse"}, cfg.Quality.RequiredColumns)
	assert.Equal(t, domain.Range{Min: 0, Max: 30}, cfg.Quality.Ranges["mmse"])
	assert.Equal(t, domain.Range{Min: 0, Max: 120}, cfg.Quality.Ranges["age"])
	assert.Equal(t, 0.70, cfg.Quality.CompletenessThreshold)
}

func TestParseRanges(t *testing.T) {
	ranges, err := parseRanges("mmse=0:30, age=0:120")
	require.NoError(t, err)
	assert.Equal(t, domain.Range{Min: 0, Max: 30}, ranges["mmse"])
	assert.Equal(t, domain.Range{Min: 0, Max: 120}, ranges["age"])

	_, err = parseRanges("mmse=0-30")
	assert.Error(t, err)

	_, err = parseRanges("mmse")
	assert.Error(t, err)
}

// The loaded range table must reach the scorer: a service built the way the
// server wires it has to count an out-of-bounds value, not ignore it.
func TestLoad_RangeTableReachesScorer(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	svc := services.NewQualityService(services.QualityConfig{
		CompletenessThreshold: cfg.Quality.CompletenessThreshold,
		RequiredColumns:       cfg.Quality.RequiredColumns,
		Ranges:                cfg.Quality.Ranges,
	})

	rows := make([]domain.Row, 5)
	for i := range rows {
		rows[i] = domain.Row{"patient_id": "p1", "mmse": 24.0, "age": 74.0}
	}
	rows[2]["age"] = 450.0

	report := svc.Score(&domain.Batch{
		Snapshot: domain.DatasetSnapshot{ID: uuid.New(), RowCount: len(rows)},
		Columns:  []string{"patient_id", "mmse", "age"},
		Rows:     rows,
	})
	assert.Equal(t, 1, report.RangeViolations["age"])
	assert.Equal(t, 1, report.TotalRangeViolations())
}
