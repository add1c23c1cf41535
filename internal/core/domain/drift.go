package domain

import (
	"time"

	"github.com/google/uuid"
)

// FeatureReference is the immutable per-feature baseline captured when a
// model version enters production. Samples are kept sorted for two-sample
// comparison against later batches.
type FeatureReference struct {
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
	Quantiles []float64 `json:"quantiles"` // q25, q50, q75
	BinEdges  []float64 `json:"bin_edges"` // len(BinProps)+1, fixed at capture
	BinProps  []float64 `json:"bin_props"`
	Samples   []float64 `json:"samples"` // ascending
}

// ReferenceDistribution is the full baseline for one model name. Captured
// exactly once at production promotion and superseded only by an atomic
// swap, never partially updated.
type ReferenceDistribution struct {
	ModelName  string                      `json:"model_name"`
	VersionID  uuid.UUID                   `json:"version_id"`
	CapturedAt time.Time                   `json:"captured_at"`
	Features   map[string]FeatureReference `json:"features"`
}

// DriftResult holds the KS and PSI signals for one feature of one model,
// computed against the current ReferenceDistribution.
type DriftResult struct {
	ID            uuid.UUID `json:"id"`
	ModelName     string    `json:"model_name"`
	Feature       string    `json:"feature"`
	KSStatistic   float64   `json:"ks_statistic"`
	PValue        float64   `json:"p_value"`
	PSI           float64   `json:"psi"`
	DriftDetected bool      `json:"drift_detected"`
	EvaluatedAt   time.Time `json:"evaluated_at"`
}
