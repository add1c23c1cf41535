package domain

import (
	"time"

	"github.com/google/uuid"
)

type VersionStatus string

const (
	StatusRegistered VersionStatus = "registered"
	StatusStaging    VersionStatus = "staging"
	StatusProduction VersionStatus = "production"
	StatusArchived   VersionStatus = "archived"
)

// forwardTransitions holds the legal lifecycle moves. Rollback is the only
// path out of archived, handled separately because it bypasses staging.
var forwardTransitions = map[VersionStatus][]VersionStatus{
	StatusRegistered: {StatusStaging},
	StatusStaging:    {StatusProduction},
	StatusProduction: {StatusArchived},
}

// CanTransition reports whether status may move forward to target.
func (s VersionStatus) CanTransition(target VersionStatus) bool {
	for _, t := range forwardTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

func (s VersionStatus) Valid() bool {
	switch s {
	case StatusRegistered, StatusStaging, StatusProduction, StatusArchived:
		return true
	}
	return false
}

// Metrics are the evaluation figures returned by the training collaborator.
type Metrics struct {
	Accuracy  float64 `json:"accuracy"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	ROCAUC    float64 `json:"roc_auc"`
	PRAUC     float64 `json:"pr_auc"`
}

// ModelVersion is one trained artifact plus metadata. Version numbers are
// monotonic per model name. Status changes only through the registry state
// machine.
type ModelVersion struct {
	ID             uuid.UUID         `json:"id"`
	ModelName      string            `json:"model_name"`
	Version        int               `json:"version"`
	Metrics        Metrics           `json:"metrics"`
	Hyperparams    map[string]string `json:"hyperparams"`
	DatasetVersion string            `json:"dataset_version"`
	ArtifactRef    string            `json:"artifact_ref"`
	Status         VersionStatus     `json:"status"`
	CreatedAt      time.Time         `json:"created_at"`
	DeployedAt     *time.Time        `json:"deployed_at,omitempty"`
}

// DeploymentEvent records one production deployment, in support of rollback.
type DeploymentEvent struct {
	ID         uuid.UUID `json:"id"`
	ModelName  string    `json:"model_name"`
	VersionID  uuid.UUID `json:"version_id"`
	Version    int       `json:"version"`
	DeployedAt time.Time `json:"deployed_at"`
	Reason     string    `json:"reason"` // promotion | rollback
}

// MetricDelta is one metric compared across versions.
type MetricDelta struct {
	Metric string             `json:"metric"`
	Values map[string]float64 `json:"values"` // keyed by version id
}

// VersionDiff is the side-by-side comparison of registry versions.
type VersionDiff struct {
	Versions []*ModelVersion `json:"versions"`
	Deltas   []MetricDelta   `json:"deltas"`
}

// CompareVersions builds a metric-by-metric diff over the given versions.
func CompareVersions(versions []*ModelVersion) *VersionDiff {
	diff := &VersionDiff{Versions: versions}
	metrics := []struct {
		name string
		get  func(Metrics) float64
	}{
		{"accuracy", func(m Metrics) float64 { return m.Accuracy }},
		{"precision", func(m Metrics) float64 { return m.Precision }},
		{"recall", func(m Metrics) float64 { return m.Recall }},
		{"f1", func(m Metrics) float64 { return m.F1 }},
		{"roc_auc", func(m Metrics) float64 { return m.ROCAUC }},
		{"pr_auc", func(m Metrics) float64 { return m.PRAUC }},
	}
	for _, m := range metrics {
		delta := MetricDelta{Metric: m.name, Values: make(map[string]float64, len(versions))}
		for _, v := range versions {
			delta.Values[v.ID.String()] = m.get(v.Metrics)
		}
		diff.Deltas = append(diff.Deltas, delta)
	}
	return diff
}
