package domain

import "errors"

// ============================================================================
// Validation Errors
// ============================================================================

// Hard gates. These abort validation and surface a terminal failure.
var (
	ErrPHIDetected              = errors.New("suspected PHI detected: dataset quarantined")
	ErrKAnonymityViolated       = errors.New("k-anonymity violated: dataset quarantined")
	ErrInsufficientCompleteness = errors.New("required-column completeness below threshold")
	ErrDatasetQuarantined       = errors.New("dataset is quarantined pending operator review")
	ErrEmptyBatch               = errors.New("batch contains no rows")
)

// ============================================================================
// Drift Errors
// ============================================================================

var (
	ErrMissingReference   = errors.New("no reference distribution for feature")
	ErrNoReference        = errors.New("no reference distribution captured for model")
	ErrInsufficientSample = errors.New("not enough samples for drift evaluation")
)

// ============================================================================
// Registry Errors
// ============================================================================

// Not found errors
var (
	ErrModelNotFound     = errors.New("model not found")
	ErrVersionNotFound   = errors.New("model version not found")
	ErrNoProductionModel = errors.New("no production version for model")
	ErrDecisionNotFound  = errors.New("retraining decision not found")
	ErrJobNotFound       = errors.New("retraining job not found")
	ErrReportNotFound    = errors.New("quality report not found")
)

// Conflict errors (caller retries)
var (
	ErrRegistryConflict = errors.New("concurrent registry mutation, retry")
	ErrVersionConflict  = errors.New("version with this number already exists for model")
)

// Validation errors
var (
	ErrInvalidModelName  = errors.New("model name is required")
	ErrInvalidStatus     = errors.New("invalid version status")
	ErrIllegalTransition = errors.New("illegal version status transition")
	ErrNoPreviousVersion = errors.New("no previous production version to roll back to")
)

// ============================================================================
// Governance Errors
// ============================================================================

var (
	ErrRetrainingInProgress = errors.New("retraining already in progress for model")
	ErrNotificationFailed   = errors.New("admin notification failed: promotion not committed")
)
