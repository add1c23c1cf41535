package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

// ValidationService sequences the PHI gate, the hard completeness check and
// the remaining quality checks over one immutable DatasetSnapshot. Batches
// are independent, so concurrent validations share no mutable state.
type ValidationService struct {
	gate    *PHIGateService
	quality *QualityService
	reports ports.QualityReportRepository
}

func NewValidationService(gate *PHIGateService, quality *QualityService, reports ports.QualityReportRepository) *ValidationService {
	return &ValidationService{gate: gate, quality: quality, reports: reports}
}

// Validate runs the full sequence. In strict mode the first hard-gate
// failure aborts and the report carries only the failing check; non-strict
// runs everything for a full diagnostic picture. The produced report is
// persisted and the call is idempotent: an already-validated snapshot
// returns the stored report.
func (s *ValidationService) Validate(ctx context.Context, batch *domain.Batch, strict bool) (*domain.QualityReport, error) {
	if len(batch.Rows) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	if existing, err := s.reports.GetByDataset(ctx, batch.Snapshot.ID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrReportNotFound) {
		return nil, fmt.Errorf("load existing report: %w", err)
	}

	// PHI gate first: its failure is a hard stop no matter what the
	// composite score would say.
	findings, gateErr := s.gate.Check(ctx, batch)
	if gateErr != nil && !isGateFailure(gateErr) {
		return nil, gateErr
	}

	if gateErr != nil && strict {
		report := s.failedReport(batch.Snapshot.ID, "phi_gate", findings, gateErr)
		return s.persist(ctx, report, gateErr)
	}

	if strict {
		if completeness, ok := s.quality.CompletenessOK(batch); !ok {
			report := &domain.QualityReport{
				DatasetID:           batch.Snapshot.ID,
				GeneratedAt:         time.Now().UTC(),
				DatasetCompleteness: completeness,
				Grade:               domain.GradeF,
				FailedCheck:         "completeness",
			}
			return s.persist(ctx, report, domain.ErrInsufficientCompleteness)
		}
	}

	report := s.quality.Score(batch)
	report.GeneratedAt = time.Now().UTC()
	report.PHIFindings = findings

	var hardErr error
	switch {
	case gateErr != nil:
		report.Passed = false
		report.Quarantined = true
		report.KAnonymityViolated = errors.Is(gateErr, domain.ErrKAnonymityViolated)
		if report.FailedCheck == "" {
			report.FailedCheck = "phi_gate"
		}
		hardErr = gateErr
	case !report.Passed:
		hardErr = domain.ErrInsufficientCompleteness
	}

	return s.persist(ctx, report, hardErr)
}

// Report returns the stored report for a validated dataset.
func (s *ValidationService) Report(ctx context.Context, datasetID uuid.UUID) (*domain.QualityReport, error) {
	return s.reports.GetByDataset(ctx, datasetID)
}

// ClearQuarantine releases a quarantined dataset. Operator action only.
func (s *ValidationService) ClearQuarantine(ctx context.Context, datasetID uuid.UUID) error {
	return s.gate.ClearQuarantine(ctx, datasetID)
}

func (s *ValidationService) failedReport(datasetID uuid.UUID, check string, findings []domain.PHIFinding, gateErr error) *domain.QualityReport {
	return &domain.QualityReport{
		DatasetID:          datasetID,
		GeneratedAt:        time.Now().UTC(),
		PHIFindings:        findings,
		KAnonymityViolated: errors.Is(gateErr, domain.ErrKAnonymityViolated),
		Grade:              domain.GradeF,
		FailedCheck:        check,
		Quarantined:        true,
	}
}

func (s *ValidationService) persist(ctx context.Context, report *domain.QualityReport, hardErr error) (*domain.QualityReport, error) {
	if err := s.reports.Save(ctx, report); err != nil {
		return nil, fmt.Errorf("save quality report: %w", err)
	}
	log.WithFields(log.Fields{
		"dataset_id": report.DatasetID,
		"passed":     report.Passed,
		"grade":      report.Grade,
		"score":      report.Score,
	}).Info("dataset validated")
	return report, hardErr
}

func isGateFailure(err error) bool {
	return errors.Is(err, domain.ErrPHIDetected) || errors.Is(err, domain.ErrKAnonymityViolated)
}
