package services

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

// identifierMatcher flags one class of structured identifier in cell values.
// Matched values are counted, never retained or echoed.
type identifierMatcher struct {
	kind    string
	pattern *regexp.Regexp
}

func (m identifierMatcher) count(value string) int {
	return len(m.pattern.FindAllStringIndex(value, -1))
}

// Built-in matchers for HIPAA-relevant structured identifiers found in
// free-text columns.
func builtinMatchers() []identifierMatcher {
	return []identifierMatcher{
		{kind: "ssn", pattern: regexp.MustCompile(`\b\d{3}[-\s]\d{2}[-\s]\d{4}\b`)},
		{kind: "phone", pattern: regexp.MustCompile(`(?:\(\d{3}\)\s?|\b\d{3}[-.\s])\d{3}[-.\s]\d{4}\b`)},
		{kind: "email", pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}\b`)},
		{kind: "name", pattern: regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Dr)\.?\s+[A-Z][a-z]+\b|\b[A-Z][a-z]+\s+[A-Z][a-z]+\b`)},
	}
}

type GateConfig struct {
	K                int      // minimum quasi-identifier group size
	QuasiIdentifiers []string // defaults: age, sex, zip, race
	AgeBucketYears   int
	ZipPrefixLen     int
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		K:                5,
		QuasiIdentifiers: []string{"age", "sex", "zip", "race"},
		AgeBucketYears:   10,
		ZipPrefixLen:     3,
	}
}

// PHIGateService is the hard privacy gate. It runs before every other
// validation check; a failure quarantines the dataset, a terminal state only
// an operator can clear.
type PHIGateService struct {
	cfg        GateConfig
	matchers   []identifierMatcher
	quarantine ports.QuarantineStore
}

func NewPHIGateService(cfg GateConfig, quarantine ports.QuarantineStore) *PHIGateService {
	if cfg.K == 0 {
		cfg.K = 5
	}
	if cfg.AgeBucketYears == 0 {
		cfg.AgeBucketYears = 10
	}
	if cfg.ZipPrefixLen == 0 {
		cfg.ZipPrefixLen = 3
	}
	if len(cfg.QuasiIdentifiers) == 0 {
		cfg.QuasiIdentifiers = []string{"age", "sex", "zip", "race"}
	}
	return &PHIGateService{cfg: cfg, matchers: builtinMatchers(), quarantine: quarantine}
}

// Check scans the batch for structured identifiers and verifies k-anonymity
// over the quasi-identifier groups. On any finding the dataset is
// quarantined and a hard error returned. Findings name columns and kinds
// only.
func (s *PHIGateService) Check(ctx context.Context, batch *domain.Batch) ([]domain.PHIFinding, error) {
	if s.quarantine != nil {
		held, err := s.quarantine.IsQuarantined(ctx, batch.Snapshot.ID)
		if err != nil {
			return nil, fmt.Errorf("quarantine lookup: %w", err)
		}
		if held {
			return nil, domain.ErrDatasetQuarantined
		}
	}

	findings := s.scanIdentifiers(batch)
	if len(findings) > 0 {
		if err := s.hold(ctx, batch.Snapshot.ID, "identifier scan"); err != nil {
			return findings, err
		}
		return findings, domain.ErrPHIDetected
	}

	if violated, minGroup := s.kAnonymity(batch); violated {
		log.WithFields(log.Fields{
			"dataset_id": batch.Snapshot.ID,
			"min_group":  minGroup,
			"k":          s.cfg.K,
		}).Warn("k-anonymity violated")
		if err := s.hold(ctx, batch.Snapshot.ID, "k-anonymity"); err != nil {
			return nil, err
		}
		return nil, domain.ErrKAnonymityViolated
	}

	return nil, nil
}

// ClearQuarantine is the manual operator action that releases a held
// dataset.
func (s *PHIGateService) ClearQuarantine(ctx context.Context, datasetID uuid.UUID) error {
	if s.quarantine == nil {
		return nil
	}
	return s.quarantine.Clear(ctx, datasetID)
}

func (s *PHIGateService) hold(ctx context.Context, datasetID uuid.UUID, reason string) error {
	if s.quarantine == nil {
		return nil
	}
	if err := s.quarantine.Quarantine(ctx, datasetID, reason); err != nil {
		return fmt.Errorf("quarantine dataset: %w", err)
	}
	return nil
}

// scanIdentifiers runs every matcher over string-typed cells outside the
// quasi-identifier and key columns.
func (s *PHIGateService) scanIdentifiers(batch *domain.Batch) []domain.PHIFinding {
	skip := map[string]bool{
		domain.ColumnPatientID: true,
		domain.ColumnVisitDate: true,
	}
	for _, q := range s.cfg.QuasiIdentifiers {
		skip[q] = true
	}

	counts := map[string]map[string]int{} // column -> kind -> count
	for _, col := range batch.Columns {
		if skip[col] {
			continue
		}
		for _, row := range batch.Rows {
			value, ok := row.String(col)
			if !ok {
				continue
			}
			for _, m := range s.matchers {
				if n := m.count(value); n > 0 {
					if counts[col] == nil {
						counts[col] = map[string]int{}
					}
					counts[col][m.kind] += n
				}
			}
		}
	}

	var findings []domain.PHIFinding
	cols := make([]string, 0, len(counts))
	for col := range counts {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		kinds := make([]string, 0, len(counts[col]))
		for kind := range counts[col] {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			findings = append(findings, domain.PHIFinding{Column: col, Kind: kind, Count: counts[col][kind]})
		}
	}
	return findings
}

// kAnonymity groups rows by the generalized quasi-identifier tuple and
// fails when any group is smaller than k.
func (s *PHIGateService) kAnonymity(batch *domain.Batch) (violated bool, minGroup int) {
	groups := map[string]int{}
	for _, row := range batch.Rows {
		groups[s.quasiKey(row)]++
	}
	if len(groups) == 0 {
		return false, 0
	}
	minGroup = math.MaxInt
	for _, size := range groups {
		if size < minGroup {
			minGroup = size
		}
	}
	return minGroup < s.cfg.K, minGroup
}

func (s *PHIGateService) quasiKey(row domain.Row) string {
	parts := make([]string, 0, len(s.cfg.QuasiIdentifiers))
	for _, col := range s.cfg.QuasiIdentifiers {
		switch col {
		case "age":
			if age, ok := row.Float(col); ok {
				bucket := int(age) / s.cfg.AgeBucketYears * s.cfg.AgeBucketYears
				parts = append(parts, fmt.Sprintf("age:%d", bucket))
				continue
			}
			parts = append(parts, "age:")
		case "zip":
			zip, _ := row.String(col)
			if len(zip) > s.cfg.ZipPrefixLen {
				zip = zip[:s.cfg.ZipPrefixLen]
			}
			parts = append(parts, "zip:"+zip)
		default:
			v, _ := row.String(col)
			parts = append(parts, col+":"+strings.ToLower(v))
		}
	}
	return strings.Join(parts, "|")
}
