package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"ml-governance-service/internal/core/domain"
)

// Composite score weights. The weighted sum maps to a 0-100 score.
const (
	weightCompleteness = 0.30
	weightRange        = 0.25
	weightDuplicates   = 0.20
	weightTemporal     = 0.15
	weightOutliers     = 0.10
)

type QualityConfig struct {
	RequiredColumns       []string
	Ranges                map[string]domain.Range
	CompletenessThreshold float64
	ZScoreThreshold       float64
	IQRMultiplier         float64
	MinVisitGapDays       int
	MaxVisitGapDays       int
}

func DefaultQualityConfig() QualityConfig {
	return QualityConfig{
		CompletenessThreshold: 0.70,
		ZScoreThreshold:       3,
		IQRMultiplier:         1.5,
		MinVisitGapDays:       1,
		MaxVisitGapDays:       730,
	}
}

// QualityService computes the per-batch quality metrics and composite score.
// Score is a pure function of the batch: identical input, identical report.
type QualityService struct {
	cfg QualityConfig
}

func NewQualityService(cfg QualityConfig) *QualityService {
	if cfg.CompletenessThreshold == 0 {
		cfg.CompletenessThreshold = 0.70
	}
	if cfg.ZScoreThreshold == 0 {
		cfg.ZScoreThreshold = 3
	}
	if cfg.IQRMultiplier == 0 {
		cfg.IQRMultiplier = 1.5
	}
	if cfg.MaxVisitGapDays == 0 {
		cfg.MinVisitGapDays, cfg.MaxVisitGapDays = 1, 730
	}
	return &QualityService{cfg: cfg}
}

// Score runs every quality check and assembles the composite report.
// Outliers, range violations, duplicates and temporal problems are flagged,
// never removed. The hard completeness verdict is reflected in Passed and
// FailedCheck; callers in strict mode stop there.
func (s *QualityService) Score(batch *domain.Batch) *domain.QualityReport {
	report := &domain.QualityReport{
		DatasetID:       batch.Snapshot.ID,
		Completeness:    s.completeness(batch),
		RangeViolations: map[string]int{},
	}

	report.DatasetCompleteness = s.datasetCompleteness(report.Completeness)
	completenessOK := report.DatasetCompleteness >= s.cfg.CompletenessThreshold

	outliers, outlierRate := s.outliers(batch)
	report.Outliers = outliers

	rangeValidity := s.rangeViolations(batch, report.RangeViolations)
	duplicates, dupFree := s.duplicates(batch)
	report.Duplicates = duplicates
	temporal, temporalScore := s.temporal(batch)
	report.TemporalViolations = temporal

	report.Score = 100 * (weightCompleteness*report.DatasetCompleteness +
		weightRange*rangeValidity +
		weightDuplicates*dupFree +
		weightTemporal*temporalScore +
		weightOutliers*(1-outlierRate))
	report.Grade = domain.GradeForScore(report.Score)

	report.Passed = completenessOK
	if !completenessOK {
		report.FailedCheck = "completeness"
		report.Grade = domain.GradeF
	}
	return report
}

// CompletenessOK applies only the hard completeness gate, for strict-mode
// sequencing where the remaining checks must not run.
func (s *QualityService) CompletenessOK(batch *domain.Batch) (float64, bool) {
	perColumn := s.completeness(batch)
	c := s.datasetCompleteness(perColumn)
	return c, c >= s.cfg.CompletenessThreshold
}

func (s *QualityService) completeness(batch *domain.Batch) map[string]float64 {
	result := make(map[string]float64, len(batch.Columns))
	if len(batch.Rows) == 0 {
		for _, col := range batch.Columns {
			result[col] = 0
		}
		return result
	}
	for _, col := range batch.Columns {
		nonNull := 0
		for _, row := range batch.Rows {
			if v, ok := row[col]; ok && v != nil {
				nonNull++
			}
		}
		result[col] = float64(nonNull) / float64(len(batch.Rows))
	}
	return result
}

// datasetCompleteness is the minimum over required columns; a required
// column absent from the batch counts as zero.
func (s *QualityService) datasetCompleteness(perColumn map[string]float64) float64 {
	if len(s.cfg.RequiredColumns) == 0 {
		min := 1.0
		for _, c := range perColumn {
			if c < min {
				min = c
			}
		}
		return min
	}
	min := 1.0
	for _, col := range s.cfg.RequiredColumns {
		c, ok := perColumn[col]
		if !ok {
			return 0
		}
		if c < min {
			min = c
		}
	}
	return min
}

func (s *QualityService) outliers(batch *domain.Batch) ([]domain.OutlierFinding, float64) {
	var findings []domain.OutlierFinding
	flagged, checked := 0, 0

	for _, col := range batch.NumericColumns() {
		values := batch.FeatureValues(col)
		if len(values) < 4 {
			checked += len(values)
			continue
		}

		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
		q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
		iqr := q3 - q1
		lower := q1 - s.cfg.IQRMultiplier*iqr
		upper := q3 + s.cfg.IQRMultiplier*iqr

		mean, std := stat.MeanStdDev(values, nil)

		finding := domain.OutlierFinding{Column: col}
		colFlagged := 0
		for _, v := range values {
			iqrHit := v < lower || v > upper
			zHit := std > 0 && math.Abs((v-mean)/std) > s.cfg.ZScoreThreshold
			if iqrHit {
				finding.IQRCount++
			}
			if zHit {
				finding.ZScoreCount++
			}
			if iqrHit || zHit {
				colFlagged++
			}
		}
		finding.Rate = float64(colFlagged) / float64(len(values))
		flagged += colFlagged
		checked += len(values)
		if finding.IQRCount > 0 || finding.ZScoreCount > 0 {
			findings = append(findings, finding)
		}
	}

	if checked == 0 {
		return findings, 0
	}
	return findings, float64(flagged) / float64(checked)
}

// rangeViolations counts out-of-bounds values per bounded field and returns
// the validity ratio over the checked cells.
func (s *QualityService) rangeViolations(batch *domain.Batch, out map[string]int) float64 {
	checked, violations := 0, 0
	cols := make([]string, 0, len(s.cfg.Ranges))
	for col := range s.cfg.Ranges {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	for _, col := range cols {
		bounds := s.cfg.Ranges[col]
		for _, row := range batch.Rows {
			v, ok := row.Float(col)
			if !ok {
				continue
			}
			checked++
			if v < bounds.Min || v > bounds.Max {
				out[col]++
				violations++
			}
		}
	}
	if checked == 0 {
		return 1
	}
	return 1 - float64(violations)/float64(checked)
}

// duplicates reports exact-row hash collisions and (patient_id, visit_date)
// key collisions separately; the dup-free ratio uses their union.
func (s *QualityService) duplicates(batch *domain.Batch) (domain.DuplicateFinding, float64) {
	finding := domain.DuplicateFinding{}
	if len(batch.Rows) == 0 {
		return finding, 1
	}

	seenRow := make(map[string]bool, len(batch.Rows))
	seenKey := make(map[string]bool, len(batch.Rows))
	dupRows := 0

	for _, row := range batch.Rows {
		h := rowFingerprint(batch.Columns, row)
		exactDup := seenRow[h]
		if exactDup {
			finding.ExactRows++
		}
		seenRow[h] = true

		keyDup := false
		if pid, ok := row.String(domain.ColumnPatientID); ok {
			if vd, ok := row.Time(domain.ColumnVisitDate); ok {
				key := pid + "|" + vd.Format("2006-01-02")
				keyDup = seenKey[key]
				if keyDup {
					finding.KeyCollisions++
				}
				seenKey[key] = true
			}
		}

		if exactDup || keyDup {
			dupRows++
		}
	}

	return finding, 1 - float64(dupRows)/float64(len(batch.Rows))
}

// temporal checks per-patient visit ordering and inter-visit gaps over
// longitudinal data. Violations are flagged, non-fatal.
func (s *QualityService) temporal(batch *domain.Batch) ([]domain.TemporalViolation, float64) {
	visits := make(map[string][]int) // patient -> row indexes, batch order
	var patients []string
	for i, row := range batch.Rows {
		pid, ok := row.String(domain.ColumnPatientID)
		if !ok {
			continue
		}
		if _, seen := visits[pid]; !seen {
			patients = append(patients, pid)
		}
		visits[pid] = append(visits[pid], i)
	}
	sort.Strings(patients)

	var violations []domain.TemporalViolation
	gapsChecked := 0
	for _, pid := range patients {
		idx := visits[pid]
		for j := 1; j < len(idx); j++ {
			prev, okP := batch.Rows[idx[j-1]].Time(domain.ColumnVisitDate)
			next, okN := batch.Rows[idx[j]].Time(domain.ColumnVisitDate)
			if !okP || !okN {
				continue
			}
			gapsChecked++
			if !next.After(prev) {
				violations = append(violations, domain.TemporalViolation{
					PatientID: pid, Kind: domain.TemporalNotIncreasing,
				})
				continue
			}
			gapDays := int(next.Sub(prev).Hours() / 24)
			if gapDays < s.cfg.MinVisitGapDays || gapDays > s.cfg.MaxVisitGapDays {
				violations = append(violations, domain.TemporalViolation{
					PatientID: pid, Kind: domain.TemporalGapOutOfRange, GapDays: gapDays,
				})
			}
		}
	}

	if gapsChecked == 0 {
		return violations, 1
	}
	return violations, 1 - float64(len(violations))/float64(gapsChecked)
}

// rowFingerprint builds a canonical value string in column order so exact
// duplicates hash identically regardless of map iteration order.
func rowFingerprint(columns []string, row domain.Row) string {
	parts := make([]string, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%v", row[col])
	}
	return strings.Join(parts, "\x1f")
}
