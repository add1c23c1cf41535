package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"

	"ml-governance-service/internal/core/domain"
	ports "ml-governance-service/internal/core/ports/output"
)

// psiFloor substitutes for zero bin proportions so the PSI log term stays
// finite.
const psiFloor = 1e-4

// DriftPolicy decides whether a set of per-feature drift results warrants
// retraining. The default is a deliberately conservative unweighted OR; a
// feature-importance weighted policy can be swapped in without touching the
// monitor.
type DriftPolicy interface {
	ShouldRetrain(results []*domain.DriftResult) bool
}

// AnySignalPolicy retrains when any feature signals KS drift or any
// feature's PSI crosses the threshold. Favors false positives over missed
// drift.
type AnySignalPolicy struct {
	PSIThreshold float64
}

func (p AnySignalPolicy) ShouldRetrain(results []*domain.DriftResult) bool {
	threshold := p.PSIThreshold
	if threshold == 0 {
		threshold = 0.2
	}
	for _, r := range results {
		if r.DriftDetected || r.PSI > threshold {
			return true
		}
	}
	return false
}

type DriftConfig struct {
	Alpha      float64 // KS significance level
	Bins       int     // histogram bins for reference capture
	MinSamples int     // buffered rows needed before a background evaluation
	Interval   time.Duration
}

func DefaultDriftConfig() DriftConfig {
	return DriftConfig{Alpha: 0.05, Bins: 10, MinSamples: 30, Interval: 5 * time.Minute}
}

// DriftService compares incoming feature batches against the immutable
// per-model reference distributions. References are replaced only by whole
// copy-on-write swaps; concurrent drift computations never observe a
// partial update.
type DriftService struct {
	cfg    DriftConfig
	policy DriftPolicy
	repo   ports.DriftRepository

	mu   sync.RWMutex
	refs map[string]*domain.ReferenceDistribution
	last map[string][]*domain.DriftResult

	bufMu  sync.Mutex
	buffer map[string][]domain.Row
}

func NewDriftService(cfg DriftConfig, policy DriftPolicy, repo ports.DriftRepository) *DriftService {
	if cfg.Alpha == 0 {
		cfg.Alpha = 0.05
	}
	if cfg.Bins == 0 {
		cfg.Bins = 10
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if policy == nil {
		policy = AnySignalPolicy{PSIThreshold: 0.2}
	}
	return &DriftService{
		cfg:    cfg,
		policy: policy,
		repo:   repo,
		refs:   make(map[string]*domain.ReferenceDistribution),
		last:   make(map[string][]*domain.DriftResult),
		buffer: make(map[string][]domain.Row),
	}
}

// CaptureReference snapshots the per-feature baseline from the given batch.
// Called exactly once per production promotion; the previous reference is
// superseded atomically.
func (s *DriftService) CaptureReference(ctx context.Context, modelName string, versionID uuid.UUID, batch *domain.Batch) (*domain.ReferenceDistribution, error) {
	if len(batch.Rows) == 0 {
		return nil, domain.ErrEmptyBatch
	}

	ref := &domain.ReferenceDistribution{
		ModelName:  modelName,
		VersionID:  versionID,
		CapturedAt: time.Now().UTC(),
		Features:   make(map[string]domain.FeatureReference),
	}
	for _, col := range batch.NumericColumns() {
		values := batch.FeatureValues(col)
		if len(values) == 0 {
			continue
		}
		ref.Features[col] = buildFeatureReference(values, s.cfg.Bins)
	}
	if len(ref.Features) == 0 {
		return nil, fmt.Errorf("capture reference for %q: %w", modelName, domain.ErrInsufficientSample)
	}

	if err := s.repo.SaveReference(ctx, ref); err != nil {
		return nil, fmt.Errorf("save reference: %w", err)
	}

	s.mu.Lock()
	s.refs[modelName] = ref
	delete(s.last, modelName)
	s.mu.Unlock()

	log.WithFields(log.Fields{
		"model":    modelName,
		"version":  versionID,
		"features": len(ref.Features),
	}).Info("reference distribution captured")
	return ref, nil
}

// DetectDrift runs the two-sample KS test and PSI for every feature present
// in both the reference and the batch. Features without a reference are
// skipped, not fatal. Results are persisted as drift history.
func (s *DriftService) DetectDrift(ctx context.Context, modelName string, batch *domain.Batch) ([]*domain.DriftResult, error) {
	ref, err := s.reference(ctx, modelName)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var results []*domain.DriftResult
	features := batch.NumericColumns()
	sort.Strings(features)
	for _, feature := range features {
		fr, ok := ref.Features[feature]
		if !ok {
			log.WithFields(log.Fields{"model": modelName, "feature": feature}).
				Debug("feature has no reference, skipped")
			continue
		}
		values := batch.FeatureValues(feature)
		if len(values) == 0 {
			continue
		}

		ks, p := ksTwoSample(fr.Samples, values)
		results = append(results, &domain.DriftResult{
			ID:            uuid.New(),
			ModelName:     modelName,
			Feature:       feature,
			KSStatistic:   ks,
			PValue:        p,
			PSI:           psi(fr, values),
			DriftDetected: p < s.cfg.Alpha,
			EvaluatedAt:   now,
		})
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("detect drift for %q: no feature shares the reference: %w",
			modelName, domain.ErrMissingReference)
	}
	if err := s.repo.SaveResults(ctx, results); err != nil {
		return nil, fmt.Errorf("save drift results: %w", err)
	}

	s.mu.Lock()
	s.last[modelName] = results
	s.mu.Unlock()
	return results, nil
}

// CalculatePSI bins the batch with the reference's fixed bin edges and
// returns per-feature PSI values.
func (s *DriftService) CalculatePSI(ctx context.Context, modelName string, batch *domain.Batch) (map[string]float64, error) {
	ref, err := s.reference(ctx, modelName)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for feature, fr := range ref.Features {
		values := batch.FeatureValues(feature)
		if len(values) == 0 {
			continue
		}
		out[feature] = psi(fr, values)
	}
	return out, nil
}

// ShouldRetrain applies the drift policy to the most recent evaluation.
func (s *DriftService) ShouldRetrain(ctx context.Context, modelName string) (bool, error) {
	s.mu.RLock()
	results, ok := s.last[modelName]
	s.mu.RUnlock()
	if !ok {
		stored, err := s.repo.ListResults(ctx, modelName, 64)
		if err != nil {
			return false, fmt.Errorf("load drift history: %w", err)
		}
		results = latestEvaluation(stored)
	}
	return s.policy.ShouldRetrain(results), nil
}

// History returns persisted drift results, newest first.
func (s *DriftService) History(ctx context.Context, modelName string, limit int) ([]*domain.DriftResult, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListResults(ctx, modelName, limit)
}

// BufferInferenceRows queues inference-log rows for the periodic background
// evaluation. Never blocks the inference path.
func (s *DriftService) BufferInferenceRows(modelName string, rows []domain.Row) {
	s.bufMu.Lock()
	s.buffer[modelName] = append(s.buffer[modelName], rows...)
	s.bufMu.Unlock()
}

// Run evaluates buffered inference logs on a fixed interval until ctx is
// cancelled.
func (s *DriftService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evaluateBuffers(ctx)
		}
	}
}

func (s *DriftService) evaluateBuffers(ctx context.Context) {
	s.bufMu.Lock()
	pending := make(map[string][]domain.Row)
	for model, rows := range s.buffer {
		if len(rows) >= s.cfg.MinSamples {
			pending[model] = rows
			delete(s.buffer, model)
		}
	}
	s.bufMu.Unlock()

	for model, rows := range pending {
		batch := &domain.Batch{Rows: rows, Columns: columnsOf(rows)}
		if _, err := s.DetectDrift(ctx, model, batch); err != nil {
			if errors.Is(err, domain.ErrNoReference) || errors.Is(err, domain.ErrMissingReference) {
				continue
			}
			log.WithError(err).WithField("model", model).Error("background drift evaluation failed")
		}
	}
}

// reference returns the current reference snapshot, loading it from the
// repository on first use.
func (s *DriftService) reference(ctx context.Context, modelName string) (*domain.ReferenceDistribution, error) {
	s.mu.RLock()
	ref, ok := s.refs[modelName]
	s.mu.RUnlock()
	if ok {
		return ref, nil
	}

	ref, err := s.repo.GetReference(ctx, modelName)
	if err != nil {
		if errors.Is(err, domain.ErrNoReference) {
			return nil, domain.ErrNoReference
		}
		return nil, fmt.Errorf("load reference: %w", err)
	}

	s.mu.Lock()
	if cached, ok := s.refs[modelName]; ok {
		ref = cached
	} else {
		s.refs[modelName] = ref
	}
	s.mu.Unlock()
	return ref, nil
}

func buildFeatureReference(values []float64, bins int) domain.FeatureReference {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	fr := domain.FeatureReference{
		Mean: mean,
		Std:  std,
		Quantiles: []float64{
			stat.Quantile(0.25, stat.Empirical, sorted, nil),
			stat.Quantile(0.50, stat.Empirical, sorted, nil),
			stat.Quantile(0.75, stat.Empirical, sorted, nil),
		},
		Samples: sorted,
	}

	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		hi = lo + 1
	}
	width := (hi - lo) / float64(bins)
	fr.BinEdges = make([]float64, bins+1)
	for i := 0; i <= bins; i++ {
		fr.BinEdges[i] = lo + float64(i)*width
	}
	fr.BinProps = binProportions(fr.BinEdges, sorted)
	return fr
}

// binProportions histograms values over fixed edges; values outside the
// edge range clamp into the first or last bin.
func binProportions(edges []float64, values []float64) []float64 {
	bins := len(edges) - 1
	counts := make([]float64, bins)
	for _, v := range values {
		idx := sort.SearchFloat64s(edges[1:bins], v)
		counts[idx]++
	}
	props := make([]float64, bins)
	for i, c := range counts {
		props[i] = c / float64(len(values))
	}
	return props
}

func psi(fr domain.FeatureReference, values []float64) float64 {
	newProps := binProportions(fr.BinEdges, values)
	total := 0.0
	for i := range newProps {
		refP := fr.BinProps[i]
		newP := newProps[i]
		if refP < psiFloor {
			refP = psiFloor
		}
		if newP < psiFloor {
			newP = psiFloor
		}
		total += (newP - refP) * math.Log(newP/refP)
	}
	return total
}

// ksTwoSample returns the two-sample KS statistic and its asymptotic
// p-value.
func ksTwoSample(refSorted, values []float64) (float64, float64) {
	sample := append([]float64(nil), values...)
	sort.Float64s(sample)
	d := stat.KolmogorovSmirnov(refSorted, nil, sample, nil)

	n := float64(len(refSorted))
	m := float64(len(sample))
	en := math.Sqrt(n * m / (n + m))
	return d, ksPValue((en + 0.12 + 0.11/en) * d)
}

// ksPValue evaluates the Kolmogorov distribution tail
// Q(lambda) = 2 * sum_{j>=1} (-1)^(j-1) exp(-2 j^2 lambda^2).
func ksPValue(lambda float64) float64 {
	if lambda <= 0 {
		return 1
	}
	sum := 0.0
	sign := 1.0
	for j := 1; j <= 100; j++ {
		term := sign * math.Exp(-2*float64(j*j)*lambda*lambda)
		sum += term
		if math.Abs(term) < 1e-10 {
			break
		}
		sign = -sign
	}
	p := 2 * sum
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// latestEvaluation keeps only the results of the most recent evaluation
// timestamp from a history slice.
func latestEvaluation(history []*domain.DriftResult) []*domain.DriftResult {
	if len(history) == 0 {
		return nil
	}
	latest := history[0].EvaluatedAt
	for _, r := range history {
		if r.EvaluatedAt.After(latest) {
			latest = r.EvaluatedAt
		}
	}
	var out []*domain.DriftResult
	for _, r := range history {
		if r.EvaluatedAt.Equal(latest) {
			out = append(out, r)
		}
	}
	return out
}

func columnsOf(rows []domain.Row) []string {
	seen := map[string]bool{}
	var cols []string
	for _, row := range rows {
		for col := range row {
			if !seen[col] {
				seen[col] = true
				cols = append(cols, col)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
