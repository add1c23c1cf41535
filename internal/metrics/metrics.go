package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationsTotal counts dataset validations by result
	// (passed, failed, quarantined).
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Name:      "validations_total",
		Help:      "Dataset validations by result.",
	}, []string{"result"})

	// DriftEvaluationsTotal counts drift evaluations by outcome
	// (drift, no_drift).
	DriftEvaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Name:      "drift_evaluations_total",
		Help:      "Per-model drift evaluations by outcome.",
	}, []string{"model", "outcome"})

	// RetrainingTriggersTotal counts retraining triggers by reason.
	RetrainingTriggersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Name:      "retraining_triggers_total",
		Help:      "Retraining triggers by reason.",
	}, []string{"model", "reason"})

	// PromotionsTotal counts production promotions and archived candidates.
	PromotionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Name:      "promotions_total",
		Help:      "Candidate evaluations by outcome (promoted, archived).",
	}, []string{"model", "outcome"})

	// RollbacksTotal counts production rollbacks.
	RollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "governance",
		Name:      "rollbacks_total",
		Help:      "Production rollbacks per model.",
	}, []string{"model"})
)
