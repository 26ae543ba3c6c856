package orchestrator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report orchestrator activity.
type Metrics struct {
	runDuration    *prometheus.HistogramVec
	stepsTotal     *prometheus.CounterVec
	retriesTotal   prometheus.Counter
	codebookHits   prometheus.Counter
	codebookMisses prometheus.Counter
	codebookSaves  prometheus.Counter
	runsActive     prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. Collectors are created only once to avoid
// duplicate registration panics when multiple engines are instantiated.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Callers needing isolated collectors (tests, multi-tenant runners) supply a
// fresh registry. Registration errors other than AlreadyRegistered panic,
// mirroring promauto semantics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	runDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stock_agent",
			Subsystem: "orchestrator",
			Name:      "run_duration_seconds",
			Help:      "Wall time of a single drive of the state machine.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	stepsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stock_agent",
			Subsystem: "orchestrator",
			Name:      "steps_total",
			Help:      "Sub-task executions by worker and outcome.",
		},
		[]string{"worker", "outcome"},
	)
	retriesTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stock_agent",
			Subsystem: "orchestrator",
			Name:      "retries_total",
			Help:      "Plan re-executions triggered by negative feedback.",
		},
	)
	codebookHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stock_agent",
			Subsystem: "codebook",
			Name:      "hits_total",
			Help:      "Plans seeded from a matching codebook entry.",
		},
	)
	codebookMisses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stock_agent",
			Subsystem: "codebook",
			Name:      "misses_total",
			Help:      "Complex plans that found no usable codebook entry.",
		},
	)
	codebookSaves := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "stock_agent",
			Subsystem: "codebook",
			Name:      "saves_total",
			Help:      "New codebook entries written after satisfied runs.",
		},
	)
	runsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "stock_agent",
			Subsystem: "orchestrator",
			Name:      "runs_active",
			Help:      "Runs currently being driven.",
		},
	)

	m := &Metrics{
		runDuration:    runDuration,
		stepsTotal:     stepsTotal,
		retriesTotal:   retriesTotal,
		codebookHits:   codebookHits,
		codebookMisses: codebookMisses,
		codebookSaves:  codebookSaves,
		runsActive:     runsActive,
	}

	register := func(c prometheus.Collector) prometheus.Collector {
		if err := reg.Register(c); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				return already.ExistingCollector
			}
			panic(err)
		}
		return c
	}

	m.runDuration = register(runDuration).(*prometheus.HistogramVec)
	m.stepsTotal = register(stepsTotal).(*prometheus.CounterVec)
	m.retriesTotal = register(retriesTotal).(prometheus.Counter)
	m.codebookHits = register(codebookHits).(prometheus.Counter)
	m.codebookMisses = register(codebookMisses).(prometheus.Counter)
	m.codebookSaves = register(codebookSaves).(prometheus.Counter)
	m.runsActive = register(runsActive).(prometheus.Gauge)

	return m
}

// ObserveRun records a completed drive of the machine.
func (m *Metrics) ObserveRun(status string, duration time.Duration) {
	if m == nil || m.runDuration == nil {
		return
	}
	m.runDuration.WithLabelValues(status).Observe(duration.Seconds())
}
