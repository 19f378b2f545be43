// Package metrics exposes Prometheus collectors for run-level counters:
// items extracted per type, extractor errors, extractor duration, and
// cache population load outcomes. Purely additive observability — nothing here
// feeds back into extraction.
//
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/R3E-Network/sfmc-inv2/internal/model"
)

const namespace = "sfmc_inventory"

// Collectors bundles every metric this engine reports.
type Collectors struct {
	Registry *prometheus.Registry

	ItemsExtracted   *prometheus.CounterVec
	ExtractorErrors  *prometheus.CounterVec
	ExtractorSeconds *prometheus.HistogramVec
	CacheLoads       *prometheus.CounterVec
	RunsTotal        prometheus.Counter
	RunDurationSecs  prometheus.Histogram
}

// New constructs and registers the engine's collectors against a fresh
// registry, one registry per engine instance.
func New() *Collectors {
	reg := prometheus.NewRegistry()

	c := &Collectors{
		Registry: reg,
		ItemsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "items_total",
			Help:      "Number of objects emitted, by extractor kind.",
		}, []string{"kind"}),
		ExtractorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "errors_total",
			Help:      "Number of collected ExtractionErrors, by kind and error code.",
		}, []string{"kind", "code"}),
		ExtractorSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "duration_seconds",
			Help:      "Wall-clock time for one extractor's Run, by kind.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"kind"}),
		CacheLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "loads_total",
			Help:      "Number of cache population loads, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of extraction runs started.",
		}),
		RunDurationSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of a full extraction run.",
			Buckets:   prometheus.ExponentialBuckets(5, 2, 10),
		}),
	}

	reg.MustRegister(
		c.ItemsExtracted,
		c.ExtractorErrors,
		c.ExtractorSeconds,
		c.CacheLoads,
		c.RunsTotal,
		c.RunDurationSecs,
	)
	return c
}

// ObserveExtractorResult records one extractor kind's outcome.
func (c *Collectors) ObserveExtractorResult(kind model.ObjectType, res model.ExtractorResult, duration time.Duration) {
	c.ItemsExtracted.WithLabelValues(string(kind)).Add(float64(len(res.Items)))
	c.ExtractorSeconds.WithLabelValues(string(kind)).Observe(duration.Seconds())
	for _, e := range res.Errors {
		c.ExtractorErrors.WithLabelValues(string(kind), string(e.Code)).Inc()
	}
}

// ObserveCacheLoad records one cache population attempt.
func (c *Collectors) ObserveCacheLoad(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.CacheLoads.WithLabelValues(kind, outcome).Inc()
}

// ObserveRun records a completed run's total duration.
func (c *Collectors) ObserveRun(duration time.Duration) {
	c.RunsTotal.Inc()
	c.RunDurationSecs.Observe(duration.Seconds())
}
