// Package metrics exposes Prometheus collectors for catalog fetches, the
// result cache, rate-limit throttling and match outcomes.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fetch outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeRetried  = "retried"
	OutcomeRejected = "rejected"
)

// Recorder bundles the collectors registered for one process. A nil *Recorder
// is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	requests    *prometheus.CounterVec
	requestTime prometheus.Histogram
	cache       *prometheus.CounterVec
	throttle    prometheus.Histogram
	decisions   *prometheus.CounterVec
	stored      *prometheus.CounterVec
	lastRun     prometheus.Gauge
}

// New registers the collectors on registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) (*Recorder, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	r := &Recorder{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audiostacker_catalog_requests_total",
			Help: "Catalog API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		requestTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiostacker_catalog_request_duration_seconds",
			Help:    "Duration of catalog API requests in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audiostacker_cache_lookups_total",
			Help: "Result cache lookups by result (hit, miss, expired, corrupt).",
		}, []string{"result"}),
		throttle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "audiostacker_ratelimit_wait_seconds",
			Help:    "Time spent waiting on the catalog rate limiter.",
			Buckets: []float64{0, 0.5, 1, 2, 4, 6, 10, 30, 60},
		}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audiostacker_match_decisions_total",
			Help: "Match selector decisions by result (accepted, review, rejected).",
		}, []string{"result"}),
		stored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "audiostacker_store_upserts_total",
			Help: "Stored matches by result (new, updated, error).",
		}, []string{"result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "audiostacker_last_run_timestamp_seconds",
			Help: "Unix time of the last completed watchlist run.",
		}),
	}
	for _, c := range []prometheus.Collector{r.requests, r.requestTime, r.cache, r.throttle, r.decisions, r.stored, r.lastRun} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return r, nil
}

// Registry returns the registry backing r.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ObserveRequest records one catalog API request.
func (r *Recorder) ObserveRequest(endpoint, outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(endpoint, outcome).Inc()
	if outcome != OutcomeRejected {
		r.requestTime.Observe(elapsed.Seconds())
	}
}

// CacheLookup records a result cache lookup.
func (r *Recorder) CacheLookup(result string) {
	if r == nil {
		return
	}
	r.cache.WithLabelValues(result).Inc()
}

// Throttled records time spent blocked on the rate limiter.
func (r *Recorder) Throttled(wait time.Duration) {
	if r == nil {
		return
	}
	r.throttle.Observe(wait.Seconds())
}

// Decision records a selector outcome.
func (r *Recorder) Decision(result string) {
	if r == nil {
		return
	}
	r.decisions.WithLabelValues(result).Inc()
}

// Stored records a persistence outcome.
func (r *Recorder) Stored(result string) {
	if r == nil {
		return
	}
	r.stored.WithLabelValues(result).Inc()
}

// RunCompleted stamps the last-run gauge.
func (r *Recorder) RunCompleted(at time.Time) {
	if r == nil {
		return
	}
	r.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes every registered metric to path in the node exporter
// textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
