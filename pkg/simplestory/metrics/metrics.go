// Package metrics exports resolution pass and invalidation observations as
// Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-story/pkg/simplestory"
)

// Prometheus implements simplestory.Metrics
type Prometheus struct {
	passDurationSeconds *prometheus.HistogramVec
	passTasks           prometheus.Histogram
	resolverCallsTotal  *prometheus.CounterVec
	assetLookupsTotal   *prometheus.CounterVec
	tagsInvalidated     *prometheus.CounterVec
	httpRequestsTotal   *prometheus.CounterVec
	httpDuration        *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg
func New(reg prometheus.Registerer) (*Prometheus, error) {
	m := &Prometheus{
		passDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simplestory_pass_duration_seconds",
				Help:    "Duration of resolution passes in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		passTasks: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "simplestory_pass_tasks",
				Help:    "Number of resolver tasks queued per pass",
				Buckets: prometheus.ExponentialBuckets(1, 2, 10),
			},
		),
		resolverCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplestory_resolver_calls_total",
				Help: "Total number of resolver invocations per component",
			},
			[]string{"component", "result"},
		),
		assetLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplestory_asset_lookups_total",
				Help: "Total number of inline asset lookups per outcome",
			},
			[]string{"outcome"},
		),
		tagsInvalidated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplestory_tags_invalidated_total",
				Help: "Total number of cache tag invalidations",
			},
			[]string{"result"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplestory_http_requests_total",
				Help: "Total number of HTTP requests per route and status",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simplestory_http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.passDurationSeconds,
		m.passTasks,
		m.resolverCallsTotal,
		m.assetLookupsTotal,
		m.tagsInvalidated,
		m.httpRequestsTotal,
		m.httpDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is like New but panics on registration errors
func MustNew(reg prometheus.Registerer) *Prometheus {
	m, err := New(reg)
	if err != nil {
		panic(err)
	}
	return m
}

var _ simplestory.Metrics = (*Prometheus)(nil)

func (m *Prometheus) PassCompleted(duration time.Duration, tasks int, failed bool) {
	m.passDurationSeconds.WithLabelValues(result(failed)).Observe(duration.Seconds())
	m.passTasks.Observe(float64(tasks))
}

func (m *Prometheus) ResolverCompleted(component string, err error) {
	m.resolverCallsTotal.WithLabelValues(component, result(err != nil)).Inc()
}

func (m *Prometheus) AssetFetched(outcome simplestory.AssetOutcome) {
	m.assetLookupsTotal.WithLabelValues(string(outcome)).Inc()
}

// TagInvalidated counts by result only, tags are unbounded
func (m *Prometheus) TagInvalidated(tag string, err error) {
	m.tagsInvalidated.WithLabelValues(result(err != nil)).Inc()
}

// RecordRequest observes one HTTP request
func (m *Prometheus) RecordRequest(method, route string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func result(failed bool) string {
	if failed {
		return "error"
	}
	return "success"
}
