// Package metrics exposes Prometheus collectors for the cache, the offline
// queue and the sync reconciler. All methods are safe on a nil *Metrics so
// components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "budgetbuddy"

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	cacheLookups  *prometheus.CounterVec
	cacheWrites   *prometheus.CounterVec
	replays       *prometheus.CounterVec
	refreshes     *prometheus.CounterVec
	queued        prometheus.Counter
	queueDepth    prometheus.Gauge
	syncState     *prometheus.GaugeVec
	eventsPublish *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	rateLimited   prometheus.Counter
}

// New creates and registers every collector.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Local cache lookups by result (hit, miss, stale, corrupt).",
		}, []string{"result"}),
		cacheWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "writes_total",
			Help:      "Local cache writes by result.",
		}, []string{"result"}),
		replays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "replays_total",
			Help:      "Offline mutation replays by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "dashboard",
			Name:      "refreshes_total",
			Help:      "Dashboard recomputations from the record store by result.",
		}, []string{"result"}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "mutations_queued_total",
			Help:      "Mutations queued while offline.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "queue_depth",
			Help:      "Mutations waiting for replay.",
		}),
		syncState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "state",
			Help:      "Current reconciler state (1 for the active state).",
		}, []string{"state"}),
		eventsPublish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "sink_publishes_total",
			Help:      "Events forwarded to external sinks by sink and result.",
		}, []string{"sink", "result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheLookups,
		m.cacheWrites,
		m.replays,
		m.refreshes,
		m.queued,
		m.queueDepth,
		m.syncState,
		m.eventsPublish,
		m.httpRequests,
		m.rateLimited,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) CacheWrite(ok bool) {
	if m == nil {
		return
	}
	m.cacheWrites.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) Replay(ok bool) {
	if m == nil {
		return
	}
	m.replays.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) Refresh(ok bool) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome(ok)).Inc()
}

func (m *Metrics) MutationQueued() {
	if m == nil {
		return
	}
	m.queued.Inc()
}

func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// SyncState marks state as the active one among all.
func (m *Metrics) SyncState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.syncState.WithLabelValues(s).Set(v)
	}
}

func (m *Metrics) SinkPublish(sink string, ok bool) {
	if m == nil {
		return
	}
	m.eventsPublish.WithLabelValues(sink, outcome(ok)).Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// HTTPRequest counts one served API request. route is the matched pattern,
// not the raw path.
func (m *Metrics) HTTPRequest(method, route string, code int) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
