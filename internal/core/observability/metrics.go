// Package observability exposes the process's Prometheus metrics: HTTP
// serving, upstream fetch latency, ingestion run outcomes, tile
// render duration, and invalidation-bus activity.
package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var enabled atomic.Bool

func Enabled() bool { return enabled.Load() }

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	upstreamLatencySeconds     *prometheus.HistogramVec
	ingestRunsTotal            *prometheus.CounterVec
	ingestLastSuccessUnix      *prometheus.GaugeVec
	tileRenderDurationSeconds  *prometheus.HistogramVec
	invalidationEventsTotal    *prometheus.CounterVec
	buildInfo                  *prometheus.GaugeVec
)

// Init registers every collector against r. Calling with isEnabled
// false leaves every Observe*/Inc* call a no-op, so instrumented code
// never branches on whether metrics are on.
func Init(r prometheus.Registerer, isEnabled bool) {
	enabled.Store(isEnabled)
	if !isEnabled || r == nil {
		return
	}

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aedcore_http_requests_total", Help: "Total HTTP requests served."},
		[]string{"method", "route", "status"},
	)
	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "aedcore_http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.ExponentialBuckets(0.005, 2, 12)},
		[]string{"method", "route", "status"},
	)
	upstreamLatencySeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "aedcore_upstream_latency_seconds", Help: "Latency of Overpass/replication/country-feed fetches.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 14)},
		[]string{"upstream"},
	)
	ingestRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aedcore_ingest_runs_total", Help: "Ingestion task runs by task and outcome."},
		[]string{"task", "outcome"},
	)
	ingestLastSuccessUnix = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "aedcore_ingest_last_success_unix", Help: "Unix timestamp of the last successful ingestion run."},
		[]string{"task"},
	)
	tileRenderDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "aedcore_tile_render_duration_seconds", Help: "Time to query and encode a vector tile.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 14)},
		[]string{"class"},
	)
	invalidationEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "aedcore_invalidation_events_total", Help: "Invalidation bus events by kind and direction."},
		[]string{"kind", "direction"},
	)
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "aedcore_build_info", Help: "Always 1; labeled with the running build version."},
		[]string{"version"},
	)

	r.MustRegister(
		httpRequestsTotal, httpRequestDurationSeconds, upstreamLatencySeconds,
		ingestRunsTotal, ingestLastSuccessUnix, tileRenderDurationSeconds,
		invalidationEventsTotal, buildInfo,
	)
}

// ExposeBuildInfo sets the build-info gauge for version.
func ExposeBuildInfo(version string) {
	if !enabled.Load() || buildInfo == nil {
		return
	}
	buildInfo.WithLabelValues(version).Set(1)
}

// ObserveHTTP records one served HTTP request.
func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	if !enabled.Load() || httpRequestsTotal == nil {
		return
	}
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

// ObserveUpstreamLatency records a fetch against an upstream (overpass,
// replication, country_feed).
func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	if !enabled.Load() || upstreamLatencySeconds == nil {
		return
	}
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// ObserveIngestRun records one completed run of a background ingestion
// task (task is "aed" or "country").
func ObserveIngestRun(task string, err error) {
	if !enabled.Load() || ingestRunsTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ingestRunsTotal.WithLabelValues(task, outcome).Inc()
}

// SetIngestLastSuccess records the unix timestamp of the last
// successful run of task.
func SetIngestLastSuccess(task string, unixSeconds float64) {
	if !enabled.Load() || ingestLastSuccessUnix == nil {
		return
	}
	ingestLastSuccessUnix.WithLabelValues(task).Set(unixSeconds)
}

// ObserveTileRender records the time spent querying and encoding a
// tile ("country" or "aed" class).
func ObserveTileRender(class string, durationSeconds float64) {
	if !enabled.Load() || tileRenderDurationSeconds == nil {
		return
	}
	tileRenderDurationSeconds.WithLabelValues(class).Observe(durationSeconds)
}

// ObserveInvalidationEvent records a publish ("out") or consume ("in")
// of an invalidation bus event.
func ObserveInvalidationEvent(kind, direction string) {
	if !enabled.Load() || invalidationEventsTotal == nil {
		return
	}
	invalidationEventsTotal.WithLabelValues(kind, direction).Inc()
}
