package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsHandler_Smoke(t *testing.T) {
	reg := prometheus.NewRegistry()
	Init(reg, true)

	ExposeBuildInfo("test")
	ObserveHTTP("GET", "/api/v1/tile/{z}/{x}/{y}", 200, 0.001)
	ObserveUpstreamLatency("overpass", 0.25)
	ObserveIngestRun("aed", nil)
	ObserveTileRender("aed", 0.01)
	ObserveInvalidationEvent("aed_country_codes_changed", "out")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{
		"aedcore_build_info",
		"aedcore_http_requests_total",
		"aedcore_upstream_latency_seconds",
		"aedcore_ingest_runs_total",
		"aedcore_tile_render_duration_seconds",
		"aedcore_invalidation_events_total",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics payload missing %q; got:\n%s", want, body)
		}
	}
}

func TestInitDisabledLeavesObserversNoOp(t *testing.T) {
	Init(nil, false)
	if Enabled() {
		t.Fatal("expected Enabled() to be false")
	}
	// must not panic with nil collectors.
	ObserveHTTP("GET", "/x", 200, 0.001)
	ObserveUpstreamLatency("overpass", 0.1)
	ObserveIngestRun("aed", nil)
	ObserveTileRender("country", 0.1)
	ObserveInvalidationEvent("countries_changed", "in")
	SetIngestLastSuccess("aed", 1.0)
	ExposeBuildInfo("test")
}
