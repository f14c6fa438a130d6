package health

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeReporter struct {
	ready, primary bool
}

func (f fakeReporter) Readiness() (bool, bool) { return f.ready, f.primary }

func TestReadinessNotReadyReturns503(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Readiness(fakeReporter{ready: false}).ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
}

func TestReadinessReadyReturns200(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()

	Readiness(fakeReporter{ready: true, primary: true}).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
}
