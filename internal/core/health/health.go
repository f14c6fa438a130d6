// Package health exposes the process liveness and readiness probes.
package health

import (
	"encoding/json"
	"net/http"
)

// Liveness always reports ok once the process is running; there is no
// condition under which this process should be killed but kept
// unresponsive to /healthz.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}
}

// ReadinessReporter reports whether this worker has cleared the
// startup->running gate (spec.md §4.9) and whether it is the primary.
type ReadinessReporter interface {
	Readiness() (ready bool, isPrimary bool)
}

// Readiness reports 200 once Acquire has returned for this process
// (primary: lock won and state file written; secondary: primary
// observed running), 503 otherwise.
func Readiness(rr ReadinessReporter) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		type resp struct {
			Status  string `json:"status"`
			Primary bool   `json:"primary"`
		}
		ready, primary := rr.Readiness()
		out := resp{Status: "not_ready", Primary: primary}
		w.Header().Set("Content-Type", "application/json")
		if ready {
			out.Status = "ready"
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
