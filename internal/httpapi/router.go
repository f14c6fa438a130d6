package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremiddleware "github.com/openaedmap/aedcore/internal/core/middleware"
)

// NewRouter builds the chi router for the full read surface
// (spec.md §6), following the teacher's middleware stack.
func NewRouter(h *Handler, readiness http.HandlerFunc) http.Handler {
	r := chi.NewRouter()
	r.Use(coremiddleware.Recover())
	r.Use(coremiddleware.Metrics())
	r.Use(coremiddleware.Logging(h.Logger))
	r.Use(coremiddleware.CORS())
	r.Use(versionHeader(h.Version))

	r.Get("/healthz", readiness)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/countries/names", h.HandleCountryNames)
		api.Get("/countries/{cc}", h.HandleCountryGeoJSON)
		api.Get("/node/{id}", h.HandleNode)
		api.Get("/tile/{z}/{x}/{y}", h.HandleTile)
	})

	return r
}

func versionHeader(version string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Version", version)
			next.ServeHTTP(w, r)
		})
	}
}
