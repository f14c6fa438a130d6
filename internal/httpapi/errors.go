package httpapi

import (
	"errors"
	"net/http"

	"github.com/openaedmap/aedcore/internal/core/apperr"
)

// writeError maps the apperr taxonomy (spec.md §7) onto the plain-text
// status codes the HTTP surface promises.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, apperr.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}
