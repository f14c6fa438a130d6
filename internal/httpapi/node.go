package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openaedmap/aedcore/internal/core/apperr"
)

type nodeElement struct {
	Type           string            `json:"type"`
	ID             int64             `json:"id"`
	Lat            float64           `json:"lat"`
	Lon            float64           `json:"lon"`
	Tags           map[string]string `json:"tags"`
	Version        int64             `json:"version"`
	TimezoneName   *string           `json:"@timezone_name"`
	TimezoneOffset *string           `json:"@timezone_offset"`
	PhotoID        *string           `json:"@photo_id"`
	PhotoURL       *string           `json:"@photo_url"`
	PhotoSource    *string           `json:"@photo_source"`
}

type nodeResponse struct {
	Version     float64       `json:"version"`
	Copyright   string        `json:"copyright"`
	Attribution string        `json:"attribution"`
	License     string        `json:"license"`
	Elements    []nodeElement `json:"elements"`
}

// HandleNode serves GET /api/v1/node/{id}. Time-zone lookup and photo
// resolution are external collaborators (spec.md §1 OUT OF SCOPE); the
// corresponding fields are always emitted, left null.
func (h *Handler) HandleNode(w http.ResponseWriter, r *http.Request) {
	idParam := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idParam, 10, 64)
	if err != nil {
		writeError(w, apperr.ErrInvalidRequest)
		return
	}

	aed, err := h.Query.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := nodeResponse{
		Version:     0.6,
		Copyright:   "OpenStreetMap and contributors",
		Attribution: "https://www.openstreetmap.org/copyright",
		License:     "https://opendatacommons.org/licenses/odbl/1-0/",
		Elements: []nodeElement{{
			Type:    "node",
			ID:      aed.ID,
			Lat:     aed.Position.Lat,
			Lon:     aed.Position.Lon,
			Tags:    aed.Tags,
			Version: aed.Version,
		}},
	}

	setCacheControl(w, time.Minute, 5*time.Minute)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
