package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb/geojson"

	"github.com/openaedmap/aedcore/internal/core/model"
)

type countryNameEntry struct {
	CountryCode  string            `json:"country_code"`
	CountryNames map[string]string `json:"country_names"`
	FeatureCount int               `json:"feature_count"`
	DataPath     string            `json:"data_path"`
}

// HandleCountryNames serves GET /api/v1/countries/names.
func (h *Handler) HandleCountryNames(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	countries, err := h.Query.AllCountries(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := make([]countryNameEntry, 0, len(countries)+1)
	total := 0
	for _, c := range countries {
		n, err := h.Query.CountByCountryCode(ctx, c.Code)
		if err != nil {
			writeError(w, err)
			return
		}
		total += n
		entries = append(entries, countryNameEntry{
			CountryCode:  c.Code,
			CountryNames: c.Names,
			FeatureCount: n,
			DataPath:     "/api/v1/countries/" + c.Code + ".geojson",
		})
	}
	entries = append(entries, countryNameEntry{
		CountryCode:  "WORLD",
		CountryNames: map[string]string{"default": "World"},
		FeatureCount: total,
		DataPath:     "/api/v1/countries/WORLD.geojson",
	})

	setCacheControl(w, time.Hour, 7*24*time.Hour)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}

// HandleCountryGeoJSON serves GET /api/v1/countries/{cc}.geojson.
func (h *Handler) HandleCountryGeoJSON(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	code := strings.TrimSuffix(chi.URLParam(r, "cc"), ".geojson")

	var aeds []model.AED
	var err error

	if code == "WORLD" {
		aeds, err = h.Query.GetAll(ctx)
	} else {
		if _, cerr := h.Query.CountryByCode(ctx, code); cerr != nil {
			writeError(w, cerr)
			return
		}
		aeds, err = h.Query.GetByCountryCode(ctx, code)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	fc := geojson.NewFeatureCollection()
	for _, a := range aeds {
		f := geojson.NewFeature(a.Position.Point())
		f.Properties["@osm_type"] = "node"
		f.Properties["@osm_id"] = a.ID
		for k, v := range a.Tags {
			f.Properties[k] = v
		}
		fc.Append(f)
	}

	setCacheControl(w, time.Hour, 0)
	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Content-Disposition", "attachment")
	_ = json.NewEncoder(w).Encode(fc)
}
