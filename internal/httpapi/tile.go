package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openaedmap/aedcore/internal/cluster"
	"github.com/openaedmap/aedcore/internal/core/apperr"
	"github.com/openaedmap/aedcore/internal/core/observability"
	"github.com/openaedmap/aedcore/internal/tile"
)

// HandleTile serves GET /api/v1/tile/{z}/{x}/{y}.mvt. Zoom z splits
// the response into a country tile (polygon + label layers) at or
// below TileCountriesMaxZ, else an AED point/cluster tile (spec.md
// §4.8).
func (h *Handler) HandleTile(w http.ResponseWriter, r *http.Request) {
	z, x, y, ok := parseTileCoords(w, r)
	if !ok {
		return
	}
	cfg := h.Config
	if z < cfg.TileMinZ || z > cfg.TileMaxZ {
		writeError(w, apperr.ErrInvalidRequest)
		return
	}

	bbox := tile.BBoxForTile(z, x, y)
	ctx := r.Context()
	renderStart := time.Now()

	var body []byte
	var err error
	class := "aed"

	if z <= cfg.TileCountriesMaxZ {
		class = "country"
		lang := r.URL.Query().Get("lang")
		if lang == "" {
			lang = "default"
		}
		countries, cerr := h.Query.CountriesIntersecting(ctx, bbox)
		if cerr != nil {
			writeError(w, cerr)
			return
		}
		features := make([]tile.CountryFeature, 0, len(countries))
		for _, c := range countries {
			count, cnterr := h.Query.CountByCountryCode(ctx, c.Code)
			if cnterr != nil {
				writeError(w, cnterr)
				return
			}
			features = append(features, tile.CountryFeature{Country: c, Count: count, Lang: lang})
		}
		body, err = tile.EncodeCountryTile(z, x, y, features)
		setCacheControl(w, cfg.TileCountriesMaxAge, cfg.TileCountriesStale)
	} else {
		eps := cluster.EpsilonForZoom(z, cfg.TileMaxZ)
		groups, qerr := h.Query.GetIntersecting(ctx, bbox.Extend(tile.ExtendPercent), eps)
		if qerr != nil {
			writeError(w, qerr)
			return
		}
		body, err = tile.EncodeAEDTile(z, x, y, groups)
		setCacheControl(w, cfg.TileDefaultMaxAge, cfg.TileAEDsStale)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	observability.ObserveTileRender(class, time.Since(renderStart).Seconds())

	w.Header().Set("Content-Type", "application/vnd.mapbox-vector-tile")
	_, _ = w.Write(body)
}

func parseTileCoords(w http.ResponseWriter, r *http.Request) (z, x, y int, ok bool) {
	var err error
	if z, err = strconv.Atoi(chi.URLParam(r, "z")); err != nil {
		writeError(w, apperr.ErrInvalidRequest)
		return 0, 0, 0, false
	}
	if x, err = strconv.Atoi(chi.URLParam(r, "x")); err != nil {
		writeError(w, apperr.ErrInvalidRequest)
		return 0, 0, 0, false
	}
	yParam := chi.URLParam(r, "y")
	if i := len(yParam) - len(".mvt"); i > 0 && yParam[i:] == ".mvt" {
		yParam = yParam[:i]
	}
	if y, err = strconv.Atoi(yParam); err != nil {
		writeError(w, apperr.ErrInvalidRequest)
		return 0, 0, 0, false
	}
	if x < 0 || y < 0 {
		writeError(w, apperr.ErrInvalidRequest)
		return 0, 0, 0, false
	}
	return z, x, y, true
}
