package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/openaedmap/aedcore/internal/core/apperr"
	"github.com/openaedmap/aedcore/internal/core/observability"
)

// CountryFeature is one pre-assembled OSM country boundary from the
// zstd-compressed GeoJSON feed, before country-code assignment.
type CountryFeature struct {
	Tags                map[string]string
	Geometry            orb.Geometry // Polygon or MultiPolygon
	RepresentativePoint orb.Point
	Timestamp           float64
}

// FetchCountryFeed downloads and decompresses the country GeoJSON feed
// at feedURL (spec.md §4.2 item 4).
func FetchCountryFeed(ctx context.Context, client *http.Client, feedURL string) ([]CountryFeature, error) {
	start := time.Now()
	defer func() { observability.ObserveUpstreamLatency("country_feed", time.Since(start).Seconds()) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build country feed request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch country feed: %w", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("%w: country feed status %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	}

	dec, err := zstd.NewReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("open zstd stream: %w", err)
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress country feed: %w", apperr.ErrMalformedSnapshot, err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parse country feed: %w", apperr.ErrMalformedSnapshot, err)
	}

	result := make([]CountryFeature, 0, len(fc.Features))
	for _, f := range fc.Features {
		feature, err := parseCountryFeature(f)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", apperr.ErrMalformedSnapshot, err)
		}
		result = append(result, feature)
	}
	return result, nil
}

func parseCountryFeature(f *geojson.Feature) (CountryFeature, error) {
	tagsRaw, ok := f.Properties["tags"]
	if !ok {
		return CountryFeature{}, fmt.Errorf("country feature missing tags")
	}
	tags, err := toStringMap(tagsRaw)
	if err != nil {
		return CountryFeature{}, fmt.Errorf("country feature tags: %w", err)
	}

	repRaw, ok := f.Properties["representative_point"]
	if !ok {
		return CountryFeature{}, fmt.Errorf("country feature missing representative_point")
	}
	rep, err := parsePointGeometry(repRaw)
	if err != nil {
		return CountryFeature{}, fmt.Errorf("representative_point: %w", err)
	}

	ts, _ := f.Properties["timestamp"].(float64)

	return CountryFeature{
		Tags:                tags,
		Geometry:            f.Geometry,
		RepresentativePoint: rep,
		Timestamp:           ts,
	}, nil
}

func toStringMap(v interface{}) (map[string]string, error) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("expected object, got %T", v)
	}
	out := make(map[string]string, len(m))
	for k, raw := range m {
		s, ok := raw.(string)
		if !ok {
			continue
		}
		out[k] = s
	}
	return out, nil
}

func parsePointGeometry(v interface{}) (orb.Point, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return orb.Point{}, err
	}
	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return orb.Point{}, err
	}
	p, ok := geom.Geometry().(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("expected Point geometry, got %T", geom.Geometry())
	}
	return p, nil
}
