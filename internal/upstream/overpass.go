// Package upstream fetches the three external feeds C4/C5 depend on:
// Overpass snapshots, minute-grain replication diffs, and the
// zstd-compressed country polygon feed (spec.md §4.2, C2).
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/openaedmap/aedcore/internal/core/apperr"
	"github.com/openaedmap/aedcore/internal/core/observability"
)

// OverpassNode is a single Overpass element carrying defibrillator
// tags.
type OverpassNode struct {
	ID      int64
	Lat     float64
	Lon     float64
	Version int64
	Tags    map[string]string
}

type overpassResponse struct {
	Osm3s struct {
		TimestampOsmBase string `json:"timestamp_osm_base"`
	} `json:"osm3s"`
	Elements []struct {
		ID      int64             `json:"id"`
		Lat     float64           `json:"lat"`
		Lon     float64           `json:"lon"`
		Version int64             `json:"version"`
		Tags    map[string]string `json:"tags"`
	} `json:"elements"`
}

// FetchOverpass issues query against the Overpass API at apiURL,
// returning the parsed node elements and the server's data timestamp.
// If mustReturn is set, an empty result set is treated as
// apperr.ErrSuspiciousFeed (a likely upstream hiccup, not a genuinely
// empty world).
func FetchOverpass(ctx context.Context, client *http.Client, apiURL, query string, timeout time.Duration, mustReturn bool) ([]OverpassNode, float64, error) {
	start := time.Now()
	defer func() { observability.ObserveUpstreamLatency("overpass", time.Since(start).Seconds()) }()

	join := ";"
	if strings.HasPrefix(query, "[") {
		join = ""
	}
	wrapped := fmt.Sprintf("[out:json][timeout:%d]%s%s", int(timeout.Seconds()), join, query)

	reqCtx, cancel := context.WithTimeout(ctx, timeout*2)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, apiURL,
		strings.NewReader(url.Values{"data": {wrapped}}.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("build overpass request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: overpass request: %w", apperr.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, 0, fmt.Errorf("%w: overpass status %d", apperr.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read overpass body: %w", apperr.ErrUpstreamUnavailable, err)
	}

	var parsed overpassResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: parse overpass response: %w", apperr.ErrMalformedSnapshot, err)
	}

	dataTimestamp, err := parseOSMTimestamp(parsed.Osm3s.TimestampOsmBase)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %w", apperr.ErrMalformedSnapshot, err)
	}

	if mustReturn && len(parsed.Elements) == 0 {
		return nil, 0, fmt.Errorf("%w: overpass returned zero elements", apperr.ErrSuspiciousFeed)
	}

	nodes := make([]OverpassNode, len(parsed.Elements))
	for i, e := range parsed.Elements {
		nodes[i] = OverpassNode{ID: e.ID, Lat: e.Lat, Lon: e.Lon, Version: e.Version, Tags: e.Tags}
	}
	return nodes, dataTimestamp, nil
}

func parseOSMTimestamp(s string) (float64, error) {
	t, err := time.Parse("2006-01-02T15:04:05Z", s)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return float64(t.Unix()), nil
}
