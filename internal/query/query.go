// Package query is the spatial read-serving layer (spec.md §4.6,
// C6): bbox/polygon intersection, per-country membership and counts,
// and the process-local TTL cache fronting the count query.
package query

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/openaedmap/aedcore/internal/cluster"
	"github.com/openaedmap/aedcore/internal/core/model"
	"github.com/openaedmap/aedcore/internal/store"
)

// countryBBoxNodesPerEdge materializes a bbox as an 8-vertex-per-edge
// polygon before a country intersection test, better approximating
// the tile's curved boundary in geodesic space (spec.md §4.6).
const countryBBoxNodesPerEdge = 8

// Service answers read queries over the aed and country tables.
type Service struct {
	store      *store.Store
	countCache *lru.LRU[string, int]
}

// NewService builds a Service with a count-by-country cache of at
// most cacheSize entries, each valid for cacheTTL.
func NewService(st *store.Store, cacheSize int, cacheTTL time.Duration) *Service {
	return &Service{
		store:      st,
		countCache: lru.NewLRU[string, int](cacheSize, nil, cacheTTL),
	}
}

// GetByID returns a single AED.
func (s *Service) GetByID(ctx context.Context, id int64) (model.AED, error) {
	return s.store.AEDs().GetByID(ctx, id)
}

// GetAll returns every AED.
func (s *Service) GetAll(ctx context.Context) ([]model.AED, error) {
	return s.store.AEDs().GetAll(ctx)
}

// GetByCountryCode returns AEDs whose country_codes includes code.
func (s *Service) GetByCountryCode(ctx context.Context, code string) ([]model.AED, error) {
	return s.store.AEDs().GetByCountryCode(ctx, code)
}

// CountByCountryCode returns the AED count for code, serving from the
// TTL cache when possible.
func (s *Service) CountByCountryCode(ctx context.Context, code string) (int, error) {
	if n, ok := s.countCache.Get(code); ok {
		return n, nil
	}
	n, err := s.store.AEDs().CountByCountryCode(ctx, code)
	if err != nil {
		return 0, err
	}
	s.countCache.Add(code, n)
	return n, nil
}

// InvalidateCounts flushes the count cache. Secondary workers call
// this when the invalidation bus (internal/invalidate) announces a
// country-code change on the primary, so they don't wait out the TTL.
func (s *Service) InvalidateCounts() {
	s.countCache.Purge()
}

// GetIntersecting fetches every AED intersecting bbox, splitting at
// the antimeridian and unioning the two halves when bbox crosses it,
// then optionally clusters the union (spec.md §4.7, testable
// invariant #6).
func (s *Service) GetIntersecting(ctx context.Context, bbox model.BBox, groupEps *float64) ([]cluster.Group, error) {
	aeds, err := s.fetchIntersectingBBox(ctx, bbox)
	if err != nil {
		return nil, err
	}
	return cluster.Cluster(aeds, groupEps), nil
}

func (s *Service) fetchIntersectingBBox(ctx context.Context, bbox model.BBox) ([]model.AED, error) {
	halves := bbox.SplitAntimeridian()
	batches := make([][]model.AED, len(halves))
	for i, half := range halves {
		got, err := s.store.AEDs().GetIntersecting(ctx, half.ToPolygon())
		if err != nil {
			return nil, err
		}
		batches[i] = got
	}
	return dedupeAEDs(batches), nil
}

// dedupeAEDs unions AED batches (one per antimeridian half) by id,
// keeping insertion order so the result is independent of how many
// halves the bbox was split into (spec.md §4.6, invariant #6).
func dedupeAEDs(batches [][]model.AED) []model.AED {
	seen := make(map[int64]bool)
	var out []model.AED
	for _, batch := range batches {
		for _, a := range batch {
			if seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			out = append(out, a)
		}
	}
	return out
}

// CountriesIntersecting returns countries whose geometry intersects
// bbox, materializing bbox as an 8-node-per-edge polygon.
func (s *Service) CountriesIntersecting(ctx context.Context, bbox model.BBox) ([]model.Country, error) {
	poly := bbox.ToPolygonSubdivided(countryBBoxNodesPerEdge)
	return s.store.Countries().GetIntersecting(ctx, poly)
}

// AllCountries returns every country.
func (s *Service) AllCountries(ctx context.Context) ([]model.Country, error) {
	return s.store.Countries().GetAll(ctx)
}

// CountryByCode returns a single country.
func (s *Service) CountryByCode(ctx context.Context, code string) (model.Country, error) {
	return s.store.Countries().GetByCode(ctx, code)
}
