package query

import (
	"testing"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openaedmap/aedcore/internal/core/model"
)

func TestDedupeAEDsUnionsAcrossBatchesByID(t *testing.T) {
	east := []model.AED{{ID: 1}, {ID: 2}}
	west := []model.AED{{ID: 2}, {ID: 3}}
	got := dedupeAEDs([][]model.AED{east, west})
	require.Len(t, got, 3)

	seen := map[int64]bool{}
	for _, a := range got {
		seen[a.ID] = true
	}
	for _, id := range []int64{1, 2, 3} {
		assert.True(t, seen[id], "expected id %d in union", id)
	}
}

func TestDedupeAEDsSingleBatchUnchanged(t *testing.T) {
	batch := []model.AED{{ID: 10}, {ID: 11}}
	got := dedupeAEDs([][]model.AED{batch})
	assert.Len(t, got, 2)
}

func TestDedupeAEDsEmptyInput(t *testing.T) {
	assert.Empty(t, dedupeAEDs(nil))
}

func TestCountCacheServesWithoutRefetch(t *testing.T) {
	s := &Service{countCache: lru.NewLRU[string, int](1024, nil, time.Hour)}
	s.countCache.Add("DE", 42)
	n, ok := s.countCache.Get("DE")
	require.True(t, ok)
	assert.Equal(t, 42, n)
}

func TestInvalidateCountsPurgesCache(t *testing.T) {
	s := &Service{countCache: lru.NewLRU[string, int](1024, nil, time.Hour)}
	s.countCache.Add("DE", 42)
	s.InvalidateCounts()
	_, ok := s.countCache.Get("DE")
	assert.False(t, ok, "expected cache entry purged")
}
