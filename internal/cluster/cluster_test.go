package cluster

import (
	"testing"

	"github.com/openaedmap/aedcore/internal/core/model"
)

func eps(v float64) *float64 { return &v }

func TestClusterNilEpsReturnsSingletons(t *testing.T) {
	aeds := []model.AED{
		{ID: 1, Position: model.LonLat{Lon: 0, Lat: 0}},
		{ID: 2, Position: model.LonLat{Lon: 0.0001, Lat: 0.0001}},
	}
	groups := Cluster(aeds, nil)
	if len(groups) != 2 {
		t.Fatalf("expected 2 unclustered results, got %d", len(groups))
	}
	for _, g := range groups {
		if g.AED == nil {
			t.Error("expected singleton AED results when eps is nil")
		}
	}
}

func TestClusterGroupsCloseThreeSeparatesFar(t *testing.T) {
	// Three AEDs within ~2m of each other (roughly 0.00002 degrees at
	// the equator) and one ~2km away (roughly 0.018 degrees).
	aeds := []model.AED{
		{ID: 1, Position: model.LonLat{Lon: 0, Lat: 0}, Tags: map[string]string{"access": "yes"}},
		{ID: 2, Position: model.LonLat{Lon: 0.00001, Lat: 0.00001}, Tags: map[string]string{"access": "yes"}},
		{ID: 3, Position: model.LonLat{Lon: 0.00002, Lat: 0}, Tags: map[string]string{"access": "yes"}},
		{ID: 4, Position: model.LonLat{Lon: 0.018, Lat: 0}, Tags: map[string]string{"access": "yes"}},
	}

	groups := Cluster(aeds, eps(0.0001))
	if len(groups) != 2 {
		t.Fatalf("expected 1 group + 1 singleton, got %d results", len(groups))
	}

	var sawGroupOfThree, sawSingleton bool
	for _, g := range groups {
		switch {
		case g.Group != nil && g.Group.Count == 3:
			sawGroupOfThree = true
		case g.AED != nil:
			sawSingleton = true
		}
	}
	if !sawGroupOfThree {
		t.Error("expected a group of 3")
	}
	if !sawSingleton {
		t.Error("expected a singleton for the far AED")
	}
}

func TestClusterSingleAndEmptyInputUnchanged(t *testing.T) {
	if got := Cluster(nil, eps(1)); len(got) != 0 {
		t.Errorf("expected empty result for empty input, got %d", len(got))
	}
	one := []model.AED{{ID: 1, Position: model.LonLat{Lon: 1, Lat: 1}}}
	got := Cluster(one, eps(1))
	if len(got) != 1 || got[0].AED == nil {
		t.Error("expected a single AED passthrough for n=1")
	}
}

func TestDownsamplePrefixDeterministicAndBounded(t *testing.T) {
	points := make([][2]float64, 10000)
	for i := range points {
		points[i] = [2]float64{float64(i), float64(i)}
	}
	out := downsamplePrefix(points, 7000)
	if len(out) != 7000 {
		t.Fatalf("expected 7000 samples, got %d", len(out))
	}
	out2 := downsamplePrefix(points, 7000)
	for i := range out {
		if out[i] != out2[i] {
			t.Fatalf("downsamplePrefix is not deterministic at index %d", i)
		}
	}
}

func TestDownsamplePrefixNoopUnderLimit(t *testing.T) {
	points := [][2]float64{{0, 0}, {1, 1}}
	out := downsamplePrefix(points, 7000)
	if len(out) != 2 {
		t.Fatalf("expected passthrough for small input, got %d", len(out))
	}
}

func TestEpsilonForZoomDisablesAtMax(t *testing.T) {
	if e := EpsilonForZoom(16, 16); e != nil {
		t.Error("expected nil epsilon at max zoom")
	}
	if e := EpsilonForZoom(17, 16); e != nil {
		t.Error("expected nil epsilon beyond max zoom")
	}
	e := EpsilonForZoom(0, 16)
	if e == nil || *e != 9.6 {
		t.Errorf("expected epsilon 9.6 at z=0, got %v", e)
	}
}

func TestCountrySimplifyToleranceShrinksWithZoom(t *testing.T) {
	t0 := CountrySimplifyTolerance(0)
	t1 := CountrySimplifyTolerance(1)
	if t1 >= t0 {
		t.Errorf("expected tolerance to shrink as zoom increases, got t0=%v t1=%v", t0, t1)
	}
}
