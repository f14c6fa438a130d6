package store

import (
	"testing"

	"github.com/paulmach/orb"
)

func TestEncodeDecodePointRoundTrip(t *testing.T) {
	want := orb.Point{13.405, 52.52}
	raw, err := encodeWKB(want)
	if err != nil {
		t.Fatalf("encodeWKB: %v", err)
	}
	got, err := decodePoint(raw)
	if err != nil {
		t.Fatalf("decodePoint: %v", err)
	}
	if got.Lon != want[0] || got.Lat != want[1] {
		t.Errorf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestEncodeDecodePolygonRoundTrip(t *testing.T) {
	want := orb.Polygon{orb.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	raw, err := encodeWKB(want)
	if err != nil {
		t.Fatalf("encodeWKB: %v", err)
	}
	got, err := decodeGeometry(raw)
	if err != nil {
		t.Fatalf("decodeGeometry: %v", err)
	}
	poly, ok := got.(orb.Polygon)
	if !ok {
		t.Fatalf("expected orb.Polygon, got %T", got)
	}
	if len(poly) != 1 || len(poly[0]) != 5 {
		t.Errorf("unexpected polygon shape: %+v", poly)
	}
}
