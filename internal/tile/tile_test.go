package tile

import "testing"

func TestBBoxForTileOrdering(t *testing.T) {
	b := BBoxForTile(5, 10, 12)
	if b.P1.Lon > b.P2.Lon {
		t.Errorf("expected p1.lon <= p2.lon, got %v > %v", b.P1.Lon, b.P2.Lon)
	}
	if b.P1.Lat > b.P2.Lat {
		t.Errorf("expected p1.lat <= p2.lat, got %v > %v", b.P1.Lat, b.P2.Lat)
	}
}

func TestBBoxForTileRootCoversWorld(t *testing.T) {
	b := BBoxForTile(0, 0, 0)
	if b.P1.Lon != -180 || b.P2.Lon != 180 {
		t.Errorf("expected root tile to span the full longitude range, got %v..%v", b.P1.Lon, b.P2.Lon)
	}
}

func TestAbbreviate(t *testing.T) {
	cases := map[int]string{
		5:       "5",
		999:     "999",
		1000:    "1.0k",
		1500:    "1.5k",
		999999:  "1000.0k",
		1000000: "1.0m",
		2500000: "2.5m",
	}
	for n, want := range cases {
		if got := Abbreviate(n); got != want {
			t.Errorf("Abbreviate(%d) = %q, want %q", n, got, want)
		}
	}
}
