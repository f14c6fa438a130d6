package model

import "testing"

func TestBBoxSplitAntimeridian(t *testing.T) {
	b := BBoxFromTuple(170, -10, -170, 10)
	halves := b.SplitAntimeridian()
	if len(halves) != 2 {
		t.Fatalf("expected 2 halves, got %d", len(halves))
	}
	east, west := halves[0], halves[1]
	if east.P1.Lon != 170 || east.P2.Lon != 180 {
		t.Errorf("unexpected east half: %+v", east)
	}
	if west.P1.Lon != -180 || west.P2.Lon != -170 {
		t.Errorf("unexpected west half: %+v", west)
	}

	noSplit := BBoxFromTuple(-10, -10, 10, 10).SplitAntimeridian()
	if len(noSplit) != 1 {
		t.Fatalf("bbox not crossing antimeridian should not split, got %d", len(noSplit))
	}
}

func TestDecideAccessYesShortCircuits(t *testing.T) {
	got := DecideAccess([]string{"no", "private", "yes", "customers"})
	if got != "yes" {
		t.Errorf("expected yes, got %q", got)
	}
}

func TestDecideAccessPicksMostPermissive(t *testing.T) {
	got := DecideAccess([]string{"no", "private", "customers"})
	if got != "customers" {
		t.Errorf("expected customers, got %q", got)
	}
}

func TestDecideAccessIdempotent(t *testing.T) {
	s := []string{"private", "customers", "no"}
	tPart := []string{"permissive"}

	once := DecideAccess(append(append([]string{}, s...), tPart...))
	twoStep := DecideAccess(append([]string{DecideAccess(s)}, tPart...))

	if once != twoStep {
		t.Errorf("DecideAccess not idempotent: once=%q twoStep=%q", once, twoStep)
	}
}

func TestDecideAccessUnknownIgnored(t *testing.T) {
	got := DecideAccess([]string{"bogus-tier"})
	if got != "no" {
		t.Errorf("expected default no, got %q", got)
	}
}

func TestIsDefibrillator(t *testing.T) {
	if !IsDefibrillator(map[string]string{"emergency": "defibrillator"}) {
		t.Error("expected marker match")
	}
	if IsDefibrillator(map[string]string{"emergency": "fire_extinguisher"}) {
		t.Error("expected no match")
	}
}

func TestLonLatValid(t *testing.T) {
	valid := LonLat{Lon: 170, Lat: -80}
	if !valid.Valid() {
		t.Error("expected valid point")
	}
	invalid := LonLat{Lon: 200, Lat: 0}
	if invalid.Valid() {
		t.Error("expected invalid point")
	}
}

func TestBBoxExtend(t *testing.T) {
	b := BBoxFromTuple(0, 0, 10, 10)
	ext := b.Extend(0.5)
	if ext.P1.Lon != -5 || ext.P2.Lon != 15 {
		t.Errorf("unexpected extended bbox: %+v", ext)
	}
}

func TestCountryNameFallback(t *testing.T) {
	c := Country{Names: map[string]string{"default": "Testland"}}
	if c.NameFor("xx") != "Testland" {
		t.Errorf("expected fallback to default name, got %q", c.NameFor("xx"))
	}
	c.Names["FR"] = "Paysdetest"
	if c.NameFor("fr") != "Paysdetest" {
		t.Errorf("expected localized name, got %q", c.NameFor("fr"))
	}
}
