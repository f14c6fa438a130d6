package countryingest

import "testing"

func TestCodeAssignerPriorityOrder(t *testing.T) {
	a := NewCodeAssigner()
	got := a.Unique(map[string]string{
		"ISO3166-1":        "DE",
		"ISO3166-1:alpha2": "DE",
		"ISO3166-2":        "DE-BE",
	})
	if got != "DE-BE" {
		t.Errorf("expected ISO3166-2 to win, got %q", got)
	}
}

func TestCodeAssignerFallsBackToXX(t *testing.T) {
	a := NewCodeAssigner()
	if got := a.Unique(map[string]string{"name": "Nowhere"}); got != "XX" {
		t.Errorf("expected XX fallback, got %q", got)
	}
}

func TestCodeAssignerSecondPassReusesOnConflict(t *testing.T) {
	a := NewCodeAssigner()
	first := a.Unique(map[string]string{"ISO3166-1": "FR"})
	second := a.Unique(map[string]string{"ISO3166-1": "FR"})
	if first != "FR" {
		t.Fatalf("expected first call to claim FR, got %q", first)
	}
	if second != "FR" {
		t.Errorf("expected second call's check-used pass to fall through to reuse FR, got %q", second)
	}
}

func TestCodeAssignerShortCodeSkipped(t *testing.T) {
	a := NewCodeAssigner()
	got := a.Unique(map[string]string{"ISO3166-1": "X", "ISO3166-1:alpha3": "FRA"})
	if got != "FRA" {
		t.Errorf("expected single-char code to be skipped in favor of FRA, got %q", got)
	}
}
