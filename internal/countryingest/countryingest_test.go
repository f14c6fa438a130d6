package countryingest

import "testing"

func TestNamesFromTagsPrefersNameEN(t *testing.T) {
	names := namesFromTags(map[string]string{
		"name":    "Deutschland",
		"name:en": "Germany",
		"name:fr": "Allemagne",
	})
	if names["default"] != "Germany" {
		t.Errorf("expected default name Germany, got %q", names["default"])
	}
	if names["FR"] != "Allemagne" {
		t.Errorf("expected FR name Allemagne, got %q", names["FR"])
	}
}

func TestNamesFromTagsFallsBackToIntNameThenName(t *testing.T) {
	names := namesFromTags(map[string]string{"int_name": "Oesterreich"})
	if names["default"] != "Oesterreich" {
		t.Errorf("expected default from int_name, got %q", names["default"])
	}

	names2 := namesFromTags(map[string]string{"name": "Suomi"})
	if names2["default"] != "Suomi" {
		t.Errorf("expected default from name, got %q", names2["default"])
	}
}
