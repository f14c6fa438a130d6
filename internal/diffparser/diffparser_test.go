package diffparser

import (
	"errors"
	"strings"
	"testing"

	"github.com/openaedmap/aedcore/internal/core/apperr"
)

const sampleDiff = `<?xml version="1.0" encoding="UTF-8"?>
<osmChange version="0.6" generator="planet-dump-ng">
<create>
  <node id="1" version="1" changeset="100" uid="5" lat="52.52" lon="13.405">
    <tag k="emergency" v="defibrillator"/>
  </node>
</create>
<modify>
  <node id="2" version="3.0" changeset="101" uid="6" lat="48.85" lon="2.35">
    <tag k="emergency" v="defibrillator"/>
    <tag k="access" v="yes"/>
  </node>
  <way id="99" version="1">
    <nd ref="1"/>
  </way>
</modify>
<delete>
  <node id="3" version="2" changeset="102" uid="7"/>
</delete>
</osmChange>`

func TestParseClassifiesActionsAndDiscardsWays(t *testing.T) {
	actions, err := Parse(strings.NewReader(sampleDiff))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}

	if actions[0].Type != ActionCreate || len(actions[0].Nodes) != 1 {
		t.Fatalf("unexpected create action: %+v", actions[0])
	}
	if actions[0].Nodes[0].Tags["emergency"] != "defibrillator" {
		t.Errorf("expected emergency=defibrillator tag, got %+v", actions[0].Nodes[0].Tags)
	}

	if actions[1].Type != ActionModify || len(actions[1].Nodes) != 1 {
		t.Fatalf("unexpected modify action (way should be discarded): %+v", actions[1])
	}
	if actions[1].Nodes[0].Version != 3 {
		t.Errorf("expected float-form version 3.0 parsed as 3, got %d", actions[1].Nodes[0].Version)
	}

	if actions[2].Type != ActionDelete || len(actions[2].Nodes) != 1 {
		t.Fatalf("unexpected delete action: %+v", actions[2])
	}
	if actions[2].Nodes[0].ID != 3 {
		t.Errorf("expected delete node id 3, got %d", actions[2].Nodes[0].ID)
	}
}

func TestParseMalformedXML(t *testing.T) {
	_, err := Parse(strings.NewReader(`<osmChange><create><node id="1"`))
	if err == nil {
		t.Error("expected an error for truncated XML")
	}
}

func TestParseUnknownActionWrapperIsMalformedDiff(t *testing.T) {
	const diff = `<osmChange version="0.6">
<create>
  <node id="1" version="1" changeset="100" uid="5" lat="0" lon="0"/>
</create>
<purge>
  <node id="2" version="1" changeset="100" uid="5" lat="0" lon="0"/>
</purge>
</osmChange>`

	_, err := Parse(strings.NewReader(diff))
	if err == nil {
		t.Fatal("expected an error for unrecognized action wrapper")
	}
	if !errors.Is(err, apperr.ErrMalformedDiff) {
		t.Errorf("expected errors.Is(err, apperr.ErrMalformedDiff), got %v", err)
	}
}

func TestParseVersionTolerance(t *testing.T) {
	cases := map[string]int64{"3": 3, "3.0": 3, "": 0}
	for in, want := range cases {
		got, err := parseVersion(in)
		if err != nil {
			t.Fatalf("parseVersion(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("parseVersion(%q) = %d, want %d", in, got, want)
		}
	}
}
