package aedingest

import (
	"testing"

	"github.com/openaedmap/aedcore/internal/diffparser"
)

func defibTags() map[string]string { return map[string]string{"emergency": "defibrillator"} }

func TestMergeActionsKeepsHighestVersion(t *testing.T) {
	actions := []diffparser.Action{
		{Type: diffparser.ActionCreate, Nodes: []diffparser.Node{{ID: 1, Version: 1, Tags: defibTags()}}},
		{Type: diffparser.ActionModify, Nodes: []diffparser.Node{{ID: 1, Version: 3, Tags: defibTags()}}},
		{Type: diffparser.ActionModify, Nodes: []diffparser.Node{{ID: 1, Version: 2, Tags: defibTags()}}},
	}
	upserts, deletes := mergeActions(actions)
	if len(deletes) != 0 {
		t.Fatalf("expected no deletes, got %v", deletes)
	}
	if got := upserts[1].Version; got != 3 {
		t.Errorf("expected version 3 to win, got %d", got)
	}
}

func TestMergeActionsDeleteWins(t *testing.T) {
	actions := []diffparser.Action{
		{Type: diffparser.ActionCreate, Nodes: []diffparser.Node{{ID: 1, Version: 1, Tags: defibTags()}}},
		{Type: diffparser.ActionDelete, Nodes: []diffparser.Node{{ID: 1, Version: 2}}},
	}
	upserts, deletes := mergeActions(actions)
	if _, ok := upserts[1]; ok {
		t.Error("expected id 1 to not be in upserts after delete")
	}
	if !deletes[1] {
		t.Error("expected id 1 to be in deletes")
	}
}

func TestMergeActionsMarkerRemovalIsDelete(t *testing.T) {
	actions := []diffparser.Action{
		{Type: diffparser.ActionCreate, Nodes: []diffparser.Node{{ID: 1, Version: 1, Tags: defibTags()}}},
		{Type: diffparser.ActionModify, Nodes: []diffparser.Node{{ID: 1, Version: 2, Tags: map[string]string{}}}},
	}
	upserts, deletes := mergeActions(actions)
	if _, ok := upserts[1]; ok {
		t.Error("expected id 1 removed from upserts once the marker tag disappears")
	}
	if !deletes[1] {
		t.Error("expected id 1 to be treated as a delete once the marker tag disappears")
	}
}

func TestMergeActionsOutOfOrderOlderVersionIgnored(t *testing.T) {
	actions := []diffparser.Action{
		{Type: diffparser.ActionModify, Nodes: []diffparser.Node{{ID: 1, Version: 5, Tags: defibTags()}}},
		{Type: diffparser.ActionModify, Nodes: []diffparser.Node{{ID: 1, Version: 2, Tags: defibTags()}}},
	}
	upserts, _ := mergeActions(actions)
	if got := upserts[1].Version; got != 5 {
		t.Errorf("expected version 5 to remain, got %d", got)
	}
}
