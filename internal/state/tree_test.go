package state

import (
	"testing"

	"github.com/daydemir/gass/internal/types"
)

func sampleTree() *Tree {
	docs := []*types.PhaseNode{
		{ID: "2", Title: "Build", Status: types.StatusInProgress, Phases: []types.ChildSummary{
			{ID: "2.1", Title: "Backend", Status: types.StatusPending},
			{ID: "2.2", Title: "Frontend", Status: types.StatusCompleted},
		}},
		{ID: "2.1", Title: "Backend", Status: types.StatusInProgress, Phases: []types.ChildSummary{
			{ID: "2.1.1", Title: "API", Status: types.StatusCompleted},
			{ID: "2.1.2", Title: "DB", Status: types.StatusPending},
		}},
		{ID: "2.2", Title: "Frontend", Status: types.StatusCompleted},
	}
	top := []types.ChildSummary{
		{ID: "1", Title: "Setup", Status: types.StatusCompleted},
		{ID: "2", Title: "Build", Status: types.StatusPending},
	}
	return NewTree(docs, top)
}

func TestTreeStatusPrefersOwnDocument(t *testing.T) {
	tree := sampleTree()

	tests := []struct {
		id   types.PhaseID
		want types.Status
	}{
		{id: "2.1", want: types.StatusInProgress}, // doc wins over parent summary
		{id: "2.1.1", want: types.StatusCompleted},
		{id: "2", want: types.StatusInProgress}, // doc wins over phases.json
		{id: "1", want: types.StatusCompleted},  // phases.json only
	}
	for _, tt := range tests {
		t.Run(string(tt.id), func(t *testing.T) {
			got, ok := tree.StatusOf(tt.id)
			if !ok || got != tt.want {
				t.Errorf("StatusOf(%q) = (%q, %v), want %q", tt.id, got, ok, tt.want)
			}
		})
	}

	if _, ok := tree.StatusOf("7"); ok {
		t.Error("StatusOf(unknown) reported ok")
	}
}

func TestTreeLinksAndAncestors(t *testing.T) {
	tree := sampleTree()

	children := tree.Children("2")
	if len(children) != 2 || children[0].ID != "2.1" || children[1].ID != "2.2" {
		t.Fatalf("Children(2) = %v", ids(children))
	}

	chain := tree.Ancestors("2.1.2")
	if got := ids(chain); len(got) != 2 || got[0] != "2" || got[1] != "2.1" {
		t.Errorf("Ancestors(2.1.2) = %v, want [2 2.1]", got)
	}

	parent, ok := tree.Parent("2.1.1")
	if !ok || parent.ID != "2.1" {
		t.Errorf("Parent(2.1.1) = %v, want 2.1", parent)
	}

	roots := tree.Roots()
	if got := ids(roots); len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Errorf("Roots() = %v, want [1 2]", got)
	}
}

func TestTreeTrueLeaf(t *testing.T) {
	tree := sampleTree()

	tests := []struct {
		id   types.PhaseID
		want bool
	}{
		{id: "2", want: false},
		{id: "2.1", want: false},
		{id: "2.2", want: true},   // own document without phases
		{id: "2.1.1", want: true}, // summary only
	}
	for _, tt := range tests {
		n, ok := tree.Get(tt.id)
		if !ok {
			t.Fatalf("Get(%q) not found", tt.id)
		}
		if n.IsTrueLeaf() != tt.want {
			t.Errorf("IsTrueLeaf(%q) = %v, want %v", tt.id, n.IsTrueLeaf(), tt.want)
		}
	}
}

func TestTreeSkipsMissingIntermediate(t *testing.T) {
	tree := NewTree([]*types.PhaseNode{
		{ID: "5", Title: "Root"},
		{ID: "5.1.1", Title: "Deep"},
	}, nil)

	parent, ok := tree.Parent("5.1.1")
	if !ok || parent.ID != "5" {
		t.Errorf("Parent(5.1.1) = %v, want nearest known ancestor 5", parent)
	}
}

func ids(nodes []*Node) []types.PhaseID {
	out := make([]types.PhaseID, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}
