package store

import (
	"context"
	"testing"
)

// chain builds a -> b -> c -> d along reports_to.
func chain(t *testing.T) *Store {
	t.Helper()
	s := createTestStore(t)
	createTestOrg(t, s, "org-a", "A")
	for _, id := range []string{"a", "b", "c", "d"} {
		createTestEntity(t, s, "org-a", id, "employee", "", id)
	}
	createTestEdge(t, s, "org-a", "r-ab", "a", "b", "reports_to", false)
	createTestEdge(t, s, "org-a", "r-bc", "b", "c", "reports_to", false)
	createTestEdge(t, s, "org-a", "r-cd", "c", "d", "reports_to", false)
	return s
}

func TestReachable(t *testing.T) {
	s := chain(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		start, target string
		relType       string
		maxDepth      int
		found         bool
		truncated     bool
		depth         int
	}{
		{"self", "a", "a", "reports_to", 5, true, false, 0},
		{"direct", "a", "b", "reports_to", 5, true, false, 1},
		{"transitive", "a", "d", "reports_to", 5, true, false, 3},
		{"against direction", "d", "a", "reports_to", 5, false, false, 0},
		{"other type", "a", "b", "parent_of", 5, false, false, 0},
		{"budget exhausted", "a", "d", "reports_to", 2, false, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Reachable(ctx, "org-a", tt.relType, tt.start, tt.target, tt.maxDepth)
			if err != nil {
				t.Fatalf("Reachable() failed: %v", err)
			}
			if got.Found != tt.found || got.Truncated != tt.truncated || got.Depth != tt.depth {
				t.Errorf("Reachable() = %+v, want found=%v truncated=%v depth=%d",
					got, tt.found, tt.truncated, tt.depth)
			}
		})
	}
}

func TestReachable_TerminatesOnCycle(t *testing.T) {
	s := chain(t)
	ctx := context.Background()
	createTestEntity(t, s, "org-a", "x", "employee", "", "x")
	// d -> b closes a loop b -> c -> d -> b that never reaches x.
	createTestEdge(t, s, "org-a", "r-db", "d", "b", "reports_to", false)

	got, err := s.Reachable(ctx, "org-a", "reports_to", "a", "x", 50)
	if err != nil {
		t.Fatalf("Reachable() failed: %v", err)
	}
	if got.Found || got.Truncated {
		t.Errorf("Reachable() = %+v, want not found", got)
	}
}

func TestReachable_IgnoresClosedEdgesAndOtherTenants(t *testing.T) {
	s := chain(t)
	ctx := context.Background()
	if err := s.CloseRelationship(ctx, "org-a", "r-bc", "tester", testNow, false); err != nil {
		t.Fatalf("CloseRelationship() failed: %v", err)
	}
	got, err := s.Reachable(ctx, "org-a", "reports_to", "a", "d", 10)
	if err != nil {
		t.Fatalf("Reachable() failed: %v", err)
	}
	if got.Found {
		t.Error("path through a closed edge should not count")
	}

	createTestOrg(t, s, "org-b", "B")
	got, err = s.Reachable(ctx, "org-b", "reports_to", "a", "b", 10)
	if err != nil {
		t.Fatalf("Reachable() failed: %v", err)
	}
	if got.Found {
		t.Error("edges of org-a are visible from org-b")
	}
}

func TestHierarchy(t *testing.T) {
	s := chain(t)
	ctx := context.Background()
	createTestEntity(t, s, "org-a", "e", "employee", "", "e")
	createTestEdge(t, s, "org-a", "r-eb", "e", "b", "reports_to", false)

	down, err := s.Hierarchy(ctx, "org-a", "b", "reports_to", Incoming, 5)
	if err != nil {
		t.Fatalf("Hierarchy() failed: %v", err)
	}
	want := []HierarchyNode{
		{EntityID: "a", ParentID: "b", RelationshipID: "r-ab", Depth: 1},
		{EntityID: "e", ParentID: "b", RelationshipID: "r-eb", Depth: 1},
	}
	if len(down) != len(want) {
		t.Fatalf("Hierarchy() returned %+v, want %+v", down, want)
	}
	for i := range want {
		if down[i] != want[i] {
			t.Errorf("node %d = %+v, want %+v", i, down[i], want[i])
		}
	}

	up, err := s.Hierarchy(ctx, "org-a", "a", "reports_to", Outgoing, 2)
	if err != nil {
		t.Fatalf("Hierarchy() failed: %v", err)
	}
	if len(up) != 2 || up[0].EntityID != "b" || up[1].EntityID != "c" || up[1].Depth != 2 {
		t.Errorf("Hierarchy(up, depth 2) = %+v", up)
	}
}
