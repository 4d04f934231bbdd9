package engine

import (
	"testing"

	"costline/internal/domain"
)

func dep(id, predecessor string) domain.BaselineActivity {
	a := domain.BaselineActivity{ID: id}
	if predecessor != "" {
		a.DependsOn = &predecessor
	}
	return a
}

func TestWouldCycle(t *testing.T) {
	g := newDependencyGraph([]domain.BaselineActivity{
		dep("a", ""),
		dep("b", "a"),
		dep("c", "b"),
	})

	if path := g.wouldCycle("d", "c"); path != nil {
		t.Fatalf("extending the chain is not a cycle: %v", path)
	}
	if path := g.wouldCycle("a", "c"); path == nil {
		t.Fatalf("a -> c closes the loop a -> c -> b -> a")
	} else if path[0] != "a" || path[len(path)-1] != "a" {
		t.Fatalf("cycle path should start and end at the new node: %v", path)
	}
	if path := g.wouldCycle("b", "c"); path == nil {
		t.Fatalf("b -> c closes the loop b -> c -> b")
	}
}

func TestEnsureTransition(t *testing.T) {
	cases := []struct {
		from, to string
		ok       bool
	}{
		{domain.StatusNotStarted, domain.StatusActive, true},
		{domain.StatusActive, domain.StatusComplete, true},
		{domain.StatusNotStarted, domain.StatusComplete, false},
		{domain.StatusComplete, domain.StatusActive, false},
		{domain.StatusActive, domain.StatusNotStarted, false},
	}
	for _, tc := range cases {
		err := ensureTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%s -> %s: expected rejection", tc.from, tc.to)
		}
	}
}
