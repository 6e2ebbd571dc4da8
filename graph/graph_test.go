package graph_test

import (
	"sync"
	"testing"

	"github.com/kper/funky/graph"
	"github.com/kper/funky/state"
)

func factAt(pc, nextPC int, name string) state.Fact {
	s := state.New()
	return s.CacheFact(s.NewFact("test", pc, nextPC, s.EnsureVar("test", name)))
}

func TestAddNormalIsDuplicateTolerant(t *testing.T) {
	g := graph.New()
	a, b := factAt(0, 1, "%0"), factAt(1, 2, "%0")

	g.AddNormal(a, b)
	g.AddNormal(a, b)

	if got := len(g.EdgesByTag(graph.Normal)); got != 2 {
		t.Fatalf("Normal edges = %d, want 2 (duplicate-tolerant)", got)
	}
}

func TestPropagateEnforcesUniqueness(t *testing.T) {
	g := graph.New()
	a, b := factAt(0, 1, "%0"), factAt(1, 2, "%0")

	if !g.Propagate(a, b) {
		t.Fatal("first Propagate should report newly added")
	}
	if g.Propagate(a, b) {
		t.Fatal("second Propagate of the same (from, to) should report not newly added")
	}
	if got := len(g.EdgesByTag(graph.Path)); got != 1 {
		t.Fatalf("Path edges = %d, want 1", got)
	}
	if !g.HasPath(a, b) {
		t.Fatal("HasPath should report true after Propagate")
	}
}

func TestAddSummaryEnforcesUniqueness(t *testing.T) {
	g := graph.New()
	a, b := factAt(0, 1, "%0"), factAt(2, 3, "%1")

	if !g.AddSummary(a, b) {
		t.Fatal("first AddSummary should report newly added")
	}
	if g.AddSummary(a, b) {
		t.Fatal("second AddSummary of the same (from, to) should report not newly added")
	}
}

func TestPropagateIsConcurrencySafe(t *testing.T) {
	g := graph.New()
	a, b := factAt(0, 1, "%0"), factAt(1, 2, "%0")

	const workers = 16
	results := make([]bool, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = g.Propagate(a, b)
		}(i)
	}
	wg.Wait()

	newlyAdded := 0
	for _, r := range results {
		if r {
			newlyAdded++
		}
	}
	if newlyAdded != 1 {
		t.Fatalf("exactly one goroutine should have added the edge, got %d", newlyAdded)
	}
	if got := len(g.EdgesByTag(graph.Path)); got != 1 {
		t.Fatalf("Path edges = %d, want 1", got)
	}
}

func TestEdgesByTagAndFlatten(t *testing.T) {
	g := graph.New()
	a, b, c := factAt(0, 1, "%0"), factAt(1, 2, "%1"), factAt(2, 3, "%2")

	g.AddNormal(a, b)
	g.AddCall(b, c)

	if len(g.Edges()) != 2 {
		t.Fatalf("Edges() = %d, want 2", len(g.Edges()))
	}
	if len(g.EdgesByTag(graph.Normal)) != 1 || len(g.EdgesByTag(graph.Call)) != 1 {
		t.Fatal("unexpected per-tag edge counts")
	}
	if len(g.Flatten()) != 3 {
		t.Fatalf("Flatten() touched keys = %d, want 3", len(g.Flatten()))
	}
}
