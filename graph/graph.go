// Package graph implements the exploded-supergraph representation from
// spec.md §4.1: a tagged collection of edges between state.Facts, with
// insertion order preserved and no pointers — identity lives entirely in
// the (from, to) Fact keys.
package graph

import (
	"sync"

	"github.com/kper/funky/state"
)

// Tag identifies an edge's kind, per spec.md §3.
type Tag int

const (
	// Normal is an intraprocedural edge. Curved marks a control-flow edge
	// drawn to a non-adjacent pc (jump/branch/table targets) rather than
	// straight-line pc->pc+1 flow; it carries no different semantics, only
	// a rendering hint, per spec.md §4.1.
	Normal Tag = iota
	Call
	Return
	CallToReturn
	Summary
	// Path is the worklist-maintained realisable-path edge; only the fast
	// and sparse solvers use it internally (spec.md §3).
	Path
)

func (t Tag) String() string {
	switch t {
	case Normal:
		return "Normal"
	case Call:
		return "Call"
	case Return:
		return "Return"
	case CallToReturn:
		return "CallToReturn"
	case Summary:
		return "Summary"
	case Path:
		return "Path"
	default:
		return "Unknown"
	}
}

// Edge is one typed edge between two facts.
type Edge struct {
	Tag    Tag
	From   state.Fact
	To     state.Fact
	Curved bool
}

type edgeKey struct {
	tag  Tag
	from state.Key
	to   state.Key
}

// Graph is a mapping from edge-tag to an ordered sequence of edges, with
// insertion order preserved. Naive tolerates duplicates; fast/sparse enforce
// uniqueness on Path edges through Propagate. Graph grows monotonically
// within one analysis — there is no eviction.
type Graph struct {
	mu sync.RWMutex

	edges   []Edge
	seen    map[edgeKey]struct{}
	byTag   map[Tag][]Edge
	touched map[state.Key]struct{}
}

// New creates an empty Graph.
func New() *Graph {
	return &Graph{
		seen:    make(map[edgeKey]struct{}),
		byTag:   make(map[Tag][]Edge),
		touched: make(map[state.Key]struct{}),
	}
}

func (g *Graph) appendLocked(e Edge) {
	g.edges = append(g.edges, e)
	g.byTag[e.Tag] = append(g.byTag[e.Tag], e)
	g.touched[e.From.Key()] = struct{}{}
	g.touched[e.To.Key()] = struct{}{}
}

// add appends e unconditionally, regardless of prior presence, matching
// naive's duplicate-tolerant behaviour (spec.md §4.1).
func (g *Graph) add(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendLocked(e)
}

// AddNormal appends a straight Normal edge from -> to.
func (g *Graph) AddNormal(from, to state.Fact) {
	g.add(Edge{Tag: Normal, From: from, To: to})
}

// AddNormalCurved appends a Normal edge drawn curved (jump/branch/table
// target, rather than straight-line pc->pc+1 flow).
func (g *Graph) AddNormalCurved(from, to state.Fact) {
	g.add(Edge{Tag: Normal, From: from, To: to, Curved: true})
}

// AddCall appends a Call edge from a caller-site fact to a callee-entry fact.
func (g *Graph) AddCall(from, to state.Fact) {
	g.add(Edge{Tag: Call, From: from, To: to})
}

// AddReturn appends a Return edge from a callee-exit fact to a caller
// return-site fact.
func (g *Graph) AddReturn(from, to state.Fact) {
	g.add(Edge{Tag: Return, From: from, To: to})
}

// AddCallToReturn appends a CallToReturn edge bypassing a call site.
func (g *Graph) AddCallToReturn(from, to state.Fact) {
	g.add(Edge{Tag: CallToReturn, From: from, To: to})
}

// AddSummary appends a Summary edge from a call-site fact to a return-site
// fact, suppressing exact (from, to) duplicates (spec.md §4.1).
func (g *Graph) AddSummary(from, to state.Fact) bool {
	return g.addUnique(Edge{Tag: Summary, From: from, To: to})
}

// Propagate appends a Path edge, enforcing uniqueness on the (from, to) key
// per spec.md §4.1/§4.5/§8 property 6: no two Path edges share the same
// (from-fact, to-fact) key. Returns true if the edge was newly added.
func (g *Graph) Propagate(from, to state.Fact) bool {
	return g.addUnique(Edge{Tag: Path, From: from, To: to})
}

func (g *Graph) addUnique(e Edge) bool {
	key := edgeKey{tag: e.Tag, from: e.From.Key(), to: e.To.Key()}

	g.mu.RLock()
	_, exists := g.seen[key]
	g.mu.RUnlock()
	if exists {
		return false
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.seen[key]; exists {
		return false
	}
	g.seen[key] = struct{}{}
	g.appendLocked(e)
	return true
}

// HasPath reports whether a Path edge with this exact (from, to) key has
// already been propagated.
func (g *Graph) HasPath(from, to state.Fact) bool {
	key := edgeKey{tag: Path, from: from.Key(), to: to.Key()}
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.seen[key]
	return ok
}

// Edges returns every edge in insertion order.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// EdgesByTag returns every edge of the given tag, in insertion order.
func (g *Graph) EdgesByTag(tag Tag) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	src := g.byTag[tag]
	out := make([]Edge, len(src))
	copy(out, src)
	return out
}

// Flatten iterates every distinct fact key touched by any edge, as a from or
// a to endpoint.
func (g *Graph) Flatten() []state.Key {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]state.Key, 0, len(g.touched))
	for k := range g.touched {
		out = append(out, k)
	}
	return out
}

// Len returns the total number of edges recorded.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}
