package defuse

import (
	"sync"

	"github.com/kper/funky/graph"
	"github.com/kper/funky/ir"
	"github.com/kper/funky/state"
)

// Chain is the per-(function, variable) sparse control-flow subgraph
// described in spec.md §4.3: a demand-driven, cached skip-list over the
// program points that matter to one variable. The sparse solver consults a
// Chain instead of scanning every instruction between two facts.
type Chain struct {
	mu      sync.Mutex
	fn      *ir.Function
	blocks  ir.BlockResolver
	varName string
	st      *state.State

	cache map[int]*cachedGraph
}

type cachedGraph struct {
	definedAtEntry bool
	inclusive      bool
	g              *graph.Graph
	flatPCs        []int
	entryFact      state.Fact
}

// New builds a Chain for variable varName in function fn. blocks must have
// been produced by ir.ResolveBlocks for fn's enclosing program.
func New(fn *ir.Function, blocks ir.BlockResolver, varName string, st *state.State) *Chain {
	return &Chain{
		fn:      fn,
		blocks:  blocks,
		varName: varName,
		st:      st,
		cache:   make(map[int]*cachedGraph),
	}
}

// Demand returns the subgraph rooted at startPC, excluding the instruction at
// startPC itself (the caller has already turned it into a Fact). One result
// is cached per startPC; a call whose definedAtEntry or inclusiveness differs
// from the cached entry's rebuilds and replaces it.
func (c *Chain) Demand(startPC int, definedAtEntry bool) (*graph.Graph, error) {
	return c.build(startPC, definedAtEntry, false)
}

// DemandInclusive is Demand, but the instruction at startPC is itself
// considered for relevance (used when startPC is a branch target rather than
// the pc right after an already-processed definition/use).
func (c *Chain) DemandInclusive(startPC int, definedAtEntry bool) (*graph.Graph, error) {
	return c.build(startPC, definedAtEntry, true)
}

func (c *Chain) build(startPC int, definedAtEntry, inclusive bool) (*graph.Graph, error) {
	c.mu.Lock()
	if cached, ok := c.cache[startPC]; ok && cached.definedAtEntry == definedAtEntry && cached.inclusive == inclusive {
		g := cached.g
		c.mu.Unlock()
		return g, nil
	}
	c.mu.Unlock()

	from := startPC
	if !inclusive {
		from++
	}

	seq, err := buildSequence(c.fn, c.blocks, from, -1)
	if err != nil {
		return nil, err
	}
	retained, _, stopped := filterRelevant(seq, c.varName, definedAtEntry)
	if !stopped {
		retained = append(retained, functionEnd(c.fn))
	}
	flat := flattenRetained(retained)

	g, entryFact, flatPCs := c.emit(startPC, flat)

	c.mu.Lock()
	c.cache[startPC] = &cachedGraph{definedAtEntry: definedAtEntry, inclusive: inclusive, g: g, flatPCs: flatPCs, entryFact: entryFact}
	c.mu.Unlock()

	return g, nil
}

func (c *Chain) emit(startPC int, flat []Node) (*graph.Graph, state.Fact, []int) {
	v := c.st.EnsureVar(c.fn.Name, c.varName)
	g := graph.New()

	pcs := make([]int, 0, len(flat)+1)
	pcs = append(pcs, startPC)
	for _, n := range flat {
		pcs = append(pcs, n.PC)
	}

	for i := 0; i < len(pcs)-1; i++ {
		from := c.st.NewFact(c.fn.Name, pcs[i], pcs[i+1], v)
		to := c.st.NewFact(c.fn.Name, pcs[i+1], pcs[i+1], v)
		if pcs[i+1] == pcs[i]+1 {
			g.AddNormal(from, to)
		} else {
			g.AddNormalCurved(from, to)
		}
	}

	nextPC := startPC
	if len(pcs) > 1 {
		nextPC = pcs[1]
	}
	entryFact := c.st.NewFact(c.fn.Name, startPC, nextPC, v)
	return g, entryFact, pcs
}

// Cache primes the chain's cache for startPC directly, bypassing a rebuild.
// The solver uses this when it has already derived the subgraph through some
// other path (e.g. a summary reused across call sites).
func (c *Chain) Cache(startPC int, definedAtEntry bool, g *graph.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[startPC] = &cachedGraph{definedAtEntry: definedAtEntry, g: g}
}

// CacheWhenAlreadyDefined primes the cache for startPC under the
// definedAtEntry=true regime, replacing any existing entry for startPC
// (including a definedAtEntry=false one). Used by call handling, where a callee parameter is known tainted
// on entry regardless of what the chain previously observed for that pc.
func (c *Chain) CacheWhenAlreadyDefined(startPC int, g *graph.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[startPC] = &cachedGraph{definedAtEntry: true, g: g}
}

// ForceRemoveIfOutdated evicts startPC's cache entry when it was built under
// a different definedAtEntry regime than the one now required, so a
// subsequent Demand/DemandInclusive rebuilds it instead of returning a stale
// subgraph.
func (c *Chain) ForceRemoveIfOutdated(startPC int, definedAtEntry bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.cache[startPC]; ok && cached.definedAtEntry != definedAtEntry {
		delete(c.cache, startPC)
	}
}

// GetNext returns every program point of startPC's cached subgraph after
// startPC itself, in chain order. The second result is false if startPC has
// never been demanded.
func (c *Chain) GetNext(startPC int) ([]int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.cache[startPC]
	if !ok || len(cached.flatPCs) < 2 {
		return nil, ok
	}
	return cached.flatPCs[1:], true
}

// GetEntryFact returns the self-loop fact recorded at startPC, if the chain
// has been demanded there.
func (c *Chain) GetEntryFact(startPC int) (state.Fact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cached, ok := c.cache[startPC]
	if !ok {
		return state.Fact{}, false
	}
	return cached.entryFact, true
}

// GetFactsAt delegates to the backing State for the facts cached at pc in
// this chain's function.
func (c *Chain) GetFactsAt(pc int) []state.Fact {
	return c.st.GetFactsAt(c.fn.Name, pc)
}

// PointsTo reports whether this chain's variable is the memory cell at
// offset, letting a Load/Store flow function ask "does the variable I'm
// tracking alias this access" without inspecting Variable directly.
func (c *Chain) PointsTo(offset int) bool {
	v, ok := c.st.GetVar(c.fn.Name, c.varName)
	return ok && v.IsMemory && v.MemoryOffset == offset
}
