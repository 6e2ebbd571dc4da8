// Package solver implements the three tabulation algorithms of spec.md §4.4-
// §4.6 — naive, fast, and sparse — over the ir/state/graph/defuse packages,
// plus the pluggable flow-function strategies they're built from and the
// all_sinks reachability query of spec.md §6.
package solver

import (
	"log"
	"os"

	"github.com/kper/funky/graph"
	"github.com/kper/funky/ir"
	"github.com/kper/funky/state"
)

// Request identifies a taint source: the function and pc to seed, and an
// advisory variable name. The solver keys off (Function, PC) to locate the
// entry; Variable only names the source for reporting.
type Request struct {
	Function string
	PC       int
	Variable string
}

// Ctx bundles the shared, read-mostly context every tabulation algorithm
// needs: the program being analysed and the precomputed block/call
// resolvers, plus the State/Graph the analysis accumulates into.
//
// MaxFacts, when non-zero, caps the number of distinct facts State may hold;
// exceeding it turns spec.md's "unreachable in practice" ceiling into an
// actually reachable ResourceExhaustedError. Logger receives warnings that
// don't fail the analysis (spec.md §7); NewCtx sets it to a fresh stderr
// logger and it is never read from a package-level global, matching this
// codebase's lineage of passing a logger down rather than reaching for one.
type Ctx struct {
	Program      *ir.Program
	State        *state.State
	Graph        *graph.Graph
	Blocks       ir.BlockResolver
	Calls        ir.CallResolver
	MaxFacts     int
	ParallelInit bool
	Logger       *log.Logger
}

// NewCtx builds a Ctx for prog, with a fresh State and Graph and freshly
// resolved block/call maps.
func NewCtx(prog *ir.Program) *Ctx {
	return &Ctx{
		Program: prog,
		State:   state.New(),
		Graph:   graph.New(),
		Blocks:  ir.ResolveBlocks(prog),
		Calls:   ir.ResolveCalls(prog),
		Logger:  log.New(os.Stderr, "", log.LstdFlags),
	}
}

// checkFactBudget returns a ResourceExhaustedError once the state holds more
// than MaxFacts distinct facts. A MaxFacts of 0 means unbounded.
func (c *Ctx) checkFactBudget() error {
	if c.MaxFacts <= 0 {
		return nil
	}
	if n := c.State.Len(); n > c.MaxFacts {
		return resourceExhausted(c.MaxFacts, n)
	}
	return nil
}

func (c *Ctx) function(name string) (*ir.Function, error) {
	fn := c.Program.FunctionByName(name)
	if fn == nil {
		return nil, malformed(name, 0, "unknown function")
	}
	return fn, nil
}

func instructionAt(fn *ir.Function, pc int) (ir.Instruction, bool) {
	if pc < 0 || pc >= len(fn.Instrs) {
		return nil, false
	}
	return fn.Instrs[pc], true
}
