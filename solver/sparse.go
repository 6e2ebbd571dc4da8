package solver

import (
	"github.com/kper/funky/defuse"
	"github.com/kper/funky/graph"
	"github.com/kper/funky/ir"
	"github.com/kper/funky/state"
)

type chainKey struct {
	Function string
	VarName  string
}

// sparseSolver runs the same outer worklist as fastSolver but resolves
// intraprocedural flow through defuse Chains instead of walking every
// instruction, per spec.md §4.6.
type sparseSolver struct {
	ctx     *Ctx
	initial SparseInitialFlowFunction
	normal  SparseNormalFlowFunction

	worklist []graph.Edge

	incoming   map[factKey][]state.Fact
	endSummary map[factKey][]state.Fact
	chains     map[chainKey]*defuse.Chain
}

// Sparse runs the sparse tabulation for req, using the taint flow
// functions.
func Sparse(ctx *Ctx, req Request) error {
	return SparseWith(ctx, req, TaintSparseInitialFlowFunction{}, TaintSparseNormalFlowFunction{})
}

// SparseWith runs the sparse tabulation with caller-supplied flow functions.
func SparseWith(ctx *Ctx, req Request, initial SparseInitialFlowFunction, normal SparseNormalFlowFunction) error {
	fn, err := ctx.function(req.Function)
	if err != nil {
		return err
	}
	if req.PC < 0 || req.PC > len(fn.Instrs) {
		return malformed(req.Function, req.PC, "request pc out of range")
	}

	s := &sparseSolver{
		ctx:        ctx,
		initial:    initial,
		normal:     normal,
		incoming:   make(map[factKey][]state.Fact),
		endSummary: make(map[factKey][]state.Fact),
		chains:     make(map[chainKey]*defuse.Chain),
	}

	ctx.State.InitFunction(fn, req.PC)
	for _, seed := range initial.SparseInitial(ctx, fn, req.PC) {
		s.propagate(seed, seed)
	}

	return s.forward()
}

func (s *sparseSolver) chainFor(fn *ir.Function, varName string) *defuse.Chain {
	key := chainKey{Function: fn.Name, VarName: varName}
	c, ok := s.chains[key]
	if !ok {
		c = defuse.New(fn, s.ctx.Blocks, varName, s.ctx.State)
		s.chains[key] = c
	}
	return c
}

func (s *sparseSolver) propagate(from, to state.Fact) {
	if s.ctx.Graph.Propagate(from, to) {
		s.worklist = append(s.worklist, graph.Edge{Tag: graph.Path, From: from, To: to})
	}
}

func (s *sparseSolver) forward() error {
	for len(s.worklist) > 0 {
		if err := s.ctx.checkFactBudget(); err != nil {
			return err
		}

		edge := s.worklist[0]
		s.worklist = s.worklist[1:]
		d1, d2 := edge.From, edge.To

		fn, err := s.ctx.function(d2.Function)
		if err != nil {
			return err
		}

		instr, ok := instructionAt(fn, d2.NextPC)
		if !ok {
			if err := s.endProcedure(d1, d2); err != nil {
				return err
			}
			continue
		}

		switch in := instr.(type) {
		case *ir.Call:
			if err := s.handleCall(fn, d1, d2, in.Callee, in.Params, in.Dests); err != nil {
				return err
			}
		case *ir.CallIndirect:
			if len(in.Callees) == 0 {
				s.ctx.Logger.Printf("solver: %s:%d call_indirect has no resolved callees, table slot left untainted", fn.Name, d2.NextPC)
			}
			for _, callee := range in.Callees {
				if err := s.handleCall(fn, d1, d2, callee, in.Params, in.Dests); err != nil {
					return err
				}
			}
		case *ir.Return:
			targets, err := s.normal.SparseFlow(s.ctx, s.chainFor(fn, d2.Var.Name), fn, d2.NextPC, d2)
			if err != nil {
				return err
			}
			for _, t := range targets {
				addFlowEdge(s.ctx, d2, t)
				s.propagate(d1, t.Fact)
			}
			if err := s.endProcedure(d1, d2); err != nil {
				return err
			}
		default:
			targets, err := s.normal.SparseFlow(s.ctx, s.chainFor(fn, d2.Var.Name), fn, d2.NextPC, d2)
			if err != nil {
				return err
			}
			for _, t := range targets {
				addFlowEdge(s.ctx, d2, t)
				s.propagate(d1, t.Fact)
			}
		}
	}
	return nil
}

func (s *sparseSolver) handleCall(callerFn *ir.Function, d1, d2 state.Fact, callee string, params, dests []string) error {
	calleeFn, err := s.ctx.function(callee)
	if err != nil {
		return malformed(callerFn.Name, d2.NextPC, "call to unknown function %q", callee)
	}
	s.ctx.State.InitFunction(calleeFn, 0)

	for _, d3 := range passArgs(s.ctx, d2, calleeFn, params) {
		s.ctx.Graph.AddCall(d2, d3)
		s.propagate(d3, d3)

		// Prime the callee's defuse chain for d3's variable: parameters and
		// globals are already defined on entry (cache_when_already_defined);
		// memory and taut are not (plain cache), per spec.md §4.6.
		chain := s.chainFor(calleeFn, d3.Var.Name)
		if d3.Var.IsMemory || d3.Var.IsTaut {
			if _, err := chain.Demand(0, false); err != nil {
				return err
			}
		} else {
			if _, err := chain.Demand(0, true); err != nil {
				return err
			}
		}

		key := keyOf(d3)
		s.incoming[key] = append(s.incoming[key], d2)

		for _, d4 := range s.endSummary[key] {
			d5s, err := returnVal(s.ctx, calleeFn, d4, callerFn, d2.NextPC, dests)
			if err != nil {
				return err
			}
			for _, d5 := range d5s {
				if s.ctx.Graph.AddSummary(d2, d5) {
					s.propagate(d1, d5)
				}
			}
		}
	}

	for _, ct := range callFlow(s.ctx, callerFn, d2, dests) {
		s.ctx.Graph.AddCallToReturn(d2, ct)
		s.propagate(d1, ct)
	}

	return nil
}

func (s *sparseSolver) endProcedure(d1, d2 state.Fact) error {
	if d1.Function != d2.Function {
		return nil
	}

	key := factKey{Function: d1.Function, PC: d1.NextPC, VarName: d1.Var.Name}
	s.endSummary[key] = append(s.endSummary[key], d2)

	calleeFn, err := s.ctx.function(d2.Function)
	if err != nil {
		return err
	}

	for _, callerFact := range s.incoming[key] {
		callerFn, err := s.ctx.function(callerFact.Function)
		if err != nil {
			return err
		}
		instr, ok := instructionAt(callerFn, callerFact.NextPC)
		if !ok {
			continue
		}
		var dests []string
		switch in := instr.(type) {
		case *ir.Call:
			dests = in.Dests
		case *ir.CallIndirect:
			dests = in.Dests
		default:
			continue
		}

		callerChain := s.chainFor(callerFn, callerFact.Var.Name)
		callerChain.ForceRemoveIfOutdated(callerFact.NextPC, true)

		d5s, err := returnVal(s.ctx, calleeFn, d2, callerFn, callerFact.NextPC, dests)
		if err != nil {
			return err
		}
		for _, d5 := range d5s {
			if s.ctx.Graph.AddSummary(callerFact, d5) {
				for _, pe := range s.ctx.Graph.EdgesByTag(graph.Path) {
					if pe.To.Key() == callerFact.Key() {
						s.propagate(pe.From, d5)
					}
				}
			}
		}
	}

	return nil
}
