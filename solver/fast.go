package solver

import (
	"github.com/kper/funky/graph"
	"github.com/kper/funky/ir"
	"github.com/kper/funky/state"
)

type factKey struct {
	Function string
	PC       int
	VarName  string
}

func keyOf(f state.Fact) factKey {
	return factKey{Function: f.Function, PC: f.PC, VarName: f.Var.Name}
}

// fastSolver implements the worklist IFDS tabulation of spec.md §4.5. It is
// built around the pluggable InitialFlowFunction/NormalFlowFunction
// interfaces so the taint flavour (the only one shipped) is never hard-coded
// into the worklist mechanics themselves.
type fastSolver struct {
	ctx     *Ctx
	initial InitialFlowFunction
	normal  NormalFlowFunction

	worklist []graph.Edge

	incoming   map[factKey][]state.Fact
	endSummary map[factKey][]state.Fact
}

// Fast runs the fast (worklist IFDS, with procedure summaries) tabulation
// for req, using the taint flow functions.
func Fast(ctx *Ctx, req Request) error {
	return FastWith(ctx, req, TaintInitialFlowFunction{}, TaintNormalFlowFunction{})
}

// FastWith runs the fast tabulation with caller-supplied flow functions, so
// a future non-taint analysis can reuse the same worklist mechanics.
func FastWith(ctx *Ctx, req Request, initial InitialFlowFunction, normal NormalFlowFunction) error {
	fn, err := ctx.function(req.Function)
	if err != nil {
		return err
	}
	if req.PC < 0 || req.PC > len(fn.Instrs) {
		return malformed(req.Function, req.PC, "request pc out of range")
	}

	s := &fastSolver{
		ctx:        ctx,
		initial:    initial,
		normal:     normal,
		incoming:   make(map[factKey][]state.Fact),
		endSummary: make(map[factKey][]state.Fact),
	}

	ctx.State.InitFunction(fn, req.PC)
	seeds := initial.Initial(ctx, fn, req.PC)
	tautFacts := pacemaker(ctx, fn)
	for _, seed := range seeds {
		for _, tf := range tautFacts {
			s.propagate(seed, tf)
		}
		s.propagate(seed, seed)
	}

	return s.forward()
}

// pacemaker materialises a taut fact at every pc of fn and chains them with
// Normal edges, per spec.md §4.5. The caller propagates Path edges from the
// seed fact to each of these.
func pacemaker(ctx *Ctx, fn *ir.Function) []state.Fact {
	tautVar := ctx.State.EnsureVar(fn.Name, "taut")
	facts := make([]state.Fact, 0, len(fn.Instrs)+1)
	for pc := 0; pc <= len(fn.Instrs); pc++ {
		next := pc + 1
		if pc == len(fn.Instrs) {
			next = pc
		}
		facts = append(facts, ctx.State.CacheFact(ctx.State.NewFact(fn.Name, pc, next, tautVar)))
	}
	for i := 0; i < len(facts)-1; i++ {
		ctx.Graph.AddNormal(facts[i], facts[i+1])
	}
	return facts
}

func (s *fastSolver) propagate(from, to state.Fact) {
	if s.ctx.Graph.Propagate(from, to) {
		s.worklist = append(s.worklist, graph.Edge{Tag: graph.Path, From: from, To: to})
	}
}

func (s *fastSolver) forward() error {
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
			for _, t := range s.normal.Flow(s.ctx, fn, d2.NextPC, d2) {
				addFlowEdge(s.ctx, d2, t)
				s.propagate(d1, t.Fact)
			}
			if err := s.endProcedure(d1, d2); err != nil {
				return err
			}
		default:
			for _, t := range s.normal.Flow(s.ctx, fn, d2.NextPC, d2) {
				addFlowEdge(s.ctx, d2, t)
				s.propagate(d1, t.Fact)
			}
		}
	}
	return nil
}

func addFlowEdge(ctx *Ctx, from state.Fact, t FlowTarget) {
	if t.Curved {
		ctx.Graph.AddNormalCurved(from, t.Fact)
	} else {
		ctx.Graph.AddNormal(from, t.Fact)
	}
}

func (s *fastSolver) handleCall(callerFn *ir.Function, d1, d2 state.Fact, callee string, params, dests []string) error {
	calleeFn, err := s.ctx.function(callee)
	if err != nil {
		return malformed(callerFn.Name, d2.NextPC, "call to unknown function %q", callee)
	}
	s.ctx.State.InitFunction(calleeFn, 0)

	for _, d3 := range passArgs(s.ctx, d2, calleeFn, params) {
		s.ctx.Graph.AddCall(d2, d3)
		s.propagate(d3, d3)

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

// passArgs computes the caller->callee-entry facts for one caller-side
// argument/taut/global/memory fact at a call site, per spec.md §4.5.
func passArgs(ctx *Ctx, d2 state.Fact, calleeFn *ir.Function, params []string) []state.Fact {
	var out []state.Fact

	switch {
	case d2.Var.IsTaut:
		v := ctx.State.EnsureVar(calleeFn.Name, "taut")
		out = append(out, ctx.State.CacheFact(ctx.State.NewFact(calleeFn.Name, 0, 0, v)))
	case d2.Var.IsGlobal:
		v := ctx.State.AddGlobalVar(calleeFn.Name, d2.Var.Name)
		out = append(out, ctx.State.CacheFact(ctx.State.NewFact(calleeFn.Name, 0, 0, v)))
	case d2.Var.IsMemory:
		v := ctx.State.AddMemoryVar(calleeFn.Name, d2.Var.MemoryOffset)
		out = append(out, ctx.State.CacheFact(ctx.State.NewFact(calleeFn.Name, 0, 0, v)))
	default:
		for i, p := range params {
			if p == d2.Var.Name && i < len(calleeFn.Params) {
				v := ctx.State.EnsureVar(calleeFn.Name, calleeFn.Params[i])
				out = append(out, ctx.State.CacheFact(ctx.State.NewFact(calleeFn.Name, 0, 0, v)))
			}
		}
	}
	return out
}

// callFlow computes the call-to-return facts: arguments at the call site not
// overwritten by dests (and not taut/global, which flow via Call/Return
// instead) are carried across the call unchanged.
func callFlow(ctx *Ctx, fn *ir.Function, d2 state.Fact, dests []string) []state.Fact {
	if d2.Var.IsTaut || d2.Var.IsGlobal {
		return nil
	}
	for _, d := range dests {
		if d == d2.Var.Name {
			return nil
		}
	}
	to := ctx.State.CacheFact(ctx.State.NewFact(fn.Name, d2.NextPC, d2.NextPC+1, d2.Var))
	return []state.Fact{to}
}

// returnVal maps a callee exit fact d4 to the caller-side return-site
// fact(s), per spec.md §4.5. callerPC is the call instruction's own pc; the
// result lands at (callerPC, callerPC+1).
func returnVal(ctx *Ctx, calleeFn *ir.Function, d4 state.Fact, callerFn *ir.Function, callerPC int, dests []string) ([]state.Fact, error) {
	switch {
	case d4.Var.IsTaut:
		v := ctx.State.EnsureVar(callerFn.Name, "taut")
		return []state.Fact{ctx.State.CacheFact(ctx.State.NewFact(callerFn.Name, callerPC, callerPC+1, v))}, nil
	case d4.Var.IsMemory:
		v := ctx.State.AddMemoryVar(callerFn.Name, d4.Var.MemoryOffset)
		return []state.Fact{ctx.State.CacheFact(ctx.State.NewFact(callerFn.Name, callerPC, callerPC+1, v))}, nil
	case d4.Var.IsGlobal:
		v := ctx.State.AddGlobalVar(callerFn.Name, d4.Var.Name)
		return []state.Fact{ctx.State.CacheFact(ctx.State.NewFact(callerFn.Name, callerPC, callerPC+1, v))}, nil
	default:
		var out []state.Fact
		for _, instr := range calleeFn.Instrs {
			ret, ok := instr.(*ir.Return)
			if !ok {
				continue
			}
			for i, src := range ret.Srcs {
				if src == d4.Var.Name && i < len(dests) {
					v := ctx.State.EnsureVar(callerFn.Name, dests[i])
					out = append(out, ctx.State.CacheFact(ctx.State.NewFact(callerFn.Name, callerPC, callerPC+1, v)))
				}
			}
		}
		return out, nil
	}
}

func (s *fastSolver) endProcedure(d1, d2 state.Fact) error {
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
