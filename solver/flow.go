package solver

import (
	"github.com/kper/funky/defuse"
	"github.com/kper/funky/ir"
	"github.com/kper/funky/state"
)

// FlowTarget is one successor a flow function produces: a fact to propagate
// to, and whether the edge drawn for it is curved (a jump/branch/table
// target) rather than straight-line pc->pc+1 flow.
type FlowTarget struct {
	Fact   state.Fact
	Curved bool
}

// InitialFlowFunction seeds the facts a tabulation starts from at a
// function's entry pc. Taint analysis is the only flavour shipped, but the
// fast/sparse solvers depend on this interface, never the concrete type,
// per spec.md §9.
type InitialFlowFunction interface {
	Initial(ctx *Ctx, fn *ir.Function, pc int) []state.Fact
}

// NormalFlowFunction computes, for one incoming fact at one instruction, the
// facts it flows to. Used by the fast solver directly and by naive's
// per-instruction edge generation conceptually (naive inlines the same
// semantics densely rather than calling this per-fact).
type NormalFlowFunction interface {
	Flow(ctx *Ctx, fn *ir.Function, pc int, from state.Fact) []FlowTarget
}

// SparseInitialFlowFunction is InitialFlowFunction's sparse-solver
// counterpart; for taint flow the seeding is identical, so
// TaintSparseInitialFlowFunction simply delegates.
type SparseInitialFlowFunction interface {
	SparseInitial(ctx *Ctx, fn *ir.Function, pc int) []state.Fact
}

// SparseNormalFlowFunction computes, for one incoming fact, the next facts
// to propagate to by consulting a variable's defuse Chain rather than
// walking every instruction between pc and the next relevant point.
type SparseNormalFlowFunction interface {
	SparseFlow(ctx *Ctx, chain *defuse.Chain, fn *ir.Function, pc int, from state.Fact) ([]FlowTarget, error)
}

// TaintInitialFlowFunction seeds a single self-loop taut fact at the
// request's entry pc; taint analysis has no other initial flow.
type TaintInitialFlowFunction struct{}

func (TaintInitialFlowFunction) Initial(ctx *Ctx, fn *ir.Function, pc int) []state.Fact {
	taut := ctx.State.EnsureVar(fn.Name, "taut")
	return []state.Fact{ctx.State.NewFact(fn.Name, pc, pc, taut)}
}

// TaintSparseInitialFlowFunction is the sparse-solver twin of
// TaintInitialFlowFunction; taint seeding does not differ between the two
// solvers.
type TaintSparseInitialFlowFunction struct{}

func (TaintSparseInitialFlowFunction) SparseInitial(ctx *Ctx, fn *ir.Function, pc int) []state.Fact {
	return TaintInitialFlowFunction{}.Initial(ctx, fn, pc)
}

// TaintSparseNormalFlowFunction implements the sparse solver's normal-flow
// step of spec.md §4.6: rather than re-deriving kill/assignment semantics
// instruction by instruction, it asks the variable's defuse Chain for the
// next relevant program point(s) from pc and turns those hops directly into
// FlowTargets, since the Chain was already built from exactly the same
// LHS/RHS relevance rules TaintNormalFlowFunction encodes.
type TaintSparseNormalFlowFunction struct{}

func (TaintSparseNormalFlowFunction) SparseFlow(ctx *Ctx, chain *defuse.Chain, fn *ir.Function, pc int, from state.Fact) ([]FlowTarget, error) {
	if _, ok := chain.GetNext(pc); !ok {
		if _, err := chain.DemandInclusive(pc, true); err != nil {
			return nil, err
		}
	}
	next, _ := chain.GetNext(pc)

	out := make([]FlowTarget, 0, len(next))
	for _, npc := range next {
		to := ctx.State.CacheFact(ctx.State.NewFact(fn.Name, npc, npc, from.Var))
		out = append(out, FlowTarget{Fact: to, Curved: npc != pc+1})

		if npc >= len(fn.Instrs) {
			continue
		}
		// The chain only ever continues from.Var's own value forward; it has
		// no notion of a new destination variable appearing at npc. Consult
		// the instruction there the way TaintNormalFlowFunction.Flow does, so
		// an RHS use of from.Var that defines a different variable is picked
		// up too, rather than only ever replaying from.Var itself.
		for _, t := range (TaintNormalFlowFunction{}).Flow(ctx, fn, npc, to) {
			if t.Fact.Var.Name == from.Var.Name {
				continue
			}
			out = append(out, t)
		}
	}
	return out, nil
}

// TaintNormalFlowFunction implements the per-instruction taint propagation
// step of spec.md §4.5 ("TaintNormalFlowFunction"), restricted to a single
// incoming fact's variable. Call/CallIndirect are handled by the tabulation
// loop itself (pass_args/call_flow), not here; at a Return, Flow yields the
// identity step and the loop then runs end_procedure.
type TaintNormalFlowFunction struct{}

func (TaintNormalFlowFunction) Flow(ctx *Ctx, fn *ir.Function, pc int, from state.Fact) []FlowTarget {
	v := from.Var.Name
	identity := func(targetPC int, curved bool) FlowTarget {
		to := ctx.State.CacheFact(ctx.State.NewFact(fn.Name, targetPC, targetPC, from.Var))
		return FlowTarget{Fact: to, Curved: curved}
	}
	assign := func(dst string, targetPC int) FlowTarget {
		dVar := ctx.State.EnsureVar(fn.Name, dst)
		to := ctx.State.CacheFact(ctx.State.NewFact(fn.Name, targetPC, targetPC, dVar))
		return FlowTarget{Fact: to}
	}

	switch in := fn.Instrs[pc].(type) {
	case *ir.Const:
		if in.Dst == v {
			return nil
		}
		out := []FlowTarget{identity(pc+1, false)}
		if from.Var.IsTaut {
			out = append(out, assign(in.Dst, pc+1))
		}
		return out

	case *ir.Unknown:
		if in.Dst == v {
			return nil
		}
		out := []FlowTarget{identity(pc+1, false)}
		if from.Var.IsTaut {
			out = append(out, assign(in.Dst, pc+1))
		}
		return out

	case *ir.Kill:
		if in.Dst == v {
			return nil
		}
		return []FlowTarget{identity(pc+1, false)}

	case *ir.Assign:
		if in.Dst == v {
			return nil
		}
		out := []FlowTarget{identity(pc+1, false)}
		if in.Src == v {
			out = append(out, assign(in.Dst, pc+1))
		}
		return out

	case *ir.Unop:
		if in.Dst == v {
			return nil
		}
		out := []FlowTarget{identity(pc+1, false)}
		if in.Src == v {
			out = append(out, assign(in.Dst, pc+1))
		}
		return out

	case *ir.BinOp:
		if in.Dst == v {
			return nil
		}
		out := []FlowTarget{identity(pc+1, false)}
		if in.Lhs == v || in.Rhs == v {
			out = append(out, assign(in.Dst, pc+1))
		}
		return out

	case *ir.Phi:
		if in.Dst == v {
			return nil
		}
		out := []FlowTarget{identity(pc+1, false)}
		if in.Lhs == v || in.Rhs == v {
			out = append(out, assign(in.Dst, pc+1))
		}
		return out

	case *ir.Block:
		return []FlowTarget{identity(pc+1, false)}

	case *ir.Jump:
		target, err := ctx.Blocks.BlockPC(fn.Name, in.Label)
		if err != nil {
			return nil
		}
		return []FlowTarget{identity(target, true)}

	case *ir.Conditional:
		var out []FlowTarget
		for _, l := range in.Labels {
			target, err := ctx.Blocks.BlockPC(fn.Name, l)
			if err != nil {
				continue
			}
			out = append(out, identity(target, true))
		}
		if len(in.Labels) == 1 {
			out = append(out, identity(pc+1, false))
		}
		return out

	case *ir.Table:
		var out []FlowTarget
		for _, l := range in.Labels {
			target, err := ctx.Blocks.BlockPC(fn.Name, l)
			if err != nil {
				continue
			}
			out = append(out, identity(target, true))
		}
		return out

	case *ir.Store:
		if from.Var.IsMemory && from.Var.MemoryOffset == in.Off {
			return nil
		}
		out := []FlowTarget{identity(pc+1, false)}
		if in.Src == v || in.Idx == v {
			memVar := ctx.State.AddMemoryVar(fn.Name, in.Off)
			to := ctx.State.CacheFact(ctx.State.NewFact(fn.Name, pc+1, pc+1, memVar))
			out = append(out, FlowTarget{Fact: to})
		}
		return out

	case *ir.Load:
		if in.Dst == v {
			return nil
		}
		out := []FlowTarget{identity(pc+1, false)}
		if in.Src == v || from.Var.IsMemory {
			// Over-approximation, per spec.md §4.5: any tainted memory
			// variable taints the load's destination, not just the one at
			// the matching offset.
			out = append(out, assign(in.Dst, pc+1))
		}
		return out

	case *ir.Return:
		return []FlowTarget{identity(pc+1, false)}

	default:
		return []FlowTarget{identity(pc+1, false)}
	}
}
