package solver

import (
	"golang.org/x/sync/errgroup"

	"github.com/kper/funky/ir"
	"github.com/kper/funky/state"
)

// Naive builds the complete exploded supergraph for req in one eager pass,
// without inter-procedural summaries, per spec.md §4.4.
func Naive(ctx *Ctx, req Request) error {
	fn, err := ctx.function(req.Function)
	if err != nil {
		return err
	}
	if req.PC < 0 || req.PC > len(fn.Instrs) {
		return malformed(req.Function, req.PC, "request pc out of range")
	}

	if ctx.ParallelInit {
		var g errgroup.Group
		for _, f := range ctx.Program.Functions {
			f := f
			g.Go(func() error {
				naiveInitFunction(ctx, f)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for _, f := range ctx.Program.Functions {
			naiveInitFunction(ctx, f)
		}
	}

	for _, f := range ctx.Program.Functions {
		if err := ctx.checkFactBudget(); err != nil {
			return err
		}
		for pc, instr := range f.Instrs {
			if err := naiveStep(ctx, f, pc, instr); err != nil {
				return err
			}
		}
	}
	return nil
}

// naiveInitFunction seeds the dense per-(function, pc) fact table naive
// relies on: init_function at pc 0, then add_statement for every definition
// at every pc, including the synthetic end-of-function pc. The State's
// internal mutex serialises this across the goroutines Naive spawns, so the
// observable result matches a sequential init, per spec.md §5.
func naiveInitFunction(ctx *Ctx, f *ir.Function) {
	ctx.State.InitFunction(f, 0)
	for _, name := range f.Definitions {
		for pc := 0; pc <= len(f.Instrs); pc++ {
			ctx.State.AddStatement(f.Name, "naive-init", pc, name)
		}
	}
}

func naiveStep(ctx *Ctx, fn *ir.Function, pc int, instr ir.Instruction) error {
	facts := ctx.State.GetFactsAt(fn.Name, pc)

	switch in := instr.(type) {
	case *ir.Const:
		naiveKillLike(ctx, fn, pc, facts, in.Dst, true)
	case *ir.Unknown:
		naiveKillLike(ctx, fn, pc, facts, in.Dst, true)
	case *ir.Kill:
		naiveKillLike(ctx, fn, pc, facts, in.Dst, false)
	case *ir.Assign:
		naiveAssignLike(ctx, fn, pc, facts, in.Dst, in.Src)
	case *ir.Unop:
		naiveAssignLike(ctx, fn, pc, facts, in.Dst, in.Src)
	case *ir.BinOp:
		naiveAssignLike(ctx, fn, pc, facts, in.Dst, in.Lhs, in.Rhs)
	case *ir.Phi:
		naiveAssignLike(ctx, fn, pc, facts, in.Dst, in.Lhs, in.Rhs)
	case *ir.Block:
		naiveIdentityStraight(ctx, fn, facts, pc+1)
	case *ir.Jump:
		target, err := ctx.Blocks.BlockPC(fn.Name, in.Label)
		if err != nil {
			return err
		}
		naiveIdentityCurved(ctx, fn, facts, target)
	case *ir.Conditional:
		for _, l := range in.Labels {
			target, err := ctx.Blocks.BlockPC(fn.Name, l)
			if err != nil {
				return err
			}
			naiveIdentityCurved(ctx, fn, facts, target)
		}
		if len(in.Labels) == 1 {
			naiveIdentityStraight(ctx, fn, facts, pc+1)
		}
	case *ir.Table:
		for _, l := range in.Labels {
			target, err := ctx.Blocks.BlockPC(fn.Name, l)
			if err != nil {
				return err
			}
			naiveIdentityCurved(ctx, fn, facts, target)
		}
	case *ir.Store:
		naiveStore(ctx, fn, pc, facts, in)
	case *ir.Load:
		naiveLoad(ctx, fn, pc, facts, in)
	case *ir.Call:
		return naiveCall(ctx, fn, pc, facts, in.Callee, in.Params, in.Dests)
	case *ir.CallIndirect:
		for _, callee := range in.Callees {
			if err := naiveCall(ctx, fn, pc, facts, callee, in.Params, in.Dests); err != nil {
				return err
			}
		}
	case *ir.Return:
		return naiveReturn(ctx, fn, pc, facts, in.Srcs)
	}
	return nil
}

// successor mints (or, by Key, transparently fetches) the canonical fact for
// v at targetPC. It always uses (targetPC, targetPC+1) for (PC, NextPC), the
// same key AddStatement's dense init pass uses, so this dedupes against the
// pre-seeded fact for ordinary definitions and seeds a fresh one on first
// use for taut/memory/global variables that init does not pre-populate.
func successor(ctx *Ctx, fn *ir.Function, targetPC int, v state.Variable) state.Fact {
	return ctx.State.CacheFact(ctx.State.NewFact(fn.Name, targetPC, targetPC+1, v))
}

func naiveIdentityStraight(ctx *Ctx, fn *ir.Function, facts []state.Fact, targetPC int) {
	for _, f := range facts {
		to := successor(ctx, fn, targetPC, f.Var)
		ctx.Graph.AddNormal(f, to)
	}
}

func naiveIdentityCurved(ctx *Ctx, fn *ir.Function, facts []state.Fact, targetPC int) {
	for _, f := range facts {
		to := successor(ctx, fn, targetPC, f.Var)
		ctx.Graph.AddNormalCurved(f, to)
	}
}

func naiveKillLike(ctx *Ctx, fn *ir.Function, pc int, facts []state.Fact, dst string, fresh bool) {
	for _, f := range facts {
		if f.Var.Name == dst {
			continue
		}
		to := successor(ctx, fn, pc+1, f.Var)
		ctx.Graph.AddNormal(f, to)
	}
	if !fresh {
		return
	}
	dVar := ctx.State.EnsureVar(fn.Name, dst)
	for _, f := range facts {
		if f.Var.IsTaut {
			to := successor(ctx, fn, pc+1, dVar)
			ctx.Graph.AddNormal(f, to)
		}
	}
}

func naiveAssignLike(ctx *Ctx, fn *ir.Function, pc int, facts []state.Fact, dst string, srcs ...string) {
	for _, f := range facts {
		if f.Var.Name == dst {
			continue
		}
		to := successor(ctx, fn, pc+1, f.Var)
		ctx.Graph.AddNormal(f, to)
	}
	dVar := ctx.State.EnsureVar(fn.Name, dst)
	for _, f := range facts {
		for _, s := range srcs {
			if f.Var.Name == s {
				to := successor(ctx, fn, pc+1, dVar)
				ctx.Graph.AddNormal(f, to)
			}
		}
	}
}

// createLine clones fact for every pc from fact.NextPC-1 through the
// function's end-of-function pc (len(fn.Instrs)) inclusive, so that later
// lookups at any of those pcs find it, per spec.md §4.4.
func createLine(ctx *Ctx, fn *ir.Function, fact state.Fact) {
	start := fact.NextPC - 1
	if start < 0 {
		start = 0
	}
	for pc := start; pc <= len(fn.Instrs); pc++ {
		next := pc + 1
		if pc == len(fn.Instrs) {
			next = pc
		}
		ctx.State.CacheFact(ctx.State.NewFact(fn.Name, pc, next, fact.Var))
	}
}

func naiveStore(ctx *Ctx, fn *ir.Function, pc int, facts []state.Fact, in *ir.Store) {
	memVar := ctx.State.AddMemoryVar(fn.Name, in.Off)
	for _, f := range facts {
		if f.Var.IsMemory && f.Var.MemoryOffset == in.Off {
			continue
		}
		to := successor(ctx, fn, pc+1, f.Var)
		ctx.Graph.AddNormal(f, to)
	}
	for _, f := range facts {
		if f.Var.Name != in.Src && f.Var.Name != in.Idx {
			continue
		}
		to := successor(ctx, fn, pc+1, memVar)
		ctx.Graph.AddNormal(f, to)
		createLine(ctx, fn, to)
	}
}

func naiveLoad(ctx *Ctx, fn *ir.Function, pc int, facts []state.Fact, in *ir.Load) {
	for _, f := range facts {
		if f.Var.Name == in.Dst {
			continue
		}
		to := successor(ctx, fn, pc+1, f.Var)
		ctx.Graph.AddNormal(f, to)
	}
	dVar := ctx.State.EnsureVar(fn.Name, in.Dst)
	for _, f := range facts {
		if f.Var.Name == in.Src || (f.Var.IsMemory && f.Var.MemoryOffset == in.Off) {
			to := successor(ctx, fn, pc+1, dVar)
			ctx.Graph.AddNormal(f, to)
		}
	}
}

func naiveCall(ctx *Ctx, fn *ir.Function, pc int, facts []state.Fact, callee string, params, dests []string) error {
	calleeFn, err := ctx.function(callee)
	if err != nil {
		return malformed(fn.Name, pc, "call to unknown function %q", callee)
	}
	ctx.State.InitFunction(calleeFn, 0)

	destSet := make(map[string]bool, len(dests))
	for _, d := range dests {
		destSet[d] = true
	}

	for _, f := range facts {
		if destSet[f.Var.Name] || f.Var.IsGlobal || f.Var.IsMemory {
			continue
		}
		to := successor(ctx, fn, pc+1, f.Var)
		ctx.Graph.AddCallToReturn(f, to)
	}

	for _, f := range facts {
		if f.Var.IsTaut {
			calleeVar := ctx.State.EnsureVar(calleeFn.Name, "taut")
			to := ctx.State.CacheFact(ctx.State.NewFact(calleeFn.Name, 0, 0, calleeVar))
			ctx.Graph.AddCall(f, to)
			continue
		}
		for i, p := range params {
			if p != f.Var.Name || i >= len(calleeFn.Params) {
				continue
			}
			calleeVar := ctx.State.EnsureVar(calleeFn.Name, calleeFn.Params[i])
			to := ctx.State.CacheFact(ctx.State.NewFact(calleeFn.Name, 0, 0, calleeVar))
			ctx.Graph.AddCall(f, to)
		}
	}

	for _, f := range facts {
		if !f.Var.IsGlobal {
			continue
		}
		calleeVar := ctx.State.AddGlobalVar(calleeFn.Name, f.Var.Name)
		to := ctx.State.CacheFact(ctx.State.NewFact(calleeFn.Name, 0, 0, calleeVar))
		createLine(ctx, calleeFn, to)
		ctx.Graph.AddCall(f, to)
	}

	for _, f := range facts {
		if !f.Var.IsMemory {
			continue
		}
		calleeVar := ctx.State.AddMemoryVar(calleeFn.Name, f.Var.MemoryOffset)
		to := ctx.State.CacheFact(ctx.State.NewFact(calleeFn.Name, 0, 0, calleeVar))
		createLine(ctx, calleeFn, to)
		ctx.Graph.AddCall(f, to)
	}

	return nil
}

func naiveReturn(ctx *Ctx, fn *ir.Function, pc int, facts []state.Fact, srcs []string) error {
	for _, f := range facts {
		to := successor(ctx, fn, pc+1, f.Var)
		ctx.Graph.AddNormal(f, to)
	}

	for _, site := range ctx.Calls[fn.Name] {
		callerFn, err := ctx.function(site.Caller)
		if err != nil {
			return err
		}
		cp := site.PC

		for _, f := range facts {
			if f.Var.IsTaut {
				callerTaut := ctx.State.EnsureVar(callerFn.Name, "taut")
				to := ctx.State.CacheFact(ctx.State.NewFact(callerFn.Name, cp, cp+1, callerTaut))
				ctx.Graph.AddReturn(f, to)
			}
		}

		for i, destName := range site.Dests {
			if i >= len(srcs) {
				break
			}
			srcName := srcs[i]
			for _, f := range facts {
				if f.Var.Name != srcName {
					continue
				}
				destVar := ctx.State.EnsureVar(callerFn.Name, destName)
				to := ctx.State.CacheFact(ctx.State.NewFact(callerFn.Name, cp, cp+1, destVar))
				ctx.Graph.AddReturn(f, to)
			}
		}

		for _, f := range facts {
			if !f.Var.IsGlobal {
				continue
			}
			callerVar := ctx.State.AddGlobalVar(callerFn.Name, f.Var.Name)
			to := ctx.State.CacheFact(ctx.State.NewFact(callerFn.Name, cp, cp+1, callerVar))
			ctx.Graph.AddReturn(f, to)
		}

		for _, f := range facts {
			if !f.Var.IsMemory {
				continue
			}
			callerVar := ctx.State.AddMemoryVar(callerFn.Name, f.Var.MemoryOffset)
			to := ctx.State.CacheFact(ctx.State.NewFact(callerFn.Name, cp, cp+1, callerVar))
			ctx.Graph.AddReturn(f, to)
		}
	}

	return nil
}
