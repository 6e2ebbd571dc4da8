package solver_test

import (
	"fmt"
	"testing"

	"github.com/kper/funky/ir"
	"github.com/kper/funky/solver"
)

// generateTaintStressProgram builds a chain of depth functions, each calling
// the next with its parameter and returning the call's result, ending in a
// leaf that joins its parameter with an untainted local before returning.
// It is the three-address-IR analogue of the teacher lineage's
// generateTaintStressProgram, which emitted Go source for go/ssa to chew on.
func generateTaintStressProgram(depth int) *ir.Program {
	fns := make([]*ir.Function, 0, depth+1)

	for i := 0; i < depth; i++ {
		callee := fmt.Sprintf("f%d", i+1)
		fns = append(fns, &ir.Function{
			Name:        fmt.Sprintf("f%d", i),
			Params:      []string{"%0"},
			Definitions: []string{"%0", "%1", "%2"},
			Instrs: []ir.Instruction{
				&ir.Const{Dst: "%1", Value: int64(i)},
				&ir.Call{Callee: callee, Params: []string{"%0"}, Dests: []string{"%2"}},
				&ir.Return{Srcs: []string{"%2"}},
			},
		})
	}

	// leaf function: joins its parameter with a fresh constant and returns.
	fns = append(fns, &ir.Function{
		Name:        fmt.Sprintf("f%d", depth),
		Params:      []string{"%0"},
		Definitions: []string{"%0", "%1", "%2"},
		Instrs: []ir.Instruction{
			&ir.Const{Dst: "%1", Value: 1},
			&ir.BinOp{Dst: "%2", Lhs: "%0", Rhs: "%1", Op: "add"},
			&ir.Return{Srcs: []string{"%2"}},
		},
	})

	return &ir.Program{Functions: fns}
}

func stressRequest() solver.Request {
	return solver.Request{Function: "f0", PC: 0, Variable: "%0"}
}

func BenchmarkNaive_CallChain(b *testing.B) {
	prog := generateTaintStressProgram(180)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx := solver.NewCtx(prog)
		if err := solver.Naive(ctx, stressRequest()); err != nil {
			b.Fatalf("Naive: %v", err)
		}
	}
}

func BenchmarkFast_CallChain(b *testing.B) {
	prog := generateTaintStressProgram(180)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx := solver.NewCtx(prog)
		if err := solver.Fast(ctx, stressRequest()); err != nil {
			b.Fatalf("Fast: %v", err)
		}
	}
}

func BenchmarkSparse_CallChain(b *testing.B) {
	prog := generateTaintStressProgram(180)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx := solver.NewCtx(prog)
		if err := solver.Sparse(ctx, stressRequest()); err != nil {
			b.Fatalf("Sparse: %v", err)
		}
	}
}

// TestGenerateTaintStressProgramReachesTheLeaf is a cheap correctness check
// that rides the same fixture: the tainted parameter must still reach the
// final function's sink after the full call chain.
func TestGenerateTaintStressProgramReachesTheLeaf(t *testing.T) {
	prog := generateTaintStressProgram(20)
	ctx := solver.NewCtx(prog)
	if err := solver.Fast(ctx, stressRequest()); err != nil {
		t.Fatalf("Fast: %v", err)
	}
	sinks, err := solver.AllSinks(ctx, stressRequest())
	if err != nil {
		t.Fatalf("AllSinks: %v", err)
	}
	found := false
	for _, f := range sinks {
		if f.Function == "f20" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected taint to reach f20 across the call chain, sinks = %+v", sinks)
	}
}
