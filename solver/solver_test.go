package solver_test

import (
	"errors"
	"testing"

	"github.com/kper/funky/solver"
	"github.com/kper/funky/testutils"
)

func TestFastIsDeterministicAcrossRuns(t *testing.T) {
	sc := testutils.S2()

	ctx1 := solver.NewCtx(sc.Program)
	if err := solver.Fast(ctx1, sc.Request); err != nil {
		t.Fatalf("Fast run 1: %v", err)
	}
	sinks1, err := solver.AllSinks(ctx1, sc.Request)
	if err != nil {
		t.Fatalf("AllSinks run 1: %v", err)
	}

	ctx2 := solver.NewCtx(sc.Program)
	if err := solver.Fast(ctx2, sc.Request); err != nil {
		t.Fatalf("Fast run 2: %v", err)
	}
	sinks2, err := solver.AllSinks(ctx2, sc.Request)
	if err != nil {
		t.Fatalf("AllSinks run 2: %v", err)
	}

	if len(sinks1) != len(sinks2) {
		t.Fatalf("non-deterministic sink count: %d vs %d", len(sinks1), len(sinks2))
	}
	names1 := make(map[string]bool)
	for _, f := range sinks1 {
		names1[f.Var.Name] = true
	}
	for _, f := range sinks2 {
		if !names1[f.Var.Name] {
			t.Fatalf("non-deterministic sink set: %q present in run 2 but not run 1", f.Var.Name)
		}
	}
}

func TestMalformedRequestUnknownFunction(t *testing.T) {
	sc := testutils.S1()
	ctx := solver.NewCtx(sc.Program)
	req := solver.Request{Function: "does-not-exist", PC: 0, Variable: "%0"}

	err := solver.Fast(ctx, req)
	if err == nil {
		t.Fatal("expected a MalformedInputError")
	}
	var malformed *solver.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected *MalformedInputError, got %T: %v", err, err)
	}
}

func TestMalformedRequestPCOutOfRange(t *testing.T) {
	sc := testutils.S1()
	ctx := solver.NewCtx(sc.Program)
	req := solver.Request{Function: sc.Request.Function, PC: 999, Variable: "%0"}

	err := solver.Fast(ctx, req)
	if err == nil {
		t.Fatal("expected a MalformedInputError")
	}
	var malformed *solver.MalformedInputError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected *MalformedInputError, got %T: %v", err, err)
	}
}

func TestResourceExhaustedWhenMaxFactsExceeded(t *testing.T) {
	sc := testutils.S2()
	ctx := solver.NewCtx(sc.Program)
	ctx.MaxFacts = 1

	err := solver.Fast(ctx, sc.Request)
	if err == nil {
		t.Fatal("expected a ResourceExhaustedError")
	}
	var exhausted *solver.ResourceExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *ResourceExhaustedError, got %T: %v", err, err)
	}
	if exhausted.Limit != 1 {
		t.Fatalf("Limit = %d, want 1", exhausted.Limit)
	}
}

func TestNaiveParallelInitMatchesSequential(t *testing.T) {
	sc := testutils.S3()

	seqCtx := solver.NewCtx(sc.Program)
	seqCtx.ParallelInit = false
	if err := solver.Naive(seqCtx, sc.Request); err != nil {
		t.Fatalf("sequential Naive: %v", err)
	}
	seqSinks, err := solver.AllSinks(seqCtx, sc.Request)
	if err != nil {
		t.Fatalf("AllSinks (sequential): %v", err)
	}

	parCtx := solver.NewCtx(sc.Program)
	parCtx.ParallelInit = true
	if err := solver.Naive(parCtx, sc.Request); err != nil {
		t.Fatalf("parallel Naive: %v", err)
	}
	parSinks, err := solver.AllSinks(parCtx, sc.Request)
	if err != nil {
		t.Fatalf("AllSinks (parallel): %v", err)
	}

	if len(seqSinks) != len(parSinks) {
		t.Fatalf("parallel init changed sink count: %d vs %d", len(parSinks), len(seqSinks))
	}
}
