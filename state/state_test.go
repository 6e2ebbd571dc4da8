package state_test

import (
	"testing"

	"github.com/kper/funky/ir"
	"github.com/kper/funky/state"
)

func sampleFunction() *ir.Function {
	return &ir.Function{
		Name:        "test",
		Definitions: []string{"%0", "%1"},
		Instrs:      []ir.Instruction{&ir.Const{Dst: "%0", Value: 1}, &ir.Assign{Dst: "%1", Src: "%0"}},
	}
}

func TestInitFunctionIsIdempotent(t *testing.T) {
	s := state.New()
	fn := sampleFunction()

	first := s.InitFunction(fn, 0)
	second := s.InitFunction(fn, 0)

	if len(first) != len(second) {
		t.Fatalf("InitFunction not idempotent: %d facts vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key() != second[i].Key() {
			t.Fatalf("fact %d differs between calls: %+v vs %+v", i, first[i], second[i])
		}
	}
	// taut, then %0, then %1
	if !first[0].Var.IsTaut {
		t.Fatalf("first fact should be taut, got %+v", first[0])
	}
}

func TestCacheFactDeduplicatesByKey(t *testing.T) {
	s := state.New()
	v := s.EnsureVar("test", "%0")

	a := s.CacheFact(s.NewFact("test", 1, 2, v))
	b := s.CacheFact(s.NewFact("test", 1, 2, v))

	if a.Key() != b.Key() {
		t.Fatal("expected identical keys")
	}
	if len(s.GetFactsAt("test", 1)) != 1 {
		t.Fatalf("expected exactly one fact cached at pc 1, got %d", len(s.GetFactsAt("test", 1)))
	}
}

func TestAddStatementUsesPCPlusOneAsNextPC(t *testing.T) {
	s := state.New()
	f := s.AddStatement("test", "note", 5, "%0")
	if f.PC != 5 || f.NextPC != 6 {
		t.Fatalf("unexpected pc/next_pc: %+v", f)
	}
}

func TestAddMemoryAndGlobalVarsAreDistinctFromOrdinary(t *testing.T) {
	s := state.New()
	mem := s.AddMemoryVar("test", 8)
	if !mem.IsMemory || mem.MemoryOffset != 8 {
		t.Fatalf("unexpected memory var: %+v", mem)
	}
	glob := s.AddGlobalVar("test", "%-1")
	if !glob.IsGlobal {
		t.Fatalf("unexpected global var: %+v", glob)
	}
	ordinary := s.EnsureVar("test", "%0")
	if !ordinary.IsOrdinary() {
		t.Fatalf("expected an ordinary variable, got %+v", ordinary)
	}
}

func TestLenCountsDistinctCachedFacts(t *testing.T) {
	s := state.New()
	fn := sampleFunction()
	s.InitFunction(fn, 0)
	before := s.Len()
	s.AddStatement("test", "note", 0, "%0")
	s.AddStatement("test", "note", 0, "%0") // duplicate, must not grow Len
	if s.Len() != before+1 {
		t.Fatalf("Len = %d, want %d", s.Len(), before+1)
	}
}
