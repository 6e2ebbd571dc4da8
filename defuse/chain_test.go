package defuse_test

import (
	"testing"

	"github.com/kper/funky/defuse"
	"github.com/kper/funky/ir"
	"github.com/kper/funky/state"
)

func s1Function() *ir.Function {
	return &ir.Function{
		Name:        "test",
		Definitions: []string{"%0", "%1"},
		Instrs: []ir.Instruction{
			&ir.Const{Dst: "%0", Value: 1},
			&ir.Assign{Dst: "%1", Src: "%0"},
		},
	}
}

func s2Function() *ir.Function {
	return &ir.Function{
		Name:        "test",
		Definitions: []string{"%0", "%1", "%2", "%3"},
		Instrs: []ir.Instruction{
			&ir.Const{Dst: "%0", Value: 1},
			&ir.Conditional{Cond: "%1", Labels: []int{1, 2}},
			&ir.Block{Label: 1},
			&ir.Assign{Dst: "%1", Src: "%0"},
			&ir.Const{Dst: "%2", Value: 3},
			&ir.Jump{Label: 3},
			&ir.Block{Label: 2},
			&ir.Const{Dst: "%1", Value: 1},
			&ir.Jump{Label: 3},
			&ir.Block{Label: 3},
			&ir.BinOp{Dst: "%3", Lhs: "%1", Rhs: "%0", Op: "op"},
		},
	}
}

func TestChainDemandFollowsStraightLineUses(t *testing.T) {
	fn := s1Function()
	blocks := ir.ResolveBlocks(&ir.Program{Functions: []*ir.Function{fn}})
	st := state.New()
	c := defuse.New(fn, blocks, "%0", st)

	g, err := c.Demand(0, true)
	if err != nil {
		t.Fatalf("Demand: %v", err)
	}
	if g.Len() == 0 {
		t.Fatal("expected at least one edge for a variable used downstream")
	}

	next, ok := c.GetNext(0)
	if !ok || len(next) == 0 {
		t.Fatal("expected GetNext to report reachable program points after Demand")
	}
}

func TestChainDemandIsCached(t *testing.T) {
	fn := s1Function()
	blocks := ir.ResolveBlocks(&ir.Program{Functions: []*ir.Function{fn}})
	st := state.New()
	c := defuse.New(fn, blocks, "%0", st)

	g1, err := c.Demand(0, true)
	if err != nil {
		t.Fatalf("Demand: %v", err)
	}
	g2, err := c.Demand(0, true)
	if err != nil {
		t.Fatalf("Demand (cached): %v", err)
	}
	if g1 != g2 {
		t.Fatal("expected the second Demand at the same startPC to return the cached graph")
	}
}

func TestChainForceRemoveIfOutdatedEvictsOnRegimeChange(t *testing.T) {
	fn := s1Function()
	blocks := ir.ResolveBlocks(&ir.Program{Functions: []*ir.Function{fn}})
	st := state.New()
	c := defuse.New(fn, blocks, "%0", st)

	g1, err := c.Demand(0, true)
	if err != nil {
		t.Fatalf("Demand: %v", err)
	}

	c.ForceRemoveIfOutdated(0, false)
	g2, err := c.Demand(0, false)
	if err != nil {
		t.Fatalf("Demand after eviction: %v", err)
	}
	if g1 == g2 {
		t.Fatal("expected a fresh graph after ForceRemoveIfOutdated changed the regime")
	}
}

func TestChainPointsTo(t *testing.T) {
	fn := &ir.Function{Name: "test", Definitions: []string{"mem@0"}}
	blocks := ir.ResolveBlocks(&ir.Program{Functions: []*ir.Function{fn}})
	st := state.New()
	st.AddMemoryVar("test", 0)

	c := defuse.New(fn, blocks, "mem@0", st)
	if !c.PointsTo(0) {
		t.Fatal("expected PointsTo(0) to be true for mem@0")
	}
	if c.PointsTo(4) {
		t.Fatal("expected PointsTo(4) to be false for mem@0")
	}
}

func TestChainDemandOverConditionalVisitsBothBranches(t *testing.T) {
	fn := s2Function()
	blocks := ir.ResolveBlocks(&ir.Program{Functions: []*ir.Function{fn}})
	st := state.New()
	c := defuse.New(fn, blocks, "%0", st)

	if _, err := c.Demand(0, true); err != nil {
		t.Fatalf("Demand: %v", err)
	}
	next, ok := c.GetNext(0)
	if !ok {
		t.Fatal("expected GetNext(0) to succeed after Demand")
	}
	// %0 is used in both the then-branch (pc3, %1 = %0) and the join (pc10,
	// %3 = %1 op %0); the chain must surface both, not stop at the first use.
	found3, found10 := false, false
	for _, pc := range next {
		if pc == 3 {
			found3 = true
		}
		if pc == 10 {
			found10 = true
		}
	}
	if !found3 {
		t.Errorf("expected pc 3 (then-branch use) in %v", next)
	}
	if !found10 {
		t.Errorf("expected pc 10 (join use) in %v", next)
	}
}
