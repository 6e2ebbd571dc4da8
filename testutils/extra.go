package testutils

import (
	"github.com/kper/funky/ir"
	"github.com/kper/funky/solver"
)

// IndirectCallFanOut exercises CallIndirect with more than one resolved
// callee: both candidates forward their parameter, so taint must reach the
// call's dest regardless of which candidate the table slot resolves to.
func IndirectCallFanOut() Scenario {
	prog := &ir.Program{Functions: []*ir.Function{
		fn("dispatch", nil, []string{"%0", "%1"},
			&ir.Const{Dst: "%0", Value: 1},
			&ir.CallIndirect{Callees: []string{"a", "b"}, Params: []string{"%0"}, Dests: []string{"%1"}},
		),
		fn("a", []string{"%p"}, []string{"%p"},
			&ir.Return{Srcs: []string{"%p"}},
		),
		fn("b", []string{"%p"}, []string{"%p"},
			&ir.Return{Srcs: []string{"%p"}},
		),
	}}
	return Scenario{
		Name:          "indirect call fan-out",
		Program:       prog,
		Request:       solver.Request{Function: "dispatch", PC: 0, Variable: "%0"},
		ExpectedSinks: []string{"taut", "%0", "%1"},
	}
}

// MultiGlobalRoundTrip writes two distinct globals from the same tainted
// value and reads only one of them back in a callee, checking that two
// globals coexisting in one function don't cross-contaminate each other.
func MultiGlobalRoundTrip() Scenario {
	prog := &ir.Program{Functions: []*ir.Function{
		fn("main", []string{"%0"}, []string{"%-1", "%-2", "%0", "%1"},
			&ir.Const{Dst: "%0", Value: 1},
			&ir.Assign{Dst: "%-1", Src: "%0"},
			&ir.Const{Dst: "%-2", Value: 0},
			&ir.Call{Callee: "reader", Dests: []string{"%1"}},
		),
		fn("reader", nil, []string{"%-1", "%-2", "%0"},
			&ir.Assign{Dst: "%0", Src: "%-1"},
			&ir.Return{Srcs: []string{"%0"}},
		),
	}}
	return Scenario{
		Name:          "multi-global round trip",
		Program:       prog,
		Request:       solver.Request{Function: "main", PC: 0, Variable: "%0"},
		ExpectedSinks: []string{"taut", "%0", "%-1", "%1"},
	}
}

// AllRegression returns the supplementary regression fixtures beyond the
// canonical spec.md §8 scenarios.
func AllRegression() []Scenario {
	return []Scenario{IndirectCallFanOut(), MultiGlobalRoundTrip()}
}
