// Package testutils builds the canonical ir.Program fixtures for the
// end-to-end scenarios of spec.md §8, plus a couple of extra regression
// programs, so solver tests construct them once and cross-validate all
// three tabulation algorithms against the same fixture.
package testutils

import (
	"github.com/kper/funky/ir"
	"github.com/kper/funky/solver"
)

// Scenario bundles a program, the request that seeds it, and the set of
// sink variable names (by name, across the requested function) spec.md §8
// says the solvers must agree on.
type Scenario struct {
	Name          string
	Program       *ir.Program
	Request       solver.Request
	ExpectedSinks []string
}

func fn(name string, params, defs []string, instrs ...ir.Instruction) *ir.Function {
	return &ir.Function{Name: name, Params: params, Definitions: defs, Instrs: instrs}
}

// S1 is the simple assignment chain of spec.md §8.
func S1() Scenario {
	prog := &ir.Program{Functions: []*ir.Function{
		fn("test", nil, []string{"%0", "%1"},
			&ir.Const{Dst: "%0", Value: 1},
			&ir.Assign{Dst: "%1", Src: "%0"},
		),
	}}
	return Scenario{
		Name:          "S1 simple assignment chain",
		Program:       prog,
		Request:       solver.Request{Function: "test", PC: 0, Variable: "%0"},
		ExpectedSinks: []string{"taut", "%0", "%1"},
	}
}

// S2 is the if/else join of spec.md §8: one branch propagates %0 into %1,
// the other kills it with a fresh constant.
func S2() Scenario {
	prog := &ir.Program{Functions: []*ir.Function{
		fn("test", nil, []string{"%0", "%1", "%2", "%3"},
			&ir.Const{Dst: "%0", Value: 1},             // pc0
			&ir.Conditional{Cond: "%1", Labels: []int{1, 2}}, // pc1
			&ir.Block{Label: 1},                         // pc2
			&ir.Assign{Dst: "%1", Src: "%0"},            // pc3
			&ir.Const{Dst: "%2", Value: 3},              // pc4
			&ir.Jump{Label: 3},                           // pc5
			&ir.Block{Label: 2},                          // pc6
			&ir.Const{Dst: "%1", Value: 1},               // pc7
			&ir.Jump{Label: 3},                           // pc8
			&ir.Block{Label: 3},                          // pc9
			&ir.BinOp{Dst: "%3", Lhs: "%1", Rhs: "%0", Op: "op"}, // pc10
		),
	}}
	return Scenario{
		Name:          "S2 if/else join",
		Program:       prog,
		Request:       solver.Request{Function: "test", PC: 0, Variable: "%0"},
		ExpectedSinks: []string{"taut", "%0", "%1", "%3"},
	}
}

// S3 is the cross-function-via-parameter scenario of spec.md §8.
func S3() Scenario {
	prog := &ir.Program{Functions: []*ir.Function{
		fn("test", nil, []string{"%0", "%1"},
			&ir.Const{Dst: "%0", Value: 1},
			&ir.Call{Callee: "mytest", Params: []string{"%0"}, Dests: []string{"%1"}},
		),
		fn("mytest", []string{"%0"}, []string{"%0", "%1"},
			&ir.Assign{Dst: "%1", Src: "%0"},
			&ir.Return{Srcs: []string{"%1"}},
		),
	}}
	return Scenario{
		Name:          "S3 cross-function via parameter",
		Program:       prog,
		Request:       solver.Request{Function: "test", PC: 0, Variable: "%0"},
		ExpectedSinks: []string{"taut", "%0", "%1"},
	}
}

// S4 is the memory store/load round-trip of spec.md §8.
func S4() Scenario {
	prog := &ir.Program{Functions: []*ir.Function{
		fn("0", nil, []string{"%0", "%1", "%2"},
			&ir.Block{Label: 0},
			&ir.Const{Dst: "%0", Value: 8},
			&ir.Const{Dst: "%1", Value: -12345},
			&ir.Store{Src: "%1", Idx: "%0", Off: 0, Align: 2, Width: 32},
			&ir.Call{Callee: "1", Dests: []string{"%2"}},
			&ir.Return{},
		),
		fn("1", nil, []string{"%0", "%1"},
			&ir.Const{Dst: "%1", Value: 8},
			&ir.Load{Dst: "%0", Src: "%1", Off: 0, Align: 0},
			&ir.Return{Srcs: []string{"%0"}},
		),
	}}
	return Scenario{
		Name:          "S4 memory store/load round-trip",
		Program:       prog,
		Request:       solver.Request{Function: "0", PC: 2, Variable: "%1"},
		ExpectedSinks: []string{"taut", "%1", "%0"},
	}
}

// S5 is the global variable round-trip of spec.md §8. "%-1" is a global by
// naming convention; the caller's %0 and %1 and the callee's %0 all end up
// tainted through it.
func S5() Scenario {
	prog := &ir.Program{Functions: []*ir.Function{
		fn("0", []string{"%0"}, []string{"%-1", "%0", "%1"},
			&ir.Const{Dst: "%0", Value: 1},
			&ir.Assign{Dst: "%-1", Src: "%0"},
			&ir.Call{Callee: "1", Dests: []string{"%1"}},
		),
		fn("1", nil, []string{"%-1", "%0"},
			&ir.Assign{Dst: "%0", Src: "%-1"},
			&ir.Return{Srcs: []string{"%0"}},
		),
	}}
	return Scenario{
		Name:          "S5 global variable round-trip",
		Program:       prog,
		Request:       solver.Request{Function: "0", PC: 0, Variable: "%0"},
		ExpectedSinks: []string{"taut", "%0", "%-1", "%1"},
	}
}

// S6 calls three callees from one source: konst kills taint with a fresh
// constant, ident1 and ident2 both forward their parameter untouched. The
// two forwarding callees must produce Summary edges that agree with each
// other and differ from konst's.
func S6() Scenario {
	prog := &ir.Program{Functions: []*ir.Function{
		fn("test", nil, []string{"%0", "%1", "%2", "%3"},
			&ir.Const{Dst: "%0", Value: 1},
			&ir.Call{Callee: "konst", Params: []string{"%0"}, Dests: []string{"%1"}},
			&ir.Call{Callee: "ident1", Params: []string{"%0"}, Dests: []string{"%2"}},
			&ir.Call{Callee: "ident2", Params: []string{"%0"}, Dests: []string{"%3"}},
		),
		fn("konst", []string{"%p"}, []string{"%p", "%r"},
			&ir.Const{Dst: "%r", Value: 42},
			&ir.Return{Srcs: []string{"%r"}},
		),
		fn("ident1", []string{"%p"}, []string{"%p"},
			&ir.Return{Srcs: []string{"%p"}},
		),
		fn("ident2", []string{"%p"}, []string{"%p"},
			&ir.Return{Srcs: []string{"%p"}},
		),
	}}
	return Scenario{
		Name:          "S6 early return, kill vs forward",
		Program:       prog,
		Request:       solver.Request{Function: "test", PC: 0, Variable: "%0"},
		ExpectedSinks: []string{"taut", "%0", "%2", "%3"},
	}
}

// All returns the six canonical end-to-end scenarios in spec.md §8 order.
func All() []Scenario {
	return []Scenario{S1(), S2(), S3(), S4(), S5(), S6()}
}
