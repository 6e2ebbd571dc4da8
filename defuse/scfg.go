// Package defuse builds, per (function, variable), the sparse
// control-flow subgraph (SCFG) the sparse tabulation solver uses to skip
// program points where a variable is neither used nor redefined, per
// spec.md §4.3.
package defuse

import (
	"fmt"

	"github.com/kper/funky/ir"
)

// NodeKind discriminates the SCFG node variants of spec.md §4.3.
type NodeKind int

const (
	NInstruction NodeKind = iota
	NJump
	NConditionalJump
	NConditional
	NTable
	NFunctionEnd
)

// Node is one entry in the (pre-relevance-filter) grouped instruction
// stream. Conditional nodes recurse into Then/Else sub-streams; every other
// kind is a leaf.
type Node struct {
	Kind   NodeKind
	PC     int
	Instr  ir.Instruction
	Target int   // Jump, ConditionalJump
	Labels []int // Table
	Then   []Node
	Else   []Node
}

// buildSequence groups fn.Instrs[startPC:] into SCFG nodes per the grouping
// rules in spec.md §4.3, stopping before stopPC when stopPC >= 0, or at a
// function-terminating Jump/end of instructions otherwise.
func buildSequence(fn *ir.Function, blocks ir.BlockResolver, startPC, stopPC int) ([]Node, error) {
	var out []Node
	pc := startPC

	for pc < len(fn.Instrs) {
		if stopPC >= 0 && pc >= stopPC {
			break
		}

		switch in := fn.Instrs[pc].(type) {
		case *ir.Table:
			targets := make([]int, 0, len(in.Labels))
			for _, l := range in.Labels {
				t, err := blocks.BlockPC(fn.Name, l)
				if err != nil {
					return nil, err
				}
				targets = append(targets, t)
			}
			out = append(out, Node{Kind: NTable, PC: pc, Instr: in, Labels: targets})
			pc++

		case *ir.Conditional:
			node, newPC, err := buildConditional(fn, blocks, in, pc)
			if err != nil {
				return nil, err
			}
			out = append(out, node)
			pc = newPC

		case *ir.Jump:
			target, err := blocks.BlockPC(fn.Name, in.Label)
			if err != nil {
				return nil, err
			}
			out = append(out, Node{Kind: NJump, PC: pc, Instr: in, Target: target})
			if target == pc+1 {
				// Falls straight through; doesn't terminate the stream.
				pc++
				continue
			}
			return out, nil

		default:
			out = append(out, Node{Kind: NInstruction, PC: pc, Instr: in})
			pc++
		}
	}

	return out, nil
}

// buildConditional applies grouping rule 1 of spec.md §4.3: a two-label
// Conditional is either a plain conditional jump (when the "then" block is
// itself just a jump back to its own label — the degenerate case the
// original lowering emits for a simple "if cond goto L") or a genuine
// if/then/else whose two branches span up to the then-block and from just
// past it to the else-block.
func buildConditional(fn *ir.Function, blocks ir.BlockResolver, in *ir.Conditional, pc int) (Node, int, error) {
	if len(in.Labels) == 1 {
		target, err := blocks.BlockPC(fn.Name, in.Labels[0])
		if err != nil {
			return Node{}, 0, err
		}
		return Node{Kind: NConditionalJump, PC: pc, Instr: in, Target: target}, pc + 1, nil
	}

	thenLabel, elseLabel := in.Labels[0], in.Labels[1]
	thenBlockPC, err := blocks.BlockPC(fn.Name, thenLabel)
	if err != nil {
		return Node{}, 0, err
	}

	plain := false
	if thenBlockPC-1 >= 0 && thenBlockPC-1 < len(fn.Instrs) {
		if j, ok := fn.Instrs[thenBlockPC-1].(*ir.Jump); ok && j.Label == thenLabel {
			plain = true
		}
	}
	if plain {
		return Node{Kind: NConditionalJump, PC: pc, Instr: in, Target: thenBlockPC}, pc + 1, nil
	}

	elseBlockPC, err := blocks.BlockPC(fn.Name, elseLabel)
	if err != nil {
		return Node{}, 0, err
	}
	done := thenLabel + 1

	thenSeq, err := buildSequence(fn, blocks, pc+2, thenBlockPC)
	if err != nil {
		return Node{}, 0, err
	}
	elseSeq, err := buildSequence(fn, blocks, thenBlockPC+1, elseBlockPC+1)
	if err != nil {
		return Node{}, 0, err
	}

	node := Node{Kind: NConditional, PC: pc, Instr: in, Then: thenSeq, Else: elseSeq, Labels: []int{done}}
	return node, elseBlockPC + 1, nil
}

func functionEnd(fn *ir.Function) Node {
	return Node{Kind: NFunctionEnd, PC: len(fn.Instrs)}
}

func isGlobal(name string) bool {
	return len(name) > 1 && name[0] == '%' && name[1] == '-'
}

func isMemory(name string) bool {
	return len(name) >= 4 && name[:4] == "mem@"
}

func isTaut(name string) bool {
	return name == "taut"
}

// isLHSUse reports whether instr assigns (defines) variable v, per the
// enumeration in spec.md §4.3.
func isLHSUse(instr ir.Instruction, v string) bool {
	switch in := instr.(type) {
	case *ir.Const:
		return in.Dst == v
	case *ir.Assign:
		return in.Dst == v
	case *ir.Unop:
		return in.Dst == v
	case *ir.BinOp:
		return in.Dst == v
	case *ir.Phi:
		return in.Dst == v
	case *ir.Kill:
		return in.Dst == v
	case *ir.Unknown:
		return in.Dst == v
	case *ir.Load:
		return in.Dst == v
	case *ir.Call:
		return containsStr(in.Dests, v) || isGlobal(v)
	case *ir.CallIndirect:
		return containsStr(in.Dests, v) || isGlobal(v)
	case *ir.Return:
		return !isMemory(v) && !isGlobal(v) && !isTaut(v)
	default:
		return false
	}
}

// isRHSUse reports whether instr reads variable v, per the enumeration in
// spec.md §4.3.
func isRHSUse(instr ir.Instruction, v string) bool {
	switch in := instr.(type) {
	case *ir.Assign:
		return in.Src == v
	case *ir.Unop:
		return in.Src == v
	case *ir.BinOp:
		return in.Lhs == v || in.Rhs == v
	case *ir.Phi:
		return in.Lhs == v || in.Rhs == v
	case *ir.Call:
		return containsStr(in.Params, v) || ((isTaut(v) || isGlobal(v) || isMemory(v)))
	case *ir.CallIndirect:
		return containsStr(in.Params, v) || ((isTaut(v) || isGlobal(v) || isMemory(v)))
	case *ir.Store:
		return in.Src == v || in.Idx == v || isMemory(v)
	case *ir.Load:
		return in.Src == v || isMemory(v)
	case *ir.Return:
		return containsStr(in.Srcs, v) || isGlobal(v) || isMemory(v)
	case *ir.Block:
		return true
	default:
		return false
	}
}

func containsStr(xs []string, x string) bool {
	for _, s := range xs {
		if s == x {
			return true
		}
	}
	return false
}

// errUnresolvedLabel formats the error for a jump/conditional/table target
// that has no matching Block in the function. buildSequence/buildConditional
// do not call it; they return the error from ir.BlockResolver.BlockPC.
func errUnresolvedLabel(fn string, label int) error {
	return fmt.Errorf("defuse: function %q has no block labelled %d", fn, label)
}
