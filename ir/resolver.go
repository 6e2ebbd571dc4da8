package ir

import "fmt"

// BlockResolver maps (function name, block label) to the pc of the Block
// instruction carrying that label.
type BlockResolver map[string]map[int]int

// CallSite records one caller-side Call/CallIndirect instruction, used by the
// call resolver to find every caller of a given callee during Return
// handling (spec.md §4.4).
type CallSite struct {
	Caller string
	PC     int
	Dests  []string
}

// CallResolver maps callee function name to every call site that invokes it.
type CallResolver map[string][]CallSite

// ResolveBlocks builds the block resolver for prog: every Block(n)
// instruction at pc contributes blocks[f.Name][n] = pc.
func ResolveBlocks(prog *Program) BlockResolver {
	resolver := make(BlockResolver, len(prog.Functions))
	for _, f := range prog.Functions {
		labels := make(map[int]int)
		for pc, instr := range f.Instrs {
			if b, ok := instr.(*Block); ok {
				labels[b.Label] = pc
			}
		}
		resolver[f.Name] = labels
	}
	return resolver
}

// ResolveCalls builds the call resolver for prog: every Call/CallIndirect
// instruction contributes one CallSite per candidate callee.
func ResolveCalls(prog *Program) CallResolver {
	resolver := make(CallResolver)
	for _, f := range prog.Functions {
		for pc, instr := range f.Instrs {
			switch c := instr.(type) {
			case *Call:
				resolver[c.Callee] = append(resolver[c.Callee], CallSite{
					Caller: f.Name,
					PC:     pc,
					Dests:  c.Dests,
				})
			case *CallIndirect:
				for _, callee := range c.Callees {
					resolver[callee] = append(resolver[callee], CallSite{
						Caller: f.Name,
						PC:     pc,
						Dests:  c.Dests,
					})
				}
			}
		}
	}
	return resolver
}

// BlockPC looks up the pc of block label in function fn.
func (b BlockResolver) BlockPC(fn string, label int) (int, error) {
	labels, ok := b[fn]
	if !ok {
		return 0, fmt.Errorf("ir: function %q has no blocks", fn)
	}
	pc, ok := labels[label]
	if !ok {
		return 0, fmt.Errorf("ir: function %q has no block labelled %d", fn, label)
	}
	return pc, nil
}
