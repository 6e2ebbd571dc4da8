package state

import "fmt"

// Fact is the atomic dataflow assertion described in spec.md §3: "at this
// program point, this variable may be tainted". Identity for correctness is
// the (Function, PC, NextPC, Variable) key; Id exists only to give rendering
// layers a stable handle and plays no part in equality.
type Fact struct {
	Id       uint64
	Function string
	PC       int
	NextPC   int
	Var      Variable
	// Note is a debug label carried by facts created through
	// State.AddStatement; it plays no part in Fact identity.
	Note string
}

// Key is the (function, pc, next_pc, variable) tuple that defines Fact
// identity, independent of Id.
type Key struct {
	Function string
	PC       int
	NextPC   int
	VarName  string
}

// Key returns f's identity key.
func (f Fact) Key() Key {
	return Key{Function: f.Function, PC: f.PC, NextPC: f.NextPC, VarName: f.Var.Name}
}

// IsEntry reports whether f is an entry (self-loop) fact: pc == next_pc.
func (f Fact) IsEntry() bool {
	return f.PC == f.NextPC
}

func (f Fact) String() string {
	return fmt.Sprintf("%s@%d->%d:%s", f.Function, f.PC, f.NextPC, f.Var.Name)
}
