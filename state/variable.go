// Package state owns the per-analysis symbol table: Variable, Fact, and the
// State that tracks them per function, per program counter, exactly as
// specified in spec.md §3 and §4.2.
package state

import "strings"

// Variable is a per-function symbol: a name, a stable ordinal ("track")
// within the function's variable table, and three disjoint flags. A
// Variable is ordinary when all three flags are false. Names follow a
// convention but the solver only ever branches on the flags.
type Variable struct {
	Name     string
	Track    int
	IsTaut   bool
	IsGlobal bool
	IsMemory bool
	// MemoryOffset is meaningful only when IsMemory is set.
	MemoryOffset int
}

// IsOrdinary reports whether v carries none of the three special flags.
func (v Variable) IsOrdinary() bool {
	return !v.IsTaut && !v.IsGlobal && !v.IsMemory
}

const tautName = "taut"

// classifyName infers the flags implied by the naming convention in
// spec.md §3. It seeds the flags of every Variable that State creates
// without caller-forced flags (InitFunction, AddStatement, EnsureVar).
func classifyName(name string) (isTaut, isGlobal, isMemory bool, memOffset int) {
	switch {
	case name == tautName:
		return true, false, false, 0
	case strings.HasPrefix(name, "mem@"):
		return false, false, true, parseTrailingInt(name[len("mem@"):])
	case strings.HasPrefix(name, "%-"):
		return false, true, false, 0
	default:
		return false, false, false, 0
	}
}

func parseTrailingInt(s string) int {
	n := 0
	neg := false
	for i, r := range s {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	if neg {
		return -n
	}
	return n
}
