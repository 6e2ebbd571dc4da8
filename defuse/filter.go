package defuse

// filterRelevant walks a grouped node sequence and retains only the nodes
// relevant to variable v, per the relevance rules of spec.md §4.3:
//
//   - An LHS-use of v that finds v already defined is retained, and the walk
//     of this branch stops there (later nodes are downstream of a kill/redefinition
//     of something already accounted for — the new definition is the
//     interesting event).
//   - An LHS-use of v found while v is not yet defined is retained and marks
//     v defined from here on; the walk continues (this is the first
//     definition on this path, not a cut point).
//   - An RHS-use of v is always retained; the walk continues.
//   - Conditional nodes are always retained and both branches are recursed
//     into with the incoming definedness; the definedness after the
//     conditional is the OR of what each branch produced.
//   - Jump/ConditionalJump/Table nodes are structural and always retained —
//     they carry no use of v themselves but without them the remaining
//     points could not be connected.
//
// It returns the retained subsequence, whether v ends up defined after the
// whole sequence, and whether the walk was cut short by a stop.
func filterRelevant(nodes []Node, v string, defined bool) ([]Node, bool, bool) {
	var retained []Node

	for _, n := range nodes {
		switch n.Kind {
		case NInstruction:
			lhs := isLHSUse(n.Instr, v)
			rhs := isRHSUse(n.Instr, v)
			switch {
			case lhs && defined:
				retained = append(retained, n)
				return retained, true, true
			case lhs:
				retained = append(retained, n)
				defined = true
			case rhs:
				retained = append(retained, n)
			}

		case NConditional:
			thenRetained, thenDefined, _ := filterRelevant(n.Then, v, defined)
			elseRetained, elseDefined, _ := filterRelevant(n.Else, v, defined)
			branched := n
			branched.Then = thenRetained
			branched.Else = elseRetained
			retained = append(retained, branched)
			defined = thenDefined || elseDefined

		case NJump, NConditionalJump, NTable:
			retained = append(retained, n)

		case NFunctionEnd:
			retained = append(retained, n)
		}
	}

	return retained, defined, false
}

// flattenRetained linearises a retained sequence for graph emission,
// inlining each Conditional's Then branch followed by its Else branch after
// the conditional node itself.
func flattenRetained(nodes []Node) []Node {
	var out []Node
	for _, n := range nodes {
		if n.Kind == NConditional {
			out = append(out, n)
			out = append(out, flattenRetained(n.Then)...)
			out = append(out, flattenRetained(n.Else)...)
			continue
		}
		out = append(out, n)
	}
	return out
}
