package solver

import (
	"github.com/kper/funky/graph"
	"github.com/kper/funky/state"
)

// AllSinks answers the standard reachability query of spec.md §6: every
// fact reachable via Path and Normal edges from req's source fact, filtered
// to pc > req.PC+1 with unique variable names, plus the implicit taut.
func AllSinks(ctx *Ctx, req Request) ([]state.Fact, error) {
	fn, err := ctx.function(req.Function)
	if err != nil {
		return nil, err
	}

	source, ok := findSourceFact(ctx, fn.Name, req)
	if !ok {
		return nil, invariant(fn.Name, req.PC, "no taut fact at requested entry point")
	}

	adj := make(map[state.Key][]state.Fact)
	for _, tag := range [...]graph.Tag{graph.Path, graph.Normal} {
		for _, e := range ctx.Graph.EdgesByTag(tag) {
			adj[e.From.Key()] = append(adj[e.From.Key()], e.To)
		}
	}

	visited := map[state.Key]bool{source.Key(): true}
	queue := []state.Fact{source}
	var reached []state.Fact
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		reached = append(reached, cur)
		for _, next := range adj[cur.Key()] {
			if !visited[next.Key()] {
				visited[next.Key()] = true
				queue = append(queue, next)
			}
		}
	}

	seenVar := make(map[string]bool)
	var out []state.Fact
	for _, f := range reached {
		if f.Var.IsTaut {
			if !seenVar[f.Var.Name] {
				seenVar[f.Var.Name] = true
				out = append(out, f)
			}
			continue
		}
		if f.PC > req.PC+1 && !seenVar[f.Var.Name] {
			seenVar[f.Var.Name] = true
			out = append(out, f)
		}
	}
	return out, nil
}

func findSourceFact(ctx *Ctx, fnName string, req Request) (state.Fact, bool) {
	for _, f := range ctx.State.GetFactsAt(fnName, req.PC) {
		if f.Var.IsTaut {
			return f, true
		}
	}
	return state.Fact{}, false
}
