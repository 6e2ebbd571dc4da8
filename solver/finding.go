package solver

import (
	"github.com/kper/funky/graph"
	"github.com/kper/funky/state"
)

// Finding pairs a source fact with one sink fact AllSinks reported, plus the
// chain of Path/Normal edges connecting them — the unit explain.Explainer
// describes in prose.
type Finding struct {
	Source state.Fact
	Sink   state.Fact
	Edges  []graph.Edge
}

// Findings runs AllSinks for req and reconstructs, for every reported sink,
// the edge chain back to the source fact (shortest, by BFS hop count).
func Findings(ctx *Ctx, req Request) ([]Finding, error) {
	fn, err := ctx.function(req.Function)
	if err != nil {
		return nil, err
	}
	source, ok := findSourceFact(ctx, fn.Name, req)
	if !ok {
		return nil, invariant(fn.Name, req.PC, "no taut fact at requested entry point")
	}

	sinks, err := AllSinks(ctx, req)
	if err != nil {
		return nil, err
	}

	adj := make(map[state.Key][]graph.Edge)
	for _, tag := range [...]graph.Tag{graph.Path, graph.Normal} {
		for _, e := range ctx.Graph.EdgesByTag(tag) {
			adj[e.From.Key()] = append(adj[e.From.Key()], e)
		}
	}

	findings := make([]Finding, 0, len(sinks))
	for _, sink := range sinks {
		findings = append(findings, Finding{
			Source: source,
			Sink:   sink,
			Edges:  shortestPath(adj, source, sink),
		})
	}
	return findings, nil
}

func shortestPath(adj map[state.Key][]graph.Edge, from, to state.Fact) []graph.Edge {
	if from.Key() == to.Key() {
		return nil
	}

	type step struct {
		via  graph.Edge
		prev state.Key
	}
	visited := map[state.Key]step{from.Key(): {}}
	queue := []state.Fact{from}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, e := range adj[cur.Key()] {
			if _, ok := visited[e.To.Key()]; ok {
				continue
			}
			visited[e.To.Key()] = step{via: e, prev: cur.Key()}
			if e.To.Key() == to.Key() {
				queue = nil
				break
			}
			queue = append(queue, e.To)
		}
	}

	if _, ok := visited[to.Key()]; !ok {
		return nil
	}
	var rev []graph.Edge
	k := to.Key()
	for k != from.Key() {
		s := visited[k]
		rev = append(rev, s.via)
		k = s.prev
	}
	path := make([]graph.Edge, len(rev))
	for i, e := range rev {
		path[len(rev)-1-i] = e
	}
	return path
}
