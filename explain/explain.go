// Package explain turns a solver.Finding into a one-paragraph, natural
// language description via a pluggable LLM backend, per SPEC_FULL.md §4.9.
// The solver itself never imports this package: explanations are optional
// output decoration layered on top of finished analysis results.
package explain

import (
	"context"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/sync/singleflight"

	"github.com/kper/funky/internal/memo"
	"github.com/kper/funky/solver"
)

// Explainer produces a natural-language description of a finding.
type Explainer interface {
	Explain(ctx context.Context, f solver.Finding) (string, error)
}

// Pick selects a backend constructor by configuration name.
func Pick(name, apiKey string) (Explainer, error) {
	switch name {
	case "anthropic":
		return NewAnthropicExplainer(apiKey), nil
	case "openai":
		return NewOpenAIExplainer(apiKey), nil
	case "genai":
		return NewGenAIExplainer(apiKey), nil
	default:
		return nil, fmt.Errorf("explain: unknown backend %q", name)
	}
}

// Deduper wraps an Explainer so that concurrent requests for the same
// finding (identified by a content hash of its source/sink/edge chain)
// share one in-flight API call and one cached result.
type Deduper struct {
	inner Explainer
	group singleflight.Group
	cache *memo.Keyed[[32]byte, string]
}

// NewDeduper wraps inner with fingerprint-keyed deduplication.
func NewDeduper(inner Explainer) *Deduper {
	return &Deduper{inner: inner, cache: memo.NewKeyed[[32]byte, string]()}
}

func (d *Deduper) Explain(ctx context.Context, f solver.Finding) (string, error) {
	key := Fingerprint(f)
	v, err, _ := d.group.Do(string(key[:]), func() (any, error) {
		return d.cache.Get(key, func() (string, error) {
			return d.inner.Explain(ctx, f)
		})
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Fingerprint hashes a finding's source, sink, and edge chain, so repeated
// requests for the same finding resolve to the same cache key regardless of
// which goroutine or CLI invocation asks first.
func Fingerprint(f solver.Finding) [32]byte {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on an oversized key, which nil never is.
		panic(err)
	}
	fmt.Fprintf(h, "%s:%d:%s->%s:%d:%s", f.Source.Function, f.Source.PC, f.Source.Var.Name,
		f.Sink.Function, f.Sink.PC, f.Sink.Var.Name)
	for _, e := range f.Edges {
		fmt.Fprintf(h, "|%d:%s:%d->%s:%d", e.Tag, e.From.Function, e.From.PC, e.To.Function, e.To.PC)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
