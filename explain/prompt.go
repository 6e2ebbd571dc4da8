package explain

import (
	"fmt"
	"strings"

	"github.com/kper/funky/solver"
)

// prompt renders a Finding as a single natural-language-request prompt
// shared by every backend, so the three SDKs differ only in transport.
func prompt(f solver.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Explain, in one paragraph, why taint flows from %s (in function %q at pc %d) "+
		"to %s (in function %q at pc %d) in this WebAssembly module's static analysis. ",
		f.Source.Var.Name, f.Source.Function, f.Source.PC,
		f.Sink.Var.Name, f.Sink.Function, f.Sink.PC)
	if len(f.Edges) == 0 {
		b.WriteString("No intermediate edge chain was recorded; describe the direct relationship only.")
		return b.String()
	}
	b.WriteString("The propagation path, in order, is:\n")
	for _, e := range f.Edges {
		fmt.Fprintf(&b, "- %s: %s@%d -> %s@%d\n", e.Tag, e.From.Var.Name, e.From.PC, e.To.Var.Name, e.To.PC)
	}
	return b.String()
}
