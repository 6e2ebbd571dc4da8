package explain

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/kper/funky/solver"
)

// genaiExplainer adapts the same Explainer shape to Google's GenAI SDK,
// the third of the teacher lineage's three pluggable LLM backends.
type genaiExplainer struct {
	apiKey string
}

// NewGenAIExplainer builds an Explainer backed by a Gemini model. The
// client is constructed lazily per call since genai.NewClient takes a
// context, which Explain has and NewGenAIExplainer does not.
func NewGenAIExplainer(apiKey string) Explainer {
	return &genaiExplainer{apiKey: apiKey}
}

func (e *genaiExplainer) Explain(ctx context.Context, f solver.Finding) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: e.apiKey})
	if err != nil {
		return "", fmt.Errorf("explain: genai: %w", err)
	}
	resp, err := client.Models.GenerateContent(ctx, "gemini-2.0-flash", genai.Text(prompt(f)), nil)
	if err != nil {
		return "", fmt.Errorf("explain: genai: %w", err)
	}
	return resp.Text(), nil
}
