package explain

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/kper/funky/solver"
)

// anthropicExplainer adapts the teacher lineage's configurable-backend shape
// to Anthropic's Messages API.
type anthropicExplainer struct {
	client anthropic.Client
}

// NewAnthropicExplainer builds an Explainer backed by Claude.
func NewAnthropicExplainer(apiKey string) Explainer {
	return &anthropicExplainer{client: anthropic.NewClient(option.WithAPIKey(apiKey))}
}

func (e *anthropicExplainer) Explain(ctx context.Context, f solver.Finding) (string, error) {
	msg, err := e.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.ModelClaudeSonnet4_5,
		MaxTokens: 256,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt(f))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("explain: anthropic: %w", err)
	}
	var out string
	for _, block := range msg.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}
