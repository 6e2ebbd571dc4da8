package explain

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/kper/funky/solver"
)

// openAIExplainer adapts the same Explainer shape to OpenAI's chat
// completion API, so the CLI can switch backends by config string alone.
type openAIExplainer struct {
	client openai.Client
}

// NewOpenAIExplainer builds an Explainer backed by an OpenAI chat model.
func NewOpenAIExplainer(apiKey string) Explainer {
	return &openAIExplainer{client: openai.NewClient(option.WithAPIKey(apiKey))}
}

func (e *openAIExplainer) Explain(ctx context.Context, f solver.Finding) (string, error) {
	resp, err := e.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModelGPT4o,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt(f)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("explain: openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("explain: openai: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}
