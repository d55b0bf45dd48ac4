package scenario

import (
	"context"

	"github.com/planwise/planner-cli/pkg/anthropic"
)

// Provider is the narrow AI boundary the parser depends on: prompt in,
// text or error out. Keeping it this small lets the schema-mapping and
// confidence logic run against canned outputs in tests.
type Provider interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// anthropicProvider adapts the Anthropic client to the Provider boundary.
type anthropicProvider struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicProvider wraps an Anthropic client as a scenario Provider.
func NewAnthropicProvider(client anthropic.Client, model string) Provider {
	return &anthropicProvider{
		client:    client,
		model:     model,
		maxTokens: 1024,
	}
}

func (p *anthropicProvider) Complete(ctx context.Context, system, prompt string) (string, error) {
	temp := 0.0

	resp, err := p.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       p.model,
		MaxTokens:   p.maxTokens,
		System:      system,
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}

	resp.Usage.LogCost(p.model, "complete")
	return resp.Text(), nil
}
