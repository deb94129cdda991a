// Package local provides a chat provider backed by a local Ollama instance
// via github.com/mozilla-ai/any-llm-go. It keeps coaching fully offline for
// deployments that cannot send learner audio transcripts to a hosted API.
package local

import (
	"context"
	"fmt"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"

	"github.com/dbozhinov/govorko/pkg/provider/chat"
)

// Compile-time assertion that Provider satisfies chat.Provider.
var _ chat.Provider = (*Provider)(nil)

// Provider implements chat.Provider by wrapping an any-llm-go Ollama backend.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a Provider talking to a local Ollama server. Without options it
// connects to http://localhost:11434; pass anyllmlib.WithBaseURL to override.
func New(model string, opts ...anyllmlib.Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("local: model must not be empty")
	}
	backend, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("local: create ollama backend: %w", err)
	}
	return &Provider{backend: backend, model: model}, nil
}

// Name implements chat.Provider.
func (p *Provider) Name() string { return "local" }

// Reply implements chat.Provider.
func (p *Provider) Reply(ctx context.Context, req chat.Request) (string, error) {
	resp, err := p.backend.Completion(ctx, p.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("local: completion: %w: %w", chat.ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("local: empty choices in response: %w", chat.ErrUnavailable)
	}
	return resp.Choices[0].Message.ContentString(), nil
}

// buildParams converts a chat.Request into any-llm-go CompletionParams.
func (p *Provider) buildParams(req chat.Request) anyllmlib.CompletionParams {
	var messages []anyllmlib.Message

	if req.System != "" {
		messages = append(messages, anyllmlib.Message{
			Role:    anyllmlib.RoleSystem,
			Content: req.System,
		})
	}
	for _, t := range req.Turns {
		messages = append(messages, anyllmlib.Message{
			Role:    string(t.Role),
			Content: t.Content,
		})
	}

	params := anyllmlib.CompletionParams{
		Model:    p.model,
		Messages: messages,
	}
	if req.Temperature != 0 {
		t := req.Temperature
		params.Temperature = &t
	}
	if req.MaxTokens > 0 {
		mt := req.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}
