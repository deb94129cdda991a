// Package claude provides a chat provider backed by the Anthropic API.
package claude

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dbozhinov/govorko/pkg/provider/chat"
)

// Compile-time assertion that Provider satisfies chat.Provider.
var _ chat.Provider = (*Provider)(nil)

// defaultMaxTokens bounds the reply when the request does not. Coaching
// replies are one or two sentences, so the cap is deliberately small.
const defaultMaxTokens = 300

// Provider implements chat.Provider using the Anthropic API.
type Provider struct {
	client anthropic.Client
	model  string
}

// config holds optional configuration for the provider.
type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default Anthropic API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Anthropic chat Provider.
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("claude: apiKey must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("claude: model must not be empty")
	}

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client: anthropic.NewClient(reqOpts...),
		model:  model,
	}, nil
}

// Name implements chat.Provider.
func (p *Provider) Name() string { return "claude" }

// Reply implements chat.Provider.
func (p *Provider) Reply(ctx context.Context, req chat.Request) (string, error) {
	msg, err := p.client.Messages.New(ctx, p.buildParams(req))
	if err != nil {
		return "", fmt.Errorf("claude: message: %w: %w", chat.ErrUnavailable, err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("claude: no text blocks in response: %w", chat.ErrUnavailable)
	}
	return b.String(), nil
}

// buildParams converts a chat.Request into Anthropic SDK params. The SDK
// requires MaxTokens, so the coaching default applies when unset.
func (p *Provider) buildParams(req chat.Request) anthropic.MessageNewParams {
	var messages []anthropic.MessageParam
	for _, t := range req.Turns {
		block := anthropic.NewTextBlock(t.Content)
		switch t.Role {
		case chat.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(block))
		default:
			messages = append(messages, anthropic.NewUserMessage(block))
		}
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Temperature != 0 {
		params.Temperature = anthropic.Float(req.Temperature)
	}
	return params
}
