// Package chat defines the Provider interface for conversational LLM backends.
//
// A chat provider wraps a remote or local model API (e.g., OpenAI GPT-4o,
// Anthropic Claude, or a local Ollama instance) and exposes a uniform
// single-reply interface for the coach composer, without coupling it to any
// specific SDK. The composer never streams: a coaching reply is short and is
// spoken as a whole, so the only operation is one bounded completion.
//
// Implementors must be safe for concurrent use and must propagate context
// cancellation promptly.
package chat

import (
	"context"
	"errors"
)

// ErrUnavailable signals that the backend could not be reached or refused the
// request. The composer treats it as a soft failure and falls back to a
// neutral reply; the circuit breaker counts it toward opening.
var ErrUnavailable = errors.New("chat: provider unavailable")

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message in the conversation history sent to the model.
type Turn struct {
	Role    Role
	Content string
}

// Request carries everything the model needs to produce one coaching reply.
type Request struct {
	// System is the coaching instruction injected before the history.
	System string

	// Turns is the ordered conversation history. The last turn is from the
	// user and drives the reply.
	Turns []Turn

	// Temperature controls output randomness. Zero means provider default.
	Temperature float64

	// MaxTokens caps the reply length. Zero means provider default.
	MaxTokens int
}

// Provider is the abstraction over any conversational backend.
type Provider interface {
	// Name returns the provider's registry name (e.g. "openai").
	Name() string

	// Reply sends req to the model and returns the full text of the reply.
	// Transport-level failures are wrapped in [ErrUnavailable].
	Reply(ctx context.Context, req Request) (string, error)
}
