// Package mock provides a test double for the chat.Provider interface.
//
// Use Provider in unit tests to verify the requests the coach composer builds
// and to feed controlled replies without a live backend. All fields are safe
// to set before calling any method; mutating them during a concurrent call is
// the caller's responsibility.
//
// Example:
//
//	p := &mock.Provider{Replies: []string{"Чудесно!"}}
//	text, err := p.Reply(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/dbozhinov/govorko/pkg/provider/chat"
)

// Ensure Provider implements chat.Provider at compile time.
var _ chat.Provider = (*Provider)(nil)

// ReplyCall records a single invocation of Reply.
type ReplyCall struct {
	// Ctx is the context passed to Reply.
	Ctx context.Context
	// Req is the Request passed to Reply.
	Req chat.Request
}

// Provider is a mock implementation of chat.Provider.
type Provider struct {
	mu sync.Mutex

	// ProviderName is returned by Name. Defaults to "mock".
	ProviderName string

	// Replies is the sequence returned by successive Reply calls. The last
	// entry repeats once the sequence is exhausted.
	Replies []string

	// Err, if non-nil, is returned as the error from every Reply call.
	Err error

	// Delay, if set, blocks each Reply call until the channel is closed or
	// the context is cancelled. Useful for timeout tests.
	Delay chan struct{}

	// ReplyCalls records every invocation of Reply in order.
	ReplyCalls []ReplyCall
}

// Name returns ProviderName, defaulting to "mock".
func (p *Provider) Name() string {
	if p.ProviderName != "" {
		return p.ProviderName
	}
	return "mock"
}

// Reply records the call and returns the next scripted reply or Err.
func (p *Provider) Reply(ctx context.Context, req chat.Request) (string, error) {
	p.mu.Lock()
	i := len(p.ReplyCalls)
	p.ReplyCalls = append(p.ReplyCalls, ReplyCall{Ctx: ctx, Req: req})
	delay := p.Delay
	err := p.Err
	var reply string
	if len(p.Replies) > 0 {
		if i >= len(p.Replies) {
			i = len(p.Replies) - 1
		}
		reply = p.Replies[i]
	}
	p.mu.Unlock()

	if delay != nil {
		select {
		case <-delay:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// CallCount returns the number of recorded Reply calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ReplyCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ReplyCalls = nil
}
