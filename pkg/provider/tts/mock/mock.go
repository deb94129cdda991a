// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider in unit tests to feed controlled WAV clips without spawning a
// synthesis process. All fields are safe to set before calling any method.
package mock

import (
	"context"
	"sync"

	"github.com/dbozhinov/govorko/pkg/audio"
	"github.com/dbozhinov/govorko/pkg/provider/tts"
)

// Ensure Provider implements tts.Provider at compile time.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeCall records a single invocation of Synthesize.
type SynthesizeCall struct {
	Text    string
	Profile string
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// WAV is returned by Synthesize. When nil, a valid empty clip at the
	// standard sample rate is returned.
	WAV []byte

	// Err, if non-nil, is returned as the error from every Synthesize call.
	Err error

	// ProfileList is returned by Profiles. When nil, a single "standard"
	// profile is returned.
	ProfileList []tts.Profile

	// SynthesizeCalls records every invocation of Synthesize in order.
	SynthesizeCalls []SynthesizeCall
}

// Synthesize records the call and returns WAV, Err.
func (p *Provider) Synthesize(ctx context.Context, text, profile string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SynthesizeCalls = append(p.SynthesizeCalls, SynthesizeCall{Text: text, Profile: profile})
	if p.Err != nil {
		return nil, p.Err
	}
	if p.WAV == nil {
		return audio.EncodeWAV(nil, tts.SampleRate), nil
	}
	out := make([]byte, len(p.WAV))
	copy(out, p.WAV)
	return out, nil
}

// Profiles returns ProfileList or a single default profile.
func (p *Provider) Profiles() []tts.Profile {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ProfileList != nil {
		return p.ProfileList
	}
	return []tts.Profile{{ID: "standard", Name: "Стандартен", Rate: 160, Pitch: 50}}
}

// CallCount returns the number of recorded Synthesize calls. Thread-safe.
func (p *Provider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.SynthesizeCalls)
}
