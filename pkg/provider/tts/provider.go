// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider turns short Bulgarian coaching texts into complete WAV clips
// (22 050 Hz, mono, 16-bit). Replies are a sentence or two, so the interface
// is a single bounded call rather than a stream: the HTTP handler serves the
// clip as one response body and the browser plays it whole.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"
	"errors"
)

// SampleRate is the output sample rate of every provider, in Hz.
const SampleRate = 22050

// MaxTextLen is the longest text a provider accepts, in characters. Longer
// inputs are rejected before synthesis starts.
const MaxTextLen = 2000

// ErrTextTooLong is returned when the input text exceeds [MaxTextLen].
var ErrTextTooLong = errors.New("tts: text too long")

// Profile describes one named voice rendering preset.
type Profile struct {
	// ID is the profile identifier used in API requests (e.g. "slow").
	ID string `json:"id"`

	// Name is the human-readable profile name, in Bulgarian.
	Name string `json:"name"`

	// Description explains when a learner would pick this profile.
	Description string `json:"description"`

	// Rate is the speaking rate in words per minute.
	Rate int `json:"rate"`

	// Pitch is the voice pitch adjustment, 0–99 with 50 as neutral.
	Pitch int `json:"pitch"`
}

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// Synthesize renders text with the named profile and returns a complete
	// WAV clip. An empty profile selects the provider default; an unknown
	// name falls back to the natural preset.
	Synthesize(ctx context.Context, text, profile string) ([]byte, error)

	// Profiles returns the available voice profiles, default first.
	Profiles() []Profile
}
