// Package espeak provides a TTS provider backed by an eSpeak NG child
// process. Each synthesis call spawns the binary with the Bulgarian voice and
// profile-specific rate and pitch flags, captures the WAV it writes to
// stdout, and rewrites the RIFF envelope with the real data length (eSpeak
// streams with a zero-length placeholder when writing to a pipe).
//
// A weighted semaphore caps concurrent child processes so a burst of sessions
// cannot fork-bomb the host. Processes that outlive their context are killed
// and reaped.
package espeak

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"

	"github.com/dbozhinov/govorko/pkg/audio"
	"github.com/dbozhinov/govorko/pkg/provider/tts"
)

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)

const (
	defaultBinary      = "espeak-ng"
	defaultVoice       = "bg"
	defaultMaxParallel = 8

	// reapDelay bounds how long a killed child may linger before Wait gives
	// up on collecting its output pipes.
	reapDelay = 2 * time.Second
)

// profiles are the built-in voice presets, default first. Rates are eSpeak
// words-per-minute; pitch is eSpeak's 0–99 scale.
var profiles = []tts.Profile{
	{ID: "standard", Name: "Стандартен", Description: "Неутрален глас с нормално темпо.", Rate: 170, Pitch: 50},
	{ID: "natural", Name: "Естествен", Description: "Леко по-живо темпо, мек интонационен контур.", Rate: 175, Pitch: 50},
	{ID: "slow", Name: "Бавен", Description: "Забавено темпо за трудни думи и нови конструкции.", Rate: 120, Pitch: 50},
	{ID: "expressive", Name: "Изразителен", Description: "По-висок тон и живо темпо за диалози.", Rate: 185, Pitch: 60},
	{ID: "clear", Name: "Отчетлив", Description: "Умерено темпо и леко повдигнат тон за максимална разбираемост.", Rate: 160, Pitch: 55},
}

// Provider implements tts.Provider by shelling out to eSpeak NG.
type Provider struct {
	binary string
	voice  string
	sem    *semaphore.Weighted
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithVoice overrides the eSpeak voice identifier. Defaults to "bg".
func WithVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// WithMaxParallel caps concurrent child processes. Defaults to 8.
func WithMaxParallel(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

// New creates a Provider using the given binary path. An empty path selects
// "espeak-ng" from PATH. The binary is resolved eagerly so a missing
// installation fails at startup, not on the first request.
func New(binaryPath string, opts ...Option) (*Provider, error) {
	if binaryPath == "" {
		binaryPath = defaultBinary
	}
	resolved, err := exec.LookPath(binaryPath)
	if err != nil {
		return nil, fmt.Errorf("espeak: binary %q not found: %w", binaryPath, err)
	}

	p := &Provider{
		binary: resolved,
		voice:  defaultVoice,
		sem:    semaphore.NewWeighted(defaultMaxParallel),
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Profiles implements tts.Provider.
func (p *Provider) Profiles() []tts.Profile {
	out := make([]tts.Profile, len(profiles))
	copy(out, profiles)
	return out
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, text, profile string) ([]byte, error) {
	if n := utf8.RuneCountInString(text); n > tts.MaxTextLen {
		return nil, fmt.Errorf("%w: %d characters", tts.ErrTextTooLong, n)
	}
	prof := lookupProfile(profile)

	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("espeak: acquire worker: %w", err)
	}
	defer p.sem.Release(1)

	// Text is passed via stdin rather than argv so arbitrary learner-visible
	// content can never be interpreted as a flag.
	cmd := exec.CommandContext(ctx, p.binary,
		"-v", p.voice,
		"-s", strconv.Itoa(prof.Rate),
		"-p", strconv.Itoa(prof.Pitch),
		"--stdout",
		"--stdin",
	)
	cmd.Stdin = bytes.NewReader([]byte(text))
	cmd.WaitDelay = reapDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("espeak: synthesis cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("espeak: %w (stderr: %s)", err, firstLine(stderr.Bytes()))
	}

	wav := stdout.Bytes()
	pcm, _, err := audio.ParseWAV(wav)
	if err != nil {
		return nil, fmt.Errorf("espeak: malformed output: %w", err)
	}
	// Re-envelope so the data length is real instead of the pipe placeholder.
	return audio.EncodeWAV(pcm, tts.SampleRate), nil
}

// lookupProfile resolves a profile ID. "" selects the default; an unknown
// name falls back to the natural preset so stale client profile choices keep
// producing audio.
func lookupProfile(id string) tts.Profile {
	if id == "" {
		return profiles[0]
	}
	for _, prof := range profiles {
		if prof.ID == id {
			return prof
		}
	}
	for _, prof := range profiles {
		if prof.ID == "natural" {
			return prof
		}
	}
	return profiles[0]
}

func firstLine(b []byte) []byte {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i]
	}
	return b
}

// Available reports whether the provider's binary still resolves. Used by the
// health endpoint.
func (p *Provider) Available() error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return errors.New("espeak: binary missing")
	}
	return nil
}
