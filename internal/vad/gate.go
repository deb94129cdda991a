// Package vad converts a live 16 kHz PCM stream into bounded single-utterance
// buffers using an energy gate over fixed 20 ms frames.
//
// The gate is a two-state machine (idle, in-speech). Speech frames open an
// utterance and accumulate; a configurable tail of consecutive non-speech
// frames closes it. Utterances shorter than the minimum speech duration are
// discarded silently, and a hard duration cap forces end-of-utterance so a
// hot microphone can never grow the buffer without bound.
package vad

import (
	"errors"
	"fmt"
	"math"
)

const (
	// FrameMs is the fixed frame duration.
	FrameMs = 20

	// FrameSamples is the number of int16 samples per frame at 16 kHz.
	FrameSamples = 320

	// FrameBytes is the size of one frame of 16-bit little-endian mono PCM.
	FrameBytes = FrameSamples * 2
)

// ErrBadFrame is returned for frames that are not exactly [FrameBytes] long.
// The transport closes the stream on this error.
var ErrBadFrame = errors.New("vad: bad frame size")

// EventType classifies what a processed frame produced.
type EventType int

const (
	// EventNone — the frame was consumed with nothing to report (idle
	// silence, or an utterance discarded as too short).
	EventNone EventType = iota

	// EventFrameAccepted — the frame was appended to the utterance buffer.
	EventFrameAccepted

	// EventEndOfUtterance — the silence tail completed an utterance; the
	// event carries the full PCM buffer.
	EventEndOfUtterance

	// EventTimeout — the utterance hit the duration cap and was force-closed.
	EventTimeout
)

// String returns the event type name for logging.
func (t EventType) String() string {
	switch t {
	case EventNone:
		return "none"
	case EventFrameAccepted:
		return "frame_accepted"
	case EventEndOfUtterance:
		return "end_of_utterance"
	case EventTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Event is the outcome of processing one frame. PCM is only set for
// [EventEndOfUtterance] and [EventTimeout]; the slice is owned by the caller
// afterwards and never reused by the gate.
type Event struct {
	Type EventType
	PCM  []byte
}

// Config holds the gate tuning knobs. Zero values select the defaults.
type Config struct {
	// Aggressiveness selects speech-detection sensitivity, 0 (permissive)
	// to 3 (strict). Out-of-range values are clamped.
	Aggressiveness int

	// TailMs is the trailing silence that ends an utterance. Default: 250.
	TailMs int

	// MaxUtteranceMs caps utterance duration. Default: 15000.
	MaxUtteranceMs int

	// MinSpeechMs discards utterances with less accumulated speech than
	// this. Default: 200.
	MinSpeechMs int
}

// rmsThresholds maps aggressiveness to the minimum frame RMS treated as
// speech. Tuned around typical close-microphone capture levels.
var rmsThresholds = [4]float64{150, 225, 300, 450}

const (
	defaultTailMs         = 250
	defaultMaxUtteranceMs = 15_000
	defaultMinSpeechMs    = 200
)

// Gate is the per-session utterance assembler. It is owned by a single
// orchestrator goroutine and is not safe for concurrent use.
type Gate struct {
	threshold    float64
	tailFrames   int
	maxFrames    int
	minSpeechFr  int
	inSpeech     bool
	silenceRun   int
	speechFrames int
	buf          []byte
}

// NewGate creates a Gate with cfg, filling defaults for zero fields and
// clamping aggressiveness into [0,3].
func NewGate(cfg Config) *Gate {
	if cfg.TailMs <= 0 {
		cfg.TailMs = defaultTailMs
	}
	if cfg.MaxUtteranceMs <= 0 {
		cfg.MaxUtteranceMs = defaultMaxUtteranceMs
	}
	if cfg.MinSpeechMs <= 0 {
		cfg.MinSpeechMs = defaultMinSpeechMs
	}
	agg := cfg.Aggressiveness
	if agg < 0 {
		agg = 0
	} else if agg > 3 {
		agg = 3
	}

	return &Gate{
		threshold:   rmsThresholds[agg],
		tailFrames:  ceilDiv(cfg.TailMs, FrameMs),
		maxFrames:   cfg.MaxUtteranceMs / FrameMs,
		minSpeechFr: ceilDiv(cfg.MinSpeechMs, FrameMs),
	}
}

// ProcessFrame feeds one 20 ms frame through the state machine.
func (g *Gate) ProcessFrame(frame []byte) (Event, error) {
	if len(frame) != FrameBytes {
		return Event{}, fmt.Errorf("%w: got %d bytes, want %d", ErrBadFrame, len(frame), FrameBytes)
	}

	speech := computeRMS(frame) >= g.threshold

	if !g.inSpeech {
		if !speech {
			return Event{Type: EventNone}, nil
		}
		g.inSpeech = true
		g.silenceRun = 0
		g.speechFrames = 1
		g.buf = append(g.buf, frame...)
		return g.checkCap()
	}

	g.buf = append(g.buf, frame...)
	if speech {
		g.silenceRun = 0
		g.speechFrames++
	} else {
		g.silenceRun++
		if g.silenceRun >= g.tailFrames {
			return g.finish(EventEndOfUtterance), nil
		}
	}
	return g.checkCap()
}

// checkCap enforces the utterance duration cap after a buffered frame.
func (g *Gate) checkCap() (Event, error) {
	if len(g.buf)/FrameBytes >= g.maxFrames {
		return g.finish(EventTimeout), nil
	}
	return Event{Type: EventFrameAccepted}, nil
}

// finish closes the current utterance, returning it or discarding it when
// too little speech accumulated.
func (g *Gate) finish(kind EventType) Event {
	buf := g.buf
	tooShort := g.speechFrames < g.minSpeechFr
	g.Reset()
	if tooShort {
		return Event{Type: EventNone}
	}
	return Event{Type: kind, PCM: buf}
}

// Reset returns the gate to idle and drops any buffered audio.
func (g *Gate) Reset() {
	g.inSpeech = false
	g.silenceRun = 0
	g.speechFrames = 0
	g.buf = nil
}

// InSpeech reports whether an utterance is currently open.
func (g *Gate) InSpeech() bool {
	return g.inSpeech
}

// BufferedMs returns the duration of audio buffered so far.
func (g *Gate) BufferedMs() int {
	return len(g.buf) / FrameBytes * FrameMs
}

// Buffer returns the PCM accumulated for the open utterance. The orchestrator
// reads it for partial transcription passes; it must not be mutated.
func (g *Gate) Buffer() []byte {
	return g.buf
}

// computeRMS returns the root-mean-square amplitude of int16 LE PCM.
func computeRMS(pcm []byte) float64 {
	if len(pcm) < 2 {
		return 0
	}
	var sum float64
	n := len(pcm) / 2
	for i := 0; i < n; i++ {
		s := int16(pcm[i*2]) | int16(pcm[i*2+1])<<8
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(n))
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
