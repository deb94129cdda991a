// Package session coordinates one live coaching conversation: it feeds audio
// frames through the VAD gate, schedules speculative partial transcriptions,
// finalizes utterances, and emits the resulting messages in a strict order.
//
// One Orchestrator exists per WebSocket connection and is driven by the
// transport's read loop, so all utterance state is single-writer. The only
// background work is at most one in-flight partial pass; finalization runs
// inline, which makes the per-session ordering guarantee — partials, then the
// final, then the coach message, with nothing from the next utterance in
// between — structural rather than something to enforce with locks.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dbozhinov/govorko/internal/asr"
	"github.com/dbozhinov/govorko/internal/coach"
	"github.com/dbozhinov/govorko/internal/content"
	"github.com/dbozhinov/govorko/internal/lexicon"
	"github.com/dbozhinov/govorko/internal/vad"
)

// Sink is where the orchestrator writes outgoing session messages. The
// WebSocket transport implements it; tests substitute a recorder.
//
// Implementations must tolerate calls from two goroutines: the read loop
// (final, coach, error) and the partial worker.
type Sink interface {
	SendPartial(text string) error
	SendFinal(text string, confidence float64, durationMs int) error
	SendCoach(resp coach.Response) error
	SendError(code, message string) error
}

// State is the session lifecycle phase, exported for logging and tests.
type State int

const (
	StateConnected State = iota
	StateListening
	StateTranscribing
	StateCoaching
	StateClosed
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateListening:
		return "listening"
	case StateTranscribing:
		return "transcribing"
	case StateCoaching:
		return "coaching"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	defaultPartialInterval = 250 * time.Millisecond
	defaultUtteranceBudget = 30 * time.Second
)

// Config tunes the orchestrator. Zero values select the defaults.
type Config struct {
	// PartialInterval throttles speculative partial passes. Default: 250ms.
	PartialInterval time.Duration

	// UtteranceBudget bounds finalization plus coaching end to end.
	// Default: 30s.
	UtteranceBudget time.Duration

	// L1 is the learner's native language for this session.
	L1 content.L1
}

// Orchestrator drives one session. HandleFrame and Close must be called from
// the transport read loop; SetL1 may be called from any goroutine.
type Orchestrator struct {
	id        string
	gate      *vad.Gate
	engine    *asr.Engine
	corrector *lexicon.Corrector
	composer  *coach.Composer
	sink      Sink
	cfg       Config
	log       *slog.Logger

	state State

	// Partial-pass bookkeeping. mu guards everything below; the partial
	// worker goroutine and the read loop both touch it.
	mu              sync.Mutex
	l1              content.L1
	utterance       uint64 // increments at each finalization; stale partials check it
	partialInFlight bool
	lastPartialAt   time.Time
	lastPartialText string
}

// New creates an Orchestrator for one connection.
func New(id string, gate *vad.Gate, engine *asr.Engine, corrector *lexicon.Corrector, composer *coach.Composer, sink Sink, cfg Config, log *slog.Logger) *Orchestrator {
	if cfg.PartialInterval <= 0 {
		cfg.PartialInterval = defaultPartialInterval
	}
	if cfg.UtteranceBudget <= 0 {
		cfg.UtteranceBudget = defaultUtteranceBudget
	}
	if !cfg.L1.IsValid() {
		cfg.L1 = content.L1Polish
	}
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		id:        id,
		gate:      gate,
		engine:    engine,
		corrector: corrector,
		composer:  composer,
		sink:      sink,
		cfg:       cfg,
		log:       log.With("component", "session", "session_id", id),
		state:     StateConnected,
		l1:        cfg.L1,
	}
}

// State returns the current lifecycle phase. Only meaningful from the read
// loop goroutine.
func (o *Orchestrator) State() State {
	return o.state
}

// SetL1 switches the learner's native language for subsequent utterances.
func (o *Orchestrator) SetL1(l1 content.L1) error {
	if !l1.IsValid() {
		return fmt.Errorf("session: unsupported native language %q", l1)
	}
	o.mu.Lock()
	o.l1 = l1
	o.mu.Unlock()
	o.log.Info("native language changed", "l1", l1)
	return nil
}

// HandleFrame feeds one 20 ms PCM frame through the pipeline. A [vad.ErrBadFrame]
// return means the transport should report the error and close the stream;
// any other error is a sink write failure and likewise ends the session.
func (o *Orchestrator) HandleFrame(ctx context.Context, frame []byte) error {
	if o.state == StateClosed {
		return errors.New("session: closed")
	}

	ev, err := o.gate.ProcessFrame(frame)
	if err != nil {
		return err
	}

	switch ev.Type {
	case vad.EventNone:
		if o.state == StateConnected {
			o.state = StateListening
		}
		return nil

	case vad.EventFrameAccepted:
		o.state = StateListening
		o.maybeStartPartial(ctx)
		return nil

	case vad.EventEndOfUtterance, vad.EventTimeout:
		return o.finalize(ctx, ev.PCM)

	default:
		return nil
	}
}

// Close transitions the session to Closed. In-flight background work observes
// the transport context and stops on its own.
func (o *Orchestrator) Close() {
	if o.state == StateClosed {
		return
	}
	o.state = StateClosed
	o.gate.Reset()
	o.log.Debug("session closed")
}

// ── partial passes ──────────────────────────────────────────────────────────

// maybeStartPartial launches a speculative transcription of the open
// utterance buffer when the throttle interval has elapsed and no other
// partial is running. The pass is best-effort: a saturated worker pool or a
// finalization that wins the race simply drops it.
func (o *Orchestrator) maybeStartPartial(ctx context.Context) {
	o.mu.Lock()
	if o.partialInFlight || time.Since(o.lastPartialAt) < o.cfg.PartialInterval {
		o.mu.Unlock()
		return
	}
	o.partialInFlight = true
	o.lastPartialAt = time.Now()
	gen := o.utterance
	o.mu.Unlock()

	// The gate buffer is only appended to from the read loop; copy so the
	// worker never observes a concurrent append.
	buf := o.gate.Buffer()
	pcm := make([]byte, len(buf))
	copy(pcm, buf)

	go func() {
		defer func() {
			o.mu.Lock()
			o.partialInFlight = false
			o.mu.Unlock()
		}()

		text, err := o.engine.Partial(ctx, pcm)
		if err != nil {
			if !errors.Is(err, asr.ErrBusy) && ctx.Err() == nil {
				o.log.Debug("partial pass failed", "err", err)
			}
			return
		}
		if text == "" {
			return
		}

		// The send happens under mu: finalize bumps the utterance counter
		// under the same lock before emitting the final, so a stale partial
		// can never appear after its utterance's final message.
		o.mu.Lock()
		defer o.mu.Unlock()
		norm := normalizeWhitespace(text)
		if gen != o.utterance || norm == o.lastPartialText {
			return
		}
		o.lastPartialText = norm
		if err := o.sink.SendPartial(text); err != nil {
			o.log.Debug("partial send failed", "err", err)
		}
	}()
}

// ── finalization ────────────────────────────────────────────────────────────

// finalize runs the full pass, emits the final message, and composes the
// coach response, all within the utterance budget. It runs inline on the read
// loop: frames arriving meanwhile queue in the transport until it returns.
func (o *Orchestrator) finalize(ctx context.Context, pcm []byte) error {
	o.state = StateTranscribing

	o.mu.Lock()
	o.utterance++ // any in-flight partial is now stale
	o.lastPartialText = ""
	l1 := o.l1
	o.mu.Unlock()

	budgetCtx, cancel := context.WithTimeout(ctx, o.cfg.UtteranceBudget)
	defer cancel()

	final := o.engine.Finalize(budgetCtx, pcm)
	if final.EngineError {
		o.log.Warn("transcription failed, emitting empty final", "duration_ms", final.DurationMs)
	}

	text := final.Text
	if o.corrector != nil && text != "" {
		corrected, n := o.corrector.Correct(text)
		if n > 0 {
			o.log.Debug("vocabulary corrections applied", "count", n)
			text = corrected
		}
	}

	confidence := final.Confidence
	if final.EngineError {
		text, confidence = "", 0
	}
	if err := o.sink.SendFinal(text, confidence, final.DurationMs); err != nil {
		return fmt.Errorf("session: send final: %w", err)
	}

	o.state = StateCoaching
	resp, ok := o.composer.Compose(budgetCtx, text, l1)
	if !ok {
		o.state = StateListening
		if ctx.Err() != nil {
			// Session closed mid-composition; emit nothing.
			return nil
		}
		// The utterance budget expired while the transport is still alive.
		// The turn must still terminate for the client: a final with no
		// follow-up would leave the UI waiting forever.
		if err := o.sink.SendError("timeout", "обработката отне твърде дълго"); err != nil {
			return fmt.Errorf("session: send error: %w", err)
		}
		return nil
	}
	if err := o.sink.SendCoach(resp); err != nil {
		return fmt.Errorf("session: send coach: %w", err)
	}

	o.state = StateListening
	return nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
