package asr

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/dbozhinov/govorko/internal/cache"
)

// ErrBusy is returned by [Engine.Partial] when all transcription workers are
// occupied. Partial passes are best-effort; callers skip and retry on the next
// throttle tick rather than queueing.
var ErrBusy = errors.New("asr: all workers busy")

const (
	defaultBeamPartial       = 1
	defaultBeamFinal         = 3
	defaultNoSpeechThreshold = 0.6
	defaultCacheSize         = 100

	// Silence-hallucination retry parameters. When a final pass yields no
	// text but a high no-speech probability, one retry runs with a lowered
	// threshold and a slightly raised temperature.
	retryNoSpeechProb      = 0.8
	retryNoSpeechThreshold = 0.3
	retryTemperature       = 0.2

	// warmupMs of silence pushed through the model at startup so the first
	// real utterance does not pay first-inference cost.
	warmupMs = 500

	// bytesPerMs of 16 kHz 16-bit mono PCM.
	bytesPerMs = 32
)

// Config tunes the engine. Zero values select the defaults.
type Config struct {
	// BeamPartial is the beam width for partial passes. Default: 1.
	BeamPartial int

	// BeamFinal is the beam width for final passes. Default: 3.
	BeamFinal int

	// NoSpeechThreshold is the regular-pass suppression threshold.
	// Default: 0.6.
	NoSpeechThreshold float64

	// InitialPrompt seeds the decoder. Optional.
	InitialPrompt string

	// Workers bounds concurrent transcription passes across all sessions.
	// Default: the number of CPUs.
	Workers int

	// CacheSize caps the final-transcript cache. Default: 100.
	CacheSize int
}

// FinalTranscript is the engine's post-processed result for one utterance.
type FinalTranscript struct {
	// Text is the transcript, empty when nothing was recognised.
	Text string

	// Confidence is exp(mean token log-probability), clamped to [0,1].
	// It is meaningless when Text is empty.
	Confidence float64

	// DurationMs is the utterance audio duration.
	DurationMs int

	// Cached reports a transcript served from the byte-identical cache.
	Cached bool

	// EngineError is set when the model failed and the transcript is the
	// empty fallback rather than a real result.
	EngineError bool
}

// Engine wraps a [Model] with caching, pooling and the retry policy. Safe for
// concurrent use by any number of sessions.
type Engine struct {
	model  Model
	cfg    Config
	log    *slog.Logger
	pool   *semaphore.Weighted
	finals *cache.LRU[FinalTranscript]
	warmed atomic.Bool
}

// NewEngine creates an Engine around model, filling config defaults.
func NewEngine(model Model, cfg Config, log *slog.Logger) *Engine {
	if cfg.BeamPartial <= 0 {
		cfg.BeamPartial = defaultBeamPartial
	}
	if cfg.BeamFinal <= 0 {
		cfg.BeamFinal = defaultBeamFinal
	}
	if cfg.NoSpeechThreshold <= 0 {
		cfg.NoSpeechThreshold = defaultNoSpeechThreshold
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		model:  model,
		cfg:    cfg,
		log:    log.With("component", "asr"),
		pool:   semaphore.NewWeighted(int64(cfg.Workers)),
		finals: cache.New[FinalTranscript](cfg.CacheSize),
	}
}

// Warmup runs a throwaway pass over 500 ms of silence. Errors are reported so
// the health endpoint can hold readiness at warn until the model responds.
func (e *Engine) Warmup(ctx context.Context) error {
	samples := make([]float32, warmupMs*bytesPerMs/2)
	start := time.Now()
	_, err := e.model.Transcribe(ctx, samples, PassOptions{
		BeamSize:          e.cfg.BeamPartial,
		NoSpeechThreshold: e.cfg.NoSpeechThreshold,
	})
	if err != nil {
		return fmt.Errorf("asr: warmup: %w", err)
	}
	e.warmed.Store(true)
	e.log.Info("model warmed up", "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// Warmed reports whether the warmup pass has completed successfully.
func (e *Engine) Warmed() bool {
	return e.warmed.Load()
}

// Partial runs a low-latency greedy pass over an in-progress utterance buffer.
// Returns [ErrBusy] without blocking when no worker is free, so finalization
// of other sessions is never delayed by speculative work.
func (e *Engine) Partial(ctx context.Context, pcm []byte) (string, error) {
	if !e.pool.TryAcquire(1) {
		return "", ErrBusy
	}
	defer e.pool.Release(1)

	res, err := e.model.Transcribe(ctx, pcmToFloat32(pcm), PassOptions{
		BeamSize:          e.cfg.BeamPartial,
		NoSpeechThreshold: e.cfg.NoSpeechThreshold,
		InitialPrompt:     e.cfg.InitialPrompt,
	})
	if err != nil {
		return "", fmt.Errorf("asr: partial pass: %w", err)
	}
	return strings.TrimSpace(res.Text), nil
}

// Finalize transcribes a complete utterance with the full beam. It never
// returns an error: model failures degrade to an empty transcript with
// EngineError set, so the session can keep flowing.
func (e *Engine) Finalize(ctx context.Context, pcm []byte) FinalTranscript {
	durationMs := len(pcm) / bytesPerMs

	key := cache.Sum(pcm)
	if hit, ok := e.finals.Get(key); ok {
		hit.Cached = true
		return hit
	}

	if err := e.pool.Acquire(ctx, 1); err != nil {
		return FinalTranscript{DurationMs: durationMs, EngineError: true}
	}
	defer e.pool.Release(1)

	samples := pcmToFloat32(pcm)
	res, err := e.model.Transcribe(ctx, samples, PassOptions{
		BeamSize:          e.cfg.BeamFinal,
		NoSpeechThreshold: e.cfg.NoSpeechThreshold,
		InitialPrompt:     e.cfg.InitialPrompt,
	})
	if err != nil {
		e.log.Error("final pass failed", "err", err, "duration_ms", durationMs)
		return FinalTranscript{DurationMs: durationMs, EngineError: true}
	}

	// Whisper sometimes suppresses a whole real utterance as "no speech".
	// One retry with a permissive threshold recovers those; a second empty
	// result is accepted as genuine silence.
	if strings.TrimSpace(res.Text) == "" && res.NoSpeechProb > retryNoSpeechProb {
		e.log.Debug("empty transcript with high no-speech probability, retrying",
			"no_speech_prob", res.NoSpeechProb)
		retry, rerr := e.model.Transcribe(ctx, samples, PassOptions{
			BeamSize:          e.cfg.BeamFinal,
			Temperature:       retryTemperature,
			NoSpeechThreshold: retryNoSpeechThreshold,
			InitialPrompt:     e.cfg.InitialPrompt,
		})
		if rerr != nil {
			e.log.Error("retry pass failed", "err", rerr)
			return FinalTranscript{DurationMs: durationMs, EngineError: true}
		}
		res = retry
	}

	final := FinalTranscript{
		Text:       strings.TrimSpace(res.Text),
		DurationMs: durationMs,
	}
	if final.Text != "" {
		final.Confidence = clamp01(math.Exp(res.AvgLogProb))
	}
	e.finals.Put(key, final)
	return final
}

// CacheStats exposes transcript-cache hit counters for metrics.
func (e *Engine) CacheStats() (hits, misses uint64) {
	return e.finals.Stats()
}

// Close releases the underlying model.
func (e *Engine) Close() error {
	return e.model.Close()
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
