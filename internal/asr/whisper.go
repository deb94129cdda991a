// This file contains the NativeModel implementation backed by the whisper.cpp
// CGO bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH environment variables.

package asr

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that NativeModel satisfies Model.
var _ Model = (*NativeModel)(nil)

const defaultLanguage = "bg"

// NativeModel implements [Model] using the whisper.cpp Go bindings. The model
// file is loaded once at startup and shared by every pass; whisper contexts
// are not thread-safe, so each pass gets a fresh one and a mutex serialises
// inference.
type NativeModel struct {
	model    whisperlib.Model
	language string
	threads  int

	mu sync.Mutex
}

// NativeOption is a functional option for configuring a NativeModel.
type NativeOption func(*NativeModel)

// WithLanguage sets the transcription language code. Defaults to "bg".
func WithLanguage(lang string) NativeOption {
	return func(m *NativeModel) { m.language = lang }
}

// WithThreads sets the inference thread count. Defaults to the CPU count.
func WithThreads(n int) NativeOption {
	return func(m *NativeModel) { m.threads = n }
}

// NewNativeModel loads the whisper.cpp model from modelPath. The caller must
// call Close when the model is no longer needed.
func NewNativeModel(modelPath string, opts ...NativeOption) (*NativeModel, error) {
	if modelPath == "" {
		return nil, errors.New("asr: model path must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("asr: load model %q: %w", modelPath, err)
	}

	m := &NativeModel{
		model:    model,
		language: defaultLanguage,
		threads:  runtime.NumCPU(),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Close releases the whisper model.
func (m *NativeModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model != nil {
		err := m.model.Close()
		m.model = nil
		return err
	}
	return nil
}

// Transcribe runs one inference pass over 16 kHz mono float32 samples using a
// fresh whisper context configured from opts.
//
// The bindings do not expose whisper.cpp's no-speech threshold, so the
// no-speech probability is derived from the decode itself: 1.0 when the model
// produced no segments at all, otherwise one minus the mean token probability.
// The engine applies opts.NoSpeechThreshold to that estimate.
func (m *NativeModel) Transcribe(ctx context.Context, samples []float32, opts PassOptions) (PassResult, error) {
	if err := ctx.Err(); err != nil {
		return PassResult{}, fmt.Errorf("asr: context already cancelled: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.model == nil {
		return PassResult{}, errors.New("asr: model is closed")
	}

	wctx, err := m.model.NewContext()
	if err != nil {
		return PassResult{}, fmt.Errorf("asr: create context: %w", err)
	}

	if err := wctx.SetLanguage(m.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", m.language, "error", err)
	}
	wctx.SetThreads(uint(m.threads))
	if opts.BeamSize > 1 {
		wctx.SetBeamSize(opts.BeamSize)
	}
	wctx.SetTemperature(opts.Temperature)
	if opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(opts.InitialPrompt)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return PassResult{}, fmt.Errorf("asr: process audio: %w", err)
	}

	var (
		parts      []string
		logProbSum float64
		probSum    float64
		tokens     int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return PassResult{}, fmt.Errorf("asr: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			p := float64(tok.P)
			if p <= 0 {
				p = math.SmallestNonzeroFloat64
			}
			logProbSum += math.Log(p)
			probSum += p
			tokens++
		}
	}

	res := PassResult{Text: strings.Join(parts, " ")}
	if tokens == 0 {
		res.NoSpeechProb = 1.0
		return res, nil
	}
	res.AvgLogProb = logProbSum / float64(tokens)
	res.NoSpeechProb = 1.0 - probSum/float64(tokens)
	if res.NoSpeechProb < 0 {
		res.NoSpeechProb = 0
	}
	return res, nil
}
