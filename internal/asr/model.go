// Package asr turns buffered PCM utterances into Bulgarian text.
//
// The [Engine] layers transcript caching, model warm-up, a silence-
// hallucination retry, and a bounded worker pool on top of a narrow [Model]
// interface. The production model is the native whisper.cpp binding
// ([NewNativeModel]); tests substitute an in-process fake.
package asr

import "context"

// PassOptions selects decoding parameters for one transcription pass.
type PassOptions struct {
	// BeamSize is the decoder beam width. 1 selects greedy decoding.
	BeamSize int

	// Temperature is the sampling temperature; 0 is deterministic.
	Temperature float32

	// NoSpeechThreshold suppresses output when the model's no-speech
	// probability exceeds it.
	NoSpeechThreshold float64

	// InitialPrompt seeds the decoder with a short Bulgarian context string.
	InitialPrompt string
}

// PassResult is the raw outcome of one pass, before engine post-processing.
type PassResult struct {
	// Text is the joined segment text, whitespace-trimmed.
	Text string

	// AvgLogProb is the mean token log-probability across all segments.
	AvgLogProb float64

	// NoSpeechProb estimates how likely the audio contained no speech.
	NoSpeechProb float64
}

// Model is the minimal transcription surface the engine needs.
// Implementations are expected to serialise access internally if the backing
// runtime is not reentrant.
type Model interface {
	// Transcribe runs one pass over 16 kHz mono float32 samples.
	Transcribe(ctx context.Context, samples []float32, opts PassOptions) (PassResult, error)

	// Close releases model resources.
	Close() error
}
