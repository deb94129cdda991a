// Package config provides the configuration schema and loader for the Govorko
// server. A Config is built once at startup — defaults, then an optional YAML
// file, then environment variable overrides — and is immutable afterwards.
package config

import "log/slog"

// LogLevel controls log verbosity for the Govorko server.
type LogLevel string

const (
	LogTrace LogLevel = "trace"
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogTrace, LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level maps l onto the slog scale. Trace sits below slog's debug so that
// per-frame diagnostics can be enabled separately from ordinary debug output.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogTrace:
		return slog.LevelDebug - 4
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ChatProvider selects the conversation backend for the coach composer.
type ChatProvider string

const (
	// ChatDummy is the offline canned-reply provider. Always available.
	ChatDummy ChatProvider = "dummy"

	// ChatOpenAI uses the OpenAI chat completions API.
	ChatOpenAI ChatProvider = "openai"

	// ChatClaude uses the Anthropic messages API.
	ChatClaude ChatProvider = "claude"

	// ChatLocal uses a local Ollama-compatible endpoint.
	ChatLocal ChatProvider = "local"
)

// IsValid reports whether p is a recognised chat provider.
func (p ChatProvider) IsValid() bool {
	switch p {
	case ChatDummy, ChatOpenAI, ChatClaude, ChatLocal:
		return true
	}
	return false
}

// ModelSize selects the Whisper model variant to load.
type ModelSize string

const (
	ModelTiny   ModelSize = "tiny"
	ModelBase   ModelSize = "base"
	ModelSmall  ModelSize = "small"
	ModelMedium ModelSize = "medium"
	ModelLarge  ModelSize = "large"
)

// IsValid reports whether m is a recognised model size.
func (m ModelSize) IsValid() bool {
	switch m {
	case ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLarge:
		return true
	}
	return false
}

// Config is the root configuration structure for Govorko.
// It is typically produced by [Load]; every field has a working default.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	LLM     LLMConfig     `yaml:"llm"`
	ASR     ASRConfig     `yaml:"asr"`
	VAD     VADConfig     `yaml:"vad"`
	TTS     TTSConfig     `yaml:"tts"`
	Content ContentConfig `yaml:"content"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// Host is the interface to bind (e.g., "0.0.0.0").
	Host string `yaml:"host"`

	// Port is the TCP port the server listens on.
	Port int `yaml:"port"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// CORSOrigins lists origins allowed to call the HTTP API and open
	// WebSocket sessions. Empty means same-origin only; "*" allows any.
	CORSOrigins []string `yaml:"cors_origins"`

	// MaxSessions caps concurrent WebSocket sessions. 0 selects the default.
	MaxSessions int `yaml:"max_sessions"`
}

// LLMConfig selects and tunes the chat backend used for coach replies.
type LLMConfig struct {
	// Provider selects the backend. The dummy provider needs no credentials.
	Provider ChatProvider `yaml:"provider"`

	// Model overrides the provider's default model name.
	Model string `yaml:"model"`

	// BaseURL overrides the provider's default API endpoint. Used by the
	// local provider when Ollama is not on its default port.
	BaseURL string `yaml:"base_url"`

	// OpenAIAPIKey authenticates the openai provider.
	OpenAIAPIKey string `yaml:"openai_api_key"`

	// AnthropicAPIKey authenticates the claude provider.
	AnthropicAPIKey string `yaml:"anthropic_api_key"`

	// Temperature is the sampling temperature in [0, 1].
	Temperature float64 `yaml:"temperature"`

	// MaxTokens bounds the reply length. 0 selects the provider default.
	MaxTokens int `yaml:"max_tokens"`

	// TimeoutS bounds a single provider call, in seconds.
	TimeoutS int `yaml:"timeout_s"`
}

// ASRConfig tunes the speech recognition engine.
type ASRConfig struct {
	// ModelSize selects the Whisper variant to load.
	ModelSize ModelSize `yaml:"model_size"`

	// ModelPath points at the ggml model file. When empty the path is
	// derived from ModelSize under the content directory.
	ModelPath string `yaml:"model_path"`

	// BeamPartial is the beam width for speculative partial passes.
	BeamPartial int `yaml:"beam_partial"`

	// BeamFinal is the beam width for finalization passes.
	BeamFinal int `yaml:"beam_final"`

	// NoSpeechThreshold is the no-speech probability above which a pass is
	// treated as silence, in [0, 1].
	NoSpeechThreshold float64 `yaml:"no_speech_threshold"`

	// Workers caps concurrent transcription passes. 0 selects NumCPU.
	Workers int `yaml:"workers"`
}

// VADConfig tunes the voice activity gate.
type VADConfig struct {
	// Aggressiveness selects the detection mode, 0 (permissive) to 3 (strict).
	Aggressiveness int `yaml:"aggressiveness"`

	// TailMs is the silence duration that ends an utterance.
	TailMs int `yaml:"tail_ms"`

	// MaxUtteranceMs force-finalizes an utterance that never goes silent.
	MaxUtteranceMs int `yaml:"max_utterance_ms"`
}

// TTSConfig tunes speech synthesis.
type TTSConfig struct {
	// BinaryPath locates the eSpeak NG executable. Empty searches PATH.
	BinaryPath string `yaml:"binary_path"`

	// DefaultProfile is the voice profile used when a request names none.
	DefaultProfile string `yaml:"default_profile"`
}

// ContentConfig locates the pedagogical content pack.
type ContentConfig struct {
	// Dir is the directory holding the content JSON files.
	Dir string `yaml:"dir"`

	// DefaultL1 is the native language assumed for new sessions
	// (PL, RU, UK, or SR).
	DefaultL1 string `yaml:"default_l1"`
}
