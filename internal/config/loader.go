package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/dbozhinov/govorko/internal/content"
	"gopkg.in/yaml.v3"
)

// ValidTTSProfiles lists the voice profiles the synthesizer ships with.
// Used by [Validate] to warn about unrecognised profile names.
var ValidTTSProfiles = []string{"standard", "natural", "slow", "expressive", "clear"}

// Default returns the built-in configuration: the dummy chat provider, the
// base ASR model, and a server on 0.0.0.0:8080.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:     "0.0.0.0",
			Port:     8080,
			LogLevel: LogInfo,
		},
		LLM: LLMConfig{
			Provider:    ChatDummy,
			Temperature: 0.7,
			TimeoutS:    20,
		},
		ASR: ASRConfig{
			ModelSize:         ModelBase,
			BeamPartial:       1,
			BeamFinal:         3,
			NoSpeechThreshold: 0.6,
		},
		VAD: VADConfig{
			Aggressiveness: 2,
			TailMs:         250,
			MaxUtteranceMs: 15_000,
		},
		TTS: TTSConfig{
			DefaultProfile: "standard",
		},
		Content: ContentConfig{
			Dir:       "content",
			DefaultL1: string(content.L1Polish),
		},
	}
}

// Load builds the effective configuration: defaults, then the optional YAML
// file at path (empty skips it), then environment variable overrides, then
// validation. The result is complete and ready to use.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
		defer f.Close()
		if err := decodeYAML(f, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %q: %w", path, err)
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults, applies env
// overrides, and validates. Useful in tests where configs are constructed
// from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := decodeYAML(r, cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	err := dec.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil // empty file keeps the defaults
	}
	return err
}

// applyEnv overrides cfg from the process environment. Malformed numeric
// values are collected into one joined error rather than silently ignored.
func applyEnv(cfg *Config) error {
	var errs []error

	setStr := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s=%q is not an integer", key, v))
			return
		}
		*dst = n
	}
	setFloat := func(key string, dst *float64) {
		v, ok := os.LookupEnv(key)
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("config: %s=%q is not a number", key, v))
			return
		}
		*dst = f
	}

	setStr("HOST", &cfg.Server.Host)
	setInt("PORT", &cfg.Server.Port)
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok {
		cfg.Server.LogLevel = LogLevel(v)
	}
	if v, ok := os.LookupEnv("CORS_ORIGINS"); ok {
		cfg.Server.CORSOrigins = splitOrigins(v)
	}

	if v, ok := os.LookupEnv("LLM_PROVIDER"); ok {
		cfg.LLM.Provider = ChatProvider(v)
	}
	setStr("OPENAI_API_KEY", &cfg.LLM.OpenAIAPIKey)
	setStr("ANTHROPIC_API_KEY", &cfg.LLM.AnthropicAPIKey)
	setFloat("LLM_TEMPERATURE", &cfg.LLM.Temperature)
	setInt("LLM_MAX_TOKENS", &cfg.LLM.MaxTokens)
	setInt("LLM_TIMEOUT_S", &cfg.LLM.TimeoutS)

	if v, ok := os.LookupEnv("ASR_MODEL_SIZE"); ok {
		cfg.ASR.ModelSize = ModelSize(v)
	}
	setInt("ASR_BEAM_PARTIAL", &cfg.ASR.BeamPartial)
	setInt("ASR_BEAM_FINAL", &cfg.ASR.BeamFinal)
	setFloat("ASR_NO_SPEECH_THRESHOLD", &cfg.ASR.NoSpeechThreshold)

	setInt("VAD_AGGRESSIVENESS", &cfg.VAD.Aggressiveness)
	setInt("VAD_TAIL_MS", &cfg.VAD.TailMs)
	setInt("VAD_MAX_UTTERANCE_MS", &cfg.VAD.MaxUtteranceMs)

	setStr("TTS_BINARY_PATH", &cfg.TTS.BinaryPath)
	setStr("TTS_DEFAULT_PROFILE", &cfg.TTS.DefaultProfile)

	setStr("DEFAULT_L1_LANGUAGE", &cfg.Content.DefaultL1)
	setStr("CONTENT_DIR", &cfg.Content.Dir)

	return errors.Join(errs...)
}

func splitOrigins(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing every hard failure found; recoverable issues are
// logged and fixed up in place, including downgrading a cloud chat provider
// to dummy when its credential is absent.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d is out of range [1, 65535]", cfg.Server.Port))
	}
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: trace, debug, info, warn, error", cfg.Server.LogLevel))
	}

	if !cfg.LLM.Provider.IsValid() {
		errs = append(errs, fmt.Errorf("llm.provider %q is invalid; valid values: dummy, openai, claude, local", cfg.LLM.Provider))
	}
	if cfg.LLM.Temperature < 0 || cfg.LLM.Temperature > 1 {
		errs = append(errs, fmt.Errorf("llm.temperature %.2f is out of range [0, 1]", cfg.LLM.Temperature))
	}
	if cfg.LLM.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("llm.max_tokens %d must not be negative", cfg.LLM.MaxTokens))
	}
	if cfg.LLM.TimeoutS <= 0 {
		errs = append(errs, fmt.Errorf("llm.timeout_s %d must be positive", cfg.LLM.TimeoutS))
	}

	// Absent credentials downgrade to the offline provider so the server
	// still starts; the coach falls back to canned replies.
	switch {
	case cfg.LLM.Provider == ChatOpenAI && cfg.LLM.OpenAIAPIKey == "":
		slog.Warn("OPENAI_API_KEY is not set; falling back to the dummy chat provider")
		cfg.LLM.Provider = ChatDummy
	case cfg.LLM.Provider == ChatClaude && cfg.LLM.AnthropicAPIKey == "":
		slog.Warn("ANTHROPIC_API_KEY is not set; falling back to the dummy chat provider")
		cfg.LLM.Provider = ChatDummy
	}

	if !cfg.ASR.ModelSize.IsValid() {
		errs = append(errs, fmt.Errorf("asr.model_size %q is invalid; valid values: tiny, base, small, medium, large", cfg.ASR.ModelSize))
	}
	if cfg.ASR.BeamPartial < 1 {
		errs = append(errs, fmt.Errorf("asr.beam_partial %d must be at least 1", cfg.ASR.BeamPartial))
	}
	if cfg.ASR.BeamFinal < 1 {
		errs = append(errs, fmt.Errorf("asr.beam_final %d must be at least 1", cfg.ASR.BeamFinal))
	}
	if cfg.ASR.NoSpeechThreshold < 0 || cfg.ASR.NoSpeechThreshold > 1 {
		errs = append(errs, fmt.Errorf("asr.no_speech_threshold %.2f is out of range [0, 1]", cfg.ASR.NoSpeechThreshold))
	}

	if cfg.VAD.Aggressiveness < 0 || cfg.VAD.Aggressiveness > 3 {
		errs = append(errs, fmt.Errorf("vad.aggressiveness %d is out of range [0, 3]", cfg.VAD.Aggressiveness))
	}
	if cfg.VAD.TailMs <= 0 {
		errs = append(errs, fmt.Errorf("vad.tail_ms %d must be positive", cfg.VAD.TailMs))
	}
	if cfg.VAD.MaxUtteranceMs <= cfg.VAD.TailMs {
		errs = append(errs, fmt.Errorf("vad.max_utterance_ms %d must exceed vad.tail_ms %d", cfg.VAD.MaxUtteranceMs, cfg.VAD.TailMs))
	}

	if cfg.TTS.DefaultProfile != "" && !slices.Contains(ValidTTSProfiles, cfg.TTS.DefaultProfile) {
		slog.Warn("unknown TTS profile — may be a typo",
			"profile", cfg.TTS.DefaultProfile,
			"known", ValidTTSProfiles,
		)
	}

	if !content.L1(cfg.Content.DefaultL1).IsValid() {
		errs = append(errs, fmt.Errorf("content.default_l1 %q is invalid; valid values: PL, RU, UK, SR", cfg.Content.DefaultL1))
	}

	return errors.Join(errs...)
}
