package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dbozhinov/govorko/internal/asr"
	"github.com/dbozhinov/govorko/internal/coach"
	"github.com/dbozhinov/govorko/internal/config"
	"github.com/dbozhinov/govorko/internal/content"
	"github.com/dbozhinov/govorko/internal/detect"
	"github.com/dbozhinov/govorko/internal/health"
	"github.com/dbozhinov/govorko/internal/lexicon"
	"github.com/dbozhinov/govorko/internal/observe"
	"github.com/dbozhinov/govorko/internal/resilience"
	"github.com/dbozhinov/govorko/internal/server"
	"github.com/dbozhinov/govorko/internal/session"
	"github.com/dbozhinov/govorko/pkg/provider/chat"
	"github.com/dbozhinov/govorko/pkg/provider/chat/claude"
	"github.com/dbozhinov/govorko/pkg/provider/chat/dummy"
	chatlocal "github.com/dbozhinov/govorko/pkg/provider/chat/local"
	chatopenai "github.com/dbozhinov/govorko/pkg/provider/chat/openai"
	"github.com/dbozhinov/govorko/pkg/provider/tts/espeak"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
		workers    int
		logLevel   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the coaching server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return &exitError{exitConfig, err}
			}
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Server.Host = host
			}
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("workers") {
				cfg.ASR.Workers = workers
			}
			if flags.Changed("log-level") {
				cfg.Server.LogLevel = config.LogLevel(logLevel)
			}
			if err := config.Validate(cfg); err != nil {
				return &exitError{exitConfig, err}
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to the YAML configuration file")
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides the configured one)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides the configured one)")
	cmd.Flags().IntVar(&workers, "workers", 0, "transcription worker cap (overrides the configured one)")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "log level: trace, debug, info, warn or error")
	return cmd
}

// serve wires the full pipeline and runs the HTTP server until a shutdown
// signal arrives.
func serve(ctx context.Context, cfg *config.Config) error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.Server.LogLevel.Level(),
	}))
	slog.SetDefault(logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	slog.Info("govorko starting",
		"listen_addr", addr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		return &exitError{exitInternal, fmt.Errorf("init telemetry: %w", err)}
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(flushCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Content and text analysis ─────────────────────────────────────────────
	store, err := content.Load(cfg.Content.Dir)
	if err != nil {
		return &exitError{exitContent, err}
	}
	slog.Info("content loaded",
		"items", store.ItemCount(),
		"scenarios", store.ScenarioCount(),
		"version", store.Version(),
	)

	detector := detect.New(store)
	corrector := lexicon.New(store.Vocabulary())

	// ── Speech recognition ────────────────────────────────────────────────────
	// A missing model does not abort startup: the server comes up with
	// transcription disabled, /health reports fail, and the content and
	// synthesis endpoints stay usable.
	modelPath := resolveModelPath(cfg)
	var model asr.Model
	nativeModel, modelErr := asr.NewNativeModel(modelPath)
	if modelErr != nil {
		slog.Error("whisper model unavailable, transcription disabled",
			"path", modelPath, "err", modelErr)
		model = &unavailableModel{err: modelErr}
	} else {
		model = nativeModel
	}
	engine := asr.NewEngine(model, asr.Config{
		BeamPartial:       cfg.ASR.BeamPartial,
		BeamFinal:         cfg.ASR.BeamFinal,
		NoSpeechThreshold: cfg.ASR.NoSpeechThreshold,
		InitialPrompt:     initialPrompt(store),
		Workers:           cfg.ASR.Workers,
	}, logger)
	defer engine.Close()
	if modelErr == nil {
		go func() {
			if err := engine.Warmup(ctx); err != nil && ctx.Err() == nil {
				slog.Warn("asr warmup failed", "err", err)
			}
		}()
	}

	// ── Coaching ──────────────────────────────────────────────────────────────
	provider, err := buildChatProvider(cfg)
	if err != nil {
		return &exitError{exitConfig, fmt.Errorf("chat provider: %w", err)}
	}
	composer := coach.New(store, detector, provider, coach.Config{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutS) * time.Second,
	}, logger)

	// ── Synthesis ─────────────────────────────────────────────────────────────
	synth, err := espeak.New(cfg.TTS.BinaryPath)
	if err != nil {
		return &exitError{exitConfig, fmt.Errorf("tts: %w", err)}
	}

	// ── Transport ─────────────────────────────────────────────────────────────
	sessions := session.NewManager(cfg.Server.MaxSessions)
	healthHandler := health.New(version,
		healthCheckers(engine, modelErr, store, composer, sessions)...)

	srv := server.New(server.Deps{
		Config:    cfg,
		Store:     store,
		Detector:  detector,
		Composer:  composer,
		Engine:    engine,
		Corrector: corrector,
		Synth:     synth,
		Sessions:  sessions,
		Health:    healthHandler,
		Log:       logger,
	})

	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.Handle("/", srv.Routes())

	printStartupSummary(cfg, store, provider, addr, modelErr)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	slog.Info("server ready — press Ctrl+C to shut down")

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return &exitError{exitInternal, fmt.Errorf("listen on %s: %w", addr, err)}
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutdown signal received, stopping…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return &exitError{exitInternal, err}
	}
	slog.Info("goodbye")
	return nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// defaultChatModels are used when llm.model is left empty.
var defaultChatModels = map[config.ChatProvider]string{
	config.ChatOpenAI: "gpt-4o-mini",
	config.ChatClaude: "claude-3-5-haiku-latest",
	config.ChatLocal:  "llama3.1",
}

// buildChatProvider constructs the conversation backend named in the config.
// Credential presence was already checked during validation; dummy needs no
// credentials at all.
func buildChatProvider(cfg *config.Config) (chat.Provider, error) {
	llm := cfg.LLM
	timeout := time.Duration(llm.TimeoutS) * time.Second
	model := llm.Model
	if model == "" {
		model = defaultChatModels[llm.Provider]
	}

	switch llm.Provider {
	case config.ChatDummy:
		return dummy.New(), nil

	case config.ChatOpenAI:
		opts := []chatopenai.Option{chatopenai.WithTimeout(timeout)}
		if llm.BaseURL != "" {
			opts = append(opts, chatopenai.WithBaseURL(llm.BaseURL))
		}
		return chatopenai.New(llm.OpenAIAPIKey, model, opts...)

	case config.ChatClaude:
		opts := []claude.Option{claude.WithTimeout(timeout)}
		if llm.BaseURL != "" {
			opts = append(opts, claude.WithBaseURL(llm.BaseURL))
		}
		return claude.New(llm.AnthropicAPIKey, model, opts...)

	case config.ChatLocal:
		var opts []anyllmlib.Option
		if llm.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(llm.BaseURL))
		}
		return chatlocal.New(model, opts...)

	default:
		return nil, fmt.Errorf("unknown provider %q", llm.Provider)
	}
}

// resolveModelPath returns the explicit asr.model_path, or derives the ggml
// file name from the model size under the content directory.
func resolveModelPath(cfg *config.Config) string {
	if cfg.ASR.ModelPath != "" {
		return cfg.ASR.ModelPath
	}
	return filepath.Join(cfg.Content.Dir, "models",
		fmt.Sprintf("ggml-%s.bin", cfg.ASR.ModelSize))
}

// initialPromptWords caps how much catalogue vocabulary seeds the decoder.
const initialPromptWords = 24

// initialPrompt biases the decoder towards the catalogue vocabulary, which
// measurably helps with lesson-specific words the base model rarely saw.
func initialPrompt(store *content.Store) string {
	words := store.Vocabulary()
	if len(words) > initialPromptWords {
		words = words[:initialPromptWords]
	}
	return strings.Join(words, ", ")
}

// unavailableModel stands in when the Whisper model failed to load. Every
// pass reports the original load error, so finals degrade to the
// empty-transcript path and Warmed stays false.
type unavailableModel struct{ err error }

var _ asr.Model = (*unavailableModel)(nil)

func (m *unavailableModel) Transcribe(ctx context.Context, samples []float32, opts asr.PassOptions) (asr.PassResult, error) {
	return asr.PassResult{}, m.err
}

func (m *unavailableModel) Close() error { return nil }

// ── Health checks ─────────────────────────────────────────────────────────────

func healthCheckers(engine *asr.Engine, modelErr error, store *content.Store, composer *coach.Composer, sessions *session.Manager) []health.Checker {
	return []health.Checker{
		{
			Name:          "asr:availability",
			ComponentType: "component",
			Check: func(ctx context.Context) health.CheckResult {
				switch {
				case modelErr != nil:
					return health.CheckResult{Status: health.StatusFail, Output: modelErr.Error()}
				case !engine.Warmed():
					return health.CheckResult{Status: health.StatusWarn, Output: "model warming up"}
				default:
					return health.CheckResult{Status: health.StatusPass}
				}
			},
		},
		{
			Name:          "content:catalogue",
			ComponentType: "datastore",
			Check: func(ctx context.Context) health.CheckResult {
				return health.CheckResult{
					Status:        health.StatusPass,
					ObservedValue: store.ItemCount(),
					Output:        "version " + store.Version(),
				}
			},
		},
		{
			Name:          "chat:circuit",
			ComponentType: "component",
			Check: func(ctx context.Context) health.CheckResult {
				state := composer.BreakerState()
				if state == resilience.StateOpen {
					return health.CheckResult{
						Status:        health.StatusWarn,
						ObservedValue: state.String(),
						Output:        "coaching degraded to local replies",
					}
				}
				return health.CheckResult{Status: health.StatusPass, ObservedValue: state.String()}
			},
		},
		{
			Name:          "sessions:active",
			ComponentType: "component",
			Check: func(ctx context.Context) health.CheckResult {
				return health.CheckResult{Status: health.StatusPass, ObservedValue: sessions.Count()}
			},
		},
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, store *content.Store, provider chat.Provider, addr string, modelErr error) {
	asrValue := string(cfg.ASR.ModelSize)
	if modelErr != nil {
		asrValue = "unavailable"
	}
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Govorko — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("ASR model", asrValue)
	printRow("Chat provider", provider.Name())
	printRow("TTS profile", cfg.TTS.DefaultProfile)
	printRow("Grammar items", fmt.Sprintf("%d", store.ItemCount()))
	printRow("Scenarios", fmt.Sprintf("%d", store.ScenarioCount()))
	printRow("Default L1", cfg.Content.DefaultL1)
	printRow("Listen addr", addr)
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-15s : %-19s ║\n", label, value)
}
