// Package server is the HTTP and WebSocket transport for Govorko. It exposes
// the live coaching socket, speech synthesis, the content catalogue, and the
// health endpoint, all on one mux.
//
// Handlers validate at the boundary and delegate: pipeline semantics live in
// the session, coach, and content packages. The only mutable state owned here
// is the process-wide default native language.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/dbozhinov/govorko/internal/asr"
	"github.com/dbozhinov/govorko/internal/coach"
	"github.com/dbozhinov/govorko/internal/config"
	"github.com/dbozhinov/govorko/internal/content"
	"github.com/dbozhinov/govorko/internal/detect"
	"github.com/dbozhinov/govorko/internal/health"
	"github.com/dbozhinov/govorko/internal/lexicon"
	"github.com/dbozhinov/govorko/internal/observe"
	"github.com/dbozhinov/govorko/internal/session"
	"github.com/dbozhinov/govorko/pkg/provider/tts"
)

const (
	// maxBodyAnalyze bounds the /content/analyze request body.
	maxBodyAnalyze = 32 << 10

	// maxBodyDefault bounds every other JSON request body.
	maxBodyDefault = 8 << 10
)

// Deps are the subsystems the server fronts. All fields except Corrector,
// Metrics, and Log are required.
type Deps struct {
	Config    *config.Config
	Store     *content.Store
	Detector  *detect.Detector
	Composer  *coach.Composer
	Engine    *asr.Engine
	Corrector *lexicon.Corrector
	Synth     tts.Provider
	Sessions  *session.Manager
	Health    *health.Handler
	Metrics   *observe.Metrics
	Log       *slog.Logger
}

// Server routes requests to the pipeline subsystems. Safe for concurrent use.
type Server struct {
	cfg       *config.Config
	store     *content.Store
	detector  *detect.Detector
	composer  *coach.Composer
	engine    *asr.Engine
	corrector *lexicon.Corrector
	synth     tts.Provider
	sessions  *session.Manager
	health    *health.Handler
	metrics   *observe.Metrics
	log       *slog.Logger

	// mu guards the default native language, which POST /api/config/l1 may
	// change at runtime.
	mu        sync.RWMutex
	defaultL1 content.L1
}

// New creates a Server from its dependencies.
func New(deps Deps) *Server {
	log := deps.Log
	if log == nil {
		log = slog.Default()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	l1 := content.L1(deps.Config.Content.DefaultL1)
	if !l1.IsValid() {
		l1 = content.L1Polish
	}
	return &Server{
		cfg:       deps.Config,
		store:     deps.Store,
		detector:  deps.Detector,
		composer:  deps.Composer,
		engine:    deps.Engine,
		corrector: deps.Corrector,
		synth:     deps.Synth,
		sessions:  deps.Sessions,
		health:    deps.Health,
		metrics:   metrics,
		log:       log.With("component", "server"),
		defaultL1: l1,
	}
}

// Routes builds the full handler: all endpoints behind the CORS and
// observability middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws/asr", s.handleWS)

	mux.HandleFunc("GET /tts", s.handleTTS)
	mux.HandleFunc("GET /tts/profiles", s.handleTTSProfiles)

	mux.HandleFunc("GET /content/scenarios", s.handleScenarios)
	mux.HandleFunc("GET /content/grammar/{id}", s.handleGrammarItem)
	mux.HandleFunc("GET /content/drills/{id}", s.handleDrills)
	mux.HandleFunc("POST /content/analyze", s.handleAnalyze)

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("POST /api/config/l1", s.handleSetL1)

	if s.health != nil {
		s.health.Register(mux)
	}

	var h http.Handler = mux
	h = observe.Middleware(s.metrics)(h)
	h = s.corsMiddleware(h)
	return h
}

// DefaultL1 returns the current default native language for new sessions.
func (s *Server) DefaultL1() content.L1 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultL1
}

// ── middleware ──────────────────────────────────────────────────────────────

// corsMiddleware reflects allowed origins from the configuration. An empty
// allow-list leaves responses untouched (same-origin only).
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	allowed := s.cfg.Server.CORSOrigins
	if len(allowed) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && originAllowed(allowed, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func originAllowed(allowed []string, origin string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

// ── response helpers ────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeNotFound(w http.ResponseWriter, id string) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "id": id})
}

// decodeBody decodes a JSON request body into v under the given size limit.
// It distinguishes oversize bodies (413) from malformed JSON (400).
func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds the limit")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad_json", "request body is not valid JSON")
		return false
	}
	return true
}
