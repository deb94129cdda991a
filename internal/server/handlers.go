package server

import (
	"context"
	"errors"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/dbozhinov/govorko/internal/coach"
	"github.com/dbozhinov/govorko/internal/content"
	"github.com/dbozhinov/govorko/pkg/audio"
	"github.com/dbozhinov/govorko/pkg/provider/tts"
)

// ttsTimeout bounds one synthesis request end to end, child process included.
const ttsTimeout = 10 * time.Second

// handleTTS renders `text` with the requested voice profile and serves the
// WAV clip. Synthesis failures still answer 200 with a valid zero-data WAV
// and an X-Synthesis-Error header, so <audio> elements fail soft.
func (s *Server) handleTTS(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, "missing_text", "query parameter text is required")
		return
	}
	if utf8.RuneCountInString(text) > tts.MaxTextLen {
		writeError(w, http.StatusRequestEntityTooLarge, "text_too_long", "text exceeds the synthesis limit")
		return
	}
	profile := r.URL.Query().Get("profile")
	if profile == "" {
		profile = s.cfg.TTS.DefaultProfile
	}

	ctx, cancel := context.WithTimeout(r.Context(), ttsTimeout)
	defer cancel()

	start := time.Now()
	wav, err := s.synth.Synthesize(ctx, text, profile)
	s.metrics.TTSDuration.Record(r.Context(), time.Since(start).Seconds())

	w.Header().Set("Content-Type", "audio/wav")
	switch {
	case errors.Is(err, tts.ErrTextTooLong):
		writeError(w, http.StatusRequestEntityTooLarge, "text_too_long", "text exceeds the synthesis limit")
	case err != nil:
		token := "synthesis_failed"
		if ctx.Err() != nil {
			token = "timeout"
		}
		s.log.Warn("synthesis failed", "profile", profile, "err", err)
		s.metrics.RecordProviderError(r.Context(), "espeak", "tts")
		w.Header().Set("X-Synthesis-Error", token)
		w.WriteHeader(http.StatusOK)
		w.Write(audio.EncodeWAV(nil, tts.SampleRate))
	default:
		w.WriteHeader(http.StatusOK)
		w.Write(wav)
	}
}

// handleTTSProfiles lists the available voice profiles, default first.
func (s *Server) handleTTSProfiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"profiles": s.synth.Profiles()})
}

// handleScenarios lists scenario summaries in catalogue order.
func (s *Server) handleScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"scenarios": s.store.ListScenarios()})
}

// handleGrammarItem serves one grammar item. With ?l1= the contrast map is
// narrowed to that language; without it all notes are included.
func (s *Server) handleGrammarItem(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := s.store.GetItem(id)
	if err != nil {
		writeNotFound(w, id)
		return
	}

	if raw := r.URL.Query().Get("l1"); raw != "" {
		l1 := content.L1(raw)
		if !l1.IsValid() {
			writeError(w, http.StatusBadRequest, "bad_l1", "unsupported native language")
			return
		}
		if note, ok := item.Contrast[l1]; ok {
			item.Contrast = map[content.L1]string{l1: note}
		} else {
			item.Contrast = nil
		}
	}
	writeJSON(w, http.StatusOK, item)
}

// handleDrills serves the drills of one grammar item.
func (s *Server) handleDrills(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	item, err := s.store.GetItem(id)
	if err != nil {
		writeNotFound(w, id)
		return
	}
	drills := item.Drills
	if drills == nil {
		drills = []content.Drill{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": item.ID, "drills": drills})
}

// analyzeRequest is the body of POST /content/analyze.
type analyzeRequest struct {
	Text string `json:"text"`
	L1   string `json:"l1"`
}

// handleAnalyze runs grammar detection over arbitrary text and attaches up to
// two drills per correction. Unlike the live pipeline it composes no reply.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, maxBodyAnalyze, &req) {
		return
	}
	l1 := content.L1(req.L1)
	if !l1.IsValid() {
		writeError(w, http.StatusBadRequest, "bad_l1", "unsupported native language")
		return
	}

	start := time.Now()
	corrections := s.detector.Detect(req.Text, l1)
	s.metrics.DetectDuration.Record(r.Context(), time.Since(start).Seconds())

	writeJSON(w, http.StatusOK, map[string]any{
		"corrections": corrections,
		"drills":      coach.AttachDrills(s.store, corrections),
	})
}

// handleGetConfig reports the runtime-visible configuration.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"default_l1":   s.DefaultL1(),
		"supported_l1": content.SupportedL1,
	})
}

// setL1Request is the body of POST /api/config/l1.
type setL1Request struct {
	L1Language string `json:"l1_language"`
}

// handleSetL1 switches the default native language for new sessions.
func (s *Server) handleSetL1(w http.ResponseWriter, r *http.Request) {
	var req setL1Request
	if !decodeBody(w, r, maxBodyDefault, &req) {
		return
	}
	l1 := content.L1(req.L1Language)
	if !l1.IsValid() {
		writeError(w, http.StatusBadRequest, "bad_l1", "unsupported native language")
		return
	}

	s.mu.Lock()
	s.defaultL1 = l1
	s.mu.Unlock()
	s.log.Info("default native language changed", "l1", l1)

	writeJSON(w, http.StatusOK, map[string]any{"default_l1": l1})
}
