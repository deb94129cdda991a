package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/dbozhinov/govorko/internal/coach"
	"github.com/dbozhinov/govorko/internal/content"
	"github.com/dbozhinov/govorko/internal/session"
	"github.com/dbozhinov/govorko/internal/vad"
)

// controlMessage is a JSON text message from the client.
type controlMessage struct {
	Type string `json:"type"`
	L1   string `json:"l1"`
}

// handleWS upgrades the connection and runs one coaching session until the
// client disconnects. Binary messages carry whole 20 ms PCM frames; text
// messages carry start/stop/set_l1 controls.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, s.acceptOptions())
	if err != nil {
		s.log.Debug("websocket accept failed", "err", err)
		return
	}

	id := uuid.NewString()
	if err := s.sessions.Add(session.Info{SessionID: id, RemoteAddr: r.RemoteAddr}); err != nil {
		conn.Close(websocket.StatusTryAgainLater, "too many concurrent sessions")
		return
	}
	defer s.sessions.Remove(id)

	ctx := r.Context()
	s.metrics.ActiveSessions.Add(ctx, 1)
	defer s.metrics.ActiveSessions.Add(ctx, -1)

	sink := &wsSink{conn: conn, ctx: ctx, server: s}
	gate := vad.NewGate(vad.Config{
		Aggressiveness: s.cfg.VAD.Aggressiveness,
		TailMs:         s.cfg.VAD.TailMs,
		MaxUtteranceMs: s.cfg.VAD.MaxUtteranceMs,
	})
	orch := session.New(id, gate, s.engine, s.corrector, s.composer, sink, session.Config{
		L1: s.DefaultL1(),
	}, s.log)
	defer orch.Close()

	log := s.log.With("session_id", id)
	log.Info("session opened", "remote_addr", r.RemoteAddr)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || ctx.Err() != nil {
				log.Info("session closed by client")
			} else {
				log.Debug("websocket read failed", "err", err)
			}
			return
		}

		switch typ {
		case websocket.MessageBinary:
			if err := s.handleAudio(ctx, orch, data); err != nil {
				if errors.Is(err, vad.ErrBadFrame) {
					sink.SendError("bad_frame", "binary messages must carry whole 640-byte frames")
					conn.Close(websocket.StatusNormalClosure, "bad frame size")
					return
				}
				log.Error("session pipeline failed", "err", err)
				conn.Close(websocket.StatusInternalError, "internal error")
				return
			}

		case websocket.MessageText:
			stop, err := s.handleControl(orch, sink, data)
			if err != nil {
				sink.SendError("bad_control", err.Error())
				continue
			}
			if stop {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

// handleAudio splits one binary message into frames and feeds them through
// the orchestrator.
func (s *Server) handleAudio(ctx context.Context, orch *session.Orchestrator, data []byte) error {
	if len(data) == 0 || len(data)%vad.FrameBytes != 0 {
		return fmt.Errorf("message of %d bytes: %w", len(data), vad.ErrBadFrame)
	}
	for off := 0; off < len(data); off += vad.FrameBytes {
		if err := orch.HandleFrame(ctx, data[off:off+vad.FrameBytes]); err != nil {
			return err
		}
	}
	return nil
}

// handleControl applies one client control message. It reports stop=true when
// the client asked to end the session.
func (s *Server) handleControl(orch *session.Orchestrator, sink *wsSink, data []byte) (stop bool, err error) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false, errors.New("control message is not valid JSON")
	}
	switch msg.Type {
	case "start":
		// Sessions begin listening on connect; start is acknowledged for
		// clients that send it anyway.
		return false, nil
	case "stop":
		return true, nil
	case "set_l1":
		if err := orch.SetL1(content.L1(msg.L1)); err != nil {
			return false, fmt.Errorf("unsupported native language %q", msg.L1)
		}
		return false, nil
	default:
		return false, fmt.Errorf("unknown control type %q", msg.Type)
	}
}

// acceptOptions maps the CORS allow-list onto WebSocket origin patterns.
func (s *Server) acceptOptions() *websocket.AcceptOptions {
	origins := s.cfg.Server.CORSOrigins
	if len(origins) == 0 {
		return nil
	}
	opts := &websocket.AcceptOptions{}
	for _, o := range origins {
		if o == "*" {
			return &websocket.AcceptOptions{InsecureSkipVerify: true}
		}
		// Origin patterns match on host, not scheme.
		host := strings.TrimPrefix(strings.TrimPrefix(o, "https://"), "http://")
		opts.OriginPatterns = append(opts.OriginPatterns, host)
	}
	return opts
}

// ── outgoing messages ───────────────────────────────────────────────────────

// partialMessage always serializes confidence as null: speculative passes
// carry no calibrated score.
type partialMessage struct {
	Type       string   `json:"type"`
	Text       string   `json:"text"`
	Confidence *float64 `json:"confidence"`
}

type finalMessage struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	DurationMs int     `json:"duration_ms"`
}

type coachMessage struct {
	Type    string         `json:"type"`
	Payload coach.Response `json:"payload"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// wsSink adapts the WebSocket connection to the orchestrator's Sink. A mutex
// serialises writers: the read loop and the partial worker.
type wsSink struct {
	conn   *websocket.Conn
	ctx    context.Context
	server *Server

	mu sync.Mutex
}

var _ session.Sink = (*wsSink)(nil)

func (s *wsSink) SendPartial(text string) error {
	return s.send("partial", partialMessage{Type: "partial", Text: text})
}

func (s *wsSink) SendFinal(text string, confidence float64, durationMs int) error {
	return s.send("final", finalMessage{Type: "final", Text: text, Confidence: confidence, DurationMs: durationMs})
}

func (s *wsSink) SendCoach(resp coach.Response) error {
	return s.send("coach", coachMessage{Type: "coach", Payload: resp})
}

func (s *wsSink) SendError(code, message string) error {
	return s.send("error", errorMessage{Type: "error", Code: code, Message: message})
}

func (s *wsSink) send(kind string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("server: marshal %s message: %w", kind, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.Write(s.ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("server: write %s message: %w", kind, err)
	}
	s.server.metrics.RecordWSMessage(s.ctx, kind)
	return nil
}
