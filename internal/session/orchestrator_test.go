package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dbozhinov/govorko/internal/asr"
	"github.com/dbozhinov/govorko/internal/coach"
	"github.com/dbozhinov/govorko/internal/content"
	"github.com/dbozhinov/govorko/internal/detect"
	"github.com/dbozhinov/govorko/internal/vad"
	"github.com/dbozhinov/govorko/pkg/provider/chat"
	chatmock "github.com/dbozhinov/govorko/pkg/provider/chat/mock"
)

const testGrammar = `{
  "items": [
    {"id": "bg.no_infinitive.da_present", "title_bg": "Да-конструкция", "micro_explanation_bg": "Използвай да + сегашно време."},
    {"id": "bg.future.shte", "title_bg": "Бъдеще време", "micro_explanation_bg": "Бъдеще време се образува с ще."},
    {"id": "bg.def_article.postposed", "title_bg": "Членуване", "micro_explanation_bg": "Членът е след думата."},
    {"id": "bg.clitic.wackernagel", "title_bg": "Клитики", "micro_explanation_bg": "Клитиките не са първи."},
    {"id": "bg.agreement.gender_number", "title_bg": "Съгласуване", "micro_explanation_bg": "Съгласувай по род и число."}
  ]
}`

// scriptedModel answers partial passes (greedy beam) and final passes (wide
// beam) with fixed texts, so tests control the transcript without audio.
type scriptedModel struct {
	partialText string
	finalText   string
	err         error
}

func (m *scriptedModel) Transcribe(ctx context.Context, samples []float32, opts asr.PassOptions) (asr.PassResult, error) {
	if m.err != nil {
		return asr.PassResult{}, m.err
	}
	if opts.BeamSize <= 1 {
		return asr.PassResult{Text: m.partialText, AvgLogProb: -0.4}, nil
	}
	return asr.PassResult{Text: m.finalText, AvgLogProb: -0.2}, nil
}

func (m *scriptedModel) Close() error { return nil }

// recordSink captures emitted messages in order.
type recordSink struct {
	mu     sync.Mutex
	kinds  []string
	texts  []string
	confs  []float64
	coach  []coach.Response
	errors []string
}

func (s *recordSink) SendPartial(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, "partial")
	s.texts = append(s.texts, text)
	return nil
}

func (s *recordSink) SendFinal(text string, confidence float64, durationMs int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, "final")
	s.texts = append(s.texts, text)
	s.confs = append(s.confs, confidence)
	return nil
}

func (s *recordSink) SendCoach(resp coach.Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, "coach")
	s.coach = append(s.coach, resp)
	return nil
}

func (s *recordSink) SendError(code, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.kinds = append(s.kinds, "error")
	s.errors = append(s.errors, code)
	return nil
}

func (s *recordSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.kinds))
	copy(out, s.kinds)
	return out
}

func (s *recordSink) countOf(kind string) int {
	n := 0
	for _, k := range s.snapshot() {
		if k == kind {
			n++
		}
	}
	return n
}

func newTestOrchestrator(t *testing.T, model asr.Model, sink Sink, cfg Config) *Orchestrator {
	t.Helper()
	store, err := content.LoadFromBytes([]byte(testGrammar), []byte(`{"scenarios":[]}`))
	if err != nil {
		t.Fatalf("load test pack: %v", err)
	}
	engine := asr.NewEngine(model, asr.Config{Workers: 2}, nil)
	composer := coach.New(store, detect.New(store), &chatmock.Provider{Replies: []string{"Добре, продължавай!"}}, coach.Config{}, nil)
	gate := vad.NewGate(vad.Config{TailMs: 100, MinSpeechMs: 100})
	return New("test-session", gate, engine, nil, composer, sink, cfg, nil)
}

func speechFrame() []byte {
	frame := make([]byte, vad.FrameBytes)
	for i := 0; i < vad.FrameSamples; i++ {
		var s int16 = 8000
		if i%2 == 0 {
			s = -8000
		}
		frame[i*2] = byte(s)
		frame[i*2+1] = byte(s >> 8)
	}
	return frame
}

func feedUtterance(t *testing.T, o *Orchestrator, speechFrames int) {
	t.Helper()
	ctx := context.Background()
	for range speechFrames {
		if err := o.HandleFrame(ctx, speechFrame()); err != nil {
			t.Fatalf("HandleFrame(speech): %v", err)
		}
	}
	// Silence frames complete the 100 ms tail.
	for range 5 {
		if err := o.HandleFrame(ctx, make([]byte, vad.FrameBytes)); err != nil {
			t.Fatalf("HandleFrame(silence): %v", err)
		}
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestOrchestratorFinalThenCoach(t *testing.T) {
	sink := &recordSink{}
	model := &scriptedModel{finalText: "Искам поръчвам кафе."}
	// A long partial interval keeps partials out of this test.
	o := newTestOrchestrator(t, model, sink, Config{PartialInterval: time.Hour, L1: content.L1Polish})

	feedUtterance(t, o, 10)

	kinds := sink.snapshot()
	if len(kinds) != 2 || kinds[0] != "final" || kinds[1] != "coach" {
		t.Fatalf("messages = %v; want final then coach", kinds)
	}
	if sink.texts[0] != "Искам поръчвам кафе." {
		t.Errorf("final text = %q", sink.texts[0])
	}
	if sink.confs[0] <= 0.5 {
		t.Errorf("confidence = %f; want > 0.5", sink.confs[0])
	}
	resp := sink.coach[0]
	if len(resp.Corrections) != 1 || resp.Corrections[0].ErrorTag != "bg.no_infinitive.da_present" {
		t.Errorf("coach corrections = %+v", resp.Corrections)
	}
	if o.State() != StateListening {
		t.Errorf("state = %v; want listening after the cycle", o.State())
	}
}

func TestOrchestratorPartialsBeforeFinal(t *testing.T) {
	sink := &recordSink{}
	model := &scriptedModel{partialText: "Искам", finalText: "Искам кафе."}
	o := newTestOrchestrator(t, model, sink, Config{PartialInterval: time.Millisecond})

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := o.HandleFrame(ctx, speechFrame()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(3 * time.Millisecond)
	}
	waitFor(t, func() bool { return sink.countOf("partial") >= 1 })

	for range 5 {
		if err := o.HandleFrame(ctx, make([]byte, vad.FrameBytes)); err != nil {
			t.Fatal(err)
		}
	}

	kinds := sink.snapshot()
	finalIdx := -1
	for i, k := range kinds {
		if k == "final" {
			finalIdx = i
		}
	}
	if finalIdx == -1 {
		t.Fatalf("messages = %v; no final emitted", kinds)
	}
	for i, k := range kinds {
		switch {
		case i < finalIdx && k != "partial":
			t.Errorf("messages = %v; only partials may precede the final", kinds)
		case i > finalIdx && k != "coach":
			t.Errorf("messages = %v; only the coach message may follow the final", kinds)
		}
	}
}

func TestOrchestratorDebouncesIdenticalPartials(t *testing.T) {
	sink := &recordSink{}
	model := &scriptedModel{partialText: "Искам кафе", finalText: "Искам кафе."}
	o := newTestOrchestrator(t, model, sink, Config{PartialInterval: time.Millisecond})

	ctx := context.Background()
	for i := 0; i < 30; i++ {
		if err := o.HandleFrame(ctx, speechFrame()); err != nil {
			t.Fatal(err)
		}
		time.Sleep(3 * time.Millisecond)
	}
	waitFor(t, func() bool { return sink.countOf("partial") >= 1 })
	// Give further passes a chance to (wrongly) emit duplicates.
	time.Sleep(50 * time.Millisecond)

	if n := sink.countOf("partial"); n != 1 {
		t.Errorf("partials = %d; identical texts must be debounced to 1", n)
	}
}

func TestOrchestratorBadFrame(t *testing.T) {
	sink := &recordSink{}
	o := newTestOrchestrator(t, &scriptedModel{}, sink, Config{})

	err := o.HandleFrame(context.Background(), make([]byte, 100))
	if !errors.Is(err, vad.ErrBadFrame) {
		t.Errorf("err = %v; want ErrBadFrame", err)
	}
}

func TestOrchestratorEngineErrorStillCoaches(t *testing.T) {
	sink := &recordSink{}
	model := &scriptedModel{err: errors.New("model crashed")}
	o := newTestOrchestrator(t, model, sink, Config{PartialInterval: time.Hour})

	feedUtterance(t, o, 10)

	kinds := sink.snapshot()
	if len(kinds) != 2 || kinds[0] != "final" || kinds[1] != "coach" {
		t.Fatalf("messages = %v; the session must keep flowing on engine failure", kinds)
	}
	if sink.texts[0] != "" || sink.confs[0] != 0 {
		t.Errorf("final = %q conf %f; want empty text and zero confidence", sink.texts[0], sink.confs[0])
	}
	if sink.coach[0].ReplyBG != "Не те чух." {
		t.Errorf("coach reply = %q; want the empty-utterance reply", sink.coach[0].ReplyBG)
	}
}

// stalledProvider never answers; it hangs until the context dies.
type stalledProvider struct{}

func (stalledProvider) Name() string { return "stalled" }

func (stalledProvider) Reply(ctx context.Context, req chat.Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestOrchestratorBudgetExpiryEmitsTimeoutError(t *testing.T) {
	sink := &recordSink{}
	store, err := content.LoadFromBytes([]byte(testGrammar), []byte(`{"scenarios":[]}`))
	if err != nil {
		t.Fatalf("load test pack: %v", err)
	}
	engine := asr.NewEngine(&scriptedModel{finalText: "Искам кафе."}, asr.Config{Workers: 2}, nil)
	composer := coach.New(store, detect.New(store), stalledProvider{}, coach.Config{}, nil)
	gate := vad.NewGate(vad.Config{TailMs: 100, MinSpeechMs: 100})
	o := New("test-session", gate, engine, nil, composer, sink, Config{
		PartialInterval: time.Hour,
		UtteranceBudget: 150 * time.Millisecond,
	}, nil)

	feedUtterance(t, o, 10)

	kinds := sink.snapshot()
	if len(kinds) != 2 || kinds[0] != "final" || kinds[1] != "error" {
		t.Fatalf("messages = %v; an expired utterance must end with a timeout error", kinds)
	}
	if sink.errors[0] != "timeout" {
		t.Errorf("error code = %q; want timeout", sink.errors[0])
	}
	if o.State() != StateListening {
		t.Errorf("state = %v; want listening after the timed-out turn", o.State())
	}
}

func TestOrchestratorShortUtteranceIgnored(t *testing.T) {
	sink := &recordSink{}
	o := newTestOrchestrator(t, &scriptedModel{finalText: "Да."}, sink, Config{PartialInterval: time.Hour})

	// 2 speech frames (40 ms) is below the 100 ms minimum.
	feedUtterance(t, o, 2)

	if kinds := sink.snapshot(); len(kinds) != 0 {
		t.Errorf("messages = %v; discarded utterances must emit nothing", kinds)
	}
}

func TestOrchestratorSetL1(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedModel{}, &recordSink{}, Config{})

	if err := o.SetL1(content.L1Ukrainian); err != nil {
		t.Errorf("SetL1(UK): %v", err)
	}
	if err := o.SetL1(content.L1("DE")); err == nil {
		t.Error("SetL1 must reject unsupported languages")
	}
}

func TestOrchestratorClosedRejectsFrames(t *testing.T) {
	o := newTestOrchestrator(t, &scriptedModel{}, &recordSink{}, Config{})
	o.Close()
	if err := o.HandleFrame(context.Background(), speechFrame()); err == nil {
		t.Error("HandleFrame after Close must fail")
	}
	if o.State() != StateClosed {
		t.Errorf("state = %v; want closed", o.State())
	}
}
