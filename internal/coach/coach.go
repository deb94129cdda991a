// Package coach turns a final transcript into a complete coaching response:
// a short Bulgarian reply from a chat provider, the detected grammar
// corrections, a contrastive note for the learner's native language, and up
// to two practice drills per correction.
//
// The chat provider sits behind a circuit breaker and a per-call deadline;
// when it is slow, open, or down, the composer degrades to a deterministic
// local reply so the session never stalls waiting for coaching.
package coach

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/dbozhinov/govorko/internal/cache"
	"github.com/dbozhinov/govorko/internal/content"
	"github.com/dbozhinov/govorko/internal/detect"
	"github.com/dbozhinov/govorko/internal/resilience"
	"github.com/dbozhinov/govorko/pkg/provider/chat"
)

const (
	// systemPrompt instructs the provider. Kept fixed so replies stay cacheable.
	systemPrompt = "You are a Bulgarian language coach for a learner whose native language is Slavic. " +
		"Reply ONLY in Bulgarian. Be concise: one or two short sentences that keep the conversation going."

	// fallbackReply opens every locally composed response.
	fallbackReply = "Разбрах."

	// emptyReply answers utterances that transcribed to nothing.
	emptyReply = "Не те чух."

	// maxDrillsPerCorrection bounds drill attachment.
	maxDrillsPerCorrection = 2

	defaultTimeout   = 20 * time.Second
	defaultCacheSize = 100
)

// Drill is a practice exercise attached to a response, tagged with the
// grammar item it originates from.
type Drill struct {
	content.Drill
	ErrorTag string `json:"error_tag"`
}

// Response is the complete coaching payload for one utterance.
type Response struct {
	// ReplyBG is the Bulgarian conversational reply.
	ReplyBG string `json:"reply_bg"`

	// Corrections are the detected grammar errors, in reading order.
	Corrections []detect.Correction `json:"corrections"`

	// ContrastiveNote explains the first correction in terms of the
	// learner's native language. Absent when nothing was detected.
	ContrastiveNote string `json:"contrastive_note,omitempty"`

	// Drills are practice exercises, at most two per correction,
	// de-duplicated across corrections.
	Drills []Drill `json:"drills"`
}

// Config tunes the composer. Zero values select the defaults.
type Config struct {
	// Temperature passed to the chat provider.
	Temperature float64

	// MaxTokens passed to the chat provider.
	MaxTokens int

	// Timeout bounds each provider call. Default: 20s.
	Timeout time.Duration

	// CacheSize caps the response cache. Default: 100.
	CacheSize int
}

// Composer builds coaching responses. Safe for concurrent use.
type Composer struct {
	store     *content.Store
	detector  *detect.Detector
	provider  chat.Provider
	breaker   *resilience.CircuitBreaker
	responses *cache.LRU[Response]
	cfg       Config
	log       *slog.Logger
}

// New creates a Composer using provider for conversational replies.
func New(store *content.Store, detector *detect.Detector, provider chat.Provider, cfg Config, log *slog.Logger) *Composer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = defaultCacheSize
	}
	if log == nil {
		log = slog.Default()
	}
	return &Composer{
		store:    store,
		detector: detector,
		provider: provider,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "chat:" + provider.Name(),
		}),
		responses: cache.New[Response](cfg.CacheSize),
		cfg:       cfg,
		log:       log.With("component", "coach"),
	}
}

// Compose builds the full coaching response for a final transcript.
// It never returns an error: provider failures degrade to the deterministic
// local reply. A context cancellation (session closed) returns false and the
// caller must not emit anything.
func (c *Composer) Compose(ctx context.Context, transcript string, l1 content.L1) (Response, bool) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return Response{ReplyBG: emptyReply, Corrections: []detect.Correction{}, Drills: []Drill{}}, true
	}

	key := cache.Sum(
		[]byte(normalizeForKey(transcript)),
		[]byte(l1),
		[]byte(c.store.Version()),
	)
	if hit, ok := c.responses.Get(key); ok {
		return hit, true
	}

	corrections := c.detector.Detect(transcript, l1)

	reply, ok := c.callProvider(ctx, transcript, corrections)
	if !ok {
		if ctx.Err() != nil {
			return Response{}, false
		}
		reply = localReply(corrections)
	}

	resp := Response{
		ReplyBG:     reply,
		Corrections: corrections,
		Drills:      c.attachDrills(corrections),
	}
	if note, found := c.contrastiveNote(corrections, l1); found {
		resp.ContrastiveNote = note
	}

	c.responses.Put(key, resp)
	return resp, true
}

// callProvider runs one chat call through the circuit breaker with the
// configured deadline. ok is false on any failure, including malformed
// (non-Bulgarian) replies.
func (c *Composer) callProvider(ctx context.Context, transcript string, corrections []detect.Correction) (string, bool) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	system := systemPrompt
	if len(corrections) > 0 {
		tags := make([]string, 0, len(corrections))
		for _, corr := range corrections {
			if corr.ErrorTag != "" {
				tags = append(tags, corr.ErrorTag)
			}
		}
		if len(tags) > 0 {
			system += " Detected grammar issues (do not list them, just keep the conversation natural): " +
				strings.Join(tags, ", ")
		}
	}

	var reply string
	err := c.breaker.Execute(func() error {
		var callErr error
		reply, callErr = c.provider.Reply(callCtx, chat.Request{
			System:      system,
			Turns:       []chat.Turn{{Role: chat.RoleUser, Content: transcript}},
			Temperature: c.cfg.Temperature,
			MaxTokens:   c.cfg.MaxTokens,
		})
		return callErr
	})
	if err != nil {
		c.log.Warn("chat provider failed, using local reply",
			"provider", c.provider.Name(), "err", err)
		return "", false
	}

	reply = strings.TrimSpace(reply)
	if !isBulgarian(reply) {
		c.log.Warn("chat provider returned non-Bulgarian reply, using local reply",
			"provider", c.provider.Name())
		return "", false
	}
	return reply, true
}

func (c *Composer) attachDrills(corrections []detect.Correction) []Drill {
	return AttachDrills(c.store, corrections)
}

// AttachDrills collects up to two drills per correction in the item's
// declared order, de-duplicating identical drills across corrections. It is
// shared with the transcript-analysis endpoint, which attaches drills
// without composing a conversational reply.
func AttachDrills(store *content.Store, corrections []detect.Correction) []Drill {
	drills := []Drill{}
	seen := map[string]struct{}{}
	for _, corr := range corrections {
		if corr.ErrorTag == "" {
			continue
		}
		item, err := store.GetItem(corr.ErrorTag)
		if err != nil {
			continue
		}
		attached := 0
		for _, d := range item.Drills {
			if attached >= maxDrillsPerCorrection {
				break
			}
			dedupeKey := d.PromptBG + "\x00" + d.AnswerBG
			if _, dup := seen[dedupeKey]; dup {
				continue
			}
			seen[dedupeKey] = struct{}{}
			drills = append(drills, Drill{Drill: d, ErrorTag: corr.ErrorTag})
			attached++
		}
	}
	return drills
}

// contrastiveNote selects the note of the first correction's grammar item for
// the learner's native language.
func (c *Composer) contrastiveNote(corrections []detect.Correction, l1 content.L1) (string, bool) {
	for _, corr := range corrections {
		if corr.ErrorTag == "" {
			continue
		}
		item, err := c.store.GetItem(corr.ErrorTag)
		if err != nil {
			continue
		}
		return c.store.ContrastFor(item, l1)
	}
	return "", false
}

// localReply is the deterministic fallback when the provider is unavailable.
func localReply(corrections []detect.Correction) string {
	if len(corrections) == 0 {
		return fallbackReply
	}
	return fmt.Sprintf("%s Обърни внимание: %s.", fallbackReply, corrections[0].After)
}

// CacheStats exposes response-cache hit counters for metrics.
func (c *Composer) CacheStats() (hits, misses uint64) {
	return c.responses.Stats()
}

// BreakerState reports the provider circuit breaker state for health checks.
func (c *Composer) BreakerState() resilience.State {
	return c.breaker.State()
}

// normalizeForKey collapses whitespace and case so trivially different
// transcripts share a cache entry.
func normalizeForKey(transcript string) string {
	return strings.ToLower(strings.Join(strings.Fields(transcript), " "))
}

// isBulgarian reports whether the reply contains at least one Cyrillic letter
// and no more than a sprinkle of Latin ones.
func isBulgarian(reply string) bool {
	if reply == "" {
		return false
	}
	var cyr, lat int
	for _, r := range reply {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyr++
		case unicode.IsLetter(r):
			lat++
		}
	}
	return cyr > 0 && lat <= cyr
}
