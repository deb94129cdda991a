// Package detect implements rule-based detection of typical Bulgarian
// grammar errors made by Slavic-L1 learners.
//
// The detector runs a fixed battery of pure functions over a normalized final
// transcript. Each rule targets one phenomenon of the bg.* taxonomy:
//
//   - bg.agreement.gender_number — adjective/noun agreement
//   - bg.def_article.postposed   — missing postposed definite article
//   - bg.clitic.wackernagel      — clitic in a forbidden position
//   - bg.no_infinitive.da_present — modal + bare verb instead of да-clause
//   - bg.future.shte             — future-time adverbial without ще
//
// Results are deterministic for a fixed transcript and content-pack version.
// Unknown surface forms simply produce no correction; the detector never
// returns an error.
package detect

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dbozhinov/govorko/internal/content"
)

// Correction attributes one detected error to a span of the learner's text.
// Before is always a literal substring of the normalized transcript.
type Correction struct {
	// Category is the short rule name, e.g. "agreement".
	Category string `json:"category"`

	// Before is the offending substring as spoken (original casing).
	Before string `json:"before"`

	// After is the proposed replacement.
	After string `json:"after"`

	// NoteBG is the grammar item's micro-explanation.
	NoteBG string `json:"note_bg,omitempty"`

	// ErrorTag is the grammar item id this error maps to.
	ErrorTag string `json:"error_tag,omitempty"`

	// Start and End are character (rune) offsets of Before in the normalized
	// transcript, so JavaScript clients can slice the string directly.
	Start int `json:"start"`
	End   int `json:"end"`
}

// rulePriority orders overlapping corrections; higher wins.
var rulePriority = map[string]int{
	"agreement":     5,
	"def_article":   4,
	"clitic":        3,
	"no_infinitive": 2,
	"future_shte":   1,
}

// rule is one detector pass over a single sentence.
type rule func(d *Detector, text string, s sentence) []Correction

// battery is the fixed rule order. Order matters only for determinism of the
// pre-dedupe list; the final ordering is defined by dedupe.
var battery = []rule{
	(*Detector).detectAgreement,
	(*Detector).detectMissingArticle,
	(*Detector).detectClitic,
	(*Detector).detectBareInfinitive,
	(*Detector).detectFutureWithoutShte,
}

// Detector is a stateless rule battery bound to a content store for
// correction notes. Safe for concurrent use.
type Detector struct {
	store *content.Store
}

// New creates a Detector over the given content store.
func New(store *content.Store) *Detector {
	return &Detector{store: store}
}

// Detect runs the full battery on transcript and returns deduplicated,
// priority-ordered corrections. The l1 code selects nothing today — all rules
// target errors common to the supported Slavic L1s — but it is part of the
// contract so rules can specialise later without an API change.
func (d *Detector) Detect(transcript string, l1 content.L1) []Correction {
	_ = l1

	text := normalizeTranscript(transcript)
	if text == "" {
		return nil
	}

	tokens := tokenize(text)
	sentences := splitSentences(tokens)

	var all []Correction
	for _, r := range battery {
		for _, s := range sentences {
			all = append(all, r(d, text, s)...)
		}
	}

	// Rules work in byte offsets; the API exposes character offsets.
	out := dedupe(all)
	for i, c := range out {
		start := utf8.RuneCountInString(text[:c.Start])
		out[i].Start = start
		out[i].End = start + utf8.RuneCountInString(text[c.Start:c.End])
	}
	return out
}

// annotate fills NoteBG from the content store and verifies the tag resolves.
// A tag that does not resolve is cleared so downstream lookups never dangle.
func (d *Detector) annotate(c Correction) Correction {
	if d.store == nil || c.ErrorTag == "" {
		return c
	}
	item, err := d.store.GetItem(c.ErrorTag)
	if err != nil {
		c.ErrorTag = ""
		return c
	}
	c.NoteBG = item.MicroExplanationBG
	return c
}

// dedupe removes (error_tag, span) duplicates and resolves overlapping spans
// by rule priority. Ties break on earliest offset, then alphabetical tag.
func dedupe(corrections []Correction) []Correction {
	if len(corrections) == 0 {
		return nil
	}

	sort.SliceStable(corrections, func(i, j int) bool {
		a, b := corrections[i], corrections[j]
		pa, pb := rulePriority[a.Category], rulePriority[b.Category]
		if pa != pb {
			return pa > pb
		}
		if a.Start != b.Start {
			return a.Start < b.Start
		}
		return a.ErrorTag < b.ErrorTag
	})

	type spanKey struct {
		tag   string
		start int
		end   int
	}
	seen := make(map[spanKey]struct{}, len(corrections))

	var kept []Correction
	for _, c := range corrections {
		key := spanKey{c.ErrorTag, c.Start, c.End}
		if _, dup := seen[key]; dup {
			continue
		}
		if overlapsAny(kept, c) {
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, c)
	}

	// Present corrections in reading order.
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Start != kept[j].Start {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].ErrorTag < kept[j].ErrorTag
	})
	return kept
}

// overlapsAny reports whether c's span intersects any already-kept span.
// Because kept is processed in priority order, the incumbent always wins.
func overlapsAny(kept []Correction, c Correction) bool {
	for _, k := range kept {
		if c.Start < k.End && k.Start < c.End {
			return true
		}
	}
	return false
}

// isWordIn reports set membership for a lowercase token.
func isWordIn(w string, set map[string]struct{}) bool {
	_, ok := set[w]
	return ok
}

// wordSet builds a lookup set from a space-separated word list.
func wordSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}
