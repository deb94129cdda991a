// Package lexicon snaps near-miss words in ASR transcripts to a known
// Bulgarian vocabulary using Double Metaphone phonetic encoding combined with
// Jaro-Winkler string similarity.
//
// The algorithm proceeds in two stages per out-of-vocabulary word:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed over a
//     Latin transliteration of the word and of each vocabulary entry (the
//     encoder only understands Latin letters). Entries sharing a code become
//     phonetic candidates.
//
//  2. Jaro-Winkler ranking: among phonetic candidates, the entry with the
//     highest Jaro-Winkler similarity (computed on the original Cyrillic
//     strings, case-insensitive) is selected, provided it exceeds the
//     phonetic threshold. Without phonetic candidates a secondary pass tests
//     pure Jaro-Winkler similarity against all entries using a stricter
//     fuzzy threshold.
//
// Correction is deliberately conservative: words already in the vocabulary,
// short words, and words with no sufficiently similar entry pass through
// untouched, so the grammar rules downstream always see what the speaker
// plausibly said.
package lexicon

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.80
	defaultFuzzyThreshold    = 0.90

	// Words shorter than this are never corrected; similarity scores over a
	// couple of runes are meaningless.
	minWordRunes = 4
)

// Option is a functional option for configuring a [Corrector].
type Option func(*Corrector)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score required for a
// phonetically-matched entry to be accepted. Default: 0.80.
func WithPhoneticThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score required when no
// phonetic match is found and the corrector falls back to pure string
// similarity. Default: 0.90.
func WithFuzzyThreshold(threshold float64) Option {
	return func(c *Corrector) {
		c.fuzzyThreshold = threshold
	}
}

// entry is one precomputed vocabulary word.
type entry struct {
	word  string
	codes map[string]struct{}
}

// Corrector is a transcript vocabulary corrector. All methods are safe for
// concurrent use — the Corrector is read-only after construction.
type Corrector struct {
	phoneticThreshold float64
	fuzzyThreshold    float64

	entries []entry
	known   map[string]struct{}
}

// New builds a Corrector over vocab, typically [content.Store.Vocabulary].
// Phonetic codes for every entry are precomputed once here so the per-word
// cost at transcription time is a set intersection and a handful of
// Jaro-Winkler comparisons.
func New(vocab []string, opts ...Option) *Corrector {
	c := &Corrector{
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
		known:             make(map[string]struct{}, len(vocab)),
	}
	for _, o := range opts {
		o(c)
	}

	for _, w := range vocab {
		lower := strings.ToLower(strings.TrimSpace(w))
		if lower == "" {
			continue
		}
		if _, dup := c.known[lower]; dup {
			continue
		}
		c.known[lower] = struct{}{}
		c.entries = append(c.entries, entry{
			word:  lower,
			codes: metaphoneCodes(lower),
		})
	}
	return c
}

// Correct rewrites out-of-vocabulary words in text that closely match a
// vocabulary entry, preserving capitalisation and attached punctuation.
// It returns the corrected text and the number of words replaced.
func (c *Corrector) Correct(text string) (string, int) {
	if len(c.entries) == 0 || strings.TrimSpace(text) == "" {
		return text, 0
	}

	fields := strings.Fields(text)
	replaced := 0
	for i, field := range fields {
		prefix, core, suffix := splitPunct(field)
		if core == "" {
			continue
		}
		fixed, ok := c.matchWord(strings.ToLower(core))
		if !ok {
			continue
		}
		if isCapitalized(core) {
			fixed = capitalizeFirst(fixed)
		}
		fields[i] = prefix + fixed + suffix
		replaced++
	}
	if replaced == 0 {
		return text, 0
	}
	return strings.Join(fields, " "), replaced
}

// matchWord finds the best vocabulary entry for a lowercase word, or reports
// that the word should pass through unchanged.
func (c *Corrector) matchWord(word string) (string, bool) {
	if utf8.RuneCountInString(word) < minWordRunes {
		return "", false
	}
	if _, ok := c.known[word]; ok {
		return "", false
	}

	inputCodes := metaphoneCodes(word)

	var (
		best         string
		bestScore    float64
		bestPhonetic bool
	)
	for _, e := range c.entries {
		// Words that differ from an entry only in their ending are
		// inflectional or article variants, not mishearings. Those
		// differences carry the grammar signal and must survive.
		if sameStem(word, e.word) {
			continue
		}
		phonetic := codesOverlap(inputCodes, e.codes)
		score := matchr.JaroWinkler(word, e.word, false)

		if phonetic {
			if score >= c.phoneticThreshold && (!bestPhonetic || score > bestScore) {
				best, bestScore, bestPhonetic = e.word, score, true
			}
		} else if !bestPhonetic {
			if score >= c.fuzzyThreshold && score > bestScore {
				best, bestScore = e.word, score
			}
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// metaphoneCodes returns the Double Metaphone codes of the Latin
// transliteration of a Cyrillic word. Empty codes are excluded.
func metaphoneCodes(word string) map[string]struct{} {
	codes := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(transliterate(word))
	if p != "" {
		codes[p] = struct{}{}
	}
	if s != "" {
		codes[s] = struct{}{}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// sameStem reports whether two words share a common prefix reaching into the
// last two runes of the shorter one, i.e. they differ only in their ending.
func sameStem(a, b string) bool {
	ra, rb := []rune(a), []rune(b)
	shorter := len(ra)
	if len(rb) < shorter {
		shorter = len(rb)
	}
	common := 0
	for common < len(ra) && common < len(rb) && ra[common] == rb[common] {
		common++
	}
	return common >= shorter-2
}

// splitPunct separates leading and trailing punctuation from a token.
func splitPunct(field string) (prefix, core, suffix string) {
	runes := []rune(field)
	start := 0
	for start < len(runes) && !unicode.IsLetter(runes[start]) && !unicode.IsNumber(runes[start]) {
		start++
	}
	end := len(runes)
	for end > start && !unicode.IsLetter(runes[end-1]) && !unicode.IsNumber(runes[end-1]) {
		end--
	}
	return string(runes[:start]), string(runes[start:end]), string(runes[end:])
}

func isCapitalized(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

func capitalizeFirst(word string) string {
	r, size := utf8.DecodeRuneInString(word)
	if r == utf8.RuneError {
		return word
	}
	return string(unicode.ToUpper(r)) + word[size:]
}
