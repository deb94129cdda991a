package detect

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// combining stress marks stripped before matching. ASR output and learner
// material occasionally carry the acute (and sometimes grave) accent used to
// mark Bulgarian word stress.
const (
	combiningAcute = '́'
	combiningGrave = '̀'
)

// normalizeTranscript returns the transcript in NFC form with stress marks
// removed, surrounding whitespace trimmed, and internal whitespace runs
// collapsed to single spaces. All span offsets produced by the detectors
// index into this string, so `before` substrings are always literal slices
// of it.
func normalizeTranscript(s string) string {
	s = norm.NFC.String(s)
	s = strings.Map(func(r rune) rune {
		if r == combiningAcute || r == combiningGrave {
			return -1
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// token is one whitespace-delimited word of the normalized transcript.
// Lower holds the lowercase form with edge punctuation stripped; Start and
// End are byte offsets of the full token (punctuation included) so that
// original-case spans can be sliced back out.
type token struct {
	Text  string
	Word  string // original casing, edge punctuation stripped
	Lower string
	Start int
	End   int
}

// isSentenceEnd reports whether the token's trailing punctuation terminates a
// sentence.
func (t token) isSentenceEnd() bool {
	return strings.ContainsAny(t.Text, ".!?")
}

// tokenize splits text into tokens with byte offsets.
func tokenize(text string) []token {
	var tokens []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, newToken(text, start, i))
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, newToken(text, start, len(text)))
	}
	return tokens
}

func newToken(text string, start, end int) token {
	raw := text[start:end]
	trimmed := strings.TrimFunc(raw, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return token{
		Text:  raw,
		Word:  trimmed,
		Lower: strings.ToLower(trimmed),
		Start: start,
		End:   end,
	}
}

// sentence is a run of tokens ending at sentence-final punctuation.
type sentence struct {
	tokens []token
}

// splitSentences groups tokens into sentences. The trailing group is kept
// even without closing punctuation, matching how spoken transcripts arrive.
func splitSentences(tokens []token) []sentence {
	var out []sentence
	begin := 0
	for i, t := range tokens {
		if t.isSentenceEnd() {
			out = append(out, sentence{tokens: tokens[begin : i+1]})
			begin = i + 1
		}
	}
	if begin < len(tokens) {
		out = append(out, sentence{tokens: tokens[begin:]})
	}
	return out
}

// spanText slices the original-case substring covering tokens[i..j] of text,
// trimming any trailing punctuation of the last token.
func spanText(text string, from, to token) (string, int, int) {
	end := to.End
	raw := text[from.Start:end]
	trimmed := strings.TrimRightFunc(raw, func(r rune) bool {
		return unicode.IsPunct(r) || unicode.IsSymbol(r)
	})
	return trimmed, from.Start, from.Start + len(trimmed)
}
