package detect

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Grammar item ids the rules map to. Each must exist in the shipped pack;
// annotate clears the tag when a custom pack lacks the item.
const (
	tagNoInfinitive = "bg.no_infinitive.da_present"
	tagFutureShte   = "bg.future.shte"
	tagDefArticle   = "bg.def_article.postposed"
	tagClitic       = "bg.clitic.wackernagel"
	tagAgreement    = "bg.agreement.gender_number"
)

// Closed word classes used by the rules. All lowercase.
var (
	// modalVerbs license a да-clause; a bare present verb after one of these
	// is the classic Slavic infinitive calque.
	modalVerbs = wordSet("искам искаш иска искаме искате искат " +
		"мога можеш може можем можете могат трябва " +
		"започвам започваш започва започваме започвате започват " +
		"спирам спираш спира спираме спирате спират")

	// clitics are the short pronoun forms constrained to Wackernagel position.
	clitics = wordSet("се си ме те го я ни ви ги ми ти му им")

	// initialClitics is the subset flagged when sentence-initial. "ти", "те"
	// and "я" double as full pronouns or particles and are excluded.
	initialClitics = wordSet("се си ме ми го ги му им ни ви")

	// functionWords never participate as verbs or bare nouns.
	functionWords = wordSet("да не ли и а но или в във на с със за от до при към у по над под " +
		"е са съм сме сте си бях беше това тези този тази тук там как какво кой коя кое кои че ако когато")

	// futureAdverbs place the clause in future time on their own.
	futureAdverbs = wordSet("утре вдругиден довечера догодина")

	// timeWords complete a "след …" future adverbial.
	timeWords = wordSet("ден дни седмица седмици месец месеца час часа " +
		"година години минута минути малко")

	// imperativeGivers open a frame whose object needs the definite article.
	imperativeGivers = wordSet("дай подай донеси покажи")

	// feminineConsonantNouns take -та despite ending in a consonant.
	feminineConsonantNouns = wordSet("сол вечер нощ сутрин есен пролет любов кръв помощ радост младост")
)

// presentEndings mark finite present-tense verb forms. Third-person singular
// (-а/-я/-е/-и) is omitted — it collides with too many noun endings.
var presentEndings = []string{"ете", "ите", "ам", "ям", "еш", "иш", "ем", "им", "ат", "ят"}

// looksLikePresentVerb reports whether a lowercase token plausibly is a
// finite present-tense verb.
func looksLikePresentVerb(w string) bool {
	if utf8.RuneCountInString(w) < 4 {
		return false
	}
	if isWordIn(w, functionWords) || isWordIn(w, clitics) || isWordIn(w, modalVerbs) {
		return false
	}
	for _, suf := range presentEndings {
		if strings.HasSuffix(w, suf) {
			return true
		}
	}
	return false
}

// looksLikeModalComplement widens the verb test for the position right after
// a modal. First-person -я verbs ("говоря") lack a listed ending but are
// unambiguous there when the я follows a consonant.
func looksLikeModalComplement(w string) bool {
	if looksLikePresentVerb(w) {
		return true
	}
	runes := []rune(w)
	if len(runes) < 5 || runes[len(runes)-1] != 'я' {
		return false
	}
	if isWordIn(w, functionWords) || isWordIn(w, clitics) {
		return false
	}
	return !strings.ContainsRune("аеиоуюя", runes[len(runes)-2])
}

// ── bare "infinitive" after a modal ──────────────────────────────────────────

// imperfectiveSuffixes maps -в- forms onto the да-clause form of the same
// person ("поръчвам" → "поръчам"). Longest suffix first.
var imperfectiveSuffixes = []struct{ from, to string }{
	{"ваме", "аме"},
	{"вате", "ате"},
	{"вам", "ам"},
	{"ваш", "аш"},
	{"ват", "ат"},
}

// daClauseForm proposes the verb form that follows "да".
func daClauseForm(verb string) string {
	for _, s := range imperfectiveSuffixes {
		// Require a substantial stem so forms like "ставам" keep their -в-.
		if strings.HasSuffix(verb, s.from) && utf8.RuneCountInString(verb) > utf8.RuneCountInString(s.from)+4 {
			return strings.TrimSuffix(verb, s.from) + s.to
		}
	}
	return verb
}

func (d *Detector) detectBareInfinitive(text string, s sentence) []Correction {
	var out []Correction
	for i := 0; i+1 < len(s.tokens); i++ {
		modal, next := s.tokens[i], s.tokens[i+1]
		if !isWordIn(modal.Lower, modalVerbs) {
			continue
		}
		if !looksLikeModalComplement(next.Lower) {
			continue
		}
		before, start, end := spanText(text, modal, next)
		out = append(out, d.annotate(Correction{
			Category: "no_infinitive",
			Before:   before,
			After:    modal.Word + " да " + daClauseForm(next.Lower),
			ErrorTag: tagNoInfinitive,
			Start:    start,
			End:      end,
		}))
	}
	return out
}

// ── future time without ще ───────────────────────────────────────────────────

func (d *Detector) detectFutureWithoutShte(text string, s sentence) []Correction {
	hasFutureAdverb := false
	for i, t := range s.tokens {
		if t.Lower == "ще" {
			return nil
		}
		if isWordIn(t.Lower, futureAdverbs) {
			hasFutureAdverb = true
		}
		if t.Lower == "след" && i+2 < len(s.tokens) {
			// "след два дни", "след седмица"
			if isWordIn(s.tokens[i+1].Lower, timeWords) || isWordIn(s.tokens[i+2].Lower, timeWords) {
				hasFutureAdverb = true
			}
		}
	}
	if !hasFutureAdverb {
		return nil
	}

	for _, t := range s.tokens {
		if !looksLikePresentVerb(t.Lower) {
			continue
		}
		before, start, end := spanText(text, t, t)
		return []Correction{d.annotate(Correction{
			Category: "future_shte",
			Before:   before,
			After:    "ще " + t.Lower,
			ErrorTag: tagFutureShte,
			Start:    start,
			End:      end,
		})}
	}
	return nil
}

// ── missing postposed definite article ───────────────────────────────────────

// definiteSuffixes mark an already-articled noun.
var definiteSuffixes = []string{"ът", "ят", "та", "то", "те"}

func hasDefiniteSuffix(w string) bool {
	for _, suf := range definiteSuffixes {
		if strings.HasSuffix(w, suf) {
			return true
		}
	}
	return false
}

// definiteForm appends the article matching the noun's apparent gender.
func definiteForm(word string) string {
	lower := strings.ToLower(word)
	if isWordIn(lower, feminineConsonantNouns) {
		return word + "та"
	}
	r, _ := utf8.DecodeLastRuneInString(lower)
	switch r {
	case 'а', 'я':
		return word + "та"
	case 'о', 'е', 'ю':
		return word + "то"
	case 'и':
		return word + "те"
	default:
		return word + "ът"
	}
}

// bareNoun reports whether the token can take an article proposal.
func bareNoun(t token) bool {
	if utf8.RuneCountInString(t.Lower) < 3 {
		return false
	}
	if isWordIn(t.Lower, functionWords) || isWordIn(t.Lower, clitics) || isWordIn(t.Lower, modalVerbs) {
		return false
	}
	// Proper names keep their casing mid-sentence and never take the article.
	if t.Start > 0 {
		r, _ := utf8.DecodeRuneInString(t.Word)
		if unicode.IsUpper(r) {
			return false
		}
	}
	return !hasDefiniteSuffix(t.Lower)
}

func (d *Detector) detectMissingArticle(text string, s sentence) []Correction {
	var out []Correction
	emit := func(t token) {
		before, start, end := spanText(text, t, t)
		out = append(out, d.annotate(Correction{
			Category: "def_article",
			Before:   before,
			After:    definiteForm(t.Word),
			ErrorTag: tagDefArticle,
			Start:    start,
			End:      end,
		}))
	}

	toks := s.tokens
	for i := 0; i < len(toks); i++ {
		// "къде е <noun>" — locative questions require the article.
		if toks[i].Lower == "къде" && i+2 < len(toks) && toks[i+1].Lower == "е" && bareNoun(toks[i+2]) {
			emit(toks[i+2])
			continue
		}

		// "дай/подай [ми] <noun>" — definite object of a giving imperative.
		if isWordIn(toks[i].Lower, imperativeGivers) {
			j := i + 1
			for j < len(toks) && isWordIn(toks[j].Lower, clitics) {
				j++
			}
			if j < len(toks) && bareNoun(toks[j]) {
				emit(toks[j])
			}
		}
	}

	// "<noun>, моля" — elliptic requests ("Сметката, моля").
	if len(toks) == 2 && toks[1].Lower == "моля" &&
		strings.HasSuffix(toks[0].Text, ",") && bareNoun(toks[0]) {
		emit(toks[0])
	}
	return out
}

// ── clitic misplacement ──────────────────────────────────────────────────────

func capitalizeFirst(w string) string {
	r, size := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[size:]
}

func (d *Detector) detectClitic(text string, s sentence) []Correction {
	if len(s.tokens) < 2 {
		return nil
	}
	first, second := s.tokens[0], s.tokens[1]
	if !isWordIn(first.Lower, initialClitics) {
		return nil
	}
	if isWordIn(second.Lower, clitics) || isWordIn(second.Lower, functionWords) {
		return nil
	}

	before, start, end := spanText(text, first, second)
	after := second.Word + " " + first.Lower
	if r, _ := utf8.DecodeRuneInString(first.Word); unicode.IsUpper(r) {
		after = capitalizeFirst(strings.ToLower(second.Word)) + " " + first.Lower
	}
	return []Correction{d.annotate(Correction{
		Category: "clitic",
		Before:   before,
		After:    after,
		ErrorTag: tagClitic,
		Start:    start,
		End:      end,
	})}
}

// ── agreement ────────────────────────────────────────────────────────────────

// gender indexes into adjParadigm forms.
type gender int

const (
	masc gender = iota
	fem
	neut
	plural
)

// adjParadigm holds the four agreement forms of a common adjective.
type adjParadigm [4]string

var adjParadigms = []adjParadigm{
	{"хубав", "хубава", "хубаво", "хубави"},
	{"голям", "голяма", "голямо", "големи"},
	{"малък", "малка", "малко", "малки"},
	{"нов", "нова", "ново", "нови"},
	{"стар", "стара", "старо", "стари"},
	{"добър", "добра", "добро", "добри"},
	{"лош", "лоша", "лошо", "лоши"},
	{"вкусен", "вкусна", "вкусно", "вкусни"},
	{"красив", "красива", "красиво", "красиви"},
	{"интересен", "интересна", "интересно", "интересни"},
	{"топъл", "топла", "топло", "топли"},
	{"студен", "студена", "студено", "студени"},
}

// lookupAdjective finds the paradigm and form index of a lowercase token.
// "малко" is skipped — it is overwhelmingly the quantifier, not the adjective.
func lookupAdjective(w string) (adjParadigm, gender, bool) {
	if w == "малко" {
		return adjParadigm{}, 0, false
	}
	for _, p := range adjParadigms {
		for g, form := range p {
			if w == form {
				return p, gender(g), true
			}
		}
	}
	return adjParadigm{}, 0, false
}

// nounGender guesses gender from the noun ending.
func nounGender(w string) gender {
	if strings.HasSuffix(w, "ове") || strings.HasSuffix(w, "и") {
		return plural
	}
	r, _ := utf8.DecodeLastRuneInString(w)
	switch r {
	case 'а', 'я':
		return fem
	case 'о', 'е':
		return neut
	default:
		return masc
	}
}

// subjectParadigms maps misconjugated endings for pronoun subjects.
var subjectFixes = map[string][]struct{ from, to string }{
	// "аз искаш" → "аз искам"
	"аз": {{"аш", "ам"}, {"яш", "ям"}, {"иш", "я"}, {"еш", "а"}},
	// "той правим" → "той прави"
	"той": {{"ам", "а"}, {"ям", "я"}, {"им", "и"}, {"ем", "е"}},
	"тя":  {{"ам", "а"}, {"ям", "я"}, {"им", "и"}, {"ем", "е"}},
	"то":  {{"ам", "а"}, {"ям", "я"}, {"им", "и"}, {"ем", "е"}},
}

func (d *Detector) detectAgreement(text string, s sentence) []Correction {
	var out []Correction
	for i := 0; i+1 < len(s.tokens); i++ {
		t, next := s.tokens[i], s.tokens[i+1]

		// Adjective/noun gender and number.
		if p, g, ok := lookupAdjective(t.Lower); ok {
			if isWordIn(next.Lower, functionWords) || isWordIn(next.Lower, clitics) ||
				utf8.RuneCountInString(next.Lower) < 3 || looksLikePresentVerb(next.Lower) {
				continue
			}
			want := nounGender(next.Lower)
			if want == g {
				continue
			}
			form := p[want]
			if r, _ := utf8.DecodeRuneInString(t.Word); unicode.IsUpper(r) {
				form = capitalizeFirst(form)
			}
			before, start, end := spanText(text, t, next)
			out = append(out, d.annotate(Correction{
				Category: "agreement",
				Before:   before,
				After:    form + " " + next.Word,
				ErrorTag: tagAgreement,
				Start:    start,
				End:      end,
			}))
			continue
		}

		// Pronoun subject vs. verb person.
		conjugated := looksLikePresentVerb(next.Lower) || isWordIn(next.Lower, modalVerbs)
		if fixes, ok := subjectFixes[t.Lower]; ok && conjugated {
			for _, f := range fixes {
				if !strings.HasSuffix(next.Lower, f.from) {
					continue
				}
				fixed := strings.TrimSuffix(next.Lower, f.from) + f.to
				before, start, end := spanText(text, t, next)
				out = append(out, d.annotate(Correction{
					Category: "agreement",
					Before:   before,
					After:    t.Word + " " + fixed,
					ErrorTag: tagAgreement,
					Start:    start,
					End:      end,
				}))
				break
			}
		}
	}
	return out
}
