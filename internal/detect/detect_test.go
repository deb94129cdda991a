package detect

import (
	"reflect"
	"strings"
	"testing"

	"github.com/dbozhinov/govorko/internal/content"
)

const testGrammar = `{
  "items": [
    {"id": "bg.no_infinitive.da_present", "title_bg": "Да-конструкция", "micro_explanation_bg": "Използвай да + сегашно време."},
    {"id": "bg.future.shte", "title_bg": "Бъдеще време", "micro_explanation_bg": "Бъдеще време се образува с ще."},
    {"id": "bg.def_article.postposed", "title_bg": "Членуване", "micro_explanation_bg": "Членът се поставя след думата."},
    {"id": "bg.clitic.wackernagel", "title_bg": "Клитики", "micro_explanation_bg": "Кратките форми не започват изречение."},
    {"id": "bg.agreement.gender_number", "title_bg": "Съгласуване", "micro_explanation_bg": "Прилагателното се съгласува по род и число."}
  ]
}`

func newTestDetector(t *testing.T) *Detector {
	t.Helper()
	store, err := content.LoadFromBytes([]byte(testGrammar), []byte(`{"scenarios":[]}`))
	if err != nil {
		t.Fatalf("load test pack: %v", err)
	}
	return New(store)
}

func TestDetectRules(t *testing.T) {
	d := newTestDetector(t)

	tests := []struct {
		name       string
		transcript string
		wantTag    string
		wantBefore string
		wantAfter  string
	}{
		{
			name:       "modal with bare verb",
			transcript: "Искам поръчвам кафе.",
			wantTag:    "bg.no_infinitive.da_present",
			wantBefore: "Искам поръчвам",
			wantAfter:  "Искам да поръчам",
		},
		{
			name:       "modal with -я verb",
			transcript: "Мога говоря български.",
			wantTag:    "bg.no_infinitive.da_present",
			wantBefore: "Мога говоря",
			wantAfter:  "Мога да говоря",
		},
		{
			name:       "future adverb without shte",
			transcript: "Утре идвам в София.",
			wantTag:    "bg.future.shte",
			wantBefore: "идвам",
			wantAfter:  "ще идвам",
		},
		{
			name:       "future after time span",
			transcript: "След два дни пътувам за Пловдив.",
			wantTag:    "bg.future.shte",
			wantBefore: "пътувам",
			wantAfter:  "ще пътувам",
		},
		{
			name:       "missing article in locative question",
			transcript: "Къде е тоалетна?",
			wantTag:    "bg.def_article.postposed",
			wantBefore: "тоалетна",
			wantAfter:  "тоалетната",
		},
		{
			name:       "missing article before molya",
			transcript: "Сметка, моля.",
			wantTag:    "bg.def_article.postposed",
			wantBefore: "Сметка",
			wantAfter:  "Сметката",
		},
		{
			name:       "feminine consonant noun takes -та",
			transcript: "Подай ми сол.",
			wantTag:    "bg.def_article.postposed",
			wantBefore: "сол",
			wantAfter:  "солта",
		},
		{
			name:       "sentence-initial clitic",
			transcript: "Се казвам Иван.",
			wantTag:    "bg.clitic.wackernagel",
			wantBefore: "Се казвам",
			wantAfter:  "Казвам се",
		},
		{
			name:       "initial dative clitic",
			transcript: "Ми харесва кафето.",
			wantTag:    "bg.clitic.wackernagel",
			wantBefore: "Ми харесва",
			wantAfter:  "Харесва ми",
		},
		{
			name:       "adjective gender mismatch",
			transcript: "Това е хубав къща.",
			wantTag:    "bg.agreement.gender_number",
			wantBefore: "хубав къща",
			wantAfter:  "хубава къща",
		},
		{
			name:       "adjective number mismatch",
			transcript: "Имам голям проблеми.",
			wantTag:    "bg.agreement.gender_number",
			wantBefore: "голям проблеми",
			wantAfter:  "големи проблеми",
		},
		{
			name:       "pronoun verb person mismatch",
			transcript: "Аз искаш кафе.",
			wantTag:    "bg.agreement.gender_number",
			wantBefore: "Аз искаш",
			wantAfter:  "Аз искам",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := d.Detect(tt.transcript, content.L1Polish)
			if len(got) != 1 {
				t.Fatalf("Detect(%q) = %d corrections (%+v); want 1", tt.transcript, len(got), got)
			}
			c := got[0]
			if c.ErrorTag != tt.wantTag {
				t.Errorf("ErrorTag = %q; want %q", c.ErrorTag, tt.wantTag)
			}
			if c.Before != tt.wantBefore {
				t.Errorf("Before = %q; want %q", c.Before, tt.wantBefore)
			}
			if c.After != tt.wantAfter {
				t.Errorf("After = %q; want %q", c.After, tt.wantAfter)
			}
			if c.Before == c.After {
				t.Error("Before must differ from After")
			}
			if !strings.Contains(normalizeTranscript(tt.transcript), c.Before) {
				t.Errorf("Before %q is not a substring of the transcript", c.Before)
			}
			if c.NoteBG == "" {
				t.Error("NoteBG should carry the item's micro-explanation")
			}
		})
	}
}

func TestDetectCleanSentences(t *testing.T) {
	d := newTestDetector(t)

	clean := []string{
		"",
		"   ",
		"Искам да поръчам кафе.",
		"Утре ще дойда в София.",
		"Казвам се Иван.",
		"Не се казвам Петър.",
		"Това е хубава къща.",
		"Къде е тоалетната?",
		"Сметката, моля.",
		"Добър ден!",
	}
	for _, transcript := range clean {
		if got := d.Detect(transcript, content.L1Russian); len(got) != 0 {
			t.Errorf("Detect(%q) = %+v; want no corrections", transcript, got)
		}
	}
}

func TestDetectStripsStressMarks(t *testing.T) {
	d := newTestDetector(t)

	got := d.Detect("Иска́м поръ́чвам кафе.", content.L1Polish)
	if len(got) != 1 || got[0].ErrorTag != "bg.no_infinitive.da_present" {
		t.Fatalf("Detect with stress marks = %+v; want the no_infinitive correction", got)
	}
	if got[0].Before != "Искам поръчвам" {
		t.Errorf("Before = %q; stress marks should be stripped", got[0].Before)
	}
}

func TestDetectCharacterOffsets(t *testing.T) {
	d := newTestDetector(t)

	// Cyrillic is two bytes per letter in UTF-8, so character and byte
	// offsets diverge immediately. "идвам" starts at character 5 of the
	// normalized transcript (byte 9).
	got := d.Detect("Утре идвам в София.", content.L1Polish)
	if len(got) != 1 {
		t.Fatalf("got %d corrections (%+v); want 1", len(got), got)
	}
	c := got[0]
	if c.Start != 5 || c.End != 10 {
		t.Errorf("span = [%d, %d); want [5, 10) in characters", c.Start, c.End)
	}
	runes := []rune(normalizeTranscript("Утре идвам в София."))
	if string(runes[c.Start:c.End]) != c.Before {
		t.Errorf("rune slice [%d:%d] = %q; want Before %q", c.Start, c.End, string(runes[c.Start:c.End]), c.Before)
	}
}

func TestDetectCollapsesWhitespaceRuns(t *testing.T) {
	d := newTestDetector(t)

	got := d.Detect("Искам   поръчвам \t кафе.", content.L1Polish)
	if len(got) != 1 {
		t.Fatalf("got %d corrections (%+v); want 1", len(got), got)
	}
	if got[0].Before != "Искам поръчвам" {
		t.Errorf("Before = %q; doubled spaces must collapse to one", got[0].Before)
	}
	if norm := normalizeTranscript("  а   б\tв  "); norm != "а б в" {
		t.Errorf("normalizeTranscript = %q; want %q", norm, "а б в")
	}
}

func TestDetectOverlapKeepsHigherPriority(t *testing.T) {
	d := newTestDetector(t)

	// "хубав" is both a bare-noun candidate for the article rule and the
	// adjective of an agreement error; agreement outranks the article rule.
	got := d.Detect("Къде е хубав къща?", content.L1Serbian)
	if len(got) != 1 {
		t.Fatalf("got %d corrections (%+v); want 1", len(got), got)
	}
	if got[0].Category != "agreement" {
		t.Errorf("Category = %q; want agreement to win the overlap", got[0].Category)
	}
}

func TestDetectMultipleSentences(t *testing.T) {
	d := newTestDetector(t)

	got := d.Detect("Искам поръчвам кафе. Утре идвам пак.", content.L1Ukrainian)
	if len(got) != 2 {
		t.Fatalf("got %d corrections (%+v); want 2", len(got), got)
	}
	// Reading order.
	if got[0].ErrorTag != "bg.no_infinitive.da_present" || got[1].ErrorTag != "bg.future.shte" {
		t.Errorf("tags = %q, %q; want no_infinitive then future", got[0].ErrorTag, got[1].ErrorTag)
	}
	if got[0].Start >= got[1].Start {
		t.Error("corrections must be ordered by offset")
	}
}

func TestDetectDeterministic(t *testing.T) {
	d := newTestDetector(t)

	const transcript = "Ми харесва хубав къща. Искам поръчвам кафе."
	a := d.Detect(transcript, content.L1Polish)
	b := d.Detect(transcript, content.L1Polish)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("repeated calls differ:\n%+v\n%+v", a, b)
	}
}

func TestDetectUnknownTagCleared(t *testing.T) {
	// A pack without the future item: the rule fires but the tag is cleared
	// so it can never dangle.
	store, err := content.LoadFromBytes(
		[]byte(`{"items":[{"id":"bg.x.y","title_bg":"x","micro_explanation_bg":"x"}]}`),
		[]byte(`{"scenarios":[]}`),
	)
	if err != nil {
		t.Fatal(err)
	}
	d := New(store)

	got := d.Detect("Утре идвам в София.", content.L1Polish)
	if len(got) != 1 {
		t.Fatalf("got %d corrections; want 1", len(got))
	}
	if got[0].ErrorTag != "" {
		t.Errorf("ErrorTag = %q; want cleared tag for missing item", got[0].ErrorTag)
	}
}

func TestDaClauseForm(t *testing.T) {
	tests := []struct{ in, want string }{
		{"поръчвам", "поръчам"},
		{"поръчваш", "поръчаш"},
		{"ставам", "ставам"}, // too short to be an imperfective -в- form
		{"говоря", "говоря"},
	}
	for _, tt := range tests {
		if got := daClauseForm(tt.in); got != tt.want {
			t.Errorf("daClauseForm(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
