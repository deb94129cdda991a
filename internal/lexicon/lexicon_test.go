package lexicon

import "testing"

var testVocab = []string{
	"поръчам", "кафе", "сметката", "тоалетната", "наляво", "площада", "закуска",
}

func TestCorrectSnapsMisheardWord(t *testing.T) {
	c := New(testVocab)

	got, n := c.Correct("Искам да пуръчам кафе.")
	if got != "Искам да поръчам кафе." {
		t.Errorf("Correct = %q; want the vowel mishearing snapped", got)
	}
	if n != 1 {
		t.Errorf("replaced = %d; want 1", n)
	}
}

func TestCorrectPreservesCapitalAndPunct(t *testing.T) {
	c := New(testVocab)

	got, n := c.Correct("Пуръчам, моля!")
	if got != "Поръчам, моля!" {
		t.Errorf("Correct = %q; want capital and punctuation kept", got)
	}
	if n != 1 {
		t.Errorf("replaced = %d; want 1", n)
	}
}

func TestCorrectLeavesKnownWordsAlone(t *testing.T) {
	c := New(testVocab)

	const text = "Искам да поръчам кафе и закуска."
	if got, n := c.Correct(text); got != text || n != 0 {
		t.Errorf("Correct = %q (%d replaced); want untouched", got, n)
	}
}

func TestCorrectSkipsInflectionalVariants(t *testing.T) {
	c := New(testVocab)

	// Ending differences are grammar, not mishearing: the bare noun must not
	// be snapped to its definite form, nor 2sg to the 1sg in the vocabulary.
	cases := []string{
		"Сметка, моля.",
		"Къде е тоалетна?",
		"Ти поръчаш кафе.",
	}
	for _, text := range cases {
		if got, n := c.Correct(text); got != text || n != 0 {
			t.Errorf("Correct(%q) = %q (%d replaced); want untouched", text, got, n)
		}
	}
}

func TestCorrectSkipsShortAndUnrelatedWords(t *testing.T) {
	c := New(testVocab)

	cases := []string{
		"Да, аз съм.",
		"Здравей, как си?",
		"",
		"   ",
	}
	for _, text := range cases {
		if got, n := c.Correct(text); got != text || n != 0 {
			t.Errorf("Correct(%q) = %q (%d replaced); want untouched", text, got, n)
		}
	}
}

func TestCorrectEmptyVocabulary(t *testing.T) {
	c := New(nil)
	const text = "Искам да пуръчам кафе."
	if got, n := c.Correct(text); got != text || n != 0 {
		t.Errorf("Correct = %q (%d replaced); want untouched with no vocabulary", got, n)
	}
}

func TestSameStem(t *testing.T) {
	tests := []struct {
		a, b string
		want bool
	}{
		{"сметка", "сметката", true},
		{"искаш", "искам", true},
		{"тоалетна", "тоалетната", true},
		{"пуръчам", "поръчам", false},
		{"кафе", "наляво", false},
	}
	for _, tt := range tests {
		if got := sameStem(tt.a, tt.b); got != tt.want {
			t.Errorf("sameStem(%q, %q) = %v; want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestTransliterate(t *testing.T) {
	tests := []struct{ in, want string }{
		{"кафе", "kafe"},
		{"поръчам", "poracham"},
		{"площада", "ploshtada"},
		{"южен", "yuzhen"},
	}
	for _, tt := range tests {
		if got := transliterate(tt.in); got != tt.want {
			t.Errorf("transliterate(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}

func TestSplitPunct(t *testing.T) {
	tests := []struct {
		in                    string
		prefix, core, suffix string
	}{
		{"кафе", "", "кафе", ""},
		{"кафе.", "", "кафе", "."},
		{"„кафе“,", "„", "кафе", "“,"},
		{"...", "...", "", ""},
	}
	for _, tt := range tests {
		p, c, s := splitPunct(tt.in)
		if p != tt.prefix || c != tt.core || s != tt.suffix {
			t.Errorf("splitPunct(%q) = %q %q %q; want %q %q %q",
				tt.in, p, c, s, tt.prefix, tt.core, tt.suffix)
		}
	}
}
