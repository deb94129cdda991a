package content

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const minimalGrammar = `{
  "items": [
    {
      "id": "bg.no_infinitive.da_present",
      "title_bg": "Да-конструкция",
      "levels": ["A1"],
      "micro_explanation_bg": "Използвай да + сегашно време.",
      "contrast": {"PL": "Полска бележка.", "RU": "Руска бележка."},
      "examples": [{"wrong": "Искам поръчвам кафе.", "right": "Искам да поръчам кафе."}],
      "drills": [
        {"kind": "fill", "prompt_bg": "Искам ___ кафе.", "answer_bg": "да поръчам"},
        {"kind": "transform", "prompt_bg": "Поправи: искам поръчвам.", "answer_bg": "Искам да поръчам."}
      ],
      "srs_intervals": [1, 3, 7],
      "triggers": ["no_infinitive"]
    },
    {
      "id": "bg.future.shte",
      "title_bg": "Бъдеще време",
      "levels": ["A1"],
      "micro_explanation_bg": "Бъдеще време се образува с ще.",
      "triggers": ["future_shte", "missing_future"]
    }
  ]
}`

const minimalScenarios = `{
  "scenarios": [
    {
      "id": "cafe_order",
      "title": "В кафенето",
      "description": "Поръчваш кафе.",
      "level": "A1",
      "turns": [{"speaker": "coach", "text_bg": "Какво ще желаете?"}],
      "grammar": {"primary": ["bg.no_infinitive.da_present"], "method": "curated"}
    }
  ]
}`

func mustLoad(t *testing.T) *Store {
	t.Helper()
	s, err := LoadFromBytes([]byte(minimalGrammar), []byte(minimalScenarios))
	if err != nil {
		t.Fatalf("LoadFromBytes: %v", err)
	}
	return s
}

func TestLoadFromBytes(t *testing.T) {
	s := mustLoad(t)

	if s.ItemCount() != 2 {
		t.Errorf("ItemCount() = %d; want 2", s.ItemCount())
	}
	if s.ScenarioCount() != 1 {
		t.Errorf("ScenarioCount() = %d; want 1", s.ScenarioCount())
	}
	if s.Version() == "" {
		t.Error("Version() must not be empty")
	}
}

func TestGetItem(t *testing.T) {
	s := mustLoad(t)

	item, err := s.GetItem("bg.no_infinitive.da_present")
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if item.TitleBG != "Да-конструкция" {
		t.Errorf("TitleBG = %q", item.TitleBG)
	}

	_, err = s.GetItem("bg.unknown.item")
	if err == nil {
		t.Fatal("expected error for unknown id")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("error = %v; want not found", err)
	}
}

func TestFindTriggers(t *testing.T) {
	s := mustLoad(t)

	tests := []struct {
		tag  string
		want int
	}{
		{"no_infinitive", 1},
		{"future_shte", 1},
		{"missing_future", 1},
		{"nonexistent", 0},
	}
	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got := s.FindTriggers(tt.tag)
			if len(got) != tt.want {
				t.Errorf("FindTriggers(%q) returned %d items; want %d", tt.tag, len(got), tt.want)
			}
		})
	}
}

func TestContrastFor(t *testing.T) {
	s := mustLoad(t)
	item, _ := s.GetItem("bg.no_infinitive.da_present")

	note, ok := s.ContrastFor(item, L1Polish)
	if !ok || note != "Полска бележка." {
		t.Errorf("ContrastFor(PL) = %q, %v", note, ok)
	}
	if _, ok := s.ContrastFor(item, L1Serbian); ok {
		t.Error("ContrastFor(SR) should be absent")
	}
}

func TestListScenarios(t *testing.T) {
	s := mustLoad(t)
	scens := s.ListScenarios()
	if len(scens) != 1 {
		t.Fatalf("got %d scenarios; want 1", len(scens))
	}
	sum := scens[0]
	if sum.ID != "cafe_order" || sum.Level != "A1" {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.PrimaryGrammar) != 1 || sum.PrimaryGrammar[0] != "bg.no_infinitive.da_present" {
		t.Errorf("PrimaryGrammar = %v", sum.PrimaryGrammar)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		grammar   string
		scenarios string
		wantErr   string
	}{
		{
			name:      "malformed grammar json",
			grammar:   `{"items": [`,
			scenarios: minimalScenarios,
			wantErr:   "parse grammar pack",
		},
		{
			name:      "duplicate item id",
			grammar:   `{"items":[{"id":"bg.a.b","title_bg":"x","micro_explanation_bg":"x"},{"id":"bg.a.b","title_bg":"y","micro_explanation_bg":"y"}]}`,
			scenarios: `{"scenarios":[]}`,
			wantErr:   "duplicate",
		},
		{
			name:      "id outside namespace",
			grammar:   `{"items":[{"id":"en.article.the","title_bg":"x","micro_explanation_bg":"x"}]}`,
			scenarios: `{"scenarios":[]}`,
			wantErr:   "bg.<category>.<form>",
		},
		{
			name:      "unknown contrast key",
			grammar:   `{"items":[{"id":"bg.a.b","title_bg":"x","micro_explanation_bg":"x","contrast":{"DE":"nein"}}]}`,
			scenarios: `{"scenarios":[]}`,
			wantErr:   "not a supported L1",
		},
		{
			name:      "fill drill without blank",
			grammar:   `{"items":[{"id":"bg.a.b","title_bg":"x","micro_explanation_bg":"x","drills":[{"kind":"fill","prompt_bg":"няма празно","answer_bg":"да"}]}]}`,
			scenarios: `{"scenarios":[]}`,
			wantErr:   "___ blank",
		},
		{
			name:      "empty drill answer",
			grammar:   `{"items":[{"id":"bg.a.b","title_bg":"x","micro_explanation_bg":"x","drills":[{"kind":"transform","prompt_bg":"п","answer_bg":"  "}]}]}`,
			scenarios: `{"scenarios":[]}`,
			wantErr:   "answer_bg is required",
		},
		{
			name:      "negative srs interval",
			grammar:   `{"items":[{"id":"bg.a.b","title_bg":"x","micro_explanation_bg":"x","srs_intervals":[3,-1]}]}`,
			scenarios: `{"scenarios":[]}`,
			wantErr:   "must be positive",
		},
		{
			name:      "dangling scenario reference",
			grammar:   `{"items":[{"id":"bg.a.b","title_bg":"x","micro_explanation_bg":"x"}]}`,
			scenarios: `{"scenarios":[{"id":"s1","title":"t","level":"A1","grammar":{"primary":["bg.missing.ref"]}}]}`,
			wantErr:   "does not exist",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromBytes([]byte(tt.grammar), []byte(tt.scenarios))
			if err == nil {
				t.Fatal("expected load error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v; want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, GrammarFile), []byte(minimalGrammar), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ScenarioFile), []byte(minimalScenarios), 0o600); err != nil {
		t.Fatal(err)
	}

	s, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.ItemCount() != 2 {
		t.Errorf("ItemCount() = %d; want 2", s.ItemCount())
	}

	if _, err := Load(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestVersionChangesWithContent(t *testing.T) {
	a, err := LoadFromBytes([]byte(minimalGrammar), []byte(minimalScenarios))
	if err != nil {
		t.Fatal(err)
	}
	changed := strings.Replace(minimalGrammar, "Да-конструкция", "Да-конструкцията", 1)
	b, err := LoadFromBytes([]byte(changed), []byte(minimalScenarios))
	if err != nil {
		t.Fatal(err)
	}
	if a.Version() == b.Version() {
		t.Error("version must change when pack bytes change")
	}
}

func TestVocabulary(t *testing.T) {
	s := mustLoad(t)
	vocab := s.Vocabulary()
	if len(vocab) == 0 {
		t.Fatal("vocabulary must not be empty")
	}
	found := false
	for _, w := range vocab {
		if w == "поръчам" {
			found = true
		}
	}
	if !found {
		t.Errorf("vocabulary %v should contain words from example answers", vocab)
	}
}
