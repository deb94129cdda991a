package content

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"
)

const (
	// GrammarFile is the grammar pack file name inside the content directory.
	GrammarFile = "grammar_bg.json"

	// ScenarioFile is the scenario catalogue file name.
	ScenarioFile = "scenarios_bg.json"
)

// ErrNotFound is returned by lookups for ids absent from the pack.
var ErrNotFound = errors.New("content: not found")

// cefrLevels enumerates valid CEFR levels.
var cefrLevels = []string{"A1", "A2", "B1", "B2", "C1", "C2"}

// Store is the immutable in-memory index over the grammar pack and scenario
// catalogue. All accessors are safe for unsynchronised concurrent use: the
// maps and slices are never written after [Load] returns.
type Store struct {
	items     []GrammarItem
	byID      map[string]int
	byTrigger map[string][]int
	scenarios []Scenario
	version   string
	vocab     []string
}

// Load reads and validates the two content documents from dir. Any parse
// error, schema violation, or dangling reference makes the whole load fail;
// the returned error joins every problem found so operators can fix the pack
// in one pass.
func Load(dir string) (*Store, error) {
	grammarRaw, err := os.ReadFile(filepath.Join(dir, GrammarFile))
	if err != nil {
		return nil, fmt.Errorf("content: read grammar pack: %w", err)
	}
	scenarioRaw, err := os.ReadFile(filepath.Join(dir, ScenarioFile))
	if err != nil {
		return nil, fmt.Errorf("content: read scenarios: %w", err)
	}
	return LoadFromBytes(grammarRaw, scenarioRaw)
}

// LoadFromBytes builds a Store from raw document bytes. Useful in tests where
// packs are constructed from string literals.
func LoadFromBytes(grammarRaw, scenarioRaw []byte) (*Store, error) {
	var pack grammarPack
	if err := json.Unmarshal(grammarRaw, &pack); err != nil {
		return nil, fmt.Errorf("content: parse grammar pack: %w", err)
	}
	var scen scenarioPack
	if err := json.Unmarshal(scenarioRaw, &scen); err != nil {
		return nil, fmt.Errorf("content: parse scenarios: %w", err)
	}

	s := &Store{
		items:     pack.Items,
		byID:      make(map[string]int, len(pack.Items)),
		byTrigger: make(map[string][]int),
		scenarios: scen.Scenarios,
	}

	var errs []error
	for i, item := range s.items {
		prefix := fmt.Sprintf("items[%d] (%s)", i, item.ID)
		if item.ID == "" {
			errs = append(errs, fmt.Errorf("items[%d]: id is required", i))
			continue
		}
		if !strings.HasPrefix(item.ID, "bg.") {
			errs = append(errs, fmt.Errorf("%s: id must be in the bg.<category>.<form> namespace", prefix))
		}
		if prev, dup := s.byID[item.ID]; dup {
			errs = append(errs, fmt.Errorf("%s: duplicate of items[%d]", prefix, prev))
			continue
		}
		s.byID[item.ID] = i

		if !utf8.ValidString(item.TitleBG) || !utf8.ValidString(item.MicroExplanationBG) {
			errs = append(errs, fmt.Errorf("%s: invalid UTF-8 in Bulgarian text", prefix))
		}
		for _, lvl := range item.Levels {
			if !slices.Contains(cefrLevels, lvl) {
				errs = append(errs, fmt.Errorf("%s: unknown CEFR level %q", prefix, lvl))
			}
		}
		for l1 := range item.Contrast {
			if !l1.IsValid() {
				errs = append(errs, fmt.Errorf("%s: contrast key %q is not a supported L1", prefix, l1))
			}
		}
		for j, d := range item.Drills {
			if err := validateDrill(d); err != nil {
				errs = append(errs, fmt.Errorf("%s: drills[%d]: %w", prefix, j, err))
			}
		}
		for _, iv := range item.SRSIntervals {
			if iv <= 0 {
				errs = append(errs, fmt.Errorf("%s: srs interval %d must be positive", prefix, iv))
			}
		}
		for _, tag := range item.Triggers {
			s.byTrigger[tag] = append(s.byTrigger[tag], i)
		}
	}

	for i, sc := range s.scenarios {
		prefix := fmt.Sprintf("scenarios[%d] (%s)", i, sc.ID)
		if sc.ID == "" {
			errs = append(errs, fmt.Errorf("scenarios[%d]: id is required", i))
		}
		if sc.Level != "" && !slices.Contains(cefrLevels, sc.Level) {
			errs = append(errs, fmt.Errorf("%s: unknown CEFR level %q", prefix, sc.Level))
		}
		for _, id := range sc.Grammar.Primary {
			if _, ok := s.byID[id]; !ok {
				errs = append(errs, fmt.Errorf("%s: primary grammar id %q does not exist", prefix, id))
			}
		}
		for _, id := range sc.Grammar.Secondary {
			if _, ok := s.byID[id]; !ok {
				errs = append(errs, fmt.Errorf("%s: secondary grammar id %q does not exist", prefix, id))
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("content: validate pack: %w", err)
	}

	sum := md5.New()
	sum.Write(grammarRaw)
	sum.Write(scenarioRaw)
	s.version = hex.EncodeToString(sum.Sum(nil))
	s.vocab = buildVocabulary(s.items, s.scenarios)

	return s, nil
}

// validateDrill enforces the per-drill invariants.
func validateDrill(d Drill) error {
	if !d.Kind.IsValid() {
		return fmt.Errorf("unknown kind %q", d.Kind)
	}
	if strings.TrimSpace(d.AnswerBG) == "" {
		return errors.New("answer_bg is required")
	}
	switch d.Kind {
	case DrillFill:
		if !strings.Contains(d.PromptBG, "___") {
			return errors.New("fill drill prompt needs a ___ blank")
		}
	case DrillReorder:
		if !strings.Contains(d.PromptBG, "[") {
			return errors.New("reorder drill prompt needs bracketed tokens")
		}
	}
	if d.Level != "" && !slices.Contains(cefrLevels, d.Level) {
		return fmt.Errorf("unknown level override %q", d.Level)
	}
	return nil
}

// buildVocabulary collects distinct lowercase words from the pack's right-hand
// example sentences and scenario turns. The lexicon corrector uses this list
// to repair near-miss recognitions of domain vocabulary.
func buildVocabulary(items []GrammarItem, scenarios []Scenario) []string {
	seen := make(map[string]struct{})
	add := func(text string) {
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,!?;:„“\"'()–—")
			// Single-letter words carry no phonetic signal.
			if utf8.RuneCountInString(w) < 2 {
				continue
			}
			seen[w] = struct{}{}
		}
	}
	for _, item := range items {
		for _, ex := range item.Examples {
			add(ex.Right)
		}
		for _, d := range item.Drills {
			add(d.AnswerBG)
		}
	}
	for _, sc := range scenarios {
		for _, turn := range sc.Turns {
			add(turn.TextBG)
		}
	}

	vocab := make([]string, 0, len(seen))
	for w := range seen {
		vocab = append(vocab, w)
	}
	slices.Sort(vocab)
	return vocab
}

// GetItem returns the grammar item with the given id, or [ErrNotFound].
func (s *Store) GetItem(id string) (GrammarItem, error) {
	i, ok := s.byID[id]
	if !ok {
		return GrammarItem{}, fmt.Errorf("%w: grammar item %q", ErrNotFound, id)
	}
	return s.items[i], nil
}

// ListScenarios returns the catalogue as summaries, in pack order.
func (s *Store) ListScenarios() []ScenarioSummary {
	out := make([]ScenarioSummary, len(s.scenarios))
	for i, sc := range s.scenarios {
		out[i] = ScenarioSummary{
			ID:             sc.ID,
			Title:          sc.Title,
			Level:          sc.Level,
			PrimaryGrammar: sc.Grammar.Primary,
		}
	}
	return out
}

// FindTriggers returns every item whose trigger list contains tag, in pack
// order. An unknown tag yields an empty slice.
func (s *Store) FindTriggers(tag string) []GrammarItem {
	idxs := s.byTrigger[tag]
	out := make([]GrammarItem, len(idxs))
	for i, idx := range idxs {
		out[i] = s.items[idx]
	}
	return out
}

// ContrastFor returns item's contrast note for the given L1, if present.
func (s *Store) ContrastFor(item GrammarItem, l1 L1) (string, bool) {
	note, ok := item.Contrast[l1]
	return note, ok
}

// Version is the hex digest of the loaded documents. It participates in coach
// cache keys so a pack update invalidates stale responses.
func (s *Store) Version() string {
	return s.version
}

// Vocabulary returns the pack's word list for phonetic correction, sorted.
func (s *Store) Vocabulary() []string {
	return s.vocab
}

// ItemCount returns the number of grammar items loaded.
func (s *Store) ItemCount() int {
	return len(s.items)
}

// ScenarioCount returns the number of scenarios loaded.
func (s *Store) ScenarioCount() int {
	return len(s.scenarios)
}
