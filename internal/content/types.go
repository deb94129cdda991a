// Package content loads and serves the grammar pack and scenario catalogue.
//
// The two JSON documents are read once at startup, cross-validated, and then
// frozen: every accessor on [Store] is a lock-free read. A load failure is
// fatal by design — the server refuses to start against a broken pack rather
// than serve degraded coaching content.
package content

// L1 identifies a learner's native language.
type L1 string

const (
	L1Polish    L1 = "PL"
	L1Russian   L1 = "RU"
	L1Ukrainian L1 = "UK"
	L1Serbian   L1 = "SR"
)

// SupportedL1 lists the native languages the grammar pack carries contrast
// notes for, in display order.
var SupportedL1 = []L1{L1Polish, L1Russian, L1Ukrainian, L1Serbian}

// IsValid reports whether l is a recognised L1 code.
func (l L1) IsValid() bool {
	switch l {
	case L1Polish, L1Russian, L1Ukrainian, L1Serbian:
		return true
	}
	return false
}

// DrillKind selects the exercise mechanic of a [Drill].
type DrillKind string

const (
	// DrillTransform asks the learner to rewrite a sentence.
	DrillTransform DrillKind = "transform"

	// DrillFill asks the learner to complete a blank marked with "___".
	DrillFill DrillKind = "fill"

	// DrillReorder asks the learner to order bracketed tokens like "[да]".
	DrillReorder DrillKind = "reorder"
)

// IsValid reports whether k is a recognised drill kind.
func (k DrillKind) IsValid() bool {
	switch k {
	case DrillTransform, DrillFill, DrillReorder:
		return true
	}
	return false
}

// Drill is a short practice exercise attached to a [GrammarItem].
type Drill struct {
	// Kind selects the exercise mechanic.
	Kind DrillKind `json:"kind"`

	// PromptBG is the Bulgarian prompt. Fill drills mark blanks with "___";
	// reorder drills carry bracketed tokens such as "[да] [поръчам]".
	PromptBG string `json:"prompt_bg"`

	// AnswerBG is the canonical Bulgarian answer.
	AnswerBG string `json:"answer_bg"`

	// Hint is an optional Bulgarian hint shown on request.
	Hint string `json:"hint,omitempty"`

	// Level optionally overrides the item's CEFR level for this drill.
	Level string `json:"level,omitempty"`
}

// ExamplePair is a wrong/right sentence pair illustrating a grammar item.
type ExamplePair struct {
	Wrong string `json:"wrong"`
	Right string `json:"right"`
}

// GrammarItem is one entry of the closed bg.<category>.<form> taxonomy.
type GrammarItem struct {
	// ID is the globally unique item identifier, e.g.
	// "bg.no_infinitive.da_present".
	ID string `json:"id"`

	// TitleBG is the Bulgarian display title.
	TitleBG string `json:"title_bg"`

	// Levels lists the CEFR levels this item is taught at (subset of A1–C2).
	Levels []string `json:"levels"`

	// MicroExplanationBG is a one-or-two sentence Bulgarian explanation used
	// verbatim as the correction note.
	MicroExplanationBG string `json:"micro_explanation_bg"`

	// Contrast maps an L1 code to a contrastive note explaining how the
	// construction differs from that language.
	Contrast map[L1]string `json:"contrast,omitempty"`

	// Examples holds wrong/right pairs in pack order.
	Examples []ExamplePair `json:"examples,omitempty"`

	// Drills holds the item's exercises in pack order.
	Drills []Drill `json:"drills,omitempty"`

	// SRSIntervals is the spaced-repetition interval vector in days. The
	// server only validates and forwards it; scheduling is a client concern.
	SRSIntervals []int `json:"srs_intervals,omitempty"`

	// Triggers lists the detector tags that resolve to this item.
	Triggers []string `json:"triggers,omitempty"`
}

// DialogueTurn is one scripted line of a scenario.
type DialogueTurn struct {
	Speaker string `json:"speaker"`
	TextBG  string `json:"text_bg"`
}

// GrammarBinding links a scenario to the grammar items it exercises.
type GrammarBinding struct {
	Primary   []string `json:"primary"`
	Secondary []string `json:"secondary,omitempty"`
	Method    string   `json:"method,omitempty"`
}

// Scenario is a guided conversation setting.
type Scenario struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Level       string         `json:"level"`
	Turns       []DialogueTurn `json:"turns,omitempty"`
	Grammar     GrammarBinding `json:"grammar"`
}

// ScenarioSummary is the list-view projection of a [Scenario].
type ScenarioSummary struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Level          string   `json:"level"`
	PrimaryGrammar []string `json:"primary_grammar"`
}

// grammarPack is the on-disk shape of the grammar document.
type grammarPack struct {
	Items []GrammarItem `json:"items"`
}

// scenarioPack is the on-disk shape of the scenario document.
type scenarioPack struct {
	Scenarios []Scenario `json:"scenarios"`
}
