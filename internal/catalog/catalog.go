// Package catalog lists the practice modules: their routes, question-bank
// files, scoring kind, round sizing and timer defaults.
package catalog

import (
	"fmt"
	"strings"
)

type Difficulty string

const (
	DifficultyAny      Difficulty = "any"
	DifficultyBasic    Difficulty = "basic"
	DifficultyMedium   Difficulty = "medium"
	DifficultyAdvanced Difficulty = "advanced"
)

// ParseDifficulty accepts the four known levels, case-insensitively.
// An empty value means any.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DifficultyAny, nil
	case DifficultyAny, DifficultyBasic, DifficultyMedium, DifficultyAdvanced:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty %q", s)
	}
}

// DifficultyPolicy says how a module applies a difficulty filter to its bank.
type DifficultyPolicy string

const (
	// DifficultyIgnored modules draw from the whole bank whatever the level.
	DifficultyIgnored DifficultyPolicy = ""
	// DifficultyStrict modules draw only matching items; none means an empty round.
	DifficultyStrict DifficultyPolicy = "strict"
	// DifficultyFallback modules use the whole bank when nothing matches.
	DifficultyFallback DifficultyPolicy = "fallback"
)

// Kind selects the bank schema and the scoring strategy for a module.
type Kind string

const (
	KindRealWords Kind = "realwords" // pick the real words out of a list
	KindYesNo     Kind = "yesno"     // is this a real English word?
	KindBlanks    Kind = "blanks"    // type the missing letters
	KindDictation Kind = "dictation" // type the sentence you hear
	KindRecall    Kind = "recall"    // type the English word for a translation
	KindPassage   Kind = "passage"   // passage with choice questions
	KindScenario  Kind = "scenario"  // audio scenario with choice questions
	KindPhoto     Kind = "photo"     // describe a photo (writing or speaking)
	KindPrompt    Kind = "prompt"    // open writing/speaking prompt
)

// Module is one exercise type.
type Module struct {
	ID       string `json:"id"`
	Route    string `json:"route"`
	Label    string `json:"label"`
	Kind     Kind   `json:"kind"`
	BankFile string `json:"-"`

	// Round size: a random count in [MinItems, MaxItems], capped by the pool.
	MinItems     int   `json:"min_items"`
	MaxItems     int   `json:"max_items"`
	CountChoices []int `json:"count_choices,omitempty"`

	TimeLimitSec int   `json:"time_limit_sec"`
	TimeChoices  []int `json:"time_choices,omitempty"`
	PrepareSec   int   `json:"prepare_sec,omitempty"`
	PacingMS     int   `json:"pacing_ms"`

	DifficultyPolicy DifficultyPolicy `json:"difficulty_policy,omitempty"`

	// Speaking modules answer with an uploaded recording.
	Recording bool `json:"recording,omitempty"`
	// Writing modules may be sent to the grammar check.
	GrammarCheck bool `json:"grammar_check,omitempty"`
}

// modules is kept in menu order.
var modules = []Module{
	{ID: "real-words", Label: "Real Words", Kind: KindRealWords, BankFile: "dataRealWords.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 60, PacingMS: 500},
	{ID: "read-and-select", Label: "Read and Select", Kind: KindYesNo, BankFile: "dataReadAndSelect.json",
		MinItems: 15, MaxItems: 18, TimeLimitSec: 5, TimeChoices: []int{5, 4, 3}, PacingMS: 500,
		DifficultyPolicy: DifficultyStrict},
	{ID: "fill-in-the-blanks", Label: "Fill in the Blanks", Kind: KindBlanks, BankFile: "dataFillBlanks.json",
		MinItems: 3, MaxItems: 3, TimeLimitSec: 180, PacingMS: 500},
	{ID: "read-and-complete", Label: "Read and Complete", Kind: KindBlanks, BankFile: "dataReadAndComplete.json",
		MinItems: 3, MaxItems: 6, TimeLimitSec: 180, PacingMS: 500, DifficultyPolicy: DifficultyStrict},
	{ID: "interactive-reading", Label: "Interactive Reading", Kind: KindPassage, BankFile: "dataInteractiveReading.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 8 * 60, TimeChoices: []int{480, 450, 420, 390, 360},
		DifficultyPolicy: DifficultyStrict},
	{ID: "listening-test", Label: "Listen and Type", Kind: KindDictation, BankFile: "dataListening.json",
		MinItems: 3, MaxItems: 3, TimeLimitSec: 60, PacingMS: 500},
	{ID: "interactive-listening", Label: "Interactive Listening", Kind: KindScenario, BankFile: "dataInteractiveListening.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 6*60 + 30, DifficultyPolicy: DifficultyFallback},
	{ID: "image-test", Label: "Write About the Photo", Kind: KindPhoto, BankFile: "dataImageTest.json",
		MinItems: 3, MaxItems: 3, TimeLimitSec: 60, GrammarCheck: true},
	{ID: "interactive-writing", Label: "Interactive Writing", Kind: KindPrompt, BankFile: "dataInteractiveWriting.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 300, PrepareSec: 10, GrammarCheck: true},
	{ID: "speak-about-photo", Label: "Speak About the Photo", Kind: KindPhoto, BankFile: "dataSpeakAboutThePhoto.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 90, PrepareSec: 20, Recording: true},
	{ID: "read-then-speak", Label: "Read, Then Speak", Kind: KindPrompt, BankFile: "dataReadThenSpeak.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 90, PrepareSec: 20, Recording: true, DifficultyPolicy: DifficultyFallback},
	{ID: "interactive-speaking", Label: "Interactive Speaking", Kind: KindPrompt, BankFile: "dataInteractiveSpeaking.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 35, PrepareSec: 5, Recording: true},
	{ID: "speaking-sample", Label: "Speaking Sample", Kind: KindPrompt, BankFile: "dataSpeakingSample.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 180, PrepareSec: 30, Recording: true, DifficultyPolicy: DifficultyFallback},
	{ID: "writing-sample", Label: "Writing Sample", Kind: KindPrompt, BankFile: "dataWritingSample.json",
		MinItems: 1, MaxItems: 1, TimeLimitSec: 300, PrepareSec: 10, GrammarCheck: true, DifficultyPolicy: DifficultyFallback},
	{ID: "word-recall", Label: "Word Recall", Kind: KindRecall, BankFile: "dataWordRecall.json",
		MinItems: 10, MaxItems: 10, CountChoices: []int{5, 10, 15, 20, 25, 30}},
}

func init() {
	for i := range modules {
		modules[i].Route = "/" + modules[i].ID
	}
}

// All returns a copy of the catalog in menu order.
func All() []Module {
	out := make([]Module, len(modules))
	copy(out, modules)
	return out
}

// Lookup finds a module by id ("read-and-select") or route ("/read-and-select").
func Lookup(idOrRoute string) (Module, bool) {
	id := strings.Trim(strings.TrimSpace(idOrRoute), "/")
	for _, m := range modules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// RoundSize picks the number of items for a round. requested > 0 overrides the
// default when the module offers count choices. pick(n) must return [0, n).
func (m Module) RoundSize(requested, poolSize int, pick func(n int) int) int {
	n := m.MinItems
	if requested > 0 && len(m.CountChoices) > 0 {
		n = requested
	} else if m.MaxItems > m.MinItems && pick != nil {
		n = m.MinItems + pick(m.MaxItems-m.MinItems+1)
	}
	if n > poolSize {
		n = poolSize
	}
	if n < 0 {
		n = 0
	}
	return n
}
