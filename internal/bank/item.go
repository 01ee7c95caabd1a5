package bank

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/mind-engage/detprep/internal/catalog"
)

// Item is one question-bank entry. A single struct carries the union of the
// fields used by every module kind; Validate checks the subset a kind needs.
type Item struct {
	ID         string `json:"id,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
	Title      string `json:"title,omitempty"`

	// read-and-select, word-recall
	Word      string `json:"word,omitempty"`
	IsReal    *bool  `json:"is_real,omitempty"`
	Translate string `json:"translate,omitempty"`

	// real-words
	Words []WordChoice `json:"words,omitempty"`

	// fill-in-the-blanks, read-and-complete
	Sentence       []string `json:"sentence,omitempty"`
	CorrectAnswers []Blank  `json:"correct_answers,omitempty"`

	// listening-test
	File   string `json:"file,omitempty"`
	Answer string `json:"answer,omitempty"`

	// interactive-reading, interactive-listening, interactive-speaking
	Passage        []string   `json:"passage,omitempty"`
	Questions      []Question `json:"questions,omitempty"`
	SummaryExample string     `json:"SummaryExample,omitempty"`

	// photo and prompt modules
	Topic          string   `json:"topic,omitempty"`
	Image          string   `json:"image,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	Bullets        []string `json:"bullets,omitempty"`
	Sample         string   `json:"sample,omitempty"`
	SampleAudio    string   `json:"sampleAudio,omitempty"`
	FollowUpPrompt string   `json:"followUpPrompt,omitempty"`
	FollowUpSample string   `json:"followUpSample,omitempty"`
}

type WordChoice struct {
	Word string `json:"word"`
	Real bool   `json:"real"`
}

// Blank is a partially hidden word: the first Start letters are shown.
type Blank struct {
	Word  string `json:"word"`
	Start int    `json:"start"`
}

// Missing returns the part of the word the student has to type.
func (b Blank) Missing() string {
	r := []rune(b.Word)
	if b.Start < 0 || b.Start > len(r) {
		return ""
	}
	return string(r[b.Start:])
}

type Question struct {
	ID             string   `json:"id,omitempty"`
	Type           string   `json:"type,omitempty"`
	Question       string   `json:"question,omitempty"`
	Prompt         string   `json:"prompt,omitempty"`
	Audio          string   `json:"audio,omitempty"`
	Choices        []string `json:"choices,omitempty"`
	Correct        *Key     `json:"correct,omitempty"`
	Answer         string   `json:"answer,omitempty"`
	SummaryExample string   `json:"SummaryExample,omitempty"`
}

// Question types used by the interactive modules.
const (
	QCompleteTheSentence = "CompleteTheSentence"
	QHighlightTheAnswer  = "HighlightTheAnswer"
	QListenAndSelect     = "ListenAndSelect"
	QListenAndRespond    = "ListenAndRespond"
	QListenAndComplete   = "ListenAndComplete"
	QSummary             = "Summary"
)

// Gradable reports whether the question has an answer key.
func (q Question) Gradable() bool {
	if q.Correct != nil {
		return q.Correct.Index != nil || q.Correct.Text != ""
	}
	return q.Answer != ""
}

// Key is a question's answer key: a choice index, or a text span for
// highlight questions.
type Key struct {
	Index *int
	Text  string
}

func (k *Key) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &k.Text)
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("correct must be a choice index or text: %w", err)
	}
	k.Index = &n
	return nil
}

func (k Key) MarshalJSON() ([]byte, error) {
	if k.Index != nil {
		return json.Marshal(*k.Index)
	}
	return json.Marshal(k.Text)
}

var (
	ErrInvalidItem  = errors.New("invalid bank item")
	passageMarkerRe = regexp.MustCompile(`\[\d+\]`)
)

// Validate checks the fields required by kind.
func (it Item) Validate(kind catalog.Kind) error {
	bad := func(msg string) error { return fmt.Errorf("%w: %s", ErrInvalidItem, msg) }
	switch kind {
	case catalog.KindRealWords:
		if len(it.Words) == 0 {
			return bad("words is empty")
		}
	case catalog.KindYesNo:
		if it.Word == "" || it.IsReal == nil {
			return bad("word and is_real are required")
		}
	case catalog.KindBlanks:
		if len(it.Sentence) == 0 || len(it.CorrectAnswers) == 0 {
			return bad("sentence and correct_answers are required")
		}
		for i, b := range it.CorrectAnswers {
			if b.Word == "" || b.Start < 0 || b.Start > len([]rune(b.Word)) {
				return bad(fmt.Sprintf("correct_answers[%d] has start %d outside %q", i, b.Start, b.Word))
			}
		}
	case catalog.KindDictation:
		if it.File == "" || it.Answer == "" {
			return bad("file and answer are required")
		}
	case catalog.KindRecall:
		if strings.TrimSpace(it.Word) == "" || strings.TrimSpace(it.Translate) == "" {
			return bad("word and translate are required")
		}
	case catalog.KindPassage, catalog.KindScenario:
		if kind == catalog.KindPassage && len(it.Passage) == 0 {
			return bad("passage is required")
		}
		if len(it.Questions) == 0 {
			return bad("questions is empty")
		}
		for i, q := range it.Questions {
			if q.Correct != nil && q.Correct.Index != nil {
				if idx := *q.Correct.Index; idx < 0 || idx >= len(q.Choices) {
					return bad(fmt.Sprintf("questions[%d].correct %d out of range", i, idx))
				}
			}
		}
	case catalog.KindPhoto:
		if it.Topic == "" && it.Image == "" {
			return bad("topic or image is required")
		}
	case catalog.KindPrompt:
		if it.Prompt == "" && len(it.Questions) == 0 {
			return bad("prompt or questions is required")
		}
	default:
		return bad("unknown kind " + string(kind))
	}
	return nil
}

// Preferred reports whether a passage item has the full sentence-completion
// layout: at least five CompleteTheSentence questions and five [n] markers.
func (it Item) Preferred() bool {
	if len(it.Questions) < 5 {
		return false
	}
	for _, q := range it.Questions {
		if q.Type != QCompleteTheSentence {
			return false
		}
	}
	return len(passageMarkerRe.FindAllString(strings.Join(it.Passage, " "), -1)) >= 5
}

// StudentView returns a copy with answer keys and model answers removed.
func (it Item) StudentView(kind catalog.Kind) Item {
	out := it
	if kind == catalog.KindRecall {
		out.Word = ""
	}
	out.IsReal = nil
	out.Answer = ""
	out.Sample = ""
	out.FollowUpSample = ""
	out.SummaryExample = ""
	if len(it.Words) > 0 {
		out.Words = make([]WordChoice, len(it.Words))
		for i, w := range it.Words {
			out.Words[i] = WordChoice{Word: w.Word}
		}
	}
	if len(it.CorrectAnswers) > 0 {
		// keep the visible prefix and the blank length only
		out.CorrectAnswers = make([]Blank, len(it.CorrectAnswers))
		for i, b := range it.CorrectAnswers {
			r := []rune(b.Word)
			out.CorrectAnswers[i] = Blank{Word: string(r[:b.Start]) + strings.Repeat("_", len(r)-b.Start), Start: b.Start}
		}
	}
	if len(it.Questions) > 0 {
		out.Questions = make([]Question, len(it.Questions))
		for i, q := range it.Questions {
			q.Correct = nil
			q.Answer = ""
			q.SummaryExample = ""
			out.Questions[i] = q
		}
	}
	return out
}
