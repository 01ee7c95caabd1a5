package grading

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/catalog"
)

// Outcome is the result of grading one round item.
type Outcome struct {
	Hits     int      `json:"hits"`  // correct parts (words, blanks, questions)
	Total    int      `json:"total"` // gradable parts
	Correct  bool     `json:"correct"`
	Feedback []string `json:"feedback,omitempty"`
	// Expected is the answer key revealed after submission.
	Expected interface{} `json:"expected,omitempty"`
}

// Strategy grades a single item. response is the decoded JSON answer.
type Strategy interface {
	Grade(ctx context.Context, it bank.Item, response interface{}) (Outcome, error)
}

// Grader routes by module kind to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, kind catalog.Kind, it bank.Item, response interface{}) (Outcome, error)
}

var ErrBadResponse = errors.New("bad response")

type defaultGrader struct {
	strategies map[catalog.Kind]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, kind catalog.Kind, it bank.Item, response interface{}) (Outcome, error) {
	s, ok := g.strategies[kind]
	if !ok {
		return Outcome{}, fmt.Errorf("no strategy for kind %q", kind)
	}
	return s.Grade(ctx, it, response)
}

// Engine options

type Option func(*config)

type config struct {
	MaxEditDistance int // a miss within this distance earns a "close" note
}

func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

// NewDefaultGrader installs built-in strategies.
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{MaxEditDistance: 1}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[catalog.Kind]Strategy{
			catalog.KindYesNo:     yesNoStrategy{},
			catalog.KindRealWords: realWordsStrategy{},
			catalog.KindBlanks:    blanksStrategy{},
			catalog.KindDictation: textStrategy{maxEdit: cfg.MaxEditDistance, key: func(it bank.Item) string { return it.Answer }},
			catalog.KindRecall:    textStrategy{maxEdit: cfg.MaxEditDistance, key: func(it bank.Item) string { return it.Word }},
			catalog.KindPassage:   choicesStrategy{},
			catalog.KindScenario:  choicesStrategy{},
			catalog.KindPhoto:     selfGradedStrategy{},
			catalog.KindPrompt:    selfGradedStrategy{},
		},
	}
}

// --- Strategies ---

type yesNoStrategy struct{}

func (yesNoStrategy) Grade(_ context.Context, it bank.Item, response interface{}) (Outcome, error) {
	want := it.IsReal != nil && *it.IsReal
	out := Outcome{Total: 1, Expected: want}
	got, ok := toBool(response)
	if !ok {
		return out, fmt.Errorf("%w: expected true or false", ErrBadResponse)
	}
	if got == want {
		out.Hits, out.Correct = 1, true
	}
	return out, nil
}

// realWordsStrategy compares the selected flags position by position.
type realWordsStrategy struct{}

func (realWordsStrategy) Grade(_ context.Context, it bank.Item, response interface{}) (Outcome, error) {
	want := make([]bool, len(it.Words))
	for i, w := range it.Words {
		want[i] = w.Real
	}
	out := Outcome{Total: len(want), Expected: want}
	got, ok := toBoolSlice(response)
	if !ok {
		return out, fmt.Errorf("%w: expected an array of booleans", ErrBadResponse)
	}
	for i := range want {
		if i < len(got) && got[i] == want[i] {
			out.Hits++
		}
	}
	out.Correct = out.Hits == out.Total && len(got) == len(want)
	return out, nil
}

// blanksStrategy compares the typed suffix of every blank, lower-cased.
type blanksStrategy struct{}

func (blanksStrategy) Grade(_ context.Context, it bank.Item, response interface{}) (Outcome, error) {
	want := make([]string, len(it.CorrectAnswers))
	for i, b := range it.CorrectAnswers {
		want[i] = strings.ToLower(b.Missing())
	}
	out := Outcome{Total: len(want), Expected: want}
	got, ok := toStringSlice(response)
	if !ok {
		return out, fmt.Errorf("%w: expected an array of strings", ErrBadResponse)
	}
	for i := range want {
		if i < len(got) && strings.ToLower(strings.TrimSpace(got[i])) == want[i] {
			out.Hits++
		}
	}
	out.Correct = out.Hits == out.Total
	return out, nil
}

// textStrategy compares a typed answer with the key after folding case and
// whitespace. A near miss gets a note but no credit.
type textStrategy struct {
	maxEdit int
	key     func(bank.Item) string
}

func (s textStrategy) Grade(_ context.Context, it bank.Item, response interface{}) (Outcome, error) {
	key := s.key(it)
	out := Outcome{Total: 1, Expected: key}
	resp, ok := response.(string)
	if !ok {
		return out, fmt.Errorf("%w: expected a string", ErrBadResponse)
	}
	if Fold(resp) == Fold(key) {
		out.Hits, out.Correct = 1, true
		return out, nil
	}
	if s.maxEdit > 0 && strings.TrimSpace(resp) != "" && levenshtein(normalize(key), normalize(resp)) <= s.maxEdit {
		out.Feedback = append(out.Feedback, "close match")
	}
	return out, nil
}

// choicesStrategy grades every question that carries a key. The response is
// an array aligned with the item's questions: a choice index, a text answer,
// or null for a skipped question.
type choicesStrategy struct{}

func (choicesStrategy) Grade(_ context.Context, it bank.Item, response interface{}) (Outcome, error) {
	var answers []interface{}
	switch v := response.(type) {
	case []interface{}:
		answers = v
	case nil:
	default:
		return Outcome{}, fmt.Errorf("%w: expected an array of answers", ErrBadResponse)
	}
	expected := make([]interface{}, len(it.Questions))
	out := Outcome{}
	for i, q := range it.Questions {
		if !q.Gradable() {
			continue
		}
		out.Total++
		var a interface{}
		if i < len(answers) {
			a = answers[i]
		}
		switch {
		case q.Correct != nil && q.Correct.Index != nil:
			expected[i] = *q.Correct.Index
			if n, ok := toInt(a); ok && n == *q.Correct.Index {
				out.Hits++
			}
		default:
			key := q.Answer
			if q.Correct != nil {
				key = q.Correct.Text
			}
			expected[i] = key
			if s, ok := a.(string); ok && Fold(s) == Fold(key) {
				out.Hits++
			}
		}
	}
	out.Expected = expected
	out.Correct = out.Hits == out.Total
	return out, nil
}

// selfGradedStrategy covers speaking and writing: any submission earns full
// credit.
type selfGradedStrategy struct{}

func (selfGradedStrategy) Grade(_ context.Context, it bank.Item, _ interface{}) (Outcome, error) {
	out := Outcome{Hits: 1, Total: 1, Correct: true, Feedback: []string{"self-graded"}}
	if it.Sample != "" {
		out.Expected = it.Sample
	}
	return out, nil
}

// helpers

func toBool(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(t))
		return b, err == nil
	default:
		return false, false
	}
}

func toBoolSlice(v interface{}) ([]bool, bool) {
	switch t := v.(type) {
	case []bool:
		return t, true
	case []interface{}:
		out := make([]bool, 0, len(t))
		for _, e := range t {
			b, ok := toBool(e)
			if !ok {
				return nil, false
			}
			out = append(out, b)
		}
		return out, true
	default:
		return nil, false
	}
}

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, _ := e.(string)
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	default:
		return 0, false
	}
}
