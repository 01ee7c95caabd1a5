// Package sequencer chains the Full Test modules in their fixed order and
// carries the chosen difficulty from one module to the next.
package sequencer

import (
	"context"
	"net/url"

	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/results"
)

// Order is the Full Test module sequence.
var Order = []string{
	"/read-and-select",
	"/fill-in-the-blanks",
	"/read-and-complete",
	"/interactive-reading",
	"/listening-test",
	"/interactive-listening",
	"/image-test",
	"/interactive-writing",
	"/speak-about-photo",
	"/read-then-speak",
	"/interactive-speaking",
	"/speaking-sample",
	"/writing-sample",
}

func indexOf(path string) int {
	for i, p := range Order {
		if p == path {
			return i
		}
	}
	return -1
}

// Next returns the route after path. The last route and routes outside the
// order have no successor.
func Next(path string) (string, bool) {
	i := indexOf(path)
	if i < 0 || i >= len(Order)-1 {
		return "", false
	}
	return Order[i+1], true
}

// InOrder reports whether path is part of the Full Test.
func InOrder(path string) bool { return indexOf(path) >= 0 }

// IsLast reports whether path is the final module.
func IsLast(path string) bool { return indexOf(path) == len(Order)-1 }

// NextURL builds the navigation target for route with the difficulty carried
// over unchanged.
func NextURL(route string, d catalog.Difficulty) string {
	return route + "?fullTest=1&difficulty=" + url.QueryEscape(string(d))
}

// Mode is what a module learns from its query string.
type Mode struct {
	FullTest   bool
	Difficulty catalog.Difficulty
}

// ParseQuery reads fullTest and difficulty. Sequencing is on only when
// fullTest is exactly "1"; a missing difficulty means any.
func ParseQuery(q url.Values) (Mode, error) {
	d, err := catalog.ParseDifficulty(q.Get("difficulty"))
	if err != nil {
		return Mode{}, err
	}
	return Mode{FullTest: q.Get("fullTest") == "1", Difficulty: d}, nil
}

// Step is what happens after a module finishes in Full Test mode. Exactly
// one of Next and Report is set, or neither when the path is outside the
// order.
type Step struct {
	Next   string          `json:"next,omitempty"`
	Report *results.Report `json:"report,omitempty"`
}

// Sequencer drives a Full Test run for one session at a time.
type Sequencer struct {
	agg *results.Aggregator
}

func New(agg *results.Aggregator) *Sequencer {
	return &Sequencer{agg: agg}
}

// Start clears the session's previous results and returns the first module.
func (s *Sequencer) Start(ctx context.Context, sessionID string, d catalog.Difficulty) string {
	s.agg.ClearFullTestResults(ctx, sessionID)
	return NextURL(Order[0], d)
}

// Complete records a finished module and says where to go next.
func (s *Sequencer) Complete(ctx context.Context, sessionID, path string, d catalog.Difficulty, rec results.Record) Step {
	s.agg.PushSectionResult(ctx, sessionID, rec)
	if next, ok := Next(path); ok {
		return Step{Next: NextURL(next, d)}
	}
	if IsLast(path) {
		rep := s.agg.Report(ctx, sessionID)
		return Step{Report: &rep}
	}
	return Step{}
}
