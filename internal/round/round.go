// Package round runs one module visit: a working set of items drawn from the
// bank, answered one at a time and scored locally.
package round

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/grading"
	"github.com/mind-engage/detprep/internal/results"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateSubmitted State = "item-submitted"
	StateFinished  State = "finished"
)

var (
	ErrNotFound     = errors.New("round not found")
	ErrNotRunning   = errors.New("round is not waiting for an answer")
	ErrNotSubmitted = errors.New("current item has not been answered")
	ErrStarted      = errors.New("round already started")
)

// ItemResult records one answered item.
type ItemResult struct {
	ItemID  string          `json:"item_id"`
	Answer  interface{}     `json:"answer,omitempty"`
	Outcome grading.Outcome `json:"outcome"`
}

// Round is safe for concurrent use.
type Round struct {
	ID         string
	SessionID  string
	Module     catalog.Module
	Difficulty catalog.Difficulty
	FullTest   bool

	mu        sync.Mutex
	grader    grading.Grader
	state     State
	items     []bank.Item
	cursor    int
	results   []ItemResult
	reported  bool
	updatedAt time.Time
	now       func() time.Time
}

func New(id, sessionID string, m catalog.Module, d catalog.Difficulty, fullTest bool, items []bank.Item, g grading.Grader) *Round {
	r := &Round{
		ID:         id,
		SessionID:  sessionID,
		Module:     m,
		Difficulty: d,
		FullTest:   fullTest,
		grader:     g,
		state:      StateIdle,
		items:      items,
		now:        time.Now,
	}
	r.updatedAt = r.now()
	return r
}

// Start moves idle to running with the first item current. An empty working
// set finishes at once with zero totals.
func (r *Round) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateIdle {
		return ErrStarted
	}
	r.touch()
	if len(r.items) == 0 {
		r.state = StateFinished
		return nil
	}
	r.state = StateRunning
	return nil
}

// Submit grades the answer for the current item. With finish set the round
// ends right after it and the remaining items are not counted.
func (r *Round) Submit(ctx context.Context, answer interface{}, finish bool) (grading.Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateRunning {
		return grading.Outcome{}, ErrNotRunning
	}
	it := r.items[r.cursor]
	out, err := r.grader.Grade(ctx, r.Module.Kind, it, answer)
	if err != nil {
		return grading.Outcome{}, fmt.Errorf("grade %s: %w", it.ID, err)
	}
	r.results = append(r.results, ItemResult{ItemID: it.ID, Answer: answer, Outcome: out})
	r.touch()
	if finish {
		r.state = StateFinished
		return out, nil
	}
	r.state = StateSubmitted
	return out, nil
}

// Advance pulls the next item, or finishes the round after the last one.
func (r *Round) Advance() (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateSubmitted {
		return r.state, ErrNotSubmitted
	}
	r.touch()
	if r.cursor+1 >= len(r.items) {
		r.state = StateFinished
		return r.state, nil
	}
	r.cursor++
	r.state = StateRunning
	return r.state, nil
}

// Finish ends the round early from any state.
func (r *Round) Finish() {
	r.mu.Lock()
	r.state = StateFinished
	r.touch()
	r.mu.Unlock()
}

func (r *Round) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Summary is the section result for this visit. Only answered items count.
func (r *Round) Summary() results.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := results.Record{Module: r.Module.ID, Timestamp: r.now().UnixMilli()}
	for _, res := range r.results {
		rec.TotalQuestions += res.Outcome.Total
		rec.TotalCorrect += res.Outcome.Hits
	}
	rec.TotalIncorrect = rec.TotalQuestions - rec.TotalCorrect
	return rec
}

// MarkReported returns true exactly once for a finished round, so its
// section result is pushed a single time.
func (r *Round) MarkReported() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != StateFinished || r.reported {
		return false
	}
	r.reported = true
	return true
}

// IdleSince reports the last time the round changed.
func (r *Round) IdleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updatedAt
}

func (r *Round) touch() { r.updatedAt = r.now() }

// View is the client's picture of a round. Answer keys of the current item
// stay hidden until it is submitted.
type View struct {
	ID             string             `json:"id"`
	Module         string             `json:"module"`
	Difficulty     catalog.Difficulty `json:"difficulty"`
	FullTest       bool               `json:"full_test"`
	State          State              `json:"state"`
	Index          int                `json:"index"`
	Count          int                `json:"count"`
	Current        *bank.Item         `json:"current,omitempty"`
	Last           *ItemResult        `json:"last,omitempty"`
	AdvanceAfterMS int                `json:"advance_after_ms,omitempty"`
	TimeLimitSec   int                `json:"time_limit_sec"`
	PrepareSec     int                `json:"prepare_sec,omitempty"`
	Correct        []ItemResult       `json:"correct,omitempty"`
	Incorrect      []ItemResult       `json:"incorrect,omitempty"`
	Summary        *results.Record    `json:"summary,omitempty"`
}

func (r *Round) View() View {
	r.mu.Lock()
	v := View{
		ID:           r.ID,
		Module:       r.Module.ID,
		Difficulty:   r.Difficulty,
		FullTest:     r.FullTest,
		State:        r.state,
		Index:        r.cursor,
		Count:        len(r.items),
		TimeLimitSec: r.Module.TimeLimitSec,
		PrepareSec:   r.Module.PrepareSec,
	}
	switch r.state {
	case StateRunning:
		cur := r.items[r.cursor].StudentView(r.Module.Kind)
		v.Current = &cur
	case StateSubmitted:
		cur := r.items[r.cursor]
		v.Current = &cur
		v.AdvanceAfterMS = r.Module.PacingMS
	}
	if n := len(r.results); n > 0 && r.state != StateRunning {
		last := r.results[n-1]
		v.Last = &last
	}
	finished := r.state == StateFinished
	if finished {
		for _, res := range r.results {
			if res.Outcome.Correct {
				v.Correct = append(v.Correct, res)
			} else {
				v.Incorrect = append(v.Incorrect, res)
			}
		}
	}
	r.mu.Unlock()

	if finished {
		sum := r.Summary()
		v.Summary = &sum
	}
	return v
}
