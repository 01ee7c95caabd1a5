package round

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/grading"
)

func yesNoItems(vals ...bool) []bank.Item {
	out := make([]bank.Item, len(vals))
	for i := range vals {
		v := vals[i]
		out[i] = bank.Item{ID: string(rune('a' + i)), Word: "w", IsReal: &v}
	}
	return out
}

func newRound(t *testing.T, items []bank.Item) *Round {
	t.Helper()
	m, _ := catalog.Lookup("read-and-select")
	r := New("r1", "s1", m, catalog.DifficultyAny, false, items, grading.NewDefaultGrader())
	if err := r.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	return r
}

func TestRoundLifecycle(t *testing.T) {
	ctx := context.Background()
	r := newRound(t, yesNoItems(true, false))
	if r.State() != StateRunning {
		t.Fatalf("state = %s", r.State())
	}
	v := r.View()
	if v.Current == nil || v.Current.IsReal != nil {
		t.Fatalf("current item leaks key: %+v", v.Current)
	}

	if _, err := r.Submit(ctx, true, false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := r.Submit(ctx, true, false); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("second submit err = %v", err)
	}
	if v := r.View(); v.AdvanceAfterMS != 500 || v.Last == nil || !v.Last.Outcome.Correct {
		t.Fatalf("submitted view = %+v", v)
	}

	if st, err := r.Advance(); err != nil || st != StateRunning {
		t.Fatalf("advance: %s %v", st, err)
	}
	if _, err := r.Advance(); !errors.Is(err, ErrNotSubmitted) {
		t.Fatalf("advance before answer err = %v", err)
	}
	if _, err := r.Submit(ctx, true, false); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st, _ := r.Advance(); st != StateFinished {
		t.Fatalf("state = %s", st)
	}

	v = r.View()
	if len(v.Correct) != 1 || len(v.Incorrect) != 1 {
		t.Fatalf("lists = %+v / %+v", v.Correct, v.Incorrect)
	}
	sum := r.Summary()
	if sum.Module != "read-and-select" || sum.TotalQuestions != 2 || sum.TotalCorrect != 1 || sum.TotalIncorrect != 1 {
		t.Fatalf("summary = %+v", sum)
	}
	if sum.Timestamp == 0 {
		t.Fatal("timestamp not set")
	}
}

func TestEmptyRoundFinishesAtStart(t *testing.T) {
	r := newRound(t, nil)
	if r.State() != StateFinished {
		t.Fatalf("state = %s", r.State())
	}
	if sum := r.Summary(); sum.TotalQuestions != 0 || sum.TotalCorrect != 0 {
		t.Fatalf("summary = %+v", sum)
	}
	if err := r.Start(); !errors.Is(err, ErrStarted) {
		t.Fatalf("restart err = %v", err)
	}
}

func TestSubmitWithFinishEndsEarly(t *testing.T) {
	r := newRound(t, yesNoItems(true, true, true))
	if _, err := r.Submit(context.Background(), false, true); err != nil {
		t.Fatal(err)
	}
	if r.State() != StateFinished {
		t.Fatalf("state = %s", r.State())
	}
	if sum := r.Summary(); sum.TotalQuestions != 1 || sum.TotalIncorrect != 1 {
		t.Fatalf("summary = %+v", sum)
	}
}

func TestBadAnswerKeepsRoundRunning(t *testing.T) {
	r := newRound(t, yesNoItems(true))
	if _, err := r.Submit(context.Background(), 42.0, false); !errors.Is(err, grading.ErrBadResponse) {
		t.Fatalf("err = %v", err)
	}
	if r.State() != StateRunning {
		t.Fatalf("state = %s", r.State())
	}
}

func TestStoreOwnershipAndSweep(t *testing.T) {
	s := NewStore()
	r := newRound(t, yesNoItems(true))
	s.Put(r)
	if _, err := s.Get("other", r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("foreign session err = %v", err)
	}
	if got, err := s.Get("s1", r.ID); err != nil || got != r {
		t.Fatalf("get: %v", err)
	}
	if n := s.Sweep(time.Now().Add(-time.Hour)); n != 0 {
		t.Fatalf("swept fresh round")
	}
	if n := s.Sweep(time.Now().Add(time.Hour)); n != 1 || s.Len() != 0 {
		t.Fatalf("sweep n=%d len=%d", n, s.Len())
	}
	if err := s.Delete("s1", r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete err = %v", err)
	}
}

type fakeSource struct{ items []bank.Item }

func (f fakeSource) Pool(context.Context, string, catalog.Difficulty) ([]bank.Item, error) {
	return f.items, nil
}
func (f fakeSource) Draw(_ catalog.Module, pool []bank.Item, _ int) []bank.Item { return pool }

func TestServiceCreate(t *testing.T) {
	svc := NewService(fakeSource{items: yesNoItems(true, false)}, grading.NewDefaultGrader(), NewStore(), nil)
	m, _ := catalog.Lookup("read-and-select")
	r, err := svc.Create(context.Background(), "s1", m, catalog.DifficultyBasic, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if r.State() != StateRunning || !r.FullTest || r.View().Count != 2 {
		t.Fatalf("round = %+v", r.View())
	}
	if _, err := svc.Rounds.Get("s1", r.ID); err != nil {
		t.Fatalf("not stored: %v", err)
	}
}

func TestMarkReportedOnce(t *testing.T) {
	r := newRound(t, yesNoItems(true))
	if r.MarkReported() {
		t.Fatal("running round reported")
	}
	r.Finish()
	if !r.MarkReported() || r.MarkReported() {
		t.Fatal("finished round must report exactly once")
	}
}
