package results

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mind-engage/detprep/internal/db"
)

func rec(module string, total, correct int) Record {
	return Record{Module: module, TotalQuestions: total, TotalCorrect: correct, TotalIncorrect: total - correct, Timestamp: 1700000000000}
}

func TestPushThenRead(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(NewMemoryStore(), nil)
	agg.PushSectionResult(ctx, "s1", rec("read-and-select", 15, 12))
	want := rec("fill-in-the-blanks", 6, 5)
	agg.PushSectionResult(ctx, "s1", want)

	got := agg.GetFullTestResults(ctx, "s1")
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}
	if !reflect.DeepEqual(got[len(got)-1], want) {
		t.Fatalf("last = %+v want %+v", got[len(got)-1], want)
	}
	if other := agg.GetFullTestResults(ctx, "s2"); len(other) != 0 {
		t.Fatalf("sessions leaked: %+v", other)
	}
}

func TestClearThenReadIsEmpty(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(NewMemoryStore(), nil)
	agg.PushSectionResult(ctx, "s1", rec("read-and-select", 15, 12))
	agg.ClearFullTestResults(ctx, "s1")
	got := agg.GetFullTestResults(ctx, "s1")
	if got == nil || len(got) != 0 {
		t.Fatalf("got %#v", got)
	}
}

func TestMalformedListReadsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SetRaw("s1", []byte(`{not json`))
	agg := NewAggregator(store, nil)
	if got := agg.GetFullTestResults(ctx, "s1"); got == nil || len(got) != 0 {
		t.Fatalf("got %#v", got)
	}
	if _, err := store.ReadAll(ctx, "s1"); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("err = %v", err)
	}
}

func TestPushOverCorruptListStartsOver(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	store.SetRaw("s1", []byte(`[{"module":`))
	agg := NewAggregator(store, nil)
	r := rec("image-test", 3, 3)
	agg.PushSectionResult(ctx, "s1", r)
	got := agg.GetFullTestResults(ctx, "s1")
	if !reflect.DeepEqual(got, []Record{r}) {
		t.Fatalf("got %+v", got)
	}
}

func TestDuplicateModuleDropped(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(NewMemoryStore(), nil)
	first := rec("read-and-select", 15, 12)
	agg.PushSectionResult(ctx, "s1", first)
	agg.PushSectionResult(ctx, "s1", rec("read-and-select", 18, 1))
	got := agg.GetFullTestResults(ctx, "s1")
	if !reflect.DeepEqual(got, []Record{first}) {
		t.Fatalf("got %+v", got)
	}
}

// slowStore widens the window between the aggregator's read and its append.
type slowStore struct {
	*MemoryStore
}

func (s slowStore) ReadAll(ctx context.Context, sessionID string) ([]Record, error) {
	time.Sleep(20 * time.Millisecond)
	return s.MemoryStore.ReadAll(ctx, sessionID)
}

func TestConcurrentPushKeepsOneRecordPerModule(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(slowStore{NewMemoryStore()}, nil)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			agg.PushSectionResult(ctx, "s1", rec("read-and-select", 15, i))
		}(i)
	}
	wg.Wait()
	if got := agg.GetFullTestResults(ctx, "s1"); len(got) != 1 {
		t.Fatalf("got %d records: %+v", len(got), got)
	}
}

type failingStore struct{}

func (failingStore) Append(context.Context, string, Record) error { return errors.New("down") }
func (failingStore) ReadAll(context.Context, string) ([]Record, error) {
	return nil, errors.New("down")
}
func (failingStore) Clear(context.Context, string) error { return errors.New("down") }

func TestStoreFailuresAreSwallowed(t *testing.T) {
	ctx := context.Background()
	agg := NewAggregator(failingStore{}, nil)
	agg.PushSectionResult(ctx, "s1", rec("read-and-select", 1, 1))
	agg.ClearFullTestResults(ctx, "s1")
	if got := agg.GetFullTestResults(ctx, "s1"); got == nil || len(got) != 0 {
		t.Fatalf("got %#v", got)
	}
}

func TestBuildReport(t *testing.T) {
	r := BuildReport([]Record{rec("a", 10, 7), rec("b", 5, 5)})
	if r.TotalQuestions != 15 || r.TotalCorrect != 12 || r.TotalIncorrect != 3 || r.Percent != 80 {
		t.Fatalf("report = %+v", r)
	}
	empty := BuildReport(nil)
	if empty.Percent != 0 || empty.Sections == nil {
		t.Fatalf("empty report = %+v", empty)
	}
}

func TestSQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:"+filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()
	s := NewSQLStore(conn, db.DriverSQLite)

	a, b := rec("read-and-select", 15, 12), rec("fill-in-the-blanks", 6, 5)
	for _, r := range []Record{a, b} {
		if err := s.Append(ctx, "s1", r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := s.Append(ctx, "s2", a); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, "s1", rec("read-and-select", 18, 1)); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate append err = %v", err)
	}
	got, err := s.ReadAll(ctx, "s1")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !reflect.DeepEqual(got, []Record{a, b}) {
		t.Fatalf("got %+v", got)
	}

	if err := s.Clear(ctx, "s1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got, _ := s.ReadAll(ctx, "s1"); len(got) != 0 {
		t.Fatalf("after clear: %+v", got)
	}

	n, err := s.PurgeBefore(ctx, time.Now().Add(time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("purge n=%d err=%v", n, err)
	}
}

func TestRedisKey(t *testing.T) {
	s := NewRedisStore(nil, "", time.Hour)
	if got := s.key("abc"); got != "detprep:abc:fullTestResults_v1" {
		t.Fatalf("key = %q", got)
	}
}
