package bank

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/storage"
)

func newLoader(t *testing.T, files map[string]string) *Loader {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fs, err := storage.NewFSStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	l := NewLoader(fs, nil)
	l.Seed(1)
	return l
}

const readAndSelect = `[
 {"word":"house","is_real":true,"difficulty":"basic"},
 {"word":"blorf","is_real":false,"difficulty":"basic"},
 {"word":"ubiquitous","is_real":true,"difficulty":"advanced"}
]`

func TestItemsAssignsIDs(t *testing.T) {
	l := newLoader(t, map[string]string{"dataReadAndSelect.json": readAndSelect})
	items, err := l.Items(context.Background(), "read-and-select")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("got %d items", len(items))
	}
	if items[1].ID != "read-and-select-1" {
		t.Fatalf("id = %q", items[1].ID)
	}
}

func TestUnknownModule(t *testing.T) {
	l := newLoader(t, nil)
	if _, err := l.Items(context.Background(), "nope"); !errors.Is(err, ErrUnknownModule) {
		t.Fatalf("err = %v", err)
	}
}

func TestMissingOrBrokenBankYieldsEmptyPool(t *testing.T) {
	l := newLoader(t, map[string]string{"dataFillBlanks.json": `{"questions":[]}`})
	items, err := l.Items(context.Background(), "fill-in-the-blanks")
	if err != nil || len(items) != 0 {
		t.Fatalf("legacy shape: items=%v err=%v", items, err)
	}
	items, err = l.Items(context.Background(), "listening-test")
	if err != nil || len(items) != 0 {
		t.Fatalf("missing file: items=%v err=%v", items, err)
	}
}

func TestDecodeRejectsLegacyAndInvalid(t *testing.T) {
	m, _ := catalog.Lookup("fill-in-the-blanks")
	if _, err := Decode([]byte(` {"questions":[]}`), m); !errors.Is(err, ErrLegacyShape) {
		t.Fatalf("legacy err = %v", err)
	}
	_, err := Decode([]byte(`[{"sentence":["a"],"correct_answers":[{"word":"cat","start":4}]}]`), m)
	if !errors.Is(err, ErrInvalidItem) {
		t.Fatalf("invalid start err = %v", err)
	}
}

func TestDecodeHighlightKey(t *testing.T) {
	m, _ := catalog.Lookup("interactive-reading")
	raw := `[{"passage":["p"],"questions":[
		{"type":"CompleteTheSentence","choices":["a","b"],"correct":1},
		{"type":"HighlightTheAnswer","correct":"the span"}]}]`
	items, err := Decode([]byte(raw), m)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	q := items[0].Questions
	if q[0].Correct.Index == nil || *q[0].Correct.Index != 1 {
		t.Fatalf("index key = %+v", q[0].Correct)
	}
	if q[1].Correct.Text != "the span" {
		t.Fatalf("text key = %+v", q[1].Correct)
	}
}

func TestPoolFollowsDifficultyPolicy(t *testing.T) {
	speaking := `[{"prompt":"a trip","difficulty":"basic"},{"prompt":"a job","difficulty":"advanced"}]`
	l := newLoader(t, map[string]string{
		"dataReadAndSelect.json":  readAndSelect,
		"dataSpeakingSample.json": speaking,
		"dataFillBlanks.json":     `[{"sentence":["I"],"correct_answers":[{"word":"am","start":0}],"difficulty":"advanced"}]`,
	})
	ctx := context.Background()

	cases := []struct {
		module string
		d      catalog.Difficulty
		want   int
	}{
		{"read-and-select", catalog.DifficultyBasic, 2},
		{"read-and-select", catalog.DifficultyAny, 3},
		// strict: no medium items means an empty round
		{"read-and-select", catalog.DifficultyMedium, 0},
		{"speaking-sample", catalog.DifficultyAdvanced, 1},
		// fallback: no medium items means the whole bank
		{"speaking-sample", catalog.DifficultyMedium, 2},
		// ignored: the level does not filter at all
		{"fill-in-the-blanks", catalog.DifficultyBasic, 1},
	}
	for _, tc := range cases {
		pool, err := l.Pool(ctx, tc.module, tc.d)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.module, tc.d, err)
		}
		if len(pool) != tc.want {
			t.Errorf("%s/%s pool = %d, want %d", tc.module, tc.d, len(pool), tc.want)
		}
	}
}

func TestDrawWithoutReplacement(t *testing.T) {
	var pool []Item
	for i := 0; i < 40; i++ {
		pool = append(pool, Item{ID: string(rune('A' + i))})
	}
	l := newLoader(t, nil)
	m, _ := catalog.Lookup("read-and-select")
	got := l.Draw(m, pool, 0)
	if len(got) < 15 || len(got) > 18 {
		t.Fatalf("round size %d", len(got))
	}
	seen := map[string]bool{}
	for _, it := range got {
		if seen[it.ID] {
			t.Fatalf("item %s drawn twice", it.ID)
		}
		seen[it.ID] = true
	}
}

func TestDrawPrefersFullPassages(t *testing.T) {
	full := Item{ID: "full", Passage: []string{"[1] [2] [3]", "[4] [5]"}}
	for i := 0; i < 5; i++ {
		full.Questions = append(full.Questions, Question{Type: QCompleteTheSentence})
	}
	short := Item{ID: "short", Passage: []string{"x"}, Questions: []Question{{Type: QHighlightTheAnswer}}}
	l := newLoader(t, nil)
	m, _ := catalog.Lookup("interactive-reading")
	for i := 0; i < 10; i++ {
		got := l.Draw(m, []Item{short, full, short}, 0)
		if len(got) != 1 || got[0].ID != "full" {
			t.Fatalf("draw = %+v", got)
		}
	}
}

func TestStudentViewStripsKeys(t *testing.T) {
	yes := true
	idx := 0
	it := Item{
		Word: "dog", IsReal: &yes, Translate: "perro",
		CorrectAnswers: []Blank{{Word: "house", Start: 2}},
		Questions:      []Question{{Choices: []string{"a"}, Correct: &Key{Index: &idx}}},
	}
	v := it.StudentView(catalog.KindRecall)
	if v.IsReal != nil || v.Word != "" || v.Questions[0].Correct != nil {
		t.Fatalf("keys leaked: %+v", v)
	}
	if v.CorrectAnswers[0].Word != "ho___" {
		t.Fatalf("blank = %q", v.CorrectAnswers[0].Word)
	}
	if it.Questions[0].Correct == nil {
		t.Fatal("original item mutated")
	}
}
