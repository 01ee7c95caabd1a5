package bankimport

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/storage"
)

func TestVisibleLetters(t *testing.T) {
	cases := map[int]int{0: 0, 1: 0, 2: 0, 3: 1, 4: 2, 5: 2, 6: 3, 7: 3, 8: 4, 9: 4, 10: 5, 14: 5}
	for n, want := range cases {
		if got := VisibleLetters(n); got != want {
			t.Errorf("VisibleLetters(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestSplitBlanks(t *testing.T) {
	s, b, err := SplitBlanks("The {weather} was {warm|1} today.")
	if err != nil {
		t.Fatal(err)
	}
	if len(s) != 3 || s[0] != "The" || s[1] != "was" || s[2] != "today." {
		t.Fatalf("sentence = %q", s)
	}
	if len(b) != 2 || b[0] != (bank.Blank{Word: "weather", Start: 3}) || b[1] != (bank.Blank{Word: "warm", Start: 1}) {
		t.Fatalf("blanks = %+v", b)
	}
	if _, _, err := SplitBlanks("no blanks here"); !errors.Is(err, bank.ErrInvalidItem) {
		t.Fatalf("err = %v", err)
	}
}

func TestBuildSkipsBadRows(t *testing.T) {
	m, _ := catalog.Lookup("read-and-select")
	items, errs := Build(m, []Row{
		{"word": "house", "is_real": "yes", "difficulty": "Basic"},
		{"word": "", "is_real": "no"},
		{"word": "blorf", "is_real": "0"},
	})
	if len(items) != 2 || len(errs) != 1 {
		t.Fatalf("items=%d errs=%v", len(items), errs)
	}
	if !*items[0].IsReal || *items[1].IsReal || items[0].Difficulty != "basic" {
		t.Fatalf("items = %+v", items)
	}
	passage, _ := catalog.Lookup("interactive-reading")
	if _, errs := Build(passage, []Row{{"title": "x"}}); len(errs) != 1 || !errors.Is(errs[0], ErrUnsupportedKind) {
		t.Fatalf("passage errs = %v", errs)
	}
}

func TestReadRowsCSV(t *testing.T) {
	p := filepath.Join(t.TempDir(), "words.csv")
	body := "Word,Translate,Difficulty\ncasa,house,basic\n,,\nperro,dog,medium\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadRows(p, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 || rows[1]["translate"] != "dog" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestReadRowsXLSXAndWrite(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "blanks.xlsx")
	f := excelize.NewFile()
	_ = f.SetSheetRow("Sheet1", "A1", &[]interface{}{"difficulty", "text"})
	_ = f.SetSheetRow("Sheet1", "A2", &[]interface{}{"medium", "She {answered} the {phone}."})
	if err := f.SaveAs(p); err != nil {
		t.Fatal(err)
	}
	_ = f.Close()

	rows, err := ReadRows(p, "")
	if err != nil {
		t.Fatal(err)
	}
	m, _ := catalog.Lookup("read-and-complete")
	items, errs := Build(m, rows)
	if len(errs) != 0 || len(items) != 1 {
		t.Fatalf("items=%v errs=%v", items, errs)
	}

	bs, err := storage.NewFSStore(filepath.Join(dir, "banks"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Write(bs, m, items); err != nil {
		t.Fatal(err)
	}
	back, err := ReadBank(bs, m)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || back[0].CorrectAnswers[0] != (bank.Blank{Word: "answered", Start: 4}) {
		t.Fatalf("bank = %+v", back)
	}
}

func TestFixStarts(t *testing.T) {
	items := []bank.Item{
		{Difficulty: "medium", CorrectAnswers: []bank.Blank{{Word: "garden", Start: 1}, {Word: "is", Start: 0}}},
		{Difficulty: "basic", CorrectAnswers: []bank.Blank{{Word: "garden", Start: 1}}},
	}
	if n := FixStarts(items, "medium"); n != 1 {
		t.Fatalf("changed = %d", n)
	}
	if items[0].CorrectAnswers[0].Start != 3 || items[1].CorrectAnswers[0].Start != 1 {
		t.Fatalf("items = %+v", items)
	}
}
