// Package bankimport turns spreadsheet rows into question-bank JSON.
package bankimport

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/storage"
)

// Row is one spreadsheet row keyed by lower-cased header name.
type Row map[string]string

var ErrUnsupportedKind = errors.New("kind cannot be imported from a flat sheet")

// ReadRows reads an .xlsx sheet or a .csv file. The first row is the header.
// An empty sheet name means the workbook's first sheet.
func ReadRows(path, sheet string) ([]Row, error) {
	var records [][]string
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r := csv.NewReader(f)
		r.FieldsPerRecord = -1
		if records, err = r.ReadAll(); err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
	} else {
		f, err := excelize.OpenFile(path)
		if err != nil {
			return nil, fmt.Errorf("open workbook: %w", err)
		}
		defer f.Close()
		if sheet == "" {
			sheet = f.GetSheetName(0)
		}
		if records, err = f.GetRows(sheet); err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
	}
	return toRows(records), nil
}

func toRows(records [][]string) []Row {
	if len(records) == 0 {
		return nil
	}
	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(h))
	}
	var out []Row
	for _, rec := range records[1:] {
		row := Row{}
		empty := true
		for i, v := range rec {
			if i >= len(header) || header[i] == "" {
				continue
			}
			v = strings.TrimSpace(v)
			if v != "" {
				empty = false
			}
			row[header[i]] = v
		}
		if !empty {
			out = append(out, row)
		}
	}
	return out
}

// VisibleLetters is how many leading letters of a blanked word stay shown,
// by word length.
func VisibleLetters(n int) int {
	switch {
	case n <= 2:
		return 0
	case n == 3:
		return 1
	case n <= 5:
		return 2
	case n <= 7:
		return 3
	case n <= 9:
		return 4
	default:
		return 5
	}
}

var blankRe = regexp.MustCompile(`\{([^{}|]+)(?:\|(\d+))?\}`)

// SplitBlanks cuts "The {cat} sat on the {mat|1}." into the fragments around
// each blank and the blanks themselves. A blank without an explicit start
// gets VisibleLetters of its length.
func SplitBlanks(text string) ([]string, []bank.Blank, error) {
	locs := blankRe.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil, nil, fmt.Errorf("%w: no {word} blanks in %q", bank.ErrInvalidItem, text)
	}
	var (
		sentence []string
		blanks   []bank.Blank
		prev     int
	)
	for _, loc := range locs {
		sentence = append(sentence, strings.TrimSpace(text[prev:loc[0]]))
		word := strings.TrimSpace(text[loc[2]:loc[3]])
		start := VisibleLetters(len([]rune(word)))
		if loc[4] >= 0 {
			n, err := strconv.Atoi(text[loc[4]:loc[5]])
			if err != nil {
				return nil, nil, err
			}
			start = n
		}
		blanks = append(blanks, bank.Blank{Word: word, Start: start})
		prev = loc[1]
	}
	if tail := strings.TrimSpace(text[prev:]); tail != "" {
		sentence = append(sentence, tail)
	}
	return sentence, blanks, nil
}

// Build converts rows for module m. Row errors are collected and the bad rows
// skipped.
func Build(m catalog.Module, rows []Row) ([]bank.Item, []error) {
	var (
		items []bank.Item
		errs  []error
	)
	for i, row := range rows {
		it, err := buildItem(m.Kind, row)
		if err == nil {
			err = it.Validate(m.Kind)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+2, err))
			continue
		}
		items = append(items, it)
	}
	return items, errs
}

func buildItem(kind catalog.Kind, row Row) (bank.Item, error) {
	it := bank.Item{
		ID:         row["id"],
		Difficulty: strings.ToLower(row["difficulty"]),
		Title:      row["title"],
	}
	switch kind {
	case catalog.KindYesNo:
		it.Word = row["word"]
		if v, ok := row["is_real"]; ok && v != "" {
			b := parseBool(v)
			it.IsReal = &b
		}
	case catalog.KindRealWords:
		// words: "apple=1|blorf=0"
		for _, part := range splitList(row["words"]) {
			w, flag, _ := strings.Cut(part, "=")
			it.Words = append(it.Words, bank.WordChoice{Word: strings.TrimSpace(w), Real: parseBool(flag)})
		}
	case catalog.KindBlanks:
		s, blanks, err := SplitBlanks(row["text"])
		if err != nil {
			return it, err
		}
		it.Sentence, it.CorrectAnswers = s, blanks
	case catalog.KindDictation:
		it.File, it.Answer = row["file"], row["answer"]
	case catalog.KindRecall:
		it.Word, it.Translate = row["word"], row["translate"]
	case catalog.KindPhoto:
		it.Topic, it.Image, it.Sample = row["topic"], row["image"], row["sample"]
	case catalog.KindPrompt:
		it.Prompt = row["prompt"]
		it.Bullets = splitList(row["bullets"])
		it.Sample = row["sample"]
		it.SampleAudio = row["sample_audio"]
		it.FollowUpPrompt = row["follow_up_prompt"]
		it.FollowUpSample = row["follow_up_sample"]
	default:
		return it, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	return it, nil
}

// FixStarts resets the visible-letter count of every blank in items of the
// given difficulty and returns how many blanks changed.
func FixStarts(items []bank.Item, difficulty string) int {
	changed := 0
	for i := range items {
		if !strings.EqualFold(items[i].Difficulty, difficulty) {
			continue
		}
		for j, b := range items[i].CorrectAnswers {
			if s := VisibleLetters(len([]rune(b.Word))); s != b.Start {
				items[i].CorrectAnswers[j].Start = s
				changed++
			}
		}
	}
	return changed
}

// Write validates items the way the server will load them and stores the
// bank file for m.
func Write(bs storage.BlobStore, m catalog.Module, items []bank.Item) (string, error) {
	if items == nil {
		items = []bank.Item{}
	}
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", err
	}
	if _, err := bank.Decode(raw, m); err != nil {
		return "", err
	}
	return bs.Put(m.BankFile, bytes.NewReader(raw))
}

// ReadBank loads the current bank file for m.
func ReadBank(bs storage.BlobStore, m catalog.Module) ([]bank.Item, error) {
	rc, err := bs.Get(m.BankFile)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	var items []bank.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%s: %w", m.BankFile, err)
	}
	return items, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, "|") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "real":
		return true
	}
	return false
}
