// Package bank loads the per-module question banks and draws round working
// sets from them.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/logger"
	"github.com/mind-engage/detprep/internal/storage"
)

var (
	ErrUnknownModule = errors.New("unknown module")
	// ErrLegacyShape is returned for banks stored as {"questions": [...]}.
	ErrLegacyShape = errors.New("bank must be a JSON array of items, not an object")
)

// Loader reads bank files from a blob store and caches the parsed items
// per module. A failed load is logged and yields an empty pool.
type Loader struct {
	blobs storage.BlobStore
	log   *logger.Logger

	mu    sync.RWMutex
	cache map[string][]Item

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewLoader(blobs storage.BlobStore, log *logger.Logger) *Loader {
	if log == nil {
		log = logger.Nop()
	}
	return &Loader{
		blobs: blobs,
		log:   log,
		cache: map[string][]Item{},
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed makes draws deterministic. Used by tests.
func (l *Loader) Seed(seed int64) {
	l.rndMu.Lock()
	l.rnd = rand.New(rand.NewSource(seed))
	l.rndMu.Unlock()
}

// Items returns every item of a module's bank.
func (l *Loader) Items(ctx context.Context, moduleID string) ([]Item, error) {
	m, ok := catalog.Lookup(moduleID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModule, moduleID)
	}
	l.mu.RLock()
	items, ok := l.cache[m.ID]
	l.mu.RUnlock()
	if ok {
		return items, nil
	}

	items, err := l.load(ctx, m)
	if err != nil {
		l.log.Warn("bank load failed", "module", m.ID, "file", m.BankFile, "err", err)
		return []Item{}, nil
	}
	l.mu.Lock()
	l.cache[m.ID] = items
	l.mu.Unlock()
	return items, nil
}

func (l *Loader) load(ctx context.Context, m catalog.Module) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rc, err := l.blobs.Get(m.BankFile)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	raw, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return Decode(raw, m)
}

// Decode parses a bank file for module m. Invalid items are an error so a
// broken bank is noticed at load time rather than mid-round.
func Decode(raw []byte, m catalog.Module) ([]Item, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '{' {
		return nil, ErrLegacyShape
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode %s: %w", m.BankFile, err)
	}
	for i := range items {
		if err := items[i].Validate(m.Kind); err != nil {
			return nil, fmt.Errorf("%s item %d: %w", m.BankFile, i, err)
		}
		if items[i].ID == "" {
			items[i].ID = fmt.Sprintf("%s-%d", m.ID, i)
		}
	}
	return items, nil
}

// Reload drops the cache; banks are re-read on next use.
func (l *Loader) Reload() {
	l.mu.Lock()
	l.cache = map[string][]Item{}
	l.mu.Unlock()
	l.log.Info("bank cache cleared")
}

// Pool returns the items module moduleID may draw from at difficulty d,
// following the module's difficulty policy.
func (l *Loader) Pool(ctx context.Context, moduleID string, d catalog.Difficulty) ([]Item, error) {
	items, err := l.Items(ctx, moduleID)
	if err != nil {
		return nil, err
	}
	m, _ := catalog.Lookup(moduleID)
	return FilterDifficulty(items, d, m.DifficultyPolicy), nil
}

func FilterDifficulty(items []Item, d catalog.Difficulty, policy catalog.DifficultyPolicy) []Item {
	if policy == catalog.DifficultyIgnored || d == "" || d == catalog.DifficultyAny {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.Difficulty == string(d) {
			out = append(out, it)
		}
	}
	if len(out) == 0 && policy == catalog.DifficultyFallback {
		return items
	}
	return out
}

// Draw picks a round working set for module m from pool, without
// replacement. requested is honored by modules with count choices.
func (l *Loader) Draw(m catalog.Module, pool []Item, requested int) []Item {
	if m.Kind == catalog.KindPassage {
		var preferred []Item
		for _, it := range pool {
			if it.Preferred() {
				preferred = append(preferred, it)
			}
		}
		if len(preferred) > 0 {
			pool = preferred
		}
	}

	l.rndMu.Lock()
	defer l.rndMu.Unlock()
	n := m.RoundSize(requested, len(pool), l.rnd.Intn)
	idx := l.rnd.Perm(len(pool))[:n]
	out := make([]Item, n)
	for i, j := range idx {
		out[i] = pool[j]
	}
	return out
}
