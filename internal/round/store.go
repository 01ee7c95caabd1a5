package round

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mind-engage/detprep/internal/bank"
	"github.com/mind-engage/detprep/internal/catalog"
	"github.com/mind-engage/detprep/internal/grading"
	"github.com/mind-engage/detprep/internal/logger"
)

// Store holds live rounds. Rounds never leave the process: a restart drops
// them like a browser reload would.
type Store struct {
	mu     sync.RWMutex
	rounds map[string]*Round
}

func NewStore() *Store {
	return &Store{rounds: map[string]*Round{}}
}

func (s *Store) Put(r *Round) {
	s.mu.Lock()
	s.rounds[r.ID] = r
	s.mu.Unlock()
}

// Get returns the round only to the session that owns it.
func (s *Store) Get(sessionID, id string) (*Round, error) {
	s.mu.RLock()
	r, ok := s.rounds[id]
	s.mu.RUnlock()
	if !ok || r.SessionID != sessionID {
		return nil, ErrNotFound
	}
	return r, nil
}

func (s *Store) Delete(sessionID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rounds[id]
	if !ok || r.SessionID != sessionID {
		return ErrNotFound
	}
	delete(s.rounds, id)
	return nil
}

// Sweep drops rounds idle since before cutoff and returns how many went.
func (s *Store) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, r := range s.rounds {
		if r.IdleSince().Before(cutoff) {
			delete(s.rounds, id)
			n++
		}
	}
	return n
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rounds)
}

// ItemSource is the part of the bank loader a round needs.
type ItemSource interface {
	Pool(ctx context.Context, moduleID string, d catalog.Difficulty) ([]bank.Item, error)
	Draw(m catalog.Module, pool []bank.Item, requested int) []bank.Item
}

// Service creates and tracks rounds.
type Service struct {
	Items  ItemSource
	Grader grading.Grader
	Rounds *Store
	Log    *logger.Logger
}

func NewService(items ItemSource, g grading.Grader, rounds *Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{Items: items, Grader: g, Rounds: rounds, Log: log}
}

// Create draws a working set for the module and starts the round. An empty
// pool yields a round that is already finished.
func (s *Service) Create(ctx context.Context, sessionID string, m catalog.Module, d catalog.Difficulty, count int, fullTest bool) (*Round, error) {
	pool, err := s.Items.Pool(ctx, m.ID, d)
	if err != nil {
		return nil, err
	}
	items := s.Items.Draw(m, pool, count)
	r := New(uuid.NewString(), sessionID, m, d, fullTest, items, s.Grader)
	if err := r.Start(); err != nil {
		return nil, err
	}
	s.Rounds.Put(r)
	s.Log.Debug("round started", "round", r.ID, "module", m.ID, "difficulty", d, "items", len(items), "full_test", fullTest)
	return r, nil
}
