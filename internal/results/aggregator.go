package results

import (
	"context"
	"errors"

	"github.com/mind-engage/detprep/internal/logger"
)

// Aggregator is the best-effort front of a Store: writes never fail the
// caller and reads degrade to an empty list.
type Aggregator struct {
	store Store
	log   *logger.Logger
}

func NewAggregator(store Store, log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{store: store, log: log}
}

// PushSectionResult appends rec to the session's list. A corrupt list is
// replaced by [rec]. A second record for a module already in the list is
// dropped; the store enforces this atomically.
func (a *Aggregator) PushSectionResult(ctx context.Context, sessionID string, rec Record) {
	_, err := a.store.ReadAll(ctx, sessionID)
	switch {
	case errors.Is(err, ErrCorrupt):
		a.log.Warn("result list corrupt, starting over", "session", sessionID, "err", err)
		if err := a.store.Clear(ctx, sessionID); err != nil {
			a.log.Warn("clear results failed", "session", sessionID, "err", err)
			return
		}
	case err != nil:
		a.log.Warn("read results failed", "session", sessionID, "err", err)
		return
	}
	err = a.store.Append(ctx, sessionID, rec)
	switch {
	case errors.Is(err, ErrDuplicate):
		a.log.Warn("duplicate section result dropped", "session", sessionID, "module", rec.Module)
	case err != nil:
		a.log.Warn("push section result failed", "session", sessionID, "module", rec.Module, "err", err)
	}
}

// GetFullTestResults returns the stored list, or an empty list on any error.
func (a *Aggregator) GetFullTestResults(ctx context.Context, sessionID string) []Record {
	list, err := a.store.ReadAll(ctx, sessionID)
	if err != nil {
		a.log.Warn("read results failed", "session", sessionID, "err", err)
		return []Record{}
	}
	if list == nil {
		return []Record{}
	}
	return list
}

func (a *Aggregator) ClearFullTestResults(ctx context.Context, sessionID string) {
	if err := a.store.Clear(ctx, sessionID); err != nil {
		a.log.Warn("clear results failed", "session", sessionID, "err", err)
	}
}

func (a *Aggregator) Report(ctx context.Context, sessionID string) Report {
	return BuildReport(a.GetFullTestResults(ctx, sessionID))
}
