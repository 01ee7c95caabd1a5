// Package jobs runs periodic housekeeping.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/mind-engage/detprep/internal/logger"
)

// RoundSweeper drops rounds idle since before a cutoff.
type RoundSweeper interface {
	Sweep(cutoff time.Time) int
}

// ResultPurger drops stored section results written before a cutoff.
type ResultPurger interface {
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Janitor expires idle rounds and, when results live in SQL, old result rows.
type Janitor struct {
	scheduler *gocron.Scheduler
	rounds    RoundSweeper
	results   ResultPurger // nil unless results are stored in SQL
	roundTTL  time.Duration
	resultTTL time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewJanitor(rounds RoundSweeper, results ResultPurger, roundTTL, resultTTL time.Duration, log *logger.Logger) *Janitor {
	if log == nil {
		log = logger.Nop()
	}
	return &Janitor{
		scheduler: gocron.NewScheduler(time.UTC),
		rounds:    rounds,
		results:   results,
		roundTTL:  roundTTL,
		resultTTL: resultTTL,
		log:       log.With("service", "Janitor"),
		now:       time.Now,
	}
}

// Start runs the sweep every interval without blocking.
func (j *Janitor) Start(interval time.Duration) error {
	if _, err := j.scheduler.Every(interval).Do(j.RunOnce); err != nil {
		return err
	}
	j.scheduler.StartAsync()
	return nil
}

func (j *Janitor) Stop() {
	j.scheduler.Stop()
}

// RunOnce performs one sweep.
func (j *Janitor) RunOnce() {
	now := j.now()
	if j.rounds != nil && j.roundTTL > 0 {
		if n := j.rounds.Sweep(now.Add(-j.roundTTL)); n > 0 {
			j.log.Info("idle rounds dropped", "count", n)
		}
	}
	if j.results != nil && j.resultTTL > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		n, err := j.results.PurgeBefore(ctx, now.Add(-j.resultTTL))
		if err != nil {
			j.log.Warn("purge results failed", "err", err)
			return
		}
		if n > 0 {
			j.log.Info("expired results purged", "count", n)
		}
	}
}
