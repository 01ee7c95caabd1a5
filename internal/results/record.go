// Package results keeps the per-session list of section results produced by
// a Full Test run and turns it into the final report.
package results

import (
	"context"
	"errors"
	"math"
)

// StorageKey names the result list of one session.
const StorageKey = "fullTestResults_v1"

// Record is one module's section result. Field names are part of the client
// contract.
type Record struct {
	Module         string `json:"module" db:"module"`
	TotalQuestions int    `json:"totalQuestions" db:"total_questions"`
	TotalCorrect   int    `json:"totalCorrect" db:"total_correct"`
	TotalIncorrect int    `json:"totalIncorrect" db:"total_incorrect"`
	Timestamp      int64  `json:"timestamp" db:"ts"` // unix millis
}

var (
	// ErrCorrupt means the stored list exists but cannot be decoded.
	ErrCorrupt = errors.New("stored results are corrupt")
	// ErrDuplicate means the session already holds a record for the module.
	ErrDuplicate = errors.New("section result already recorded")
)

// Store persists result lists keyed by session id. Append must be atomic per
// session and module: a second record for the same module returns
// ErrDuplicate and is not stored.
type Store interface {
	Append(ctx context.Context, sessionID string, rec Record) error
	ReadAll(ctx context.Context, sessionID string) ([]Record, error)
	Clear(ctx context.Context, sessionID string) error
}

// Report is the aggregate view shown after the last module.
type Report struct {
	Sections       []Record `json:"sections"`
	TotalQuestions int      `json:"totalQuestions"`
	TotalCorrect   int      `json:"totalCorrect"`
	TotalIncorrect int      `json:"totalIncorrect"`
	Percent        int      `json:"percent"`
}

func BuildReport(recs []Record) Report {
	r := Report{Sections: recs}
	if r.Sections == nil {
		r.Sections = []Record{}
	}
	for _, rec := range recs {
		r.TotalQuestions += rec.TotalQuestions
		r.TotalCorrect += rec.TotalCorrect
		r.TotalIncorrect += rec.TotalIncorrect
	}
	if r.TotalQuestions > 0 {
		r.Percent = int(math.Round(float64(r.TotalCorrect) * 100 / float64(r.TotalQuestions)))
	}
	return r
}
