package results

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/mind-engage/detprep/internal/db"
)

// SQLStore keeps one row per record in section_results, ordered by seq.
type SQLStore struct {
	DB  *sqlx.DB
	now func() time.Time
}

// NewSQLStore wraps an open handle from db.Open.
func NewSQLStore(conn *sql.DB, driver db.Driver) *SQLStore {
	return &SQLStore{DB: sqlx.NewDb(conn, driver.SQLName()), now: time.Now}
}

// Append relies on the (session_id, module) unique index, so concurrent
// writers from any replica store one row per module.
func (s *SQLStore) Append(ctx context.Context, sessionID string, rec Record) error {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`
INSERT INTO section_results (session_id, module, total_questions, total_correct, total_incorrect, ts, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id, module) DO NOTHING`),
		sessionID, rec.Module, rec.TotalQuestions, rec.TotalCorrect, rec.TotalIncorrect, rec.Timestamp, s.now().Unix())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

func (s *SQLStore) ReadAll(ctx context.Context, sessionID string) ([]Record, error) {
	list := []Record{}
	err := s.DB.SelectContext(ctx, &list, s.DB.Rebind(`
SELECT module, total_questions, total_correct, total_incorrect, ts
FROM section_results WHERE session_id = ? ORDER BY seq`), sessionID)
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *SQLStore) Clear(ctx context.Context, sessionID string) error {
	_, err := s.DB.ExecContext(ctx, s.DB.Rebind(`DELETE FROM section_results WHERE session_id = ?`), sessionID)
	return err
}

// PurgeBefore removes rows written before cutoff and returns how many went.
func (s *SQLStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.DB.ExecContext(ctx, s.DB.Rebind(`DELETE FROM section_results WHERE created_at < ?`), cutoff.Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
