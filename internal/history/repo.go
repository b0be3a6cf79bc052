package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/starford/flashdeck/internal/apperr"
)

// Outcomes stored with a record.
const (
	OutcomeOK      = "ok"
	OutcomeNoMatch = "no_match"
	OutcomeFailed  = "failed"
)

// OutcomeFor classifies the error returned by a resolution.
func OutcomeFor(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, apperr.ErrNoMatch), errors.Is(err, apperr.ErrEmptyInput):
		return OutcomeNoMatch
	default:
		return OutcomeFailed
	}
}

// Record is one resolution request.
type Record struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	Words     string    `json:"words"`
	Matched   int       `json:"matched"`
	Missed    []string  `json:"missed"`
	Outcome   string    `json:"outcome"`
	CreatedAt time.Time `json:"created_at"`
}

// Record inserts rec. CreatedAt defaults to now.
func (db *DB) Record(ctx context.Context, rec Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	if rec.Missed == nil {
		rec.Missed = []string{}
	}
	missed, _ := json.Marshal(rec.Missed)
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO resolutions (session_id, words, matched, missed, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.Words, rec.Matched, string(missed), rec.Outcome, rec.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	return nil
}

// Recent returns the newest records first. A non-positive limit means 20.
func (db *DB) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, session_id, words, matched, missed, outcome, created_at
		FROM resolutions
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r      Record
			missed string
		)
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Words, &r.Matched, &missed, &r.Outcome, &r.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(missed), &r.Missed); err != nil {
			r.Missed = []string{}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
