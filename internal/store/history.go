package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"pampatime/internal/history"
)

// Fixed width so ORDER BY ts sorts chronologically.
const historyTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// History is a history.Recorder backed by the edit_history table. Closing it
// stops recording; the shared DB is closed by its owner.
type History struct {
	db     *DB
	closed atomic.Bool
}

var _ history.Recorder = (*History)(nil)

func NewHistory(db *DB) *History {
	return &History{db: db}
}

func (h *History) Record(ctx context.Context, e history.Entry) error {
	if h.closed.Load() {
		return history.ErrClosed
	}

	changed := ""
	if len(e.Changed) > 0 {
		b, err := json.Marshal(e.Changed)
		if err != nil {
			return fmt.Errorf("encode history change: %w", err)
		}
		changed = string(b)
	}

	_, err := h.db.ExecContext(ctx, `
		INSERT INTO edit_history (id, user, action, event_id, ts, changed)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.User, string(e.Action), e.EventID, e.Timestamp.UTC().Format(historyTimeLayout), changed)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (h *History) List(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, user, action, event_id, ts, changed
		FROM edit_history
		ORDER BY ts DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	entries := make([]history.Entry, 0)
	for rows.Next() {
		var e history.Entry
		var action, ts, changed string
		if err := rows.Scan(&e.ID, &e.User, &action, &e.EventID, &ts, &changed); err != nil {
			return nil, err
		}
		e.Action = history.Action(action)
		if e.Timestamp, err = time.Parse(historyTimeLayout, ts); err != nil {
			return nil, fmt.Errorf("history %s timestamp: %w", e.ID, err)
		}
		if changed != "" {
			if err := json.Unmarshal([]byte(changed), &e.Changed); err != nil {
				return nil, fmt.Errorf("history %s changes: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (h *History) Close() error {
	h.closed.Store(true)
	return nil
}
