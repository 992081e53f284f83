package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pampatime/internal/history"
	appLog "pampatime/internal/log"
	"pampatime/internal/model"
)

// ErrNotFound is returned for unknown event ids.
var ErrNotFound = errors.New("event not found")

// Options configures how the store builds and validates events.
type Options struct {
	Location *time.Location
	Palette  model.Palette
	Hours    model.BusinessHours
	Recorder history.Recorder
}

// Store is the live event source and mutation surface of the timetable.
// Every successful mutation publishes the complete current list to all
// listeners; nothing downstream is patched incrementally.
type Store struct {
	db   *DB
	opts Options

	mu        sync.Mutex
	nextID    int
	listeners map[int]func([]model.ScheduleEvent)

	// pubMu is held from List through delivery so listeners see lists in
	// commit order and the last delivery is always the latest state.
	pubMu sync.Mutex
}

func New(db *DB, opts Options) *Store {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Palette == nil {
		opts.Palette = model.DefaultPalette()
	}
	if opts.Hours == (model.BusinessHours{}) {
		opts.Hours = model.DefaultBusinessHours
	}
	if opts.Recorder == nil {
		opts.Recorder = history.Nop{}
	}
	return &Store{db: db, opts: opts, listeners: make(map[int]func([]model.ScheduleEvent))}
}

// Subscribe registers fn to receive the full event list after every change
// and returns a function that removes it.
func (s *Store) Subscribe(fn func(events []model.ScheduleEvent)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Publish sends the current list to every listener. Concurrent calls are
// serialized.
func (s *Store) Publish(ctx context.Context) error {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	events, err := s.List(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	fns := make([]func([]model.ScheduleEvent), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(events)
	}
	return nil
}

const eventColumns = `id, title, start_at, end_at, all_day, room, teacher, class, type, semester,
	background_color, border_color, text_color`

// List returns every event in insertion order.
func (s *Store) List(ctx context.Context) ([]model.ScheduleEvent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+eventColumns+` FROM events ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	events := make([]model.ScheduleEvent, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Get returns one event by id.
func (s *Store) Get(ctx context.Context, id string) (model.ScheduleEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	ev, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ScheduleEvent{}, ErrNotFound
	}
	return ev, err
}

// Create validates slot and stores a new event under a fresh id.
func (s *Store) Create(ctx context.Context, user string, slot model.Slot) (model.ScheduleEvent, error) {
	if err := model.ValidateSlot(slot, s.opts.Hours).Err(); err != nil {
		return model.ScheduleEvent{}, err
	}

	ev, err := model.NewEvent(uuid.NewString(), slot, s.opts.Location, s.opts.Palette)
	if err != nil {
		return model.ScheduleEvent{}, &model.ValidationError{Errors: []string{err.Error()}}
	}

	if err := insertEvent(ctx, s.db.DB, ev, ""); err != nil {
		return model.ScheduleEvent{}, err
	}

	s.record(ctx, history.NewEntry(user, history.ActionCreate, ev.ID, history.Diff(model.ScheduleEvent{}, ev)))
	appLog.Info("event created", "id", ev.ID, "title", ev.Title, "user", user)
	s.publish(ctx)
	return ev, nil
}

// Update applies a partial change to an existing event. The id never changes.
func (s *Store) Update(ctx context.Context, user, id string, patch model.Patch) (model.ScheduleEvent, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return model.ScheduleEvent{}, err
	}
	if patch.Empty() {
		return current, nil
	}

	updated, err := model.ApplyPatch(current, patch, s.opts.Location, s.opts.Palette)
	if err != nil {
		return model.ScheduleEvent{}, &model.ValidationError{Errors: []string{err.Error()}}
	}
	if err := model.ValidateSlot(model.SlotOf(updated), s.opts.Hours).Err(); err != nil {
		return model.ScheduleEvent{}, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE events SET title = ?, start_at = ?, end_at = ?, room = ?, teacher = ?, class = ?,
			type = ?, semester = ?, background_color = ?, border_color = ?, text_color = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, updated.Title, formatTime(updated.Start), formatTime(updated.End), updated.Room, updated.Teacher,
		updated.Class, updated.Type, updated.Semester, updated.BackgroundColor, updated.BorderColor,
		updated.TextColor, id)
	if err != nil {
		return model.ScheduleEvent{}, fmt.Errorf("update event %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.ScheduleEvent{}, ErrNotFound
	}

	s.record(ctx, history.NewEntry(user, history.ActionUpdate, id, history.Diff(current, updated)))
	appLog.Info("event updated", "id", id, "user", user)
	s.publish(ctx)
	return updated, nil
}

// Delete removes an event by id.
func (s *Store) Delete(ctx context.Context, user, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}

	s.record(ctx, history.NewEntry(user, history.ActionDelete, id, history.Diff(current, model.ScheduleEvent{})))
	appLog.Info("event deleted", "id", id, "user", user)
	s.publish(ctx)
	return nil
}

// ReplaceSource atomically swaps every event imported from source for the
// given list. Events keep the ids they arrive with; imported events are not
// held to business hours, only to Validate, whose failures are logged.
func (s *Store) ReplaceSource(ctx context.Context, source string, events []model.ScheduleEvent) error {
	if source == "" {
		return errors.New("import source is empty")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE source = ?`, source); err != nil {
		return fmt.Errorf("clear source %s: %w", source, err)
	}

	for _, ev := range events {
		if ev.ID == "" {
			ev.ID = uuid.NewString()
		}
		if r := model.Validate(ev); !r.Valid {
			appLog.Info("imported event has warnings", "source", source, "id", ev.ID, "warnings", r.Errors)
		}
		ev = model.DeriveColors(ev, s.opts.Palette)
		if err := insertEvent(ctx, tx, ev, source); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import: %w", err)
	}

	s.record(ctx, history.NewEntry("system", history.ActionImport, "", map[string]history.Change{
		"source": {After: source},
	}))
	appLog.Info("source imported", "source", source, "event_count", len(events))
	s.publish(ctx)
	return nil
}

// publish notifies listeners after a committed write. The write stands even
// when the list cannot be read back, so the failure is only logged; the
// next successful publish catches listeners up.
func (s *Store) publish(ctx context.Context) {
	if err := s.Publish(ctx); err != nil {
		appLog.Error("publish after write failed", err)
	}
}

func (s *Store) record(ctx context.Context, e history.Entry) {
	if err := s.opts.Recorder.Record(ctx, e); err != nil {
		appLog.Error("history record failed", err, "action", string(e.Action), "event_id", e.EventID)
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertEvent(ctx context.Context, db execer, ev model.ScheduleEvent, source string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO events (`+eventColumns+`, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.ID, ev.Title, formatTime(ev.Start), formatTime(ev.End), ev.AllDay, ev.Room, ev.Teacher,
		ev.Class, ev.Type, ev.Semester, ev.BackgroundColor, ev.BorderColor, ev.TextColor, source)
	if err != nil {
		return fmt.Errorf("insert event %s: %w", ev.ID, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (model.ScheduleEvent, error) {
	var ev model.ScheduleEvent
	var start, end string
	if err := row.Scan(&ev.ID, &ev.Title, &start, &end, &ev.AllDay, &ev.Room, &ev.Teacher, &ev.Class,
		&ev.Type, &ev.Semester, &ev.BackgroundColor, &ev.BorderColor, &ev.TextColor); err != nil {
		return ev, err
	}

	var err error
	if ev.Start, err = parseTime(start); err != nil {
		return ev, fmt.Errorf("event %s start: %w", ev.ID, err)
	}
	if ev.End, err = parseTime(end); err != nil {
		return ev, fmt.Errorf("event %s end: %w", ev.ID, err)
	}
	return ev, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
