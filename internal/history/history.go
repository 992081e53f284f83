// Package history records who changed the timetable and how.
package history

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pampatime/internal/model"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionImport Action = "import"
)

// ErrClosed is returned when recording into a closed recorder.
var ErrClosed = errors.New("history recorder closed")

// Change is the before/after value of one field.
type Change struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Entry is one recorded edit.
type Entry struct {
	ID        string            `json:"id"`
	User      string            `json:"user"`
	Action    Action            `json:"action"`
	EventID   string            `json:"eventId,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Changed   map[string]Change `json:"changed,omitempty"`
}

// Recorder persists edit entries. Implementations are opened at session start
// and must be closed on shutdown.
type Recorder interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}

// NewEntry fills in the id and timestamp of an entry.
func NewEntry(user string, action Action, eventID string, changed map[string]Change) Entry {
	if user == "" {
		user = "unknown"
	}
	return Entry{
		ID:        uuid.NewString(),
		User:      user,
		Action:    action,
		EventID:   eventID,
		Timestamp: time.Now().UTC(),
		Changed:   changed,
	}
}

// Diff lists the authoritative fields that differ between two versions of
// an event. Derived colors are ignored.
func Diff(before, after model.ScheduleEvent) map[string]Change {
	out := make(map[string]Change)
	add := func(field, b, a string) {
		if b != a {
			out[field] = Change{Before: b, After: a}
		}
	}

	add("title", before.Title, after.Title)
	add("start", formatTime(before.Start), formatTime(after.Start))
	add("end", formatTime(before.End), formatTime(after.End))
	add("room", before.Room, after.Room)
	add("teacher", before.Teacher, after.Teacher)
	add("class", before.Class, after.Class)
	add("type", before.Type, after.Type)
	add("semester", before.Semester, after.Semester)

	if len(out) == 0 {
		return nil
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Weekday().String() + " " + t.Format("15:04")
}

// Memory keeps entries in process memory. Nothing survives a restart.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	closed  bool
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Record(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries = append(m.entries, e)
	return nil
}

// List returns the newest entries first.
func (m *Memory) List(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := append([]Entry(nil), m.entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Record(context.Context, Entry) error { return nil }

func (Nop) List(context.Context, int) ([]Entry, error) { return nil, nil }

func (Nop) Close() error { return nil }
