// Package analysis keeps the conflict analysis of the current timetable.
package analysis

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"pampatime/internal/conflict"
	appLog "pampatime/internal/log"
	"pampatime/internal/model"
)

// Snapshot is one complete analysis of an event list. Snapshots are never
// modified after they are published.
type Snapshot struct {
	Revision  uint64
	UpdatedAt time.Time
	Events    []model.ScheduleEvent
	Index     *conflict.Index
	Summary   conflict.Summary
}

// Source is the live event collection the analyzer follows.
type Source interface {
	List(ctx context.Context) ([]model.ScheduleEvent, error)
	Subscribe(fn func(events []model.ScheduleEvent)) func()
}

// Analyzer recomputes the conflict index from scratch on every update.
type Analyzer struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func New() *Analyzer {
	a := &Analyzer{}
	a.Update(nil)
	return a
}

// Update replaces the snapshot with a full analysis of events.
func (a *Analyzer) Update(events []model.ScheduleEvent) *Snapshot {
	own := make([]model.ScheduleEvent, len(events))
	copy(own, events)

	start := time.Now()
	ix := conflict.Detect(own)

	a.mu.Lock()
	var rev uint64 = 1
	if a.snap != nil {
		rev = a.snap.Revision + 1
	}
	snap := &Snapshot{
		Revision:  rev,
		UpdatedAt: time.Now().UTC(),
		Events:    own,
		Index:     ix,
		Summary:   conflict.Summarize(ix),
	}
	a.snap = snap
	a.mu.Unlock()

	appLog.Debug("conflict analysis updated",
		"revision", rev,
		"events", len(own),
		"conflicted", ix.Len(),
		"elapsed", time.Since(start),
	)
	return snap
}

// Snapshot returns the latest analysis.
func (a *Analyzer) Snapshot() *Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// Follow loads the current list from src and subscribes to its changes.
// The returned function stops following.
func (a *Analyzer) Follow(ctx context.Context, src Source) (func(), error) {
	var delivered atomic.Bool
	cancel := src.Subscribe(func(events []model.ScheduleEvent) {
		delivered.Store(true)
		a.Update(events)
	})

	events, err := src.List(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	// A delivery made while listing is at least as recent as events.
	if !delivered.Load() {
		a.Update(events)
	}
	return cancel, nil
}

// Event looks up an event of the snapshot by id.
func (s *Snapshot) Event(id string) (model.ScheduleEvent, bool) {
	for _, ev := range s.Events {
		if ev.ID == id {
			return ev, true
		}
	}
	return model.ScheduleEvent{}, false
}
