// Package conflict detects resource double-bookings in a weekly timetable.
//
// Detection is a pure function of an ordered event snapshot: the index is
// never patched, callers rebuild it whenever the snapshot changes.
package conflict

import (
	"encoding/json"
	"strings"

	"pampatime/internal/model"
)

// Type names the resource dimension a conflict was found on.
type Type string

const (
	TypeRoom    Type = "room"
	TypeTeacher Type = "teacher"
	TypeClass   Type = "class"
)

// Types lists every conflict type in reporting order.
var Types = []Type{TypeRoom, TypeTeacher, TypeClass}

// Record is one side of a conflicting pair.
type Record struct {
	EventID      string `json:"eventId"`
	Type         Type   `json:"conflictType"`
	Value        string `json:"conflictValue"`
	ConflictWith string `json:"conflictWith"`
}

// Index holds the result of a detection run.
type Index struct {
	order   []string
	ids     map[string]struct{}
	records map[string][]Record
}

func newIndex() *Index {
	return &Index{
		ids:     make(map[string]struct{}),
		records: make(map[string][]Record),
	}
}

func (ix *Index) add(r Record) {
	if _, ok := ix.ids[r.EventID]; !ok {
		ix.ids[r.EventID] = struct{}{}
		ix.order = append(ix.order, r.EventID)
	}
	ix.records[r.EventID] = append(ix.records[r.EventID], r)
}

// Has reports whether id is involved in at least one conflict.
func (ix *Index) Has(id string) bool {
	if ix == nil {
		return false
	}
	_, ok := ix.ids[id]
	return ok
}

// IDs returns the conflicted ids in first-seen order.
func (ix *Index) IDs() []string {
	if ix == nil {
		return nil
	}
	return append([]string(nil), ix.order...)
}

// Len is the number of distinct conflicted ids.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.order)
}

// Records returns the conflict records of id in detection order.
func (ix *Index) Records(id string) []Record {
	if ix == nil {
		return nil
	}
	return append([]Record(nil), ix.records[id]...)
}

// Restrict keeps only the records belonging to the given ids. The result is a
// new index; ix is left untouched.
func (ix *Index) Restrict(ids []string) *Index {
	out := newIndex()
	if ix == nil {
		return out
	}
	keep := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		keep[id] = struct{}{}
	}
	for _, id := range ix.order {
		if _, ok := keep[id]; !ok {
			continue
		}
		for _, r := range ix.records[id] {
			out.add(r)
		}
	}
	return out
}

type indexJSON struct {
	ConflictIDs []string            `json:"conflictIds"`
	Details     map[string][]Record `json:"conflictDetails"`
}

func (ix *Index) MarshalJSON() ([]byte, error) {
	out := indexJSON{ConflictIDs: []string{}, Details: map[string][]Record{}}
	if ix != nil {
		out.ConflictIDs = ix.IDs()
		for _, id := range ix.order {
			out.Details[id] = ix.records[id]
		}
	}
	return json.Marshal(out)
}

// Overlaps reports whether a and b occupy intersecting time on the same
// weekday. Both events are projected onto the reference week first, so the
// concrete dates they carry do not matter. Touching endpoints do not overlap.
func Overlaps(a, b model.ScheduleEvent) bool {
	if !a.HasBounds() || !b.HasBounds() {
		return false
	}
	ca, cb := model.Canonical(a), model.Canonical(b)
	if ca.Start.Weekday() != cb.Start.Weekday() {
		return false
	}
	return ca.Start.Before(cb.End) && cb.Start.Before(ca.End)
}

// CheckPair returns the records produced by one pair of events: zero or two
// per rule, a's side first.
func CheckPair(a, b model.ScheduleEvent) []Record {
	if a.ID == "" || b.ID == "" || !Overlaps(a, b) {
		return nil
	}

	var out []Record
	pair := func(t Type, va, vb string) {
		out = append(out,
			Record{EventID: a.ID, Type: t, Value: va, ConflictWith: b.ID},
			Record{EventID: b.ID, Type: t, Value: vb, ConflictWith: a.ID},
		)
	}

	if a.Room != "" && a.Room == b.Room {
		pair(TypeRoom, a.Room, b.Room)
	}
	if a.Teacher != "" && a.Teacher == b.Teacher {
		pair(TypeTeacher, a.Teacher, b.Teacher)
	}
	// One cohort cannot attend two subjects at once. Same title means the
	// same session split across entries.
	ca, cb := strings.TrimSpace(a.Class), strings.TrimSpace(b.Class)
	if ca != "" && ca == cb && a.Title != b.Title {
		pair(TypeClass, ca, cb)
	}
	return out
}

// Detect examines every unordered pair (i<j) of events in input order.
// Events are bucketed by weekday first; pairs in different buckets can never
// overlap, and the scan keeps the same i<j order as a plain double loop.
func Detect(events []model.ScheduleEvent) *Index {
	ix := newIndex()
	if len(events) < 2 {
		return ix
	}

	buckets := make(map[int][]int, 7)
	for i, ev := range events {
		if ev.ID == "" || !ev.HasBounds() {
			continue
		}
		wd := int(ev.Start.Weekday())
		buckets[wd] = append(buckets[wd], i)
	}

	for i, a := range events {
		if a.ID == "" || !a.HasBounds() {
			continue
		}
		for _, j := range buckets[int(a.Start.Weekday())] {
			if j <= i {
				continue
			}
			for _, r := range CheckPair(a, events[j]) {
				ix.add(r)
			}
		}
	}
	return ix
}

// HasOverlapWithAny reports whether ev overlaps any other event in events,
// ignoring entries with the same id.
func HasOverlapWithAny(ev model.ScheduleEvent, events []model.ScheduleEvent) bool {
	for _, other := range events {
		if ev.ID != "" && other.ID == ev.ID {
			continue
		}
		if Overlaps(ev, other) {
			return true
		}
	}
	return false
}
