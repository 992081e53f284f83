package conflict

import (
	"strings"

	"pampatime/internal/model"
)

// Summary aggregates an index per resource type.
type Summary struct {
	Room    []string `json:"room"`
	Teacher []string `json:"teacher"`
	Class   []string `json:"class"`
	// Total counts conflicted events, not records.
	Total int `json:"total"`
}

// Summarize collects the distinct conflict values of each type in first-seen
// order.
func Summarize(ix *Index) Summary {
	s := Summary{Room: []string{}, Teacher: []string{}, Class: []string{}}
	if ix == nil {
		return s
	}

	seen := map[Type]map[string]struct{}{
		TypeRoom:    {},
		TypeTeacher: {},
		TypeClass:   {},
	}
	for _, id := range ix.order {
		for _, r := range ix.records[id] {
			bucket, ok := seen[r.Type]
			if !ok {
				continue
			}
			if _, dup := bucket[r.Value]; dup {
				continue
			}
			bucket[r.Value] = struct{}{}
			switch r.Type {
			case TypeRoom:
				s.Room = append(s.Room, r.Value)
			case TypeTeacher:
				s.Teacher = append(s.Teacher, r.Value)
			case TypeClass:
				s.Class = append(s.Class, r.Value)
			}
		}
	}
	s.Total = ix.Len()
	return s
}

const clauseSeparator = " • "

// Describe renders one clause per conflict type present in records.
func Describe(records []Record) string {
	if len(records) == 0 {
		return ""
	}

	values := groupValues(records)
	clauses := make([]string, 0, len(Types))
	for _, t := range Types {
		vs := values[t]
		if len(vs) == 0 {
			continue
		}
		joined := strings.Join(vs, ", ")
		switch t {
		case TypeRoom:
			clauses = append(clauses, "Room "+joined+" occupied")
		case TypeTeacher:
			clauses = append(clauses, "Teacher "+joined+" double-booked")
		case TypeClass:
			clauses = append(clauses, "Class "+joined+" overlapping")
		}
	}
	return strings.Join(clauses, clauseSeparator)
}

func groupValues(records []Record) map[Type][]string {
	out := make(map[Type][]string, len(Types))
	seen := make(map[Type]map[string]struct{}, len(Types))
	for _, r := range records {
		if seen[r.Type] == nil {
			seen[r.Type] = make(map[string]struct{})
		}
		if _, dup := seen[r.Type][r.Value]; dup {
			continue
		}
		seen[r.Type][r.Value] = struct{}{}
		out[r.Type] = append(out[r.Type], r.Value)
	}
	return out
}

// ConflictingEvents resolves the counterparts of id against events, keeping
// collection order. Ids with no matching event are dropped.
func ConflictingEvents(id string, events []model.ScheduleEvent, ix *Index) []model.ScheduleEvent {
	records := ix.Records(id)
	if len(records) == 0 {
		return nil
	}

	want := make(map[string]struct{}, len(records))
	for _, r := range records {
		want[r.ConflictWith] = struct{}{}
	}

	out := make([]model.ScheduleEvent, 0, len(want))
	for _, ev := range events {
		if ev.ID == "" {
			continue
		}
		if _, ok := want[ev.ID]; ok {
			out = append(out, ev)
		}
	}
	return out
}

var suggestions = map[Type][]string{
	TypeRoom: {
		"Move one of the sessions to another room",
		"Check which rooms are free at the same time",
	},
	TypeTeacher: {
		"Reschedule one of the teacher's sessions",
		"Check whether another teacher can take one of the sessions",
	},
	TypeClass: {
		"Reschedule one of the subjects",
		"Check whether the subjects can be offered to different classes",
	},
}

// SuggestResolution returns the fixed suggestions of every type present,
// once per type.
func SuggestResolution(records []Record) []string {
	present := make(map[Type]bool, len(Types))
	for _, r := range records {
		present[r.Type] = true
	}

	var out []string
	for _, t := range Types {
		if present[t] {
			out = append(out, suggestions[t]...)
		}
	}
	return out
}
