// Package filter narrows an event snapshot by resource dimension and free
// text, independently of conflict detection.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"pampatime/internal/model"
)

// Dimension is a resource axis events can be narrowed on.
type Dimension string

const (
	DimensionTeacher Dimension = "teacher"
	DimensionClass   Dimension = "class"
	DimensionRoom    Dimension = "room"
)

// Dimensions lists every dimension in display order.
var Dimensions = []Dimension{DimensionTeacher, DimensionClass, DimensionRoom}

// ParseDimension accepts the English names and the Portuguese labels used by
// older clients.
func ParseDimension(s string) (Dimension, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "teacher", "professor":
		return DimensionTeacher, nil
	case "class", "turma":
		return DimensionClass, nil
	case "room", "sala":
		return DimensionRoom, nil
	default:
		return "", fmt.Errorf("unknown filter dimension %q", s)
	}
}

func (d Dimension) valueOf(ev model.ScheduleEvent) string {
	switch d {
	case DimensionTeacher:
		return ev.Teacher
	case DimensionClass:
		return ev.Class
	case DimensionRoom:
		return ev.Room
	default:
		return ""
	}
}

// Criteria is the stateless form of a filter.
type Criteria struct {
	Search    string
	Dimension Dimension
	Value     string
}

// Active reports whether the criteria narrow anything.
func (c Criteria) Active() bool {
	return strings.TrimSpace(c.Search) != "" || c.Value != ""
}

// Matches reports whether ev passes both the search and the dimension value.
func (c Criteria) Matches(ev model.ScheduleEvent) bool {
	if c.Value != "" && c.Dimension.valueOf(ev) != c.Value {
		return false
	}

	term := strings.ToLower(strings.TrimSpace(c.Search))
	if term == "" {
		return true
	}
	for _, field := range []string{ev.Title, ev.Teacher, ev.Room, ev.Class} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

// Apply returns the events matching c, in input order.
func Apply(events []model.ScheduleEvent, c Criteria) []model.ScheduleEvent {
	out := make([]model.ScheduleEvent, 0, len(events))
	for _, ev := range events {
		if c.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out
}

// IDs extracts the ids of events, skipping empty ones.
func IDs(events []model.ScheduleEvent) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		if ev.ID != "" {
			out = append(out, ev.ID)
		}
	}
	return out
}

// Options returns the distinct non-empty values of d, sorted.
func Options(events []model.ScheduleEvent, d Dimension) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, ev := range events {
		v := d.valueOf(ev)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// AllOptions returns Options for every dimension.
func AllOptions(events []model.ScheduleEvent) map[Dimension][]string {
	out := make(map[Dimension][]string, len(Dimensions))
	for _, d := range Dimensions {
		out[d] = Options(events, d)
	}
	return out
}
