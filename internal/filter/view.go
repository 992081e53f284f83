package filter

import (
	"fmt"

	"pampatime/internal/model"
)

// View is the interactive filter state of one calendar screen. It is not
// safe for concurrent use; each screen owns its View.
type View struct {
	events  []model.ScheduleEvent
	options map[Dimension][]string

	active Dimension
	value  string
	search string
}

// NewView starts on the teacher dimension with nothing selected.
func NewView(events []model.ScheduleEvent) *View {
	v := &View{active: DimensionTeacher}
	v.SetEvents(events)
	return v
}

// SetEvents swaps in a new snapshot. A selected value that no longer exists
// is cleared.
func (v *View) SetEvents(events []model.ScheduleEvent) {
	v.events = events
	v.options = AllOptions(events)
	if v.value != "" && indexOf(v.options[v.active], v.value) < 0 {
		v.value = ""
	}
}

func (v *View) Active() Dimension { return v.active }
func (v *View) Value() string { return v.value }
func (v *View) Search() string { return v.search }

// SetActive switches the active dimension and clears the selection.
func (v *View) SetActive(d Dimension) {
	if d == v.active {
		return
	}
	v.active = d
	v.value = ""
}

// Select makes d active with the given value. Selecting on one dimension
// always clears the others.
func (v *View) Select(d Dimension, value string) {
	v.active = d
	v.value = value
}

func (v *View) SetSearch(term string) { v.search = term }

// ClearSelection drops the dimension value but keeps the search term.
func (v *View) ClearSelection() { v.value = "" }

// ClearAll drops both the selection and the search term.
func (v *View) ClearAll() {
	v.value = ""
	v.search = ""
}

func (v *View) HasActiveFilters() bool {
	return v.Criteria().Active()
}

func (v *View) Criteria() Criteria {
	return Criteria{Search: v.search, Dimension: v.active, Value: v.value}
}

// Filtered returns the events passing the search and the active selection.
func (v *View) Filtered() []model.ScheduleEvent {
	return Apply(v.events, v.Criteria())
}

// Options returns the sorted values of d in the current snapshot.
func (v *View) Options(d Dimension) []string {
	return append([]string(nil), v.options[d]...)
}

// Next advances through the active dimension's values. The unselected state
// is part of the cycle: unselected, first, ..., last, unselected.
func (v *View) Next() {
	opts := v.options[v.active]
	if len(opts) == 0 {
		return
	}
	if v.value == "" {
		v.value = opts[0]
		return
	}
	i := indexOf(opts, v.value)
	if i >= 0 && i < len(opts)-1 {
		v.value = opts[i+1]
		return
	}
	v.value = ""
}

// Previous walks the same cycle backwards.
func (v *View) Previous() {
	opts := v.options[v.active]
	if len(opts) == 0 {
		return
	}
	if v.value == "" {
		v.value = opts[len(opts)-1]
		return
	}
	i := indexOf(opts, v.value)
	if i > 0 {
		v.value = opts[i-1]
		return
	}
	v.value = ""
}

// Position describes the current selection for a navigation widget.
type Position struct {
	Value   string `json:"value"`
	Index   int    `json:"index"`
	Total   int    `json:"total"`
	Display string `json:"display"`
}

func (v *View) Current() Position {
	opts := v.options[v.active]
	p := Position{Value: v.value, Index: indexOf(opts, v.value), Total: len(opts)}
	if v.value == "" {
		p.Index = -1
		p.Display = fmt.Sprintf("Select %s", v.active)
	} else {
		p.Display = fmt.Sprintf("%s (%d/%d)", v.value, p.Index+1, p.Total)
	}
	return p
}

func indexOf(values []string, v string) int {
	for i, s := range values {
		if s == v {
			return i
		}
	}
	return -1
}
