package model

import "strings"

// Display is the text shown for an event in lists and reports.
type Display struct {
	Title   string `json:"title"`
	Time    string `json:"time"`
	Details string `json:"details"`
}

func Format(ev ScheduleEvent) Display {
	d := Display{Title: ev.Title}
	if strings.TrimSpace(d.Title) == "" {
		d.Title = "Untitled event"
	}
	if !ev.Start.IsZero() && !ev.End.IsZero() {
		d.Time = ev.Start.Format(clockLayout) + " - " + ev.End.Format(clockLayout)
	}

	parts := make([]string, 0, 4)
	if ev.Teacher != "" {
		parts = append(parts, "Teacher: "+ev.Teacher)
	}
	if ev.Room != "" {
		parts = append(parts, "Room: "+ev.Room)
	}
	if ev.Semester != "" {
		parts = append(parts, "Semester: "+ev.Semester)
	}
	if ev.Class != "" {
		parts = append(parts, "Class: "+ev.Class)
	}
	d.Details = strings.Join(parts, " • ")
	return d
}
