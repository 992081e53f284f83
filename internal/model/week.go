package model

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const clockLayout = "15:04"

// The timetable is a recurring week, so every weekday resolves onto one fixed
// date. 2024-01-01 is a Monday.
var referenceMonday = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

var weekdayNames = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday, "segunda": time.Monday, "segunda-feira": time.Monday, "seg": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "terca": time.Tuesday, "terca-feira": time.Tuesday, "ter": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday, "quarta": time.Wednesday, "quarta-feira": time.Wednesday, "qua": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "quinta": time.Thursday, "quinta-feira": time.Thursday, "qui": time.Thursday,
	"friday": time.Friday, "fri": time.Friday, "sexta": time.Friday, "sexta-feira": time.Friday, "sex": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday, "sabado": time.Saturday, "sab": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday, "domingo": time.Sunday, "dom": time.Sunday,
}

// ParseWeekday accepts English and Portuguese weekday names, full or
// abbreviated, ignoring case and accents.
func ParseWeekday(name string) (time.Weekday, error) {
	key := foldName(name)
	if key == "" {
		return time.Sunday, fmt.Errorf("day is empty")
	}
	wd, ok := weekdayNames[key]
	if !ok {
		return time.Sunday, fmt.Errorf("unknown day %q", name)
	}
	return wd, nil
}

// DayName returns the English name used in exports and slot round-trips.
func DayName(wd time.Weekday) string {
	return wd.String()
}

// ReferenceDate returns the fixed calendar date standing for wd.
func ReferenceDate(wd time.Weekday) time.Time {
	offset := (int(wd) + 6) % 7 // Monday=0 ... Sunday=6
	return referenceMonday.AddDate(0, 0, offset)
}

// ParseClock parses HH:MM into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(clockLayout, strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q (want HH:MM)", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as HH:MM.
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// SlotBounds resolves a day name and HH:MM bounds onto the reference week.
func SlotBounds(day, startTime, endTime string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	wd, err := ParseWeekday(day)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	startMin, err := ParseClock(startTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endMin, err := ParseClock(endTime)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	ref := ReferenceDate(wd)
	base := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)
	return base.Add(time.Duration(startMin) * time.Minute), base.Add(time.Duration(endMin) * time.Minute), nil
}

// Canonical projects an event onto the reference week keeping the weekday and
// wall-clock time of Start and the duration to End. Events without a Start
// are returned unchanged.
func Canonical(ev ScheduleEvent) ScheduleEvent {
	if ev.Start.IsZero() {
		return ev
	}
	ref := ReferenceDate(ev.Start.Weekday())
	start := time.Date(ref.Year(), ref.Month(), ref.Day(),
		ev.Start.Hour(), ev.Start.Minute(), ev.Start.Second(), ev.Start.Nanosecond(), ev.Start.Location())

	out := ev
	if !ev.End.IsZero() {
		out.End = start.Add(ev.End.Sub(ev.Start))
	}
	out.Start = start
	return out
}

func foldName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return strings.TrimSuffix(out, ".")
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
