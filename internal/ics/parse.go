// Package ics imports timetable sessions from iCalendar feeds and exports the
// timetable as a weekly-recurring feed.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "pampatime/internal/log"
)

// Extension properties carrying the timetable fields that have no standard
// iCalendar property. Export writes them so an exported feed imports back
// unchanged.
const (
	propTeacher  ical.ComponentProperty = "X-PAMPATIME-TEACHER"
	propClass    ical.ComponentProperty = "X-PAMPATIME-CLASS"
	propSemester ical.ComponentProperty = "X-PAMPATIME-SEMESTER"
	propType     ical.ComponentProperty = "X-PAMPATIME-TYPE"
)

// Session is one VEVENT read from a feed, before weekly expansion.
type Session struct {
	UID      string
	Title    string
	Room     string
	Teacher  string
	Class    string
	Type     string
	Semester string

	Start  time.Time
	End    time.Time
	AllDay bool

	RRule string
}

// Parse reads every VEVENT of body. Events that cannot be read are logged
// and skipped; only an unreadable calendar is an error.
func Parse(feed string, body []byte) ([]Session, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feed, err)
	}

	sessions := make([]Session, 0)
	for _, ve := range cal.Events() {
		s, err := parseSession(ve)
		if err != nil {
			appLog.Error("ics vevent skipped", err, "feed", feed)
			continue
		}
		sessions = append(sessions, s)
	}

	appLog.Debug("ics parse completed", "feed", feed, "session_count", len(sessions))
	return sessions, nil
}

func parseSession(ve *ical.VEvent) (Session, error) {
	var s Session

	s.UID = value(ve, ical.ComponentPropertyUniqueId)
	if s.UID == "" {
		return s, errors.New("missing UID")
	}
	// Single-instance overrides do not change the weekly template.
	if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
		return s, fmt.Errorf("event %s: recurrence override ignored", s.UID)
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return s, fmt.Errorf("event %s: %w", s.UID, err)
	}
	s.Start = start
	if end, err := ve.GetEndAt(); err == nil {
		s.End = end
	}

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		s.AllDay = !strings.Contains(p.Value, "T") || hasParam(p.ICalParameters, "VALUE", "DATE")
	}

	s.Title = value(ve, ical.ComponentPropertySummary)
	s.Room = value(ve, ical.ComponentPropertyLocation)
	s.RRule = value(ve, ical.ComponentPropertyRrule)

	s.Teacher = value(ve, propTeacher)
	if s.Teacher == "" {
		s.Teacher = organizerName(ve)
	}
	s.Class = value(ve, propClass)
	s.Semester = value(ve, propSemester)
	s.Type = value(ve, propType)
	if s.Type == "" {
		s.Type = firstCategory(value(ve, ical.ComponentPropertyCategories))
	}

	return s, nil
}

func value(ve *ical.VEvent, prop ical.ComponentProperty) string {
	p := ve.GetProperty(prop)
	if p == nil {
		return ""
	}
	return strings.TrimSpace(p.Value)
}

func hasParam(params map[string][]string, key, want string) bool {
	for _, v := range params[key] {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}

// organizerName prefers the CN parameter over the mailto address.
func organizerName(ve *ical.VEvent) string {
	p := ve.GetProperty(ical.ComponentPropertyOrganizer)
	if p == nil {
		return ""
	}
	if cn := p.ICalParameters["CN"]; len(cn) > 0 && strings.TrimSpace(cn[0]) != "" {
		return strings.Trim(strings.TrimSpace(cn[0]), `"`)
	}
	return strings.TrimPrefix(strings.TrimSpace(p.Value), "mailto:")
}

func firstCategory(v string) string {
	first, _, _ := strings.Cut(v, ",")
	return strings.ToLower(strings.TrimSpace(first))
}
