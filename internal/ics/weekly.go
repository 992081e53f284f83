package ics

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teambition/rrule-go"

	appLog "pampatime/internal/log"
	"pampatime/internal/model"
)

// Namespace for the deterministic ids of imported sessions.
var importNamespace = uuid.MustParse("6f1c2a7e-3b4d-5e8f-9a0b-1c2d3e4f5a6b")

// WeeklyOptions controls how feed sessions are projected onto the timetable
// week.
type WeeklyOptions struct {
	// Location is the wall clock sessions are shown in. Nil means time.Local.
	Location *time.Location
	// SkipAllDay drops all-day events, which have no meaningful slot.
	SkipAllDay bool
}

// Weekly turns feed sessions into timetable events. A recurring session
// yields one event per weekday its rule hits during the first week from
// DTSTART; a single session yields one event on its own weekday. Events get
// ids derived from feed, UID and weekday, so re-importing an unchanged feed
// keeps every id stable.
func Weekly(feed string, sessions []Session, opts WeeklyOptions) []model.ScheduleEvent {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	out := make([]model.ScheduleEvent, 0, len(sessions))
	seen := make(map[string]struct{})

	for _, s := range sessions {
		if s.AllDay && opts.SkipAllDay {
			continue
		}

		starts, err := weekStarts(s)
		if err != nil {
			appLog.Error("ics rrule skipped", err, "feed", feed, "uid", s.UID, "rrule", s.RRule)
			starts = []time.Time{s.Start}
		}

		var dur time.Duration
		if !s.End.IsZero() {
			dur = s.End.Sub(s.Start)
		}

		for _, start := range starts {
			local := start.In(loc)
			id := uuid.NewSHA1(importNamespace, fmt.Appendf(nil, "%s|%s|%d", feed, s.UID, local.Weekday())).String()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}

			ev := model.ScheduleEvent{
				ID:       id,
				Title:    s.Title,
				Start:    local,
				AllDay:   s.AllDay,
				Room:     s.Room,
				Teacher:  s.Teacher,
				Class:    s.Class,
				Type:     s.Type,
				Semester: s.Semester,
			}
			if dur != 0 {
				ev.End = local.Add(dur)
			}
			out = append(out, model.Canonical(ev))
		}
	}
	return out
}

// weekStarts returns the occurrence starts of s in [DTSTART, DTSTART+7d).
func weekStarts(s Session) ([]time.Time, error) {
	if s.RRule == "" {
		return []time.Time{s.Start}, nil
	}

	opt, err := rrule.StrToROption(s.RRule)
	if err != nil {
		return nil, err
	}
	opt.Dtstart = s.Start
	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, err
	}

	starts := r.Between(s.Start, s.Start.AddDate(0, 0, 7).Add(-time.Second), true)
	if len(starts) == 0 {
		// A rule whose first hit is later than a week still recurs weekly
		// on DTSTART's weekday in the template.
		return []time.Time{s.Start}, nil
	}
	return starts, nil
}
