package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"pampatime/internal/model"
)

// ExportOptions names the produced calendar.
type ExportOptions struct {
	Name     string
	TimeZone string
	// Now stamps DTSTAMP. Zero means time.Now.
	Now time.Time
}

// Export renders events as a calendar of weekly-recurring VEVENTs anchored on
// the reference week. Events without bounds are left out.
func Export(events []model.ScheduleEvent, opts ExportOptions) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//pampatime//timetable//EN")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}
	if opts.TimeZone != "" {
		cal.SetXWRTimezone(opts.TimeZone)
	}

	for _, ev := range events {
		if ev.ID == "" || !ev.HasBounds() {
			continue
		}
		c := model.Canonical(ev)

		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now)
		ve.SetStartAt(c.Start)
		ve.SetEndAt(c.End)
		ve.AddRrule("FREQ=WEEKLY")
		ve.SetSummary(ev.Title)

		d := model.Format(ev)
		ve.SetDescription(d.Details)

		if ev.Room != "" {
			ve.SetLocation(ev.Room)
		}
		setIfPresent(ve, propTeacher, ev.Teacher)
		setIfPresent(ve, propClass, ev.Class)
		setIfPresent(ve, propSemester, ev.Semester)
		setIfPresent(ve, propType, ev.Type)
		setIfPresent(ve, ical.ComponentPropertyCategories, ev.Type)
	}

	return cal.Serialize()
}

func setIfPresent(ve *ical.VEvent, prop ical.ComponentProperty, v string) {
	if v != "" {
		ve.SetProperty(prop, v)
	}
}
