package model

import "time"

// ScheduleEvent is one session of the recurring weekly timetable.
//
// Start and End carry a concrete date, but only their weekday and wall-clock
// time are meaningful: every comparison first projects them onto the
// reference week (see Canonical). A zero Start or End means "missing".
type ScheduleEvent struct {
	ID    string `json:"id"`
	Title string `json:"title"`

	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	AllDay bool      `json:"allDay,omitempty"`

	Room     string `json:"room,omitempty"`
	Teacher  string `json:"teacher,omitempty"`
	Class    string `json:"class,omitempty"`
	Type     string `json:"type,omitempty"`
	Semester string `json:"semester,omitempty"`

	// Presentation fields, always produced by DeriveColors.
	BackgroundColor string `json:"backgroundColor,omitempty"`
	BorderColor     string `json:"borderColor,omitempty"`
	TextColor       string `json:"textColor,omitempty"`
}

// HasBounds reports whether both bounds are present and ordered.
func (e ScheduleEvent) HasBounds() bool {
	return !e.Start.IsZero() && !e.End.IsZero() && e.End.After(e.Start)
}

// Slot is the creation input: a weekday name plus HH:MM bounds.
type Slot struct {
	Title     string `json:"title"`
	Day       string `json:"day"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Room      string `json:"room"`
	Teacher   string `json:"teacher"`
	Class     string `json:"class"`
	Type      string `json:"type"`
	Semester  string `json:"semester,omitempty"`
}

// Patch is a partial update. Nil fields are left untouched.
type Patch struct {
	Title     *string `json:"title,omitempty"`
	Day       *string `json:"day,omitempty"`
	StartTime *string `json:"startTime,omitempty"`
	EndTime   *string `json:"endTime,omitempty"`
	Room      *string `json:"room,omitempty"`
	Teacher   *string `json:"teacher,omitempty"`
	Class     *string `json:"class,omitempty"`
	Type      *string `json:"type,omitempty"`
	Semester  *string `json:"semester,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Day == nil && p.StartTime == nil && p.EndTime == nil &&
		p.Room == nil && p.Teacher == nil && p.Class == nil && p.Type == nil && p.Semester == nil
}

// NewEvent builds an event from a slot that already passed ValidateSlot.
func NewEvent(id string, slot Slot, loc *time.Location, palette Palette) (ScheduleEvent, error) {
	start, end, err := SlotBounds(slot.Day, slot.StartTime, slot.EndTime, loc)
	if err != nil {
		return ScheduleEvent{}, err
	}

	ev := ScheduleEvent{
		ID:       id,
		Title:    trimmed(slot.Title),
		Start:    start,
		End:      end,
		Room:     trimmed(slot.Room),
		Teacher:  trimmed(slot.Teacher),
		Class:    trimmed(slot.Class),
		Type:     trimmed(slot.Type),
		Semester: trimmed(slot.Semester),
	}
	return DeriveColors(ev, palette), nil
}

// ApplyPatch returns ev with the patch applied. The ID is preserved, bounds are
// re-resolved when any of day/start/end change, and colors are re-derived.
func ApplyPatch(ev ScheduleEvent, p Patch, loc *time.Location, palette Palette) (ScheduleEvent, error) {
	out := ev

	setString(&out.Title, p.Title)
	setString(&out.Room, p.Room)
	setString(&out.Teacher, p.Teacher)
	setString(&out.Class, p.Class)
	setString(&out.Type, p.Type)
	setString(&out.Semester, p.Semester)

	if p.Day != nil || p.StartTime != nil || p.EndTime != nil {
		slot := SlotOf(ev)
		setString(&slot.Day, p.Day)
		setString(&slot.StartTime, p.StartTime)
		setString(&slot.EndTime, p.EndTime)

		start, end, err := SlotBounds(slot.Day, slot.StartTime, slot.EndTime, loc)
		if err != nil {
			return ev, err
		}
		out.Start = start
		out.End = end
	}

	return DeriveColors(out, palette), nil
}

// SlotOf recovers the slot representation of an event.
func SlotOf(ev ScheduleEvent) Slot {
	slot := Slot{
		Title:    ev.Title,
		Room:     ev.Room,
		Teacher:  ev.Teacher,
		Class:    ev.Class,
		Type:     ev.Type,
		Semester: ev.Semester,
	}
	if !ev.Start.IsZero() {
		slot.Day = DayName(ev.Start.Weekday())
		slot.StartTime = ev.Start.Format(clockLayout)
	}
	if !ev.End.IsZero() {
		slot.EndTime = ev.End.Format(clockLayout)
	}
	return slot
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = trimmed(*v)
	}
}
