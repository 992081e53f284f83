package model

import (
	"strings"
)

// ValidationResult collects non-fatal validation messages.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

func result(errs []string) ValidationResult {
	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// Err returns a *ValidationError when the result is invalid, nil otherwise.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// ValidationError is returned when a mutation is rejected by validation.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Errors) == 0 {
		return "invalid event"
	}
	return "invalid event: " + strings.Join(e.Errors, ", ")
}

// BusinessHours bounds the times a slot may use, in minutes since midnight.
type BusinessHours struct {
	Open  int
	Close int
}

// DefaultBusinessHours is 07:30 to 22:30.
var DefaultBusinessHours = BusinessHours{Open: 7*60 + 30, Close: 22*60 + 30}

// Validate checks an already-built event. Failures are warnings: the event is
// still usable, it just never satisfies the overlap predicate when its bounds
// are missing or inverted.
func Validate(ev ScheduleEvent) ValidationResult {
	var errs []string

	if strings.TrimSpace(ev.Title) == "" {
		errs = append(errs, "event title is empty")
	}
	if ev.Start.IsZero() {
		errs = append(errs, "event start time is missing")
	}
	if ev.End.IsZero() {
		errs = append(errs, "event end time is missing")
	}
	if !ev.Start.IsZero() && !ev.End.IsZero() && !ev.End.After(ev.Start) {
		errs = append(errs, "event end time must be after start time")
	}

	return result(errs)
}

// ValidateSlot checks creation input. Every field is required.
func ValidateSlot(s Slot, hours BusinessHours) ValidationResult {
	var errs []string

	required := []struct {
		value string
		msg   string
	}{
		{s.Title, "title is required"},
		{s.Day, "day is required"},
		{s.StartTime, "start time is required"},
		{s.EndTime, "end time is required"},
		{s.Room, "room is required"},
		{s.Teacher, "teacher is required"},
		{s.Class, "class is required"},
		{s.Type, "type is required"},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, r.msg)
		}
	}

	if strings.TrimSpace(s.Day) != "" {
		if _, err := ParseWeekday(s.Day); err != nil {
			errs = append(errs, err.Error())
		}
	}

	errs = append(errs, validateClockRange(s.StartTime, s.EndTime, hours)...)
	return result(errs)
}

func validateClockRange(startTime, endTime string, hours BusinessHours) []string {
	if strings.TrimSpace(startTime) == "" || strings.TrimSpace(endTime) == "" {
		return nil
	}

	var errs []string
	startMin, startErr := ParseClock(startTime)
	if startErr != nil {
		errs = append(errs, startErr.Error())
	}
	endMin, endErr := ParseClock(endTime)
	if endErr != nil {
		errs = append(errs, endErr.Error())
	}
	if startErr != nil || endErr != nil {
		return errs
	}

	if endMin <= startMin {
		errs = append(errs, "end time must be after start time")
	}
	if startMin < hours.Open {
		errs = append(errs, "start time cannot be before "+FormatClock(hours.Open))
	}
	if endMin > hours.Close {
		errs = append(errs, "end time cannot be after "+FormatClock(hours.Close))
	}
	return errs
}

// AvailableEndTimes lists the hourly end slots after startTime, starting at
// the opening time.
func AvailableEndTimes(startTime string, hours BusinessHours) []string {
	startMin, err := ParseClock(startTime)
	if err != nil {
		return nil
	}

	var out []string
	for m := hours.Open; m <= hours.Close; m += 60 {
		if m > startMin {
			out = append(out, FormatClock(m))
		}
	}
	return out
}
