// Package forms describes the input forms of the timetable and its
// management entities. Select options are resolved at request time from
// named option sources.
package forms

import (
	"fmt"
	"net/mail"
	"sort"
	"strconv"
	"strings"

	"pampatime/internal/filter"
	"pampatime/internal/model"
)

type FieldKind string

const (
	KindText     FieldKind = "text"
	KindNumber   FieldKind = "number"
	KindEmail    FieldKind = "email"
	KindSelect   FieldKind = "select"
	KindTextarea FieldKind = "textarea"
	KindTime     FieldKind = "time"
)

// Option sources understood by Resolve.
const (
	SourceSubjects  = "subjects"
	SourceTeachers  = "teachers"
	SourceRooms     = "rooms"
	SourceClasses   = "classes"
	SourceCourses   = "courses"
	SourceSemesters = "semesters"
	SourceTypes     = "types"
	SourceDays      = "days"
	SourceTimes     = "times"
)

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type Field struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Kind        FieldKind `json:"type"`
	Required    bool      `json:"required"`
	Placeholder string    `json:"placeholder,omitempty"`
	Default     string    `json:"default,omitempty"`
	// OptionsFrom names the source a select field draws its options from.
	OptionsFrom string   `json:"-"`
	Options     []Option `json:"options,omitempty"`
}

// Config is the form of one entity.
type Config struct {
	Entity string  `json:"entity"`
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

var configs = map[string]Config{
	"event": {
		Entity: "event",
		Title:  "Add session",
		Fields: []Field{
			{ID: "title", Label: "Subject", Kind: KindSelect, Required: true, OptionsFrom: SourceSubjects, Placeholder: "Select a subject"},
			{ID: "day", Label: "Day", Kind: KindSelect, Required: true, OptionsFrom: SourceDays},
			{ID: "startTime", Label: "Start", Kind: KindTime, Required: true, OptionsFrom: SourceTimes, Placeholder: "HH:MM"},
			{ID: "endTime", Label: "End", Kind: KindTime, Required: true, OptionsFrom: SourceTimes, Placeholder: "HH:MM"},
			{ID: "room", Label: "Room", Kind: KindSelect, Required: true, OptionsFrom: SourceRooms},
			{ID: "teacher", Label: "Teacher", Kind: KindSelect, Required: true, OptionsFrom: SourceTeachers},
			{ID: "class", Label: "Class", Kind: KindSelect, Required: true, OptionsFrom: SourceClasses},
			{ID: "type", Label: "Type", Kind: KindSelect, Required: true, OptionsFrom: SourceTypes, Default: "theory"},
			{ID: "semester", Label: "Semester", Kind: KindSelect, OptionsFrom: SourceSemesters},
		},
	},
	"subjects": {
		Entity: "subjects",
		Title:  "Add subject",
		Fields: []Field{
			{ID: "code", Label: "Code", Kind: KindText, Required: true, Placeholder: "e.g. CC01"},
			{ID: "name", Label: "Name", Kind: KindText, Required: true, Placeholder: "e.g. Algorithms and Data Structures"},
			{ID: "course", Label: "Course", Kind: KindSelect, Required: true, OptionsFrom: SourceCourses, Placeholder: "Select a course"},
			{ID: "theoryHours", Label: "Theory hours", Kind: KindText, Required: true, Placeholder: "e.g. 40h"},
			{ID: "practiceHours", Label: "Practice hours", Kind: KindText, Required: true, Placeholder: "e.g. 20h"},
			{ID: "preferredRoomType", Label: "Preferred room type", Kind: KindText, Placeholder: "e.g. Laboratory"},
		},
	},
	"teachers": {
		Entity: "teachers",
		Title:  "Add teacher",
		Fields: []Field{
			{ID: "name", Label: "Name", Kind: KindText, Required: true, Placeholder: "e.g. Prof. Ana Silva"},
			{ID: "email", Label: "Email", Kind: KindEmail, Required: true, Placeholder: "e.g. teacher@school.edu"},
		},
	},
	"rooms": {
		Entity: "rooms",
		Title:  "Add room",
		Fields: []Field{
			{ID: "code", Label: "Code", Kind: KindText, Required: true, Placeholder: "e.g. S201"},
			{ID: "name", Label: "Room name", Kind: KindText, Required: true, Placeholder: "e.g. Room 201"},
			{ID: "capacity", Label: "Capacity", Kind: KindNumber, Required: true, Placeholder: "e.g. 45", Default: "0"},
			{ID: "type", Label: "Type", Kind: KindText, Required: true, Placeholder: "e.g. Classroom, Laboratory"},
		},
	},
	"courses": {
		Entity: "courses",
		Title:  "Add course",
		Fields: []Field{
			{ID: "code", Label: "Code", Kind: KindText, Required: true, Placeholder: "e.g. T10"},
			{ID: "name", Label: "Course name", Kind: KindText, Required: true, Placeholder: "e.g. Software Engineering"},
		},
	},
	"classes": {
		Entity: "classes",
		Title:  "Add class",
		Fields: []Field{
			{ID: "name", Label: "Class name", Kind: KindText, Required: true, Placeholder: "e.g. Class A, 2024.1 - A"},
			{ID: "course", Label: "Course", Kind: KindSelect, Required: true, OptionsFrom: SourceCourses, Placeholder: "Select a course"},
		},
	},
	"semesters": {
		Entity: "semesters",
		Title:  "Add semester",
		Fields: []Field{
			{ID: "name", Label: "Semester name", Kind: KindText, Required: true, Placeholder: "e.g. SEMESTER 02/2025"},
		},
	},
}

var aliases = map[string]string{
	"events":      "event",
	"disciplinas": "subjects",
	"professores": "teachers",
	"salas":       "rooms",
	"cursos":      "courses",
	"turmas":      "classes",
	"semestres":   "semesters",
}

// Entities lists the known form names.
func Entities() []string {
	return []string{"event", "subjects", "teachers", "rooms", "courses", "classes", "semesters"}
}

// Lookup returns a copy of the named form. Portuguese entity names are
// accepted as aliases.
func Lookup(entity string) (Config, error) {
	key := strings.ToLower(strings.TrimSpace(entity))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	cfg, ok := configs[key]
	if !ok {
		return Config{}, fmt.Errorf("unknown form %q", entity)
	}
	cfg.Fields = append([]Field(nil), cfg.Fields...)
	return cfg, nil
}

// Sources maps option source names to their values.
type Sources map[string][]string

// Resolve fills every field's options from sources. Fields whose source is
// missing keep an empty option list.
func Resolve(cfg Config, sources Sources) Config {
	out := cfg
	out.Fields = make([]Field, len(cfg.Fields))
	for i, f := range cfg.Fields {
		if f.OptionsFrom != "" {
			values := sources[f.OptionsFrom]
			f.Options = make([]Option, 0, len(values))
			for _, v := range values {
				f.Options = append(f.Options, Option{Value: v, Label: v})
			}
		}
		out.Fields[i] = f
	}
	return out
}

// BaseSources returns the sources that do not depend on stored data.
func BaseSources(hours model.BusinessHours, palette model.Palette) Sources {
	days := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

	var times []string
	for m := hours.Open; m <= hours.Close; m += 30 {
		times = append(times, model.FormatClock(m))
	}

	types := make([]string, 0, len(palette))
	for typ := range palette {
		types = append(types, typ)
	}
	sort.Strings(types)

	return Sources{
		SourceDays:  days,
		SourceTimes: times,
		SourceTypes: types,
	}
}

// EventSources derives option lists from the events already scheduled.
func EventSources(events []model.ScheduleEvent) Sources {
	subjects := map[string]struct{}{}
	semesters := map[string]struct{}{}
	for _, ev := range events {
		if t := strings.TrimSpace(ev.Title); t != "" {
			subjects[t] = struct{}{}
		}
		if s := strings.TrimSpace(ev.Semester); s != "" {
			semesters[s] = struct{}{}
		}
	}

	return Sources{
		SourceSubjects:  sortedKeys(subjects),
		SourceSemesters: sortedKeys(semesters),
		SourceTeachers:  filter.Options(events, filter.DimensionTeacher),
		SourceRooms:     filter.Options(events, filter.DimensionRoom),
		SourceClasses:   filter.Options(events, filter.DimensionClass),
	}
}

// Merge returns a new Sources with the lists of every argument. Later
// arguments win on duplicate names.
func Merge(all ...Sources) Sources {
	out := Sources{}
	for _, s := range all {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Defaults returns the initial value of every field.
func Defaults(cfg Config) map[string]string {
	out := make(map[string]string, len(cfg.Fields))
	for _, f := range cfg.Fields {
		out[f.ID] = f.Default
	}
	return out
}

// closedSources are the option sources whose lists are complete. Select
// values drawn from other sources (rooms, teachers, subjects) stay open so a
// new value can be entered before any event uses it.
var closedSources = map[string]bool{
	SourceDays:  true,
	SourceTypes: true,
}

// Validate checks submitted values against the form. Select fields are only
// checked when cfg has been resolved.
func Validate(cfg Config, values map[string]string) model.ValidationResult {
	var errs []string
	for _, f := range cfg.Fields {
		v := strings.TrimSpace(values[f.ID])
		if v == "" {
			if f.Required {
				errs = append(errs, strings.ToLower(f.Label)+" is required")
			}
			continue
		}

		switch f.Kind {
		case KindNumber:
			if _, err := strconv.Atoi(v); err != nil {
				errs = append(errs, strings.ToLower(f.Label)+" must be a number")
			}
		case KindEmail:
			if _, err := mail.ParseAddress(v); err != nil {
				errs = append(errs, strings.ToLower(f.Label)+" must be a valid email")
			}
		case KindTime:
			if _, err := model.ParseClock(v); err != nil {
				errs = append(errs, err.Error())
			}
		case KindSelect:
			if !selectAllows(f, v) {
				errs = append(errs, strings.ToLower(f.Label)+" must be one of the listed options")
			}
		}
	}
	return model.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

func selectAllows(f Field, v string) bool {
	if !closedSources[f.OptionsFrom] || len(f.Options) == 0 {
		return true
	}
	if f.OptionsFrom == SourceDays {
		_, err := model.ParseWeekday(v)
		return err == nil
	}
	for _, o := range f.Options {
		if strings.EqualFold(o.Value, v) {
			return true
		}
	}
	return false
}
