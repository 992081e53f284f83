package model

import "strings"

// Style is the color triple rendered for an event type.
type Style struct {
	Background string `yaml:"background" json:"background"`
	Border     string `yaml:"border" json:"border"`
	Text       string `yaml:"text" json:"text"`
}

// Palette maps lower-cased event types to styles.
type Palette map[string]Style

var DefaultStyle = Style{Background: "#6b7280", Border: "#4b5563", Text: "#ffffff"}

// DefaultPalette covers the session types used by the timetable forms.
func DefaultPalette() Palette {
	return Palette{
		"theory":   {Background: "#2563eb", Border: "#1d4ed8", Text: "#ffffff"},
		"practice": {Background: "#16a34a", Border: "#15803d", Text: "#ffffff"},
		"lab":      {Background: "#9333ea", Border: "#7e22ce", Text: "#ffffff"},
		"exam":     {Background: "#dc2626", Border: "#b91c1c", Text: "#ffffff"},
		"online":   {Background: "#f59e0b", Border: "#d97706", Text: "#111827"},
	}
}

// Lookup returns the style for typ, falling back to DefaultStyle.
func (p Palette) Lookup(typ string) Style {
	if s, ok := p[strings.ToLower(strings.TrimSpace(typ))]; ok {
		return s
	}
	return DefaultStyle
}

// DeriveColors returns ev with its presentation fields recomputed from Type.
func DeriveColors(ev ScheduleEvent, p Palette) ScheduleEvent {
	s := p.Lookup(ev.Type)
	ev.BackgroundColor = s.Background
	ev.BorderColor = s.Border
	ev.TextColor = s.Text
	return ev
}
