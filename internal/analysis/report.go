package analysis

import (
	"fmt"
	"io"
	"strings"

	"pampatime/internal/conflict"
	"pampatime/internal/model"
)

// WriteReport prints a plain-text conflict report of snap: the summary
// followed by one line per conflicted event, in detection order.
func WriteReport(w io.Writer, snap *Snapshot) error {
	var b strings.Builder

	fmt.Fprintf(&b, "events: %d\n", len(snap.Events))
	fmt.Fprintf(&b, "conflicted events: %d\n", snap.Summary.Total)
	writeValues(&b, "rooms", snap.Summary.Room)
	writeValues(&b, "teachers", snap.Summary.Teacher)
	writeValues(&b, "classes", snap.Summary.Class)

	for _, id := range snap.Index.IDs() {
		ev, ok := snap.Event(id)
		if !ok {
			continue
		}
		d := model.Format(ev)
		day := ""
		if !ev.Start.IsZero() {
			day = model.DayName(ev.Start.Weekday()) + " "
		}
		fmt.Fprintf(&b, "\n%s (%s%s)\n  %s\n", d.Title, day, d.Time, conflict.Describe(snap.Index.Records(id)))
		for _, other := range conflict.ConflictingEvents(id, snap.Events, snap.Index) {
			fmt.Fprintf(&b, "  with: %s (%s)\n", model.Format(other).Title, model.Format(other).Time)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeValues(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, ", "))
}
