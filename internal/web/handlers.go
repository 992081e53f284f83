package web

import (
	"net/http"
	"strings"
	"time"

	"pampatime/internal/analysis"
	"pampatime/internal/conflict"
	"pampatime/internal/filter"
	"pampatime/internal/forms"
	"pampatime/internal/history"
	"pampatime/internal/ics"
	"pampatime/internal/model"
)

// eventView is an event as the calendar renders it.
type eventView struct {
	model.ScheduleEvent
	Conflict bool          `json:"conflict"`
	Display  model.Display `json:"display"`
}

func viewOf(ev model.ScheduleEvent, ix *conflict.Index) eventView {
	return eventView{ScheduleEvent: ev, Conflict: ix.Has(ev.ID), Display: model.Format(ev)}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// criteriaFrom reads q, dimension and value. A value without a dimension
// applies to teacher, the default dimension of the calendar view.
func criteriaFrom(r *http.Request) (filter.Criteria, error) {
	q := r.URL.Query()
	c := filter.Criteria{
		Search:    q.Get("q"),
		Dimension: filter.DimensionTeacher,
		Value:     strings.TrimSpace(q.Get("value")),
	}
	if d := q.Get("dimension"); d != "" {
		dim, err := filter.ParseDimension(d)
		if err != nil {
			return c, err
		}
		c.Dimension = dim
	}
	return c, nil
}

type eventsResponse struct {
	Revision uint64      `json:"revision"`
	Events   []eventView `json:"events"`
	Total    int         `json:"total"`
}

// GET /api/events?q=&dimension=&value=
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.snaps.Snapshot()
	matched := filter.Apply(snap.Events, c)

	views := make([]eventView, 0, len(matched))
	for _, ev := range matched {
		views = append(views, viewOf(ev, snap.Index))
	}
	writeJSON(w, http.StatusOK, eventsResponse{
		Revision: snap.Revision,
		Events:   views,
		Total:    len(snap.Events),
	})
}

// mutationResponse reports the written event with its conflicts. Overlap is
// set when the event shares time with any other session, even without a
// shared room, teacher or class.
type mutationResponse struct {
	Event     eventView         `json:"event"`
	Conflicts []conflict.Record `json:"conflicts"`
	Overlap   bool              `json:"overlap"`
}

func (s *Server) mutationResult(ev model.ScheduleEvent) mutationResponse {
	snap := s.snaps.Snapshot()
	records := snap.Index.Records(ev.ID)
	if records == nil {
		records = []conflict.Record{}
	}
	return mutationResponse{
		Event:     viewOf(ev, snap.Index),
		Conflicts: records,
		Overlap:   conflict.HasOverlapWithAny(ev, snap.Events),
	}
}

// POST /api/events creates a session. Conflicts do not block creation; they
// come back with the created event.
func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var slot model.Slot
	if err := decodeJSON(w, r, &slot); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	ev, err := s.store.Create(r.Context(), userOf(r), slot)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s.mutationResult(ev))
}

func (s *Server) handleGetEvent(w http.ResponseWriter, r *http.Request) {
	snap := s.snaps.Snapshot()
	ev, ok := snap.Event(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(ev, snap.Index))
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var patch model.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}

	ev, err := s.store.Update(r.Context(), userOf(r), r.PathValue("id"), patch)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.mutationResult(ev))
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Delete(r.Context(), userOf(r), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type eventConflictsResponse struct {
	EventID     string                `json:"eventId"`
	Records     []conflict.Record     `json:"records"`
	Description string                `json:"description"`
	Suggestions []string              `json:"suggestions"`
	With        []model.ScheduleEvent `json:"conflictingEvents"`
}

// GET /api/events/{id}/conflicts
func (s *Server) handleEventConflicts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	snap := s.snaps.Snapshot()
	if _, ok := snap.Event(id); !ok {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}

	records := snap.Index.Records(id)
	resp := eventConflictsResponse{
		EventID:     id,
		Records:     records,
		Description: conflict.Describe(records),
		Suggestions: conflict.SuggestResolution(records),
		With:        conflict.ConflictingEvents(id, snap.Events, snap.Index),
	}
	if resp.Records == nil {
		resp.Records = []conflict.Record{}
	}
	if resp.Suggestions == nil {
		resp.Suggestions = []string{}
	}
	if resp.With == nil {
		resp.With = []model.ScheduleEvent{}
	}
	writeJSON(w, http.StatusOK, resp)
}

type conflictsResponse struct {
	Revision  uint64           `json:"revision"`
	UpdatedAt time.Time        `json:"updatedAt"`
	Index     *conflict.Index  `json:"index"`
	Summary   conflict.Summary `json:"summary"`
}

// GET /api/conflicts returns the index and its summary. With filter
// parameters, both are restricted to the matching events.
func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.snaps.Snapshot()
	ix := snap.Index
	summary := snap.Summary
	if c.Active() {
		ix = ix.Restrict(filter.IDs(filter.Apply(snap.Events, c)))
		summary = conflict.Summarize(ix)
	}

	writeJSON(w, http.StatusOK, conflictsResponse{
		Revision:  snap.Revision,
		UpdatedAt: snap.UpdatedAt,
		Index:     ix,
		Summary:   summary,
	})
}

// GET /api/filters
func (s *Server) handleFilters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, filter.AllOptions(s.snaps.Snapshot().Events))
}

// GET /api/end-times?start=HH:MM
func (s *Server) handleEndTimes(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	if _, err := model.ParseClock(start); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	times := model.AvailableEndTimes(start, s.opts.Hours)
	if times == nil {
		times = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"endTimes": times})
}

func (s *Server) formSources(snap *analysis.Snapshot) forms.Sources {
	return forms.Merge(
		forms.BaseSources(s.opts.Hours, s.opts.Palette),
		forms.EventSources(snap.Events),
	)
}

// GET /api/forms/{entity}
func (s *Server) handleForm(w http.ResponseWriter, r *http.Request) {
	cfg, err := forms.Lookup(r.PathValue("entity"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, forms.Resolve(cfg, s.formSources(s.snaps.Snapshot())))
}

// POST /api/forms/{entity}/validate
func (s *Server) handleValidateForm(w http.ResponseWriter, r *http.Request) {
	cfg, err := forms.Lookup(r.PathValue("entity"))
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	var values map[string]string
	if err := decodeJSON(w, r, &values); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, forms.Validate(forms.Resolve(cfg, s.formSources(s.snaps.Snapshot())), values))
}

// GET /api/history?limit=50
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	entries, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /calendar.ics exports the timetable (optionally filtered) as a
// weekly-recurring feed.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	c, err := criteriaFrom(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events := filter.Apply(s.snaps.Snapshot().Events, c)
	body := ics.Export(events, ics.ExportOptions{
		Name:     s.opts.CalendarName,
		TimeZone: s.opts.TimeZone,
	})

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="timetable.ics"`)
	_, _ = w.Write([]byte(body))
}
