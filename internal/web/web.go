package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"pampatime/internal/analysis"
	"pampatime/internal/config"
	"pampatime/internal/history"
	appLog "pampatime/internal/log"
	"pampatime/internal/model"
	"pampatime/internal/store"
)

// EventStore is the mutation surface the API writes through.
type EventStore interface {
	Create(ctx context.Context, user string, slot model.Slot) (model.ScheduleEvent, error)
	Update(ctx context.Context, user, id string, patch model.Patch) (model.ScheduleEvent, error)
	Delete(ctx context.Context, user, id string) error
}

// Snapshots yields the latest conflict analysis.
type Snapshots interface {
	Snapshot() *analysis.Snapshot
}

// Options carries the settings handlers need from the configuration.
type Options struct {
	BasicAuth    *config.BasicAuthConfig
	Hours        model.BusinessHours
	Palette      model.Palette
	CalendarName string
	TimeZone     string
}

// Server exposes the timetable over HTTP. Reads come from the analysis
// snapshot; writes go through the store, which republishes the snapshot
// before returning.
type Server struct {
	store   EventStore
	snaps   Snapshots
	history history.Recorder
	opts    Options
	mux     *http.ServeMux
}

func NewServer(st EventStore, snaps Snapshots, rec history.Recorder, opts Options) *Server {
	if rec == nil {
		rec = history.Nop{}
	}
	if opts.Hours == (model.BusinessHours{}) {
		opts.Hours = model.DefaultBusinessHours
	}
	if opts.Palette == nil {
		opts.Palette = model.DefaultPalette()
	}
	if opts.CalendarName == "" {
		opts.CalendarName = "Timetable"
	}

	s := &Server{
		store:   st,
		snaps:   snaps,
		history: rec,
		opts:    opts,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the routes, wrapped in basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		h = s.basicAuthMiddleware(h)
	}
	return requestLog(h)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("GET /api/events", s.handleListEvents)
	s.mux.HandleFunc("POST /api/events", s.handleCreateEvent)
	s.mux.HandleFunc("GET /api/events/{id}", s.handleGetEvent)
	s.mux.HandleFunc("PATCH /api/events/{id}", s.handleUpdateEvent)
	s.mux.HandleFunc("DELETE /api/events/{id}", s.handleDeleteEvent)
	s.mux.HandleFunc("GET /api/events/{id}/conflicts", s.handleEventConflicts)

	s.mux.HandleFunc("GET /api/conflicts", s.handleConflicts)
	s.mux.HandleFunc("GET /api/filters", s.handleFilters)
	s.mux.HandleFunc("GET /api/end-times", s.handleEndTimes)
	s.mux.HandleFunc("GET /api/forms/{entity}", s.handleForm)
	s.mux.HandleFunc("POST /api/forms/{entity}/validate", s.handleValidateForm)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)

	s.mux.HandleFunc("GET /calendar.ics", s.handleCalendar)
}

func (s *Server) basicAuthEnabled() bool {
	a := s.opts.BasicAuth
	return a != nil && a.Username != "" && a.Password != ""
}

// basicAuthMiddleware protects everything except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.opts.BasicAuth.Username
	password := s.opts.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="pampatime", charset="UTF-8"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}

// userOf names the editor recorded in history: the basic-auth user, then the
// X-User header.
func userOf(r *http.Request) string {
	if u, _, ok := r.BasicAuth(); ok && u != "" {
		return u
	}
	return r.Header.Get("X-User")
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, listen string) error {
	srv := &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+listen, "basic_auth", s.basicAuthEnabled())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string, details ...string) {
	writeJSON(w, status, errorResponse{Error: msg, Details: details})
}

// writeStoreError maps store and validation failures onto HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusUnprocessableEntity, "validation failed", verr.Errors...)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		appLog.Error("store operation failed", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
