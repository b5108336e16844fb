package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"groupcal/internal/api"
	"groupcal/internal/config"
	"groupcal/internal/export"
	appLog "groupcal/internal/log"
	"groupcal/internal/model"
	"groupcal/internal/schedule"
)

// GroupSource is the slice of the backend client the server needs. It is an
// interface so handler tests can run against a fake backend.
type GroupSource interface {
	Group(ctx context.Context, groupID string) (model.Group, error)
	GroupEvents(ctx context.Context, groupID string) (api.EventsResult, error)
}

// Server exposes the aggregated group schedules over HTTP:
// /health, /api/schedule (JSON) and /api/schedule.ics (iCalendar).
type Server struct {
	cfg *config.Config
	src GroupSource
	mux *http.ServeMux

	// In-memory cache for /api/schedule responses to avoid redundant
	// fetch/aggregate work on every HTTP request.
	schedMu    sync.RWMutex
	schedCache map[string]*scheduleCache

	// lastEvents remembers the last non-empty event list per group. When a
	// fetch comes back empty it is used as the fallback so a slow or failed
	// backend does not blank the schedule.
	eventsMu   sync.RWMutex
	lastEvents map[string][]model.Event
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, src GroupSource) *Server {
	s := &Server{
		cfg:        cfg,
		src:        src,
		mux:        http.NewServeMux(),
		schedCache: make(map[string]*scheduleCache),
		lastEvents: make(map[string][]model.Event),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health stays reachable without credentials.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="groupcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/schedule", s.handleSchedule)
	s.mux.HandleFunc("/api/schedule.ics", s.handleScheduleICS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// scheduleResponse is the JSON response shape for /api/schedule.
type scheduleResponse struct {
	GroupID   string `json:"group_id"`
	GroupName string `json:"group_name,omitempty"`
	Weeks     int    `json:"weeks"`
	Timezone  string `json:"timezone"`

	// Dates is the ascending list of date keys; ByDate holds the entries
	// per key. DayLabels carries the Spanish weekday label per key, so the
	// renderer localizes at the boundary instead of guessing from the
	// stored day field.
	Dates     []string                         `json:"dates"`
	ByDate    map[string][]model.ScheduleEntry `json:"by_date"`
	DayLabels map[string]string                `json:"day_labels"`

	// Empty marks the explicit "no events or routines" state.
	Empty bool `json:"empty"`

	// Partial is set when the events fetch degraded to cached or fallback
	// data; Error then carries the fetch failure, if any.
	Partial bool   `json:"partial,omitempty"`
	Error   string `json:"error,omitempty"`
}

// scheduleCache holds a cached /api/schedule response and its timestamp.
type scheduleCache struct {
	resp      scheduleResponse
	updatedAt time.Time
}

const scheduleCacheTTL = 30 * time.Second

// handleSchedule returns the merged, date-grouped schedule for one group.
//
// GET /api/schedule?group=<id>&weeks=<n>
//   - group: backend group id; may be omitted when exactly one group is
//     configured
//   - weeks: projection horizon override (default from config)
func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := s.resolveGroupID(r.URL.Query().Get("group"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	weeks := parseIntDefault(r.URL.Query().Get("weeks"), s.cfg.WeeksToShow)
	if weeks <= 0 {
		weeks = s.cfg.WeeksToShow
	}

	cacheKey := groupID + "/" + strconv.Itoa(weeks)
	now := time.Now()

	// Fast path: return cached value if it's still fresh.
	s.schedMu.RLock()
	sc := s.schedCache[cacheKey]
	s.schedMu.RUnlock()
	if sc != nil && now.Sub(sc.updatedAt) < scheduleCacheTTL {
		writeJSON(w, http.StatusOK, sc.resp)
		return
	}

	resp, err := s.buildSchedule(ctx, groupID, weeks)
	if err != nil {
		appLog.Error("api schedule: group load failed", err, "group", groupID)
		writeError(w, http.StatusBadGateway, "failed to load group")
		return
	}

	// Degraded responses are not cached: once the backend recovers, the
	// next request should drop the partial flag instead of serving it for
	// the remainder of the TTL.
	if !resp.Partial {
		s.schedMu.Lock()
		s.schedCache[cacheKey] = &scheduleCache{resp: resp, updatedAt: time.Now()}
		s.schedMu.Unlock()
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleScheduleICS serves the same schedule as an iCalendar feed.
//
// GET /api/schedule.ics?group=<id>
func (s *Server) handleScheduleICS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	groupID, err := s.resolveGroupID(r.URL.Query().Get("group"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	group, events, _, err := s.loadGroupData(ctx, groupID)
	if err != nil {
		appLog.Error("api schedule.ics: group load failed", err, "group", groupID)
		writeError(w, http.StatusBadGateway, "failed to load group")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	if err := export.WriteSchedule(w, group, events, time.Now().In(s.location())); err != nil {
		appLog.Error("api schedule.ics: serialize failed", err, "group", groupID)
	}
}

// buildSchedule loads a group's data and aggregates it into the response
// shape. Shared by the HTTP handler and the cron refresh.
func (s *Server) buildSchedule(ctx context.Context, groupID string, weeks int) (scheduleResponse, error) {
	group, events, fetchState, err := s.loadGroupData(ctx, groupID)
	if err != nil {
		return scheduleResponse{}, err
	}

	loc := s.location()
	today := time.Now().In(loc)

	sched := schedule.Aggregate(group.Routines, events, schedule.ExpandConfig{
		Today:       today,
		WeeksToShow: weeks,
	})

	labels := make(map[string]string, len(sched.Dates))
	for _, date := range sched.Dates {
		d, perr := time.ParseInLocation(schedule.DateLayout, date, loc)
		if perr != nil {
			continue
		}
		if label, ok := schedule.LocalizedDay(d.Weekday().String()); ok {
			labels[date] = label
		}
	}

	return scheduleResponse{
		GroupID:   group.ID,
		GroupName: group.Name,
		Weeks:     weeks,
		Timezone:  loc.String(),
		Dates:     sched.Dates,
		ByDate:    sched.ByDate,
		DayLabels: labels,
		Empty:     sched.Empty(),
		Partial:   fetchState.partial,
		Error:     fetchState.errMsg,
	}, nil
}

// eventsFetchState describes how the one-time event list was obtained.
type eventsFetchState struct {
	partial bool
	errMsg  string
}

// loadGroupData fetches the group entity and its events. A failed or empty
// events fetch is not fatal: the last known list (or nothing) is used and
// the degradation is reported through eventsFetchState, never hidden.
func (s *Server) loadGroupData(ctx context.Context, groupID string) (model.Group, []model.Event, eventsFetchState, error) {
	group, err := s.src.Group(ctx, groupID)
	if err != nil {
		return model.Group{}, nil, eventsFetchState{}, err
	}

	var state eventsFetchState
	var fetched []model.Event

	res, err := s.src.GroupEvents(ctx, groupID)
	if err != nil {
		appLog.Error("events fetch failed; serving fallback", err, "group", groupID)
		state.partial = true
		state.errMsg = err.Error()
	} else {
		fetched = res.Events
		if res.FromCache {
			state.partial = true
		}
	}

	// Fallback chain: the last successfully fetched list first, then the
	// operator-configured fallback events. The configured list is what
	// keeps a cold start with a dead backend from rendering blank.
	s.eventsMu.RLock()
	fallback := s.lastEvents[groupID]
	s.eventsMu.RUnlock()
	fallback = schedule.SelectEvents(fallback, s.configuredFallback(groupID))

	events := schedule.SelectEvents(fetched, fallback)

	if len(fetched) > 0 && err == nil {
		s.eventsMu.Lock()
		s.lastEvents[groupID] = fetched
		s.eventsMu.Unlock()
	}

	return group, events, state, nil
}

// configuredFallback returns the operator-configured fallback events for a
// group, if any.
func (s *Server) configuredFallback(groupID string) []model.Event {
	for _, g := range s.cfg.Groups {
		if g.ID == groupID {
			return g.FallbackEvents
		}
	}
	return nil
}

// RefreshAll rebuilds the schedule cache for every configured group. The
// cron scheduler in cmd/groupcal drives this so interactive requests mostly
// hit a warm cache.
func (s *Server) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, g := range s.cfg.Groups {
		resp, err := s.buildSchedule(ctx, g.ID, s.cfg.WeeksToShow)
		if err != nil {
			appLog.Error("refresh: group failed", err, "group", g.ID, "name", g.Name)
			errs = append(errs, err)
			continue
		}

		if !resp.Partial {
			key := g.ID + "/" + strconv.Itoa(s.cfg.WeeksToShow)
			s.schedMu.Lock()
			s.schedCache[key] = &scheduleCache{resp: resp, updatedAt: time.Now()}
			s.schedMu.Unlock()
		}

		appLog.Info("refresh: group schedule updated",
			"group", g.ID,
			"name", g.Name,
			"dates", len(resp.Dates),
			"partial", resp.Partial,
		)
	}
	return errors.Join(errs...)
}

// Dump writes the aggregated schedule of every configured group as indented
// JSON. Backs the -once -dump debug path in cmd/groupcal.
func (s *Server) Dump(ctx context.Context, w io.Writer) error {
	out := make(map[string]scheduleResponse, len(s.cfg.Groups))
	for _, g := range s.cfg.Groups {
		resp, err := s.buildSchedule(ctx, g.ID, s.cfg.WeeksToShow)
		if err != nil {
			return err
		}
		out[g.ID] = resp
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// resolveGroupID picks the group to serve: the explicit query value, or the
// single configured group when the query is empty.
func (s *Server) resolveGroupID(q string) (string, error) {
	if q != "" {
		return q, nil
	}
	if len(s.cfg.Groups) == 1 {
		return s.cfg.Groups[0].ID, nil
	}
	return "", errors.New("group parameter is required")
}

func (s *Server) location() *time.Location {
	return resolveLocationOrLocal(s.cfg.Timezone)
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

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
