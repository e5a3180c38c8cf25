// Package web exposes the HTTP API: expanded occurrences, built view
// collections with lane and grid geometry, and recurrence suggestions.
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"calview/internal/collection"
	"calview/internal/config"
	"calview/internal/event"
	"calview/internal/ics"
	"calview/internal/layout"
	appLog "calview/internal/log"
	"calview/internal/recurrence"
	"calview/internal/temporal"
)

// eventsTTL is how long a refreshed feed snapshot satisfies requests before
// a handler triggers a re-fetch itself. The cron loop in cmd/calviewd
// normally refreshes well inside this window.
const eventsTTL = 5 * time.Minute

// Server serves the JSON API on an http.ServeMux.
type Server struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
	mux     *http.ServeMux

	// Snapshot of parsed feed events, refreshed by cron or on demand.
	eventsMu  sync.RWMutex
	events    []event.CalendarEvent
	refreshed time.Time
}

// NewServer constructs a Server sharing the given fetcher with the refresh
// loop so both hit the same disk cache.
func NewServer(cfg *config.Config, fetcher *ics.Fetcher) *Server {
	s := &Server{
		cfg:     cfg,
		fetcher: fetcher,
		mux:     http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the http.Handler, wrapped with basic auth when configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware protects every endpoint except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}
		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calview", charset="UTF-8"`)
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
	s.mux.HandleFunc("/api/events", s.handleEvents)
	s.mux.HandleFunc("/api/collection", s.handleCollection)
	s.mux.HandleFunc("/api/suggestions", s.handleSuggestions)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Refresh fetches and parses all configured feeds, replacing the event
// snapshot. Per-source failures are logged; the snapshot is replaced with
// whatever parsed.
func (s *Server) Refresh(ctx context.Context) error {
	sources := s.sources()
	if len(sources) == 0 {
		s.setEvents(nil)
		return nil
	}

	results, errs := s.fetcher.FetchAll(ctx, sources)
	if len(errs) > 0 {
		appLog.Error("feed refresh: fetch errors", errorsAggregate(errs), "error_count", len(errs))
	}

	var events []event.CalendarEvent
	for _, res := range results {
		parsed, err := ics.Parse(res.Source, res.Body, s.cfg.TimeZone)
		if err != nil {
			appLog.Error("feed refresh: parse failed", err, "id", res.Source.ID)
			continue
		}
		events = append(events, parsed...)
	}

	s.setEvents(events)
	appLog.Info("feed refresh complete", "sources", len(sources), "events", len(events))

	if len(errs) > 0 && len(results) == 0 {
		return errorsAggregate(errs)
	}
	return nil
}

func (s *Server) sources() []ics.Source {
	sources := make([]ics.Source, 0, len(s.cfg.Sources))
	for _, src := range s.cfg.Sources {
		if src.URL == "" {
			continue
		}
		id := src.ID
		if id == "" {
			id = src.Name
		}
		if id == "" {
			id = src.URL
		}
		calID := src.CalendarID
		if calID == "" {
			calID = id
		}
		sources = append(sources, ics.Source{ID: id, URL: src.URL, CalendarID: calID})
	}
	return sources
}

func (s *Server) setEvents(events []event.CalendarEvent) {
	s.eventsMu.Lock()
	s.events = events
	s.refreshed = time.Now()
	s.eventsMu.Unlock()
}

// loadEvents returns the current snapshot, refreshing first when it is
// stale or has never been filled.
func (s *Server) loadEvents(ctx context.Context) []event.CalendarEvent {
	s.eventsMu.RLock()
	events, refreshed := s.events, s.refreshed
	s.eventsMu.RUnlock()

	if !refreshed.IsZero() && time.Since(refreshed) < eventsTTL {
		return events
	}
	if err := s.Refresh(ctx); err != nil {
		appLog.Error("on-demand refresh failed", err)
	}

	s.eventsMu.RLock()
	events = s.events
	s.eventsMu.RUnlock()
	return events
}

// occurrenceDTO is the JSON view of one resolved occurrence.
type occurrenceDTO struct {
	ID               string `json:"id"`
	RecurringEventID string `json:"recurring_event_id,omitempty"`
	CalendarID       string `json:"calendar_id,omitempty"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Location         string `json:"location,omitempty"`
	AllDay           bool   `json:"all_day"`
	Start            string `json:"start"`
	End              string `json:"end"`
	SpanDays         int    `json:"span_days"`
}

// positionedDTO is an occurrence plus its timed-grid geometry.
type positionedDTO struct {
	occurrenceDTO
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	ZIndex int     `json:"z_index"`
}

type dayDTO struct {
	Date   string          `json:"date"`
	AllDay []occurrenceDTO `json:"all_day"`
	Timed  []positionedDTO `json:"timed"`
}

type overflowDTO struct {
	Count int                 `json:"count"`
	ByDay map[string][]string `json:"by_day,omitempty"`
}

type collectionResponse struct {
	Granularity string            `json:"granularity"`
	RangeStart  string            `json:"range_start"`
	RangeEnd    string            `json:"range_end"`
	TimeZone    string            `json:"timezone"`
	Locale      string            `json:"locale"`
	Use12Hour   bool              `json:"use_12_hour"`
	Days        []dayDTO          `json:"days"`
	Lanes       [][]occurrenceDTO `json:"lanes"`
	TotalLanes  int               `json:"total_lanes"`
	Overflow    overflowDTO       `json:"overflow"`
}

type eventsResponse struct {
	Occurrences []occurrenceDTO `json:"occurrences"`
	RangeStart  string          `json:"range_start"`
	RangeEnd    string          `json:"range_end"`
	TimeZone    string          `json:"timezone"`
}

// handleEvents returns the flat occurrence list for a rolling window.
//
// GET /api/events?days=7&backfill=1
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := parseIntDefault(q.Get("days"), s.cfg.HorizonDays)
	if days <= 0 {
		days = s.cfg.HorizonDays
	}
	backfill := parseIntDefault(q.Get("backfill"), 1)
	if backfill < 0 {
		backfill = 0
	}

	today, err := temporal.Now(s.cfg.TimeZone)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid configured timezone")
		return
	}

	visible := collection.VisibleRange{
		Start: today.ToPlainDate().AddDays(-backfill),
		End:   today.ToPlainDate().AddDays(days),
	}

	col, err := collection.Build(s.loadEvents(r.Context()), visible, collection.GranularityWeek, collection.Options{
		TimeZone:     s.cfg.TimeZone,
		WeekStartsOn: s.cfg.WeekStartsOn,
	})
	if err != nil {
		appLog.Error("api events: build failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build events")
		return
	}

	seen := make(map[string]struct{})
	occurrences := make([]occurrenceDTO, 0)
	appendItem := func(it collection.Item) {
		if _, dup := seen[it.Event.ID]; dup {
			return
		}
		seen[it.Event.ID] = struct{}{}
		occurrences = append(occurrences, toOccurrenceDTO(it))
	}
	for _, day := range col.Days {
		for _, it := range day.AllDay {
			appendItem(it)
		}
		for _, it := range day.Timed {
			appendItem(it)
		}
	}

	writeJSON(w, http.StatusOK, eventsResponse{
		Occurrences: occurrences,
		RangeStart:  visible.Start.String(),
		RangeEnd:    visible.End.String(),
		TimeZone:    s.cfg.TimeZone,
	})
}

// handleCollection returns a built view collection with lane packing for the
// all-day row and pixel geometry for the timed grid.
//
// GET /api/collection?granularity=week&date=2026-03-02
func (s *Server) handleCollection(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	granularity, err := parseGranularity(q.Get("granularity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	anchor, err := s.parseDateOrToday(q.Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	visible := collection.RangeFor(anchor, granularity, s.cfg.WeekStartsOn)
	col, err := collection.Build(s.loadEvents(r.Context()), visible, granularity, collection.Options{
		TimeZone:     s.cfg.TimeZone,
		WeekStartsOn: s.cfg.WeekStartsOn,
	})
	if err != nil {
		appLog.Error("api collection: build failed", err)
		writeError(w, http.StatusInternalServerError, "failed to build collection")
		return
	}

	packed := layout.PackLanes(col.AllDayEvents, layout.PackOptions{
		MinVisibleLanes: s.cfg.MinVisibleLanes,
	})
	positioned, err := layout.LayoutWeek(col, layout.DayOptions{
		StartHour:     s.cfg.DayStartHour,
		PixelsPerHour: s.cfg.PixelsPerHour,
	})
	if err != nil {
		appLog.Error("api collection: layout failed", err)
		writeError(w, http.StatusInternalServerError, "failed to lay out collection")
		return
	}

	resp := collectionResponse{
		Granularity: string(col.Granularity),
		RangeStart:  col.Range.Start.String(),
		RangeEnd:    col.Range.End.String(),
		TimeZone:    col.TimeZone,
		Locale:      s.cfg.Locale,
		Use12Hour:   s.cfg.Use12Hour,
		Days:        make([]dayDTO, len(col.Days)),
		Lanes:       make([][]occurrenceDTO, len(packed.VisibleLanes)),
		TotalLanes:  packed.TotalLanes,
	}

	for i, day := range col.Days {
		d := dayDTO{
			Date:   day.Day.String(),
			AllDay: make([]occurrenceDTO, 0, len(day.AllDay)),
			Timed:  make([]positionedDTO, 0, len(positioned[i])),
		}
		for _, it := range day.AllDay {
			d.AllDay = append(d.AllDay, toOccurrenceDTO(it))
		}
		for _, pe := range positioned[i] {
			d.Timed = append(d.Timed, positionedDTO{
				occurrenceDTO: toOccurrenceDTO(pe.Item),
				Top:           pe.Top,
				Height:        pe.Height,
				Left:          pe.Left,
				Width:         pe.Width,
				ZIndex:        pe.ZIndex,
			})
		}
		resp.Days[i] = d
	}

	for i, lane := range packed.VisibleLanes {
		resp.Lanes[i] = make([]occurrenceDTO, 0, len(lane))
		for _, it := range lane {
			resp.Lanes[i] = append(resp.Lanes[i], toOccurrenceDTO(it))
		}
	}

	resp.Overflow.Count = packed.OverflowCount
	if packed.HasOverflow {
		resp.Overflow.ByDay = make(map[string][]string, len(packed.OverflowByDay))
		for d, items := range packed.OverflowByDay {
			ids := make([]string, 0, len(items))
			for _, it := range items {
				ids = append(ids, it.Event.ID)
			}
			resp.Overflow.ByDay[d.String()] = ids
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

type suggestionDTO struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Rule  string `json:"rule"`
}

type suggestionGroupDTO struct {
	Label       string          `json:"label"`
	Suggestions []suggestionDTO `json:"suggestions"`
}

// handleSuggestions returns recurrence suggestions anchored at a date.
//
// GET /api/suggestions?date=2026-03-02
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	date, err := s.parseDateOrToday(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	anchor, err := temporal.StartOfDayIn(date, s.cfg.TimeZone)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "invalid configured timezone")
		return
	}

	groups := recurrence.Suggest(anchor)
	out := make([]suggestionGroupDTO, 0, len(groups))
	for _, g := range groups {
		dto := suggestionGroupDTO{
			Label:       g.Label,
			Suggestions: make([]suggestionDTO, 0, len(g.Items)),
		}
		for _, sg := range g.Items {
			dto.Suggestions = append(dto.Suggestions, suggestionDTO{
				ID:    sg.ID,
				Label: sg.Label,
				Rule:  sg.RuleString,
			})
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

func toOccurrenceDTO(it collection.Item) occurrenceDTO {
	return occurrenceDTO{
		ID:               it.Event.ID,
		RecurringEventID: it.Event.RecurringEventID,
		CalendarID:       it.Event.CalendarID,
		Title:            it.Event.Title,
		Description:      it.Event.Description,
		Location:         it.Event.Location,
		AllDay:           it.AllDay,
		Start:            it.Start.Time().Format(time.RFC3339),
		End:              it.End.Time().Format(time.RFC3339),
		SpanDays:         it.SpanDays(),
	}
}

func parseGranularity(s string) (collection.Granularity, error) {
	switch s {
	case "", "week":
		return collection.GranularityWeek, nil
	case "day":
		return collection.GranularityDay, nil
	case "month":
		return collection.GranularityMonth, nil
	default:
		return "", errors.New("granularity must be day, week or month")
	}
}

// parseDateOrToday parses a YYYY-MM-DD query value, defaulting to today in
// the configured zone.
func (s *Server) parseDateOrToday(v string) (temporal.PlainDate, error) {
	if v == "" {
		now, err := temporal.Now(s.cfg.TimeZone)
		if err != nil {
			return temporal.PlainDate{}, err
		}
		return now.ToPlainDate(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return temporal.PlainDate{}, errors.New("date must be YYYY-MM-DD")
	}
	return temporal.DateOf(t), nil
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

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
