// Package api exposes HTTP handlers for the fitness log.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/coocood/freecache"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"example.com/fitlog/internal/aggregate"
	"example.com/fitlog/internal/domain"
	"example.com/fitlog/internal/observability"
)

const (
	maxBodyBytes        = 64 * 1024
	dashboardCacheTTL   = 5 * 60 // seconds
	defaultCacheBytes   = 4 * 1024 * 1024
	dashboardDayLayout  = "2006-01-02"
	errTypeInvalid      = "invalid_request"
	errTypeValidation   = "validation_failed"
	errTypeServer       = "server_error"
	genericServerDetail = "something went wrong, please try again"
)

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the reference instant used by the dashboard.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// WithLocation sets the zone used when a request carries no tz parameter.
func WithLocation(loc *time.Location) Option {
	return func(h *Handler) {
		h.loc = loc
	}
}

// WithDashboardCacheSize sets the dashboard cache capacity in bytes. Zero
// disables caching.
func WithDashboardCacheSize(bytes int) Option {
	return func(h *Handler) {
		if bytes <= 0 {
			h.cache = nil
			return
		}
		h.cache = freecache.NewCache(bytes)
	}
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	cache   *freecache.Cache
	now     func() time.Time
	loc     *time.Location

	// generation is bumped on every create and keys the dashboard cache.
	generation atomic.Uint64
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		cache:   freecache.NewCache(defaultCacheBytes),
		now:     time.Now,
		loc:     time.Local,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the router. createMiddleware wraps only
// POST /api/entries.
func (h *Handler) RegisterRoutes(router *mux.Router, createMiddleware ...mux.MiddlewareFunc) {
	var create http.Handler = http.HandlerFunc(h.createEntry)
	for i := len(createMiddleware) - 1; i >= 0; i-- {
		create = createMiddleware[i](create)
	}

	router.HandleFunc("/healthz", healthz).Methods(http.MethodGet).Name("healthz")
	router.HandleFunc("/api/entries", h.listEntries).Methods(http.MethodGet).Name("list-entries")
	router.Handle("/api/entries", create).Methods(http.MethodPost).Name("create-entry")
	router.HandleFunc("/api/dashboard", h.dashboard).Methods(http.MethodGet).Name("dashboard")
	router.HandleFunc("/api/months", h.months).Methods(http.MethodGet).Name("months")
	router.PathPrefix("/api/").Methods(http.MethodOptions).HandlerFunc(preflight).Name("preflight")
}

// preflight gives router middleware (CORS) a matched route for OPTIONS
// requests. It never serves data.
func preflight(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) listEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListEntries(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	views, err := toEntryViews(entries)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) createEntry(w http.ResponseWriter, r *http.Request) {
	var req CreateEntryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errTypeInvalid, "unable to parse body")
		return
	}

	input, err := req.NewEntry()
	if err != nil {
		writeServiceError(w, err)
		return
	}

	entry, err := h.service.CreateEntry(r.Context(), input)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	h.invalidateDashboards()
	observability.RecordEntryCreated(string(entry.Kind()))

	view, err := ToEntryView(*entry)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.WithFields(log.Fields{"id": entry.ID, "type": entry.Kind()}).Debug("entry created")
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) {
	loc, err := h.location(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errTypeValidation, err.Error())
		return
	}

	now := h.now()
	month, err := aggregate.ParseMonth(r.URL.Query().Get("month"), now, loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, errTypeValidation, err.Error())
		return
	}

	cacheKey := []byte(fmt.Sprintf("dashboard::%d::%s::%s::%s",
		h.generation.Load(), month.Key(), loc.String(), now.In(loc).Format(dashboardDayLayout)))
	if h.cache != nil {
		if cached, err := h.cache.Get(cacheKey); err == nil {
			observability.RecordDashboardCache(true)
			writeRawJSON(w, http.StatusOK, cached)
			return
		}
		observability.RecordDashboardCache(false)
	}

	entries, err := h.service.ListEntries(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	view, err := toDashboardView(aggregate.BuildDashboard(entries, now, loc, month), loc)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	body, err := json.Marshal(view)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if h.cache != nil {
		if err := h.cache.Set(cacheKey, body, dashboardCacheTTL); err != nil {
			log.Errorf("failed to cache dashboard %s: %s", cacheKey, err)
		}
	}
	writeRawJSON(w, http.StatusOK, body)
}

func (h *Handler) months(w http.ResponseWriter, r *http.Request) {
	loc, err := h.location(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, errTypeValidation, err.Error())
		return
	}

	entries, err := h.service.ListEntries(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthOptionViews(aggregate.MonthRoster(entries, h.now(), loc)))
}

func (h *Handler) location(r *http.Request) (*time.Location, error) {
	tz := strings.TrimSpace(r.URL.Query().Get("tz"))
	if tz == "" {
		return h.loc, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("unknown time zone %q", tz)
	}
	return loc, nil
}

func (h *Handler) invalidateDashboards() {
	h.generation.Add(1)
	if h.cache != nil {
		h.cache.Clear()
	}
}

// writeServiceError maps domain errors to HTTP statuses. Storage details are
// logged, not returned.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, errTypeValidation, err.Error())
	default:
		log.Errorf("request failed: %s", err)
		writeError(w, http.StatusInternalServerError, errTypeServer, genericServerDetail)
	}
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"type":    errType,
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Errorf("failed to encode response: %s", err)
	}
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
