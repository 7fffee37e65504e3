package http

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"verdant-cloud/internal/auth"
	catchup "verdant-cloud/internal/catchup/application"
	"verdant-cloud/internal/observability/metrics"
)

// Handler serves GET /api/v1/zones/{zone}/events.
type Handler struct {
	service *catchup.Service
	zones   auth.ZoneTenantChecker
}

// NewHandler constructs a catch-up handler.
func NewHandler(service *catchup.Service, zones auth.ZoneTenantChecker) *Handler {
	return &Handler{service: service, zones: zones}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.service == nil {
		http.Error(w, "catch-up not ready", http.StatusServiceUnavailable)
		return
	}

	zoneID := r.PathValue("zone")
	if zoneID == "" {
		http.Error(w, "zone is required", http.StatusBadRequest)
		return
	}
	if !auth.EnsureZoneAccess(r.Context(), h.zones, zoneID, w) {
		return
	}

	afterID, err := parseInt64Query(r, "after_id", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := parseIntQuery(r, "limit", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if order := r.URL.Query().Get("order"); order != "" && order != "asc" {
		http.Error(w, "order must be asc", http.StatusBadRequest)
		return
	}

	opts := catchup.Options{
		CycleOnly: r.URL.Query().Get("cycle_only") == "true",
	}
	if types := r.URL.Query().Get("types"); types != "" {
		for _, eventType := range strings.Split(types, ",") {
			eventType = strings.TrimSpace(eventType)
			if eventType != "" {
				opts.Types = append(opts.Types, eventType)
			}
		}
	}

	start := time.Now()
	page, err := h.service.EventsAfter(r.Context(), zoneID, afterID, limit, opts)
	if err != nil {
		metrics.ObserveCatchup(metrics.ResultError, time.Since(start))
		http.Error(w, "query events error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveCatchup(metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(page)
}

func parseInt64Query(r *http.Request, key string, fallback int64) (int64, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed < 0 {
		return 0, &queryError{key: key}
	}
	return parsed, nil
}

func parseIntQuery(r *http.Request, key string, fallback int) (int, error) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return 0, &queryError{key: key}
	}
	return parsed, nil
}

type queryError struct {
	key string
}

func (e *queryError) Error() string {
	return e.key + " must be a non-negative integer"
}
