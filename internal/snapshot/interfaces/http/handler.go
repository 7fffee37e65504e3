package http

import (
	"encoding/json"
	"net/http"
	"time"

	"verdant-cloud/internal/auth"
	"verdant-cloud/internal/observability/metrics"
	snapshot "verdant-cloud/internal/snapshot/application"
)

// Handler serves GET /api/v1/zones/{zone}/snapshot.
type Handler struct {
	builder *snapshot.Builder
	zones   auth.ZoneTenantChecker
}

// NewHandler constructs a snapshot handler.
func NewHandler(builder *snapshot.Builder, zones auth.ZoneTenantChecker) *Handler {
	return &Handler{builder: builder, zones: zones}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.builder == nil {
		http.Error(w, "snapshot not ready", http.StatusServiceUnavailable)
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

	start := time.Now()
	view, err := h.builder.Build(r.Context(), zoneID)
	if err != nil {
		metrics.ObserveSnapshotBuild(metrics.ResultError, time.Since(start))
		http.Error(w, "build snapshot error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveSnapshotBuild(metrics.ResultSuccess, time.Since(start))

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(view)
}
