package http

import (
	"encoding/json"
	"net/http"
	"time"

	"verdant-cloud/internal/auth"
	ledger "verdant-cloud/internal/ledger/domain"
	"verdant-cloud/internal/observability/metrics"
	snapshot "verdant-cloud/internal/snapshot/application"
	snapdomain "verdant-cloud/internal/snapshot/domain"
)

const recentCommandLimit = 20

// Payload is the reconciliation state bundle for one zone.
type Payload struct {
	Telemetry map[string]snapdomain.TelemetryValue `json:"telemetry"`
	Commands  []snapdomain.CommandView             `json:"commands"`
	Alerts    []snapdomain.Alert                   `json:"alerts"`
}

type response struct {
	Status    string  `json:"status"`
	Data      Payload `json:"data"`
	Timestamp int64   `json:"timestamp"`
}

// Handler serves GET /api/v1/zones/{zone}/resync.
type Handler struct {
	telemetry snapshot.TelemetryReader
	commands  snapshot.CommandReader
	alerts    snapshot.AlertReader
	clock     snapshot.Clock
	zones     auth.ZoneTenantChecker
}

// NewHandler constructs a resync handler over the snapshot aggregate readers.
func NewHandler(telemetry snapshot.TelemetryReader, commands snapshot.CommandReader, alerts snapshot.AlertReader, clock snapshot.Clock, zones auth.ZoneTenantChecker) *Handler {
	return &Handler{telemetry: telemetry, commands: commands, alerts: alerts, clock: clock, zones: zones}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.telemetry == nil || h.commands == nil || h.alerts == nil || h.clock == nil {
		http.Error(w, "resync not ready", http.StatusServiceUnavailable)
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
	telemetry, err := h.telemetry.LatestByChannel(r.Context(), zoneID)
	if err != nil {
		metrics.ObserveResync(metrics.ResultError, time.Since(start))
		http.Error(w, "read telemetry error", http.StatusInternalServerError)
		return
	}
	commands, err := h.commands.RecentCommands(r.Context(), zoneID, recentCommandLimit)
	if err != nil {
		metrics.ObserveResync(metrics.ResultError, time.Since(start))
		http.Error(w, "read commands error", http.StatusInternalServerError)
		return
	}
	alerts, err := h.alerts.ActiveAlerts(r.Context(), zoneID)
	if err != nil {
		metrics.ObserveResync(metrics.ResultError, time.Since(start))
		http.Error(w, "read alerts error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveResync(metrics.ResultSuccess, time.Since(start))

	if telemetry == nil {
		telemetry = map[string]snapdomain.TelemetryValue{}
	}
	if commands == nil {
		commands = []snapdomain.CommandView{}
	}
	if alerts == nil {
		alerts = []snapdomain.Alert{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_ = json.NewEncoder(w).Encode(response{
		Status: "ok",
		Data: Payload{
			Telemetry: telemetry,
			Commands:  commands,
			Alerts:    alerts,
		},
		Timestamp: ledger.EpochMillis(h.clock.Now()),
	})
}
