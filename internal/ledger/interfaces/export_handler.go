package interfaces

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"verdant-cloud/internal/audit"
	"verdant-cloud/internal/auth"
	ledger "verdant-cloud/internal/ledger/domain"
	ledgerpg "verdant-cloud/internal/ledger/infrastructure/postgres"
	"verdant-cloud/internal/observability/metrics"
)

const (
	defaultExportLimit = 1000
	maxExportLimit     = 5000
)

// ExportQuerier reads ordered events for export.
type ExportQuerier interface {
	Query(ctx context.Context, filter ledgerpg.QueryFilter) ([]ledger.Event, error)
}

// ExportHandler serves GET /api/v1/zones/{zone}/events/export.{csv,xlsx,pdf}.
type ExportHandler struct {
	store  ExportQuerier
	zones  auth.ZoneTenantChecker
	audits audit.Logger
	logger *log.Logger
}

// NewExportHandler constructs an event history export handler.
func NewExportHandler(store ExportQuerier, zones auth.ZoneTenantChecker, audits audit.Logger, logger *log.Logger) *ExportHandler {
	return &ExportHandler{store: store, zones: zones, audits: audits, logger: logger}
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.store == nil {
		http.Error(w, "export not ready", http.StatusServiceUnavailable)
		return
	}

	zoneID := r.PathValue("zone")
	if zoneID == "" {
		http.Error(w, "zone is required", http.StatusBadRequest)
		return
	}

	format := exportFormat(r.URL.Path)
	if format == "" {
		http.Error(w, "unsupported export format", http.StatusBadRequest)
		return
	}
	if !auth.EnsureZoneAccess(r.Context(), h.zones, zoneID, w) {
		return
	}

	afterID := int64(0)
	if raw := r.URL.Query().Get("after_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "after_id must be a non-negative integer", http.StatusBadRequest)
			return
		}
		afterID = parsed
	}
	limit := defaultExportLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}
	if limit > maxExportLimit {
		limit = maxExportLimit
	}

	start := time.Now()
	events, err := h.store.Query(r.Context(), ledgerpg.QueryFilter{
		ZoneID:    zoneID,
		AfterID:   afterID,
		Limit:     limit,
		CycleOnly: r.URL.Query().Get("cycle_only") == "true",
	})
	if err != nil {
		metrics.ObserveEventExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, "query events error", http.StatusInternalServerError)
		return
	}

	var body []byte
	var contentType string
	switch format {
	case "csv":
		body, err = BuildEventsCSV(events)
		contentType = "text/csv"
	case "xlsx":
		body, err = BuildEventsXLSX(zoneID, events)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "pdf":
		body, err = BuildEventsPDF(zoneID, events)
		contentType = "application/pdf"
	}
	if err != nil {
		metrics.ObserveEventExport(format, metrics.ResultError, time.Since(start))
		http.Error(w, "render export error", http.StatusInternalServerError)
		return
	}
	metrics.ObserveEventExport(format, metrics.ResultSuccess, time.Since(start))

	h.logExport(r, zoneID, format, len(events))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="zone-events-`+zoneID+`.`+format+`"`)
	_, _ = w.Write(body)
}

func (h *ExportHandler) logExport(r *http.Request, zoneID, format string, count int) {
	if h.audits == nil {
		return
	}
	metadata, _ := json.Marshal(map[string]any{"format": format, "events": count})
	entry := audit.Entry{
		TenantID:     auth.TenantIDFromContext(r.Context()),
		Actor:        auth.SubjectFromContext(r.Context()),
		Role:         string(auth.RoleFromContext(r.Context())),
		Action:       "events.export",
		ResourceType: "zone",
		ResourceID:   zoneID,
		ZoneID:       zoneID,
		Metadata:     metadata,
		IP:           r.RemoteAddr,
		UserAgent:    r.UserAgent(),
	}
	if err := h.audits.Log(r.Context(), entry); err != nil && h.logger != nil {
		h.logger.Printf("audit export failed: %v", err)
	}
}

func exportFormat(path string) string {
	idx := strings.LastIndex(path, "/export.")
	if idx < 0 {
		return ""
	}
	switch path[idx+len("/export."):] {
	case "csv":
		return "csv"
	case "xlsx":
		return "xlsx"
	case "pdf":
		return "pdf"
	default:
		return ""
	}
}
