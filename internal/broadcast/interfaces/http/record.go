package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"verdant-cloud/internal/auth"
	"verdant-cloud/internal/broadcast"
	ledger "verdant-cloud/internal/ledger/domain"
)

// RecordHandler serves POST /api/v1/zones/{zone}/events for producers.
// The route is wrapped in the producer HMAC middleware in main.
type RecordHandler struct {
	recorder *broadcast.Recorder
	zones    auth.ZoneTenantChecker
}

// NewRecordHandler constructs a producer record handler.
func NewRecordHandler(recorder *broadcast.Recorder, zones auth.ZoneTenantChecker) *RecordHandler {
	return &RecordHandler{recorder: recorder, zones: zones}
}

type recordRequest struct {
	Type       string          `json:"type"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload"`
}

type recordResponse struct {
	EventID  int64  `json:"event_id"`
	ServerTS int64  `json:"server_ts"`
	Message  string `json:"message"`
}

func (h *RecordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.recorder == nil {
		http.Error(w, "recorder not ready", http.StatusServiceUnavailable)
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

	var req recordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	event, err := h.recorder.Record(r.Context(), ledger.AppendInput{
		ZoneID:     zoneID,
		Type:       req.Type,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Payload:    req.Payload,
	})
	if err != nil {
		var storageErr *ledger.StorageError
		if errors.As(err, &storageErr) {
			http.Error(w, "record event error", http.StatusInternalServerError)
			return
		}
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(recordResponse{
		EventID:  event.EventID,
		ServerTS: event.ServerTS,
		Message:  event.Message,
	})
}
