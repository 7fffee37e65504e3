package http

import (
	"encoding/json"
	"net/http"
	"time"

	"verdant-cloud/internal/auth"
	"verdant-cloud/internal/broadcast"
)

const keepaliveInterval = 15 * time.Second

// StreamHandler serves the SSE event stream for one zone,
// GET /api/v1/zones/{zone}/stream.
type StreamHandler struct {
	broker *broadcast.Broker
	zones  auth.ZoneTenantChecker
}

// NewStreamHandler constructs a zone stream handler.
func NewStreamHandler(broker *broadcast.Broker, zones auth.ZoneTenantChecker) *StreamHandler {
	return &StreamHandler{broker: broker, zones: zones}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
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

	sub := h.broker.Subscribe(zoneID)
	if sub == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(sub)

	serveStream(w, r, sub)
}

// GlobalStreamHandler serves the cross-zone alert stream,
// GET /api/v1/stream.
type GlobalStreamHandler struct {
	broker *broadcast.Broker
}

// NewGlobalStreamHandler constructs the global stream handler.
func NewGlobalStreamHandler(broker *broadcast.Broker) *GlobalStreamHandler {
	return &GlobalStreamHandler{broker: broker}
}

func (h *GlobalStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	sub := h.broker.SubscribeGlobal()
	if sub == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(sub)

	serveStream(w, r, sub)
}

func serveStream(w http.ResponseWriter, r *http.Request, sub *broadcast.Subscription) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ready, _ := json.Marshal(map[string]any{
		"session_id": sub.SessionID,
		"server_ts":  time.Now().UTC().UnixMilli(),
	})
	_, _ = w.Write([]byte("event: ready\ndata: "))
	_, _ = w.Write(ready)
	_, _ = w.Write([]byte("\n\n"))
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	notify := r.Context().Done()
	for {
		select {
		case payload, ok := <-sub.C:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: zone_event\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-keepalive.C:
			_, _ = w.Write([]byte(": keepalive\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
