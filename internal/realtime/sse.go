package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"

	ledger "verdant-cloud/internal/ledger/domain"
)

// LifecycleSink receives transport lifecycle signals. The connection manager
// implements it.
type LifecycleSink interface {
	HandleConnecting()
	HandleConnected()
	HandleDisconnected()
	HandleUnavailable()
	HandleFailed()
	RecordError(message string, code int)
}

// EventSink receives pushed event frames. The syncer implements it.
type EventSink interface {
	OnPush(event ledger.Event)
}

// SSETransport consumes the zone stream endpoint and translates the
// connection into lifecycle signals and event frames. The session id arrives
// in the server's initial ready frame.
type SSETransport struct {
	baseURL string
	token   string
	zoneID  string
	logger  *log.Logger

	mu        sync.Mutex
	client    *http.Client
	sink      LifecycleSink
	events    EventSink
	sessionID string
	cancel    context.CancelFunc
	closed    bool
}

// NewSSETransport constructs a transport for one zone stream.
func NewSSETransport(baseURL, token, zoneID string, logger *log.Logger) (*SSETransport, error) {
	if baseURL == "" {
		return nil, errors.New("realtime: empty base url")
	}
	if zoneID == "" {
		return nil, errors.New("realtime: empty zone id")
	}
	return &SSETransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		zoneID:  zoneID,
		logger:  logger,
		client:  &http.Client{},
	}, nil
}

// Bind attaches the lifecycle and event sinks. Must be called before Connect.
func (t *SSETransport) Bind(sink LifecycleSink, events EventSink) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.sink = sink
	t.events = events
	t.mu.Unlock()
}

// SessionID reports the session id from the current stream, empty when no
// stream is established.
func (t *SSETransport) SessionID() string {
	if t == nil {
		return ""
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// HasHandle reports whether the transport has a usable HTTP client.
func (t *SSETransport) HasHandle() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.client != nil
}

// Connected reports whether a stream with an assigned session id is up.
func (t *SSETransport) Connected() bool {
	return t.SessionID() != ""
}

// Connect starts one stream attempt on the existing handle. The attempt runs
// until the stream ends; lifecycle outcomes flow through the bound sink.
func (t *SSETransport) Connect() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.closed || t.client == nil || t.sink == nil {
		t.mu.Unlock()
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	sink := t.sink
	t.mu.Unlock()

	sink.HandleConnecting()
	go t.run(ctx)
}

// Reinitialize tears down the current handle and rebuilds it before
// connecting again.
func (t *SSETransport) Reinitialize() {
	if t == nil {
		return
	}
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.sessionID = ""
	t.client = &http.Client{}
	t.closed = false
	t.mu.Unlock()
	t.Connect()
}

// Close shuts the transport down permanently.
func (t *SSETransport) Close() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.closed = true
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	t.sessionID = ""
	t.mu.Unlock()
}

func (t *SSETransport) run(ctx context.Context) {
	t.mu.Lock()
	client := t.client
	sink := t.sink
	events := t.events
	t.mu.Unlock()

	streamURL := t.baseURL + "/api/v1/zones/" + url.PathEscape(t.zoneID) + "/stream"
	if t.token != "" {
		// EventSource-compatible auth: the server accepts the token as a
		// query parameter on stream paths.
		streamURL += "?token=" + url.QueryEscape(t.token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
	if err != nil {
		sink.RecordError(err.Error(), 0)
		sink.HandleFailed()
		return
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		sink.RecordError(err.Error(), 0)
		sink.HandleDisconnected()
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		sink.RecordError("stream rejected", resp.StatusCode)
		sink.HandleFailed()
		return
	case resp.StatusCode == http.StatusServiceUnavailable:
		sink.RecordError("stream unavailable", resp.StatusCode)
		sink.HandleUnavailable()
		return
	case resp.StatusCode != http.StatusOK:
		sink.RecordError("stream error", resp.StatusCode)
		sink.HandleDisconnected()
		return
	}

	t.readFrames(ctx, resp, sink, events)

	t.mu.Lock()
	t.sessionID = ""
	closed := t.closed
	t.mu.Unlock()
	if closed || ctx.Err() != nil {
		return
	}
	sink.HandleDisconnected()
}

func (t *SSETransport) readFrames(ctx context.Context, resp *http.Response, sink LifecycleSink, events EventSink) {
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			t.dispatch(eventName, data.String(), sink, events)
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// keepalive comment
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		if ctx.Err() != nil {
			return
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		sink.RecordError(err.Error(), 0)
	}
}

func (t *SSETransport) dispatch(eventName, data string, sink LifecycleSink, events EventSink) {
	switch eventName {
	case "ready":
		var ready struct {
			SessionID string `json:"session_id"`
		}
		if err := json.Unmarshal([]byte(data), &ready); err != nil || ready.SessionID == "" {
			sink.RecordError("malformed ready frame", 0)
			return
		}
		t.mu.Lock()
		t.sessionID = ready.SessionID
		t.mu.Unlock()
		sink.HandleConnected()
	case "zone_event":
		if events == nil {
			return
		}
		var event ledger.Event
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			if t.logger != nil {
				t.logger.Printf("malformed event frame: %v", err)
			}
			return
		}
		events.OnPush(event)
	}
}
