package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"verdant-cloud/internal/broadcast"
	ledger "verdant-cloud/internal/ledger/domain"
)

type fakeAppender struct {
	nextID int64
}

func (f *fakeAppender) Append(_ context.Context, in ledger.AppendInput) (ledger.Event, error) {
	if err := in.Validate(); err != nil {
		return ledger.Event{}, err
	}
	f.nextID++
	return ledger.Event{
		EventID:  f.nextID,
		ZoneID:   in.ZoneID,
		Type:     in.Type,
		Message:  ledger.Summarize(in.Type, in.Payload),
		ServerTS: 1700000000000,
	}, nil
}

func newRecordServer(t *testing.T) (*httptest.Server, *broadcast.Broker) {
	t.Helper()
	broker := broadcast.NewBroker()
	recorder, err := broadcast.NewRecorder(&fakeAppender{}, broker, nil, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	mux := http.NewServeMux()
	mux.Handle("POST /api/v1/zones/{zone}/events", NewRecordHandler(recorder, allowAllZones{}))
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, broker
}

func TestRecordAppendsAndPushes(t *testing.T) {
	server, broker := newRecordServer(t)
	sub := broker.Subscribe("zone-1")
	defer broker.Unsubscribe(sub)

	body := bytes.NewBufferString(`{"type":"device_offline","entity_type":"device","entity_id":"dev-3","payload":{"device_name":"fan-3"}}`)
	resp, err := http.Post(server.URL+"/api/v1/zones/zone-1/events", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var result struct {
		EventID  int64  `json:"event_id"`
		ServerTS int64  `json:"server_ts"`
		Message  string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if result.EventID != 1 {
		t.Fatalf("event_id = %d", result.EventID)
	}
	if result.Message != "Device fan-3 went offline" {
		t.Fatalf("message = %q", result.Message)
	}

	select {
	case payload := <-sub.C:
		var event ledger.Event
		if err := json.Unmarshal(payload, &event); err != nil {
			t.Fatal(err)
		}
		if event.EventID != 1 {
			t.Fatalf("pushed event_id = %d", event.EventID)
		}
	default:
		t.Fatal("recorded event not pushed")
	}
}

func TestRecordRejectsUnknownType(t *testing.T) {
	server, _ := newRecordServer(t)

	body := bytes.NewBufferString(`{"type":"bad_type","entity_type":"device","entity_id":"dev-3"}`)
	resp, err := http.Post(server.URL+"/api/v1/zones/zone-1/events", "application/json", body)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestRecordRejectsMalformedJSON(t *testing.T) {
	server, _ := newRecordServer(t)

	resp, err := http.Post(server.URL+"/api/v1/zones/zone-1/events", "application/json", bytes.NewBufferString("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
