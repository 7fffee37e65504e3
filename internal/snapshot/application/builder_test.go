package application

import (
	"context"
	"errors"
	"testing"
	"time"

	snapshot "verdant-cloud/internal/snapshot/domain"
)

// recordingReaders records the order of reads so the position-read-last
// guarantee is verifiable.
type recordingReaders struct {
	calls  []string
	headID int64
	err    error
}

func (r *recordingReaders) ZoneDevices(_ context.Context, _ string) ([]snapshot.DeviceState, error) {
	r.calls = append(r.calls, "devices")
	if r.err != nil {
		return nil, r.err
	}
	return []snapshot.DeviceState{{DeviceID: "dev-1", Online: true}}, nil
}

func (r *recordingReaders) ActiveAlerts(_ context.Context, _ string) ([]snapshot.Alert, error) {
	r.calls = append(r.calls, "alerts")
	return []snapshot.Alert{{AlertID: "alert-1", Status: "active"}}, nil
}

func (r *recordingReaders) LatestByChannel(_ context.Context, _ string) (map[string]snapshot.TelemetryValue, error) {
	r.calls = append(r.calls, "telemetry")
	return map[string]snapshot.TelemetryValue{
		"air_temp": {Channel: "air_temp", Value: 23.4, Unit: "C"},
	}, nil
}

func (r *recordingReaders) RecentCommands(_ context.Context, _ string, limit int) ([]snapshot.CommandView, error) {
	r.calls = append(r.calls, "commands")
	if limit <= 0 {
		return nil, errors.New("bad limit")
	}
	return []snapshot.CommandView{{CommandID: "cmd-1"}}, nil
}

func (r *recordingReaders) MaxEventID(_ context.Context, _ string) (int64, error) {
	r.calls = append(r.calls, "head")
	return r.headID, nil
}

type fixedClock struct{ at time.Time }

func (c fixedClock) Now() time.Time { return c.at }

func TestBuildReadsLedgerPositionLast(t *testing.T) {
	readers := &recordingReaders{headID: 120}
	builder, err := NewBuilder(readers, readers, readers, readers, readers, fixedClock{at: time.Unix(1700000000, 0)})
	if err != nil {
		t.Fatal(err)
	}

	snap, err := builder.Build(context.Background(), "zone-1")
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	if len(readers.calls) != 5 {
		t.Fatalf("calls = %v", readers.calls)
	}
	if readers.calls[len(readers.calls)-1] != "head" {
		t.Fatalf("max event id must be read last, order was %v", readers.calls)
	}
	if snap.LastEventID != 120 {
		t.Fatalf("last_event_id = %d", snap.LastEventID)
	}
	if snap.SnapshotID == "" {
		t.Fatal("snapshot id missing")
	}
	if snap.ZoneID != "zone-1" {
		t.Fatalf("zone = %q", snap.ZoneID)
	}
	if snap.ServerTS != time.Unix(1700000000, 0).UnixMilli() {
		t.Fatalf("server_ts = %d", snap.ServerTS)
	}
	if len(snap.Devices) != 1 || len(snap.ActiveAlerts) != 1 || len(snap.RecentCommands) != 1 {
		t.Fatal("aggregates missing")
	}
	if _, ok := snap.LatestTelemetry["air_temp"]; !ok {
		t.Fatal("telemetry channel missing")
	}
}

func TestBuildAbortsOnAggregateError(t *testing.T) {
	readers := &recordingReaders{err: errors.New("db down")}
	builder, _ := NewBuilder(readers, readers, readers, readers, readers, fixedClock{at: time.Now()})

	if _, err := builder.Build(context.Background(), "zone-1"); err == nil {
		t.Fatal("expected error")
	}
	for _, call := range readers.calls {
		if call == "head" {
			t.Fatal("ledger position must not be read after an aggregate failure")
		}
	}
}

func TestBuildRequiresZone(t *testing.T) {
	readers := &recordingReaders{}
	builder, _ := NewBuilder(readers, readers, readers, readers, readers, fixedClock{at: time.Now()})
	if _, err := builder.Build(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty zone")
	}
}
