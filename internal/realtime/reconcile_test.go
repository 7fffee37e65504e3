package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	snapdomain "verdant-cloud/internal/snapshot/domain"
)

type stubFetcher struct {
	mu      sync.Mutex
	data    ResyncData
	err     error
	calls   int
	release chan struct{}
}

func (f *stubFetcher) Resync(_ context.Context) (ResyncData, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return ResyncData{}, f.err
	}
	return f.data, nil
}

func (f *stubFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type stubResyncApplier struct {
	mu      sync.Mutex
	applied []ResyncData
}

func (a *stubResyncApplier) ApplyResync(data ResyncData) {
	a.mu.Lock()
	a.applied = append(a.applied, data)
	a.mu.Unlock()
}

func (a *stubResyncApplier) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.applied)
}

func TestPerformAppliesAtomically(t *testing.T) {
	clock := newFakeClock()
	fetcher := &stubFetcher{data: ResyncData{
		Telemetry: map[string]snapdomain.TelemetryValue{"air_temp": {Channel: "air_temp", Value: 22}},
		Alerts:    []snapdomain.Alert{{AlertID: "alert-1"}},
	}}
	applier := &stubResyncApplier{}
	reconciler, err := NewReconciler(clock, fetcher, applier, testLogger())
	if err != nil {
		t.Fatal(err)
	}

	if err := reconciler.Perform(); err != nil {
		t.Fatalf("perform: %v", err)
	}
	if applier.count() != 1 {
		t.Fatalf("applied = %d", applier.count())
	}
	if len(applier.applied[0].Telemetry) != 1 || len(applier.applied[0].Alerts) != 1 {
		t.Fatal("bundle not applied intact")
	}
}

func TestPerformSingleFlight(t *testing.T) {
	clock := newFakeClock()
	fetcher := &stubFetcher{release: make(chan struct{})}
	applier := &stubResyncApplier{}
	reconciler, _ := NewReconciler(clock, fetcher, applier, testLogger())

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		done <- reconciler.Perform()
	}()
	<-started
	for fetcher.count() == 0 {
		time.Sleep(time.Millisecond)
	}

	if err := reconciler.Perform(); !errors.Is(err, ErrSyncInFlight) {
		t.Fatalf("concurrent perform: %v", err)
	}

	close(fetcher.release)
	if err := <-done; err != nil {
		t.Fatalf("first perform: %v", err)
	}
	if applier.count() != 1 {
		t.Fatalf("applied = %d", applier.count())
	}
}

func TestPerformThrottledWithinMinInterval(t *testing.T) {
	clock := newFakeClock()
	fetcher := &stubFetcher{}
	reconciler, _ := NewReconciler(clock, fetcher, &stubResyncApplier{}, testLogger())

	if err := reconciler.Perform(); err != nil {
		t.Fatal(err)
	}
	if err := reconciler.Perform(); !errors.Is(err, ErrThrottled) {
		t.Fatalf("expected throttle, got %v", err)
	}
	clock.Advance(5 * time.Second)
	if err := reconciler.Perform(); err != nil {
		t.Fatalf("post-interval perform: %v", err)
	}
	if fetcher.count() != 2 {
		t.Fatalf("fetches = %d", fetcher.count())
	}
}

func TestPerformFailureLeavesStateUntouched(t *testing.T) {
	clock := newFakeClock()
	fetcher := &stubFetcher{err: errors.New("resync endpoint down")}
	applier := &stubResyncApplier{}
	reconciler, _ := NewReconciler(clock, fetcher, applier, testLogger())

	if err := reconciler.Perform(); err == nil {
		t.Fatal("expected error")
	}
	if applier.count() != 0 {
		t.Fatal("failed fetch must not apply anything")
	}
	if reconciler.Syncing() {
		t.Fatal("isSyncing leaked")
	}
}
