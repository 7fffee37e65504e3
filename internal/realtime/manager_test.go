package realtime

import (
	"testing"
	"time"
)

func newTestManager(t *testing.T) (*ConnManager, *fakeClock, *fakeReconnect, *fakeReconcile, *fakeTransport) {
	t.Helper()
	clock := newFakeClock()
	timers := NewTimerSet()
	reconnect := &fakeReconnect{}
	reconcile := &fakeReconcile{}
	transport := &fakeTransport{hasHandle: true}
	manager, err := NewConnManager(clock, timers, reconnect, reconcile, transport, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return manager, clock, reconnect, reconcile, transport
}

func TestConnectingBudgetTriggersReconnect(t *testing.T) {
	manager, clock, reconnect, _, _ := newTestManager(t)

	manager.HandleConnecting()
	clock.Advance(14 * time.Second)
	if len(reconnect.scheduled()) != 0 {
		t.Fatal("reconnect must wait for the full budget")
	}
	clock.Advance(time.Second)
	reasons := reconnect.scheduled()
	if len(reasons) != 1 || reasons[0] != "connecting_timeout" {
		t.Fatalf("scheduled = %v", reasons)
	}
}

func TestConnectingStopsWhenSessionAssigned(t *testing.T) {
	manager, clock, reconnect, _, transport := newTestManager(t)

	manager.HandleConnecting()
	clock.Advance(1 * time.Second)
	transport.setSession("sess-1")
	clock.Advance(1 * time.Second)

	// Session arrived inside the budget; nothing further may fire.
	clock.Advance(20 * time.Second)
	if len(reconnect.scheduled()) != 0 {
		t.Fatalf("scheduled = %v", reconnect.scheduled())
	}
}

func TestConnectedResetsBackoffAndReconciles(t *testing.T) {
	manager, clock, reconnect, reconcile, _ := newTestManager(t)

	manager.HandleConnected()
	if manager.State() != StateConnected {
		t.Fatalf("state = %s", manager.State())
	}
	if reconnect.resets != 1 {
		t.Fatalf("resets = %d", reconnect.resets)
	}
	if reconcile.count() != 0 {
		t.Fatal("reconciliation must wait for the settle delay")
	}
	clock.Advance(500 * time.Millisecond)
	if reconcile.count() != 1 {
		t.Fatalf("reconcile calls = %d", reconcile.count())
	}
}

func TestConnectedCancelsPendingConnectingChecks(t *testing.T) {
	manager, clock, reconnect, _, _ := newTestManager(t)

	manager.HandleConnecting()
	clock.Advance(2 * time.Second)
	manager.HandleConnected()
	clock.Advance(30 * time.Second)

	if len(reconnect.scheduled()) != 0 {
		t.Fatalf("stale connecting timers fired: %v", reconnect.scheduled())
	}
}

func TestDisconnectedSchedulesReconnect(t *testing.T) {
	manager, _, reconnect, _, _ := newTestManager(t)

	manager.HandleDisconnected()
	reasons := reconnect.scheduled()
	if len(reasons) != 1 || reasons[0] != "disconnected" {
		t.Fatalf("scheduled = %v", reasons)
	}
	if manager.State() != StateDisconnected {
		t.Fatalf("state = %s", manager.State())
	}
}

func TestDisconnectedIgnoredMidConnect(t *testing.T) {
	manager, _, reconnect, _, _ := newTestManager(t)

	manager.HandleConnecting()
	manager.HandleDisconnected()
	if len(reconnect.scheduled()) != 0 {
		t.Fatal("mid-connect disconnect must not double-trigger")
	}
	if manager.State() != StateConnecting {
		t.Fatalf("state = %s", manager.State())
	}
}

func TestUnavailableDuringConnectingGraceDefers(t *testing.T) {
	manager, clock, reconnect, _, _ := newTestManager(t)

	manager.HandleConnecting()
	clock.Advance(5 * time.Second)
	manager.HandleUnavailable()

	if len(reconnect.scheduled()) != 0 {
		t.Fatal("unavailable inside the grace period must not reconnect immediately")
	}

	// Remaining budget (10s) plus extra grace (2s). The budget timer itself
	// fires first; its connecting_timeout is the earlier trigger here.
	clock.Advance(12 * time.Second)
	reasons := reconnect.scheduled()
	if len(reasons) == 0 {
		t.Fatal("deferred unavailable never resolved")
	}
}

func TestUnavailableGraceCanceledByConnected(t *testing.T) {
	manager, clock, reconnect, _, transport := newTestManager(t)

	manager.HandleConnecting()
	clock.Advance(5 * time.Second)
	manager.HandleUnavailable()

	transport.setSession("sess-1")
	manager.HandleConnected()
	clock.Advance(30 * time.Second)

	if len(reconnect.scheduled()) != 0 {
		t.Fatalf("recovered connection must cancel the deferred check: %v", reconnect.scheduled())
	}
}

func TestUnavailableCooldown(t *testing.T) {
	manager, clock, reconnect, _, _ := newTestManager(t)

	manager.HandleUnavailable()
	if len(reconnect.scheduled()) != 1 {
		t.Fatalf("first unavailable should schedule immediately: %v", reconnect.scheduled())
	}

	clock.Advance(3 * time.Second)
	manager.HandleUnavailable()
	if len(reconnect.scheduled()) != 1 {
		t.Fatal("second unavailable inside the cooldown must defer")
	}

	clock.Advance(7 * time.Second)
	if len(reconnect.scheduled()) != 2 {
		t.Fatalf("cooldown expiry should re-evaluate: %v", reconnect.scheduled())
	}
}

func TestFailedAlwaysSchedules(t *testing.T) {
	manager, _, reconnect, _, _ := newTestManager(t)

	manager.HandleFailed()
	reasons := reconnect.scheduled()
	if len(reasons) != 1 || reasons[0] != "failed" {
		t.Fatalf("scheduled = %v", reasons)
	}
}

func TestRecordErrorClassifiesWithoutActing(t *testing.T) {
	manager, _, reconnect, _, _ := newTestManager(t)

	manager.RecordError("token expired", 401)
	lastErr := manager.LastError()
	if lastErr == nil || !lastErr.Critical {
		t.Fatalf("401 must be critical: %+v", lastErr)
	}

	manager.RecordError("connection reset", 0)
	lastErr = manager.LastError()
	if lastErr == nil || lastErr.Critical {
		t.Fatalf("network blip must be transient: %+v", lastErr)
	}

	if len(reconnect.scheduled()) != 0 {
		t.Fatal("errors alone must never trigger reconnection")
	}
}
