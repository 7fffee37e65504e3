package realtime

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	want := []time.Duration{
		3000 * time.Millisecond,
		4500 * time.Millisecond,
		6750 * time.Millisecond,
		10125 * time.Millisecond,
		15187500 * time.Microsecond,
	}
	for i, expected := range want {
		if got := Backoff(i + 1); got != expected {
			t.Fatalf("attempt %d: got %s want %s", i+1, got, expected)
		}
	}
	if got := Backoff(20); got != 60*time.Second {
		t.Fatalf("cap: got %s", got)
	}
	if got := Backoff(0); got != 3*time.Second {
		t.Fatalf("attempt floor: got %s", got)
	}
}

func newTestScheduler(t *testing.T, target *fakeTransport) (*Scheduler, *fakeClock, *TimerSet) {
	t.Helper()
	clock := newFakeClock()
	timers := NewTimerSet()
	scheduler, err := NewScheduler(clock, timers, target, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return scheduler, clock, timers
}

func TestScheduleFiresConnectAfterDelay(t *testing.T) {
	target := &fakeTransport{hasHandle: true}
	scheduler, clock, _ := newTestScheduler(t, target)

	scheduler.Schedule("disconnected")
	if target.connectCount() != 0 {
		t.Fatal("connect must wait for the delay")
	}
	clock.Advance(3 * time.Second)
	if target.connectCount() != 1 {
		t.Fatalf("connects = %d", target.connectCount())
	}
}

func TestScheduleLockSuppressesSecondCall(t *testing.T) {
	target := &fakeTransport{hasHandle: true}
	scheduler, clock, _ := newTestScheduler(t, target)

	scheduler.Schedule("disconnected")
	scheduler.Schedule("unavailable")

	if scheduler.Attempts() != 1 {
		t.Fatalf("attempts = %d, want 1", scheduler.Attempts())
	}
	clock.Advance(3 * time.Second)
	if target.connectCount() != 1 {
		t.Fatalf("connects = %d, want exactly one pending action", target.connectCount())
	}
}

func TestScheduleSkipsActionWhenRecovered(t *testing.T) {
	target := &fakeTransport{hasHandle: true}
	scheduler, clock, _ := newTestScheduler(t, target)

	scheduler.Schedule("disconnected")
	target.setSession("sess-recovered")
	clock.Advance(3 * time.Second)

	if target.connectCount() != 0 {
		t.Fatal("recovered transport must cancel the reconnect action")
	}
}

func TestScheduleReinitializesWhenHandleMissing(t *testing.T) {
	target := &fakeTransport{hasHandle: false}
	scheduler, clock, _ := newTestScheduler(t, target)

	scheduler.Schedule("failed")
	clock.Advance(3 * time.Second)

	if target.reinits != 1 {
		t.Fatalf("reinits = %d", target.reinits)
	}
	if target.connectCount() != 0 {
		t.Fatal("bare connect must not be used without a handle")
	}
}

func TestResetClearsAttemptsAndLock(t *testing.T) {
	target := &fakeTransport{hasHandle: true}
	scheduler, clock, _ := newTestScheduler(t, target)

	scheduler.Schedule("disconnected")
	scheduler.Reset()

	if scheduler.Attempts() != 0 {
		t.Fatalf("attempts = %d", scheduler.Attempts())
	}
	if scheduler.Locked() {
		t.Fatal("lock must be cleared")
	}
	clock.Advance(time.Minute)
	if target.connectCount() != 0 {
		t.Fatal("reset must cancel the pending action")
	}
}

func TestBackoffGrowsAcrossAttempts(t *testing.T) {
	target := &fakeTransport{hasHandle: true}
	scheduler, clock, _ := newTestScheduler(t, target)

	scheduler.Schedule("disconnected")
	clock.Advance(3 * time.Second)
	if target.connectCount() != 1 {
		t.Fatalf("first attempt missing")
	}

	// Lock expired with the first delay; the second attempt waits 4.5s.
	scheduler.Schedule("disconnected")
	clock.Advance(4 * time.Second)
	if target.connectCount() != 1 {
		t.Fatal("second attempt fired before its backoff elapsed")
	}
	clock.Advance(500 * time.Millisecond)
	if target.connectCount() != 2 {
		t.Fatalf("connects = %d, want 2", target.connectCount())
	}
}
