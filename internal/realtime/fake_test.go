package realtime

import (
	"io"
	"log"
	"sync"
	"time"
)

// fakeClock drives timer callbacks deterministically.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	when    time.Time
	fn      func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &fakeTimer{clock: c, when: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, timer)
	return timer
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves the clock forward, firing due timers in time order. Callbacks
// run outside the lock so they may schedule new timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, timer := range c.timers {
			if timer.stopped || timer.fired || timer.when.After(target) {
				continue
			}
			if next == nil || timer.when.Before(next.when) {
				next = timer
			}
		}
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}
		if next.when.After(c.now) {
			c.now = next.when
		}
		next.fired = true
		fn := next.fn
		c.mu.Unlock()
		fn()
	}
}

// fakeTransport implements TransportControl and SessionSource.
type fakeTransport struct {
	mu        sync.Mutex
	sessionID string
	hasHandle bool
	connects  int
	reinits   int
}

func (t *fakeTransport) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

func (t *fakeTransport) setSession(id string) {
	t.mu.Lock()
	t.sessionID = id
	t.mu.Unlock()
}

func (t *fakeTransport) HasHandle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasHandle
}

func (t *fakeTransport) Connected() bool {
	return t.SessionID() != ""
}

func (t *fakeTransport) Connect() {
	t.mu.Lock()
	t.connects++
	t.mu.Unlock()
}

func (t *fakeTransport) Reinitialize() {
	t.mu.Lock()
	t.reinits++
	t.mu.Unlock()
}

func (t *fakeTransport) connectCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connects
}

// fakeReconnect records schedule calls.
type fakeReconnect struct {
	mu      sync.Mutex
	reasons []string
	resets  int
}

func (f *fakeReconnect) Schedule(reason string) {
	f.mu.Lock()
	f.reasons = append(f.reasons, reason)
	f.mu.Unlock()
}

func (f *fakeReconnect) Reset() {
	f.mu.Lock()
	f.resets++
	f.mu.Unlock()
}

func (f *fakeReconnect) scheduled() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.reasons...)
}

// fakeReconcile counts reconciliation runs.
type fakeReconcile struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeReconcile) Perform() error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return nil
}

func (f *fakeReconcile) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
