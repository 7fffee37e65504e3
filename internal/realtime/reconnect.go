package realtime

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"
)

const (
	backoffBase       = 3000 * time.Millisecond
	backoffMultiplier = 1.5
	backoffCap        = 60000 * time.Millisecond
)

// TransportControl is the scheduler's view of the transport.
type TransportControl interface {
	// HasHandle reports whether a transport handle exists at all.
	HasHandle() bool
	// Connected reports whether the transport recovered on its own.
	Connected() bool
	// Connect starts a reconnect attempt on the existing handle.
	Connect()
	// Reinitialize tears down and rebuilds the transport from scratch.
	Reinitialize()
}

// Backoff returns the reconnect delay for the given attempt number,
// min(base * multiplier^(attempt-1), cap).
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(backoffBase) * math.Pow(backoffMultiplier, float64(attempt-1))
	if delay > float64(backoffCap) {
		return backoffCap
	}
	return time.Duration(delay)
}

// Scheduler computes and enforces backoff-governed reconnection attempts.
// A lock window the length of the pending delay suppresses further schedule
// calls, so at most one reconnect action is in flight.
type Scheduler struct {
	clock  Clock
	timers *TimerSet
	target TransportControl
	logger *log.Logger

	mu        sync.Mutex
	attempts  int
	lockUntil time.Time
}

// NewScheduler constructs a reconnect scheduler.
func NewScheduler(clock Clock, timers *TimerSet, target TransportControl, logger *log.Logger) (*Scheduler, error) {
	if clock == nil || timers == nil || target == nil {
		return nil, errors.New("realtime: nil scheduler dependency")
	}
	return &Scheduler{clock: clock, timers: timers, target: target, logger: logger}, nil
}

// Schedule arms one reconnect attempt after the backoff delay. Calls inside
// the active lock window are suppressed.
func (s *Scheduler) Schedule(reason string) {
	if s == nil {
		return
	}
	now := s.clock.Now()
	s.mu.Lock()
	if !s.lockUntil.IsZero() && now.Before(s.lockUntil) {
		s.mu.Unlock()
		if s.logger != nil {
			s.logger.Printf("reconnect (%s) suppressed, lock active", reason)
		}
		return
	}
	s.attempts++
	delay := Backoff(s.attempts)
	s.lockUntil = now.Add(delay)
	attempt := s.attempts
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Printf("reconnect (%s) attempt %d in %s", reason, attempt, delay)
	}
	s.timers.Set("reconnect", s.clock.AfterFunc(delay, func() {
		s.timers.Done("reconnect")
		s.fire()
	}))
}

// fire re-checks transport state at the moment the delay elapses; a state
// recovered during the wait cancels the action.
func (s *Scheduler) fire() {
	if s.target.Connected() {
		return
	}
	if !s.target.HasHandle() {
		if s.logger != nil {
			s.logger.Printf("transport handle missing, reinitializing")
		}
		s.target.Reinitialize()
		return
	}
	s.target.Connect()
}

// Reset clears the attempt counter and lock. Called on connected.
func (s *Scheduler) Reset() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.attempts = 0
	s.lockUntil = time.Time{}
	s.mu.Unlock()
	s.timers.Cancel("reconnect")
}

// Attempts reports the current attempt counter.
func (s *Scheduler) Attempts() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Locked reports whether the suppression window is active.
func (s *Scheduler) Locked() bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.lockUntil.IsZero() && s.clock.Now().Before(s.lockUntil)
}
