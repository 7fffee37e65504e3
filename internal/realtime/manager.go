package realtime

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	connectingBudget      = 15 * time.Second
	settleDelay           = 500 * time.Millisecond
	unavailableCooldown   = 10 * time.Second
	unavailableExtraGrace = 2 * time.Second
)

// connectingChecks are the incremental session-id probes inside the budget.
var connectingChecks = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	3 * time.Second,
	5 * time.Second,
	7 * time.Second,
}

// ReconnectTrigger schedules a backoff-governed reconnection attempt.
type ReconnectTrigger interface {
	Schedule(reason string)
	Reset()
}

// ReconcileTrigger runs a post-reconnect full reconciliation.
type ReconcileTrigger interface {
	Perform() error
}

// SessionSource reports the transport's current session id, empty when none
// is assigned.
type SessionSource interface {
	SessionID() string
}

// LastError is the most recent recorded connection error.
type LastError struct {
	Message  string
	Code     int
	Critical bool
	At       time.Time
}

// ConnManager owns the transport lifecycle state machine. Transitions come
// only from transport-originated signals; every timer it creates is tracked
// in the TimerSet so entering connected, or tearing the manager down, cancels
// all outstanding follow-up actions.
type ConnManager struct {
	clock     Clock
	timers    *TimerSet
	reconnect ReconnectTrigger
	reconcile ReconcileTrigger
	session   SessionSource
	logger    *log.Logger

	mu              sync.Mutex
	state           ConnState
	connectingSince time.Time
	lastUnavailable time.Time
	lastErr         *LastError
}

// NewConnManager constructs a connection manager in the disconnected state.
func NewConnManager(clock Clock, timers *TimerSet, reconnect ReconnectTrigger, reconcile ReconcileTrigger, session SessionSource, logger *log.Logger) (*ConnManager, error) {
	if clock == nil || timers == nil || reconnect == nil || reconcile == nil || session == nil {
		return nil, errors.New("realtime: nil manager dependency")
	}
	return &ConnManager{
		clock:     clock,
		timers:    timers,
		reconnect: reconnect,
		reconcile: reconcile,
		session:   session,
		logger:    logger,
		state:     StateDisconnected,
	}, nil
}

// State reports the current connection state.
func (m *ConnManager) State() ConnState {
	if m == nil {
		return StateDisconnected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// LastError reports the most recently recorded connection error, nil when
// none has occurred.
func (m *ConnManager) LastError() *LastError {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// HandleConnecting enters the connecting state and starts the bounded
// session-id checks. If the budget elapses without a session id, the
// reconnect scheduler takes over.
func (m *ConnManager) HandleConnecting() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.state = StateConnecting
	m.connectingSince = m.clock.Now()
	m.mu.Unlock()

	for i, delay := range connectingChecks {
		name := fmt.Sprintf("connect-check-%d", i+1)
		m.timers.Set(name, m.clock.AfterFunc(delay, func() {
			m.timers.Done(name)
			m.connectCheck()
		}))
	}
	m.timers.Set("connect-budget", m.clock.AfterFunc(connectingBudget, func() {
		m.timers.Done("connect-budget")
		m.connectBudgetExpired()
	}))
}

func (m *ConnManager) connectCheck() {
	m.mu.Lock()
	if m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	assigned := m.session.SessionID() != ""
	m.mu.Unlock()
	if assigned {
		// Session is up; the transport's connected signal finishes the
		// transition. The remaining probes have nothing left to verify.
		m.cancelConnectingTimers()
	}
}

func (m *ConnManager) connectBudgetExpired() {
	m.mu.Lock()
	if m.state != StateConnecting || m.session.SessionID() != "" {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	if m.logger != nil {
		m.logger.Printf("connecting budget elapsed without session id")
	}
	m.reconnect.Schedule("connecting_timeout")
}

func (m *ConnManager) cancelConnectingTimers() {
	for i := range connectingChecks {
		m.timers.Cancel(fmt.Sprintf("connect-check-%d", i+1))
	}
	m.timers.Cancel("connect-budget")
}

// HandleConnected enters the connected state: backoff resets, all pending
// timers are canceled, and reconciliation runs after a short settle delay.
func (m *ConnManager) HandleConnected() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.state = StateConnected
	m.connectingSince = time.Time{}
	m.mu.Unlock()

	m.reconnect.Reset()
	m.timers.CancelAll()
	m.timers.Set("settle", m.clock.AfterFunc(settleDelay, func() {
		m.timers.Done("settle")
		m.mu.Lock()
		still := m.state == StateConnected
		m.mu.Unlock()
		if !still {
			return
		}
		if err := m.reconcile.Perform(); err != nil && m.logger != nil {
			m.logger.Printf("post-connect reconciliation: %v", err)
		}
	}))
}

// HandleDisconnected enters the disconnected state and schedules a reconnect,
// unless a connect is already mid-flight (its own budget chain owns recovery).
func (m *ConnManager) HandleDisconnected() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.state = StateDisconnected
	m.mu.Unlock()
	m.reconnect.Schedule("disconnected")
}

// HandleUnavailable applies the cooldown logic: inside the connecting grace
// period the decision is deferred until the budget plus a fixed extra grace
// has elapsed; outside it, a reconnect is scheduled at most once per cooldown
// interval.
func (m *ConnManager) HandleUnavailable() {
	if m == nil {
		return
	}
	now := m.clock.Now()
	m.mu.Lock()
	if m.state == StateConnecting && !m.connectingSince.IsZero() {
		elapsed := now.Sub(m.connectingSince)
		if elapsed < connectingBudget {
			wait := connectingBudget - elapsed + unavailableExtraGrace
			m.mu.Unlock()
			m.timers.Set("unavailable-grace", m.clock.AfterFunc(wait, func() {
				m.timers.Done("unavailable-grace")
				m.mu.Lock()
				if m.state == StateConnected {
					m.mu.Unlock()
					return
				}
				m.state = StateUnavailable
				m.lastUnavailable = m.clock.Now()
				m.mu.Unlock()
				m.reconnect.Schedule("unavailable")
			}))
			return
		}
	}

	m.state = StateUnavailable
	if m.lastUnavailable.IsZero() || now.Sub(m.lastUnavailable) >= unavailableCooldown {
		m.lastUnavailable = now
		m.mu.Unlock()
		m.reconnect.Schedule("unavailable")
		return
	}
	wait := unavailableCooldown - now.Sub(m.lastUnavailable)
	m.mu.Unlock()
	m.timers.Set("unavailable-cooldown", m.clock.AfterFunc(wait, func() {
		m.timers.Done("unavailable-cooldown")
		m.mu.Lock()
		if m.state != StateUnavailable {
			m.mu.Unlock()
			return
		}
		m.lastUnavailable = m.clock.Now()
		m.mu.Unlock()
		m.reconnect.Schedule("unavailable")
	}))
}

// HandleFailed enters the failed state and unconditionally schedules a
// reconnect.
func (m *ConnManager) HandleFailed() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.state = StateFailed
	m.mu.Unlock()
	m.reconnect.Schedule("failed")
}

// RecordError classifies and records the most recent connection error for
// observability. It never triggers recovery itself; the subsequent lifecycle
// signal does, which keeps one incident from producing duplicate reconnects.
func (m *ConnManager) RecordError(message string, code int) {
	if m == nil {
		return
	}
	critical := code == 401 || code == 403
	m.mu.Lock()
	m.lastErr = &LastError{
		Message:  message,
		Code:     code,
		Critical: critical,
		At:       m.clock.Now(),
	}
	m.mu.Unlock()
	if m.logger == nil {
		return
	}
	if critical {
		m.logger.Printf("CRITICAL connection error (code %d): %s", code, message)
		return
	}
	m.logger.Printf("connection error (code %d): %s", code, message)
}

// Close cancels every outstanding timer. Call when tearing down or rebinding
// the manager so no stale callback references a destroyed connection.
func (m *ConnManager) Close() {
	if m == nil {
		return
	}
	m.timers.CancelAll()
}
