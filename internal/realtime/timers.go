package realtime

import "sync"

// TimerSet tracks every scheduled callback by name so state changes can
// cancel them en masse. A timer scheduled under an existing name replaces
// (and stops) the previous one.
type TimerSet struct {
	mu     sync.Mutex
	timers map[string]Timer
}

// NewTimerSet constructs an empty timer set.
func NewTimerSet() *TimerSet {
	return &TimerSet{timers: make(map[string]Timer)}
}

// Set registers a timer under a name, stopping any previous timer with the
// same name.
func (s *TimerSet) Set(name string, t Timer) {
	if s == nil || t == nil {
		return
	}
	s.mu.Lock()
	if old, ok := s.timers[name]; ok {
		old.Stop()
	}
	s.timers[name] = t
	s.mu.Unlock()
}

// Cancel stops and removes one named timer.
func (s *TimerSet) Cancel(name string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	if t, ok := s.timers[name]; ok {
		t.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()
}

// Done removes a timer record without stopping it. Fired callbacks call this
// so the set does not accumulate spent timers.
func (s *TimerSet) Done(name string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.timers, name)
	s.mu.Unlock()
}

// CancelAll stops and removes every outstanding timer.
func (s *TimerSet) CancelAll() {
	if s == nil {
		return
	}
	s.mu.Lock()
	for name, t := range s.timers {
		t.Stop()
		delete(s.timers, name)
	}
	s.mu.Unlock()
}

// Len reports the number of outstanding timers.
func (s *TimerSet) Len() int {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
