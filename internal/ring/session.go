// Package ring delivers fired alarms.
//
// A Session runs from the wake-timer callback to the moment every resource it
// acquired has been released:
//
//	Starting -> Sounding -> Dismissing -> Terminated
//	Starting -> Terminated            (alarm already gone)
//
// Sounding ends on dismissal, on the delivery budget expiring, or on a forced
// stop. Teardown always runs, including after a panic.
package ring

import (
	"sync"
	"time"
)

type State string

const (
	StateStarting   State = "starting"
	StateSounding   State = "sounding"
	StateDismissing State = "dismissing"
	StateTerminated State = "terminated"
)

// Outcome records why a session ended.
type Outcome string

const (
	OutcomeDismissed Outcome = "dismissed"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeAborted   Outcome = "aborted"
	// OutcomeStale means the alarm was gone before the session started.
	OutcomeStale Outcome = "stale"
)

type Session struct {
	ID        string
	AlarmID   string
	StartedAt time.Time

	mu      sync.Mutex
	label   string
	state   State
	outcome Outcome

	stopOnce sync.Once
	stopc    chan struct{}
	done     chan struct{}
}

func newSession(id, alarmID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		AlarmID:   alarmID,
		StartedAt: now,
		state:     StateStarting,
		stopc:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	SessionID string
	AlarmID   string
	Label     string
	State     State
	StartedAt time.Time
}

func (s *Session) Info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		SessionID: s.ID,
		AlarmID:   s.AlarmID,
		Label:     s.label,
		State:     s.state,
		StartedAt: s.StartedAt,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Outcome is empty until the session has been asked to stop.
func (s *Session) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome
}

// Done is closed once the session reaches Terminated.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// stop asks the session to leave Sounding. The first reason wins; stop
// reports whether this call was it.
func (s *Session) stop(outcome Outcome) bool {
	won := false
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.outcome = outcome
		s.mu.Unlock()
		close(s.stopc)
		won = true
	})
	return won
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) setLabel(label string) {
	s.mu.Lock()
	s.label = label
	s.mu.Unlock()
}
