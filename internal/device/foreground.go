package device

import (
	"fmt"
	"sync"
	"time"

	"helios/internal/ring"
)

// Foreground tracks the execution budget of each ring session. A session
// still registered once its budget plus Grace has passed is reported through
// OnOverrun so it can be force-stopped.
type Foreground struct {
	Grace     time.Duration
	OnOverrun func(sessionID string)

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewForeground(grace time.Duration, onOverrun func(sessionID string)) *Foreground {
	return &Foreground{
		Grace:     grace,
		OnOverrun: onOverrun,
		timers:    make(map[string]*time.Timer),
	}
}

var _ ring.ForegroundPort = (*Foreground)(nil)

func (f *Foreground) Enter(sessionID string, budget time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.timers[sessionID]; ok {
		return fmt.Errorf("session %s already in foreground", sessionID)
	}
	f.timers[sessionID] = time.AfterFunc(budget+f.Grace, func() {
		f.mu.Lock()
		_, ok := f.timers[sessionID]
		f.mu.Unlock()
		if ok && f.OnOverrun != nil {
			f.OnOverrun(sessionID)
		}
	})
	return nil
}

// Exit ends the session's budget. Unknown sessions are ignored.
func (f *Foreground) Exit(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t, ok := f.timers[sessionID]; ok {
		t.Stop()
		delete(f.timers, sessionID)
	}
	return nil
}

// Active returns how many sessions are in the foreground.
func (f *Foreground) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.timers)
}
