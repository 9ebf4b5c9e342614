package ring

import (
	"context"
	"time"

	"helios/internal/alarm"
)

// Alarms is the slice of the scheduler a session needs: look the fired alarm
// up, then consume it.
type Alarms interface {
	Lookup(ctx context.Context, id string) (alarm.Alarm, error)
	Consume(ctx context.Context, id string) error
}

// Recorder stores the last fired alarm.
type Recorder interface {
	Save(ctx context.Context, rec alarm.LastFired) error
}

// WakeLock is a held, time-bounded wake lock.
type WakeLock interface {
	Release(ctx context.Context) error
}

// WakeLocker acquires wake locks that expire on their own after timeout.
type WakeLocker interface {
	Acquire(ctx context.Context, timeout time.Duration) (WakeLock, error)
}

// Audio is a playing alarm sound.
type Audio interface {
	Stop() error
	Release() error
}

// AudioPort starts the looping alarm sound.
type AudioPort interface {
	Start(ctx context.Context) (Audio, error)
}

// Haptic is a running vibration.
type Haptic interface {
	Cancel() error
}

// HapticPort plays a waveform of alternating off/on durations, repeating it
// until cancelled.
type HapticPort interface {
	Vibrate(ctx context.Context, pattern []time.Duration) (Haptic, error)
}

// ForegroundPort grants a session a bounded execution budget.
type ForegroundPort interface {
	Enter(sessionID string, budget time.Duration) error
	Exit(sessionID string) error
}

// Ports bundles the platform collaborators of a session.
type Ports struct {
	WakeLock   WakeLocker
	Audio      AudioPort
	Haptic     HapticPort
	Foreground ForegroundPort
}
