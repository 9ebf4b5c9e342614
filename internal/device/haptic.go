package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"helios/internal/ring"
)

// Actuator switches a vibration motor on or off.
type Actuator func(on bool)

// LogActuator records motor transitions at debug level. It stands in for a
// vibration motor on hosts without one.
func LogActuator(logger *slog.Logger) Actuator {
	return func(on bool) {
		logger.Debug("vibration motor", "on", on)
	}
}

// PatternHaptic plays a waveform of alternating off/on durations, starting
// with off, and repeats it until cancelled.
type PatternHaptic struct {
	actuator Actuator
}

func NewPatternHaptic(actuator Actuator) *PatternHaptic {
	return &PatternHaptic{actuator: actuator}
}

var _ ring.HapticPort = (*PatternHaptic)(nil)

func (h *PatternHaptic) Vibrate(ctx context.Context, pattern []time.Duration) (ring.Haptic, error) {
	var total time.Duration
	for _, d := range pattern {
		if d < 0 {
			return nil, errors.New("negative duration in vibration pattern")
		}
		total += d
	}
	if total == 0 {
		return nil, errors.New("vibration pattern is empty")
	}

	v := &vibration{stop: make(chan struct{}), done: make(chan struct{})}
	go v.play(ctx, h.actuator, pattern)
	return v, nil
}

type vibration struct {
	once sync.Once
	stop chan struct{}
	done chan struct{}
}

func (v *vibration) play(ctx context.Context, actuate Actuator, pattern []time.Duration) {
	defer close(v.done)
	defer actuate(false)

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for i := 0; ; i = (i + 1) % len(pattern) {
		// Even entries are off, odd entries are on.
		actuate(i%2 == 1)
		timer.Reset(pattern[i])
		select {
		case <-ctx.Done():
			return
		case <-v.stop:
			return
		case <-timer.C:
		}
	}
}

// Cancel stops the vibration and waits for the motor to be switched off.
func (v *vibration) Cancel() error {
	v.once.Do(func() { close(v.stop) })
	<-v.done
	return nil
}
