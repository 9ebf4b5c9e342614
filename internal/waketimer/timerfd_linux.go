//go:build linux

package waketimer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Timerfd arms one kernel timerfd per slot. On CLOCK_REALTIME_ALARM the
// kernel resumes a suspended machine when the timer expires; without
// CAP_WAKE_ALARM it falls back to CLOCK_REALTIME.
type Timerfd struct {
	onFire  FireFunc
	clockID int
	logger  *slog.Logger

	mu     sync.Mutex
	slots  map[string]*fdTimer
	closed bool
}

type fdTimer struct {
	f       *os.File
	payload string
}

func NewTimerfd(onFire FireFunc, logger *slog.Logger) (*Timerfd, error) {
	if logger == nil {
		logger = slog.Default()
	}
	clockID, err := probeClock()
	if err != nil {
		return nil, err
	}
	if clockID != unix.CLOCK_REALTIME_ALARM {
		logger.Warn("CLOCK_REALTIME_ALARM unavailable, alarms will not wake a suspended host")
	}
	return &Timerfd{
		onFire:  onFire,
		clockID: clockID,
		logger:  logger,
		slots:   make(map[string]*fdTimer),
	}, nil
}

func probeClock() (int, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_REALTIME_ALARM, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err == nil {
		unix.Close(fd)
		return unix.CLOCK_REALTIME_ALARM, nil
	}
	if !errors.Is(err, unix.EPERM) && !errors.Is(err, unix.EINVAL) {
		return 0, fmt.Errorf("timerfd_create: %w", err)
	}
	fd, err = unix.TimerfdCreate(unix.CLOCK_REALTIME, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return 0, fmt.Errorf("timerfd_create: %w", err)
	}
	unix.Close(fd)
	return unix.CLOCK_REALTIME, nil
}

// Arm creates a timerfd for slot, replacing the previous one.
func (t *Timerfd) Arm(ctx context.Context, slot string, at time.Time, payload string) error {
	fd, err := unix.TimerfdCreate(t.clockID, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return fmt.Errorf("timerfd_create: %w", err)
	}

	ns := at.UnixNano()
	if ns <= 0 {
		// Zero means disarm to the kernel.
		ns = 1
	}
	spec := unix.ItimerSpec{Value: unix.NsecToTimespec(ns)}
	if err := unix.TimerfdSettime(fd, unix.TFD_TIMER_ABSTIME, &spec, nil); err != nil {
		unix.Close(fd)
		return fmt.Errorf("timerfd_settime: %w", err)
	}

	// A non-blocking descriptor is registered with the runtime poller.
	timer := &fdTimer{f: os.NewFile(uintptr(fd), "timerfd:"+slot), payload: payload}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		timer.f.Close()
		return ErrClosed
	}
	if old, ok := t.slots[slot]; ok {
		old.f.Close()
	}
	t.slots[slot] = timer
	t.mu.Unlock()

	go t.wait(slot, timer)
	return nil
}

func (t *Timerfd) Disarm(ctx context.Context, slot string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.slots[slot]; ok {
		delete(t.slots, slot)
		return timer.f.Close()
	}
	return nil
}

func (t *Timerfd) wait(slot string, timer *fdTimer) {
	buf := make([]byte, 8)
	if _, err := timer.f.Read(buf); err != nil {
		if !errors.Is(err, os.ErrClosed) {
			t.logger.Error("timerfd read failed", "slot", slot, "error", err)
		}
		return
	}

	t.mu.Lock()
	current := t.slots[slot] == timer
	if current {
		delete(t.slots, slot)
	}
	t.mu.Unlock()
	timer.f.Close()

	// Replaced while expiring.
	if !current {
		return
	}
	t.onFire(timer.payload)
}

func (t *Timerfd) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Close disarms every slot.
func (t *Timerfd) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	var errs []error
	for slot, timer := range t.slots {
		errs = append(errs, timer.f.Close())
		delete(t.slots, slot)
	}
	return errors.Join(errs...)
}
