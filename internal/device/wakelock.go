// Package device adapts the host platform to the ring ports: wake locks,
// alarm sound, vibration and the foreground execution budget.
package device

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"syscall"
	"time"

	"helios/internal/alarm"
	"helios/internal/ring"
)

// InhibitLocker blocks system sleep by holding a systemd-inhibit child
// process. The child runs `sleep <timeout>`, so the lock lapses on its own
// even if it is never released.
type InhibitLocker struct {
	execCmd func(ctx context.Context, name string, args ...string) *exec.Cmd
}

func NewInhibitLocker() *InhibitLocker {
	return &InhibitLocker{execCmd: exec.CommandContext}
}

var _ ring.WakeLocker = (*InhibitLocker)(nil)

func (l *InhibitLocker) Acquire(ctx context.Context, timeout time.Duration) (ring.WakeLock, error) {
	secs := int(timeout.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	cmd := l.execCmd(ctx, "systemd-inhibit",
		"--what=sleep:idle",
		"--mode=block",
		"--who=helios",
		"--why=alarm ringing",
		"sleep", strconv.Itoa(secs),
	)
	if err := cmd.Start(); err != nil {
		var ex *exec.Error
		if errors.As(err, &ex) || errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
			return nil, alarm.Wrap(alarm.ErrResource, err, "systemd-inhibit is unavailable")
		}
		return nil, alarm.Wrap(alarm.ErrResource, err, "failed to start systemd-inhibit")
	}

	h := &processHandle{cmd: cmd, done: make(chan struct{})}
	go h.wait()
	return h, nil
}

// processHandle owns a child process that holds a resource while it runs.
type processHandle struct {
	cmd *exec.Cmd

	mu       sync.Mutex
	done     chan struct{}
	err      error
	released bool
	once     sync.Once
}

func (h *processHandle) wait() {
	err := h.cmd.Wait()

	h.mu.Lock()
	if h.released {
		err = nil
	}
	h.err = err
	h.mu.Unlock()

	close(h.done)
}

func (h *processHandle) Done() <-chan struct{} {
	return h.done
}

func (h *processHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Release sends SIGTERM and waits for the child, escalating to SIGKILL when
// ctx ends first. Releasing twice is safe.
func (h *processHandle) Release(ctx context.Context) error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}

	h.once.Do(func() {
		h.mu.Lock()
		h.released = true
		h.mu.Unlock()
		_ = h.cmd.Process.Signal(syscall.SIGTERM)
	})

	select {
	case <-ctx.Done():
		_ = h.cmd.Process.Kill()
		select {
		case <-h.done:
		case <-time.After(200 * time.Millisecond):
		}
		return fmt.Errorf("release timed out waiting for %s exit: %w", h.cmd.Path, ctx.Err())
	case <-h.done:
		return nil
	}
}

// NoopLocker hands out wake locks that hold nothing. It backs hosts that
// never sleep.
type NoopLocker struct{}

func (NoopLocker) Acquire(ctx context.Context, timeout time.Duration) (ring.WakeLock, error) {
	return noopLock{}, nil
}

type noopLock struct{}

func (noopLock) Release(ctx context.Context) error { return nil }
