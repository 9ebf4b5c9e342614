// Package app builds the process context: every component of the daemon,
// constructed once and wired together explicitly. Host events enter through
// OnBoot, OnTimerFire and OnUserDismiss.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"helios/internal/config"
	"helios/internal/controller/handlers"
	"helios/internal/device"
	"helios/internal/lastfired"
	"helios/internal/ring"
	"helios/internal/scheduler"
	"helios/internal/store"
	"helios/internal/store/memstore"
	"helios/internal/store/sqlstore"
	"helios/internal/waketimer"
)

// foregroundGrace is how long a session may outlive its budget before the
// foreground tracker aborts it.
const foregroundGrace = 5 * time.Second

// wakeTimer is a scheduler.WakeTimer that reports how many slots are armed.
type wakeTimer interface {
	scheduler.WakeTimer
	Len() int
}

// App owns every component of the daemon.
type App struct {
	Store      store.AlarmStore
	LastFired  lastfired.Recorder
	Scheduler  *scheduler.Scheduler
	Ringer     *ring.Manager
	Foreground *device.Foreground

	timer      wakeTimer
	startTimer func(ctx context.Context) error
	stopTimer  func() error
	logger     *slog.Logger

	mu     sync.Mutex
	booted bool
	cancel context.CancelFunc
	closed bool
}

// New constructs the app from cfg. Nothing runs until OnBoot.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{logger: logger, cancel: func() {}}

	st, rec, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Store, a.LastFired = st, rec

	if err := a.buildTimer(cfg.WakeTimer); err != nil {
		st.Close()
		return nil, err
	}

	a.Scheduler = scheduler.New(st, a.timer, logger.With("component", "scheduler"))

	a.Foreground = device.NewForeground(foregroundGrace, func(sessionID string) {
		a.Ringer.Abort(sessionID)
	})

	var locker ring.WakeLocker = device.NoopLocker{}
	if cfg.Ring.WakeLock == "inhibit" {
		locker = device.NewInhibitLocker()
	}
	ports := ring.Ports{
		WakeLock:   locker,
		Audio:      device.NewCommandAudio(cfg.Ring.AudioCommand, logger.With("component", "audio")),
		Haptic:     device.NewPatternHaptic(device.LogActuator(logger)),
		Foreground: a.Foreground,
	}
	a.Ringer = ring.NewManager(a.Scheduler, rec, ports, ring.Config{
		WakeLockGrace: cfg.Ring.WakeLockGrace,
		Budget:        cfg.Ring.Budget,
	}, logger.With("component", "ring"))

	return a, nil
}

func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.AlarmStore, lastfired.Recorder, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("using in-memory alarm store, alarms will not survive a restart")
		return memstore.New(), &lastfired.Memory{}, nil
	}
	st, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, logger.With("component", "store"))
	if err != nil {
		return nil, nil, fmt.Errorf("open alarm store: %w", err)
	}
	return st, lastfired.NewFile(cfg.LastFired.Path), nil
}

func (a *App) buildTimer(kind string) error {
	onFire := func(payload string) { a.OnTimerFire(payload) }

	switch kind {
	case "timerfd":
		t, err := waketimer.NewTimerfd(onFire, a.logger.With("component", "waketimer"))
		if err != nil {
			return fmt.Errorf("create timerfd wake timer: %w", err)
		}
		a.timer = t
		a.startTimer = func(context.Context) error { return nil }
		a.stopTimer = t.Close
	case "heap", "":
		h := waketimer.NewHeap(onFire)
		a.timer = h
		a.startTimer = h.Run
		a.stopTimer = h.Interrupt
	default:
		return fmt.Errorf("unknown wake timer %q", kind)
	}
	return nil
}

// Backend exposes the components the control API delegates to.
func (a *App) Backend() handlers.Backend {
	return handlers.Backend{
		Scheduler: a.Scheduler,
		Store:     a.Store,
		Ringer:    a.Ringer,
		LastFired: a.LastFired,
	}
}

// Armed returns the number of armed wake-timer slots.
func (a *App) Armed() int {
	return a.timer.Len()
}

// OnBoot starts the wake timer and the ring manager, then re-arms persisted
// alarms. Create and cancel calls block until it has reconciled.
func (a *App) OnBoot(ctx context.Context) (scheduler.ReconcileResult, error) {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return scheduler.ReconcileResult{}, errors.New("app closed")
	}
	if !a.booted {
		runCtx, cancel := context.WithCancel(context.Background())
		if err := a.startTimer(runCtx); err != nil {
			cancel()
			a.mu.Unlock()
			return scheduler.ReconcileResult{}, fmt.Errorf("start wake timer: %w", err)
		}
		go a.Ringer.Run(runCtx)
		a.cancel = cancel
		a.booted = true
	}
	a.mu.Unlock()

	res, err := a.Scheduler.Reconcile(ctx)
	if err != nil {
		return res, fmt.Errorf("reconcile alarms: %w", err)
	}
	return res, nil
}

// OnTimerFire is the wake-timer callback. It never blocks.
func (a *App) OnTimerFire(payload string) {
	a.Ringer.OnTimerFire(payload)
}

// OnUserDismiss stops the ring of alarmID.
func (a *App) OnUserDismiss(alarmID string) error {
	return a.Ringer.Dismiss(alarmID)
}

// Close stops the wake timer, aborts ringing sessions and waits for their
// teardown within ctx, then closes the store.
func (a *App) Close(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	booted := a.booted
	a.mu.Unlock()

	var errs []error
	if err := a.stopTimer(); err != nil {
		errs = append(errs, fmt.Errorf("stop wake timer: %w", err))
	}
	if booted {
		a.cancel()
		select {
		case <-a.Ringer.Done():
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("ring sessions still running: %w", ctx.Err()))
		}
	}
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close alarm store: %w", err))
	}
	return errors.Join(errs...)
}
