// Package scheduler binds stored alarms to wake-timer registrations.
//
// The store and the wake timer stay in one-to-one correspondence: every stored
// alarm whose trigger instant is in the future has exactly one armed slot, and
// every armed slot belongs to a stored alarm. Operations on the same alarm id
// are serialized; operations on different ids run concurrently.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"helios/internal/alarm"
	"helios/internal/observability"
	"helios/internal/store"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WakeTimer arms exact one-shot wake-ups. Arming a slot again replaces its
// registration; disarming an unknown slot is a no-op.
type WakeTimer interface {
	Arm(ctx context.Context, slot string, at time.Time, payload string) error
	Disarm(ctx context.Context, slot string) error
}

type Scheduler struct {
	// Now returns the current time. Tests replace it.
	Now func() time.Time

	store  store.AlarmStore
	timer  WakeTimer
	logger *slog.Logger

	locks     *keyMutex
	ready     chan struct{}
	readyOnce sync.Once

	tracer      trace.Tracer
	created     metric.Int64Counter
	cancelled   metric.Int64Counter
	missed      metric.Int64Counter
	armFailures metric.Int64Counter
}

func New(st store.AlarmStore, timer WakeTimer, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	meter := otel.Meter("helios/scheduler")
	return &Scheduler{
		Now:    time.Now,
		store:  st,
		timer:  timer,
		logger: logger,
		locks:  newKeyMutex(),
		ready:  make(chan struct{}),

		tracer:      otel.Tracer("helios/scheduler"),
		created:     observability.Counter(meter, "helios.alarms.created", "Alarms created"),
		cancelled:   observability.Counter(meter, "helios.alarms.cancelled", "Alarms cancelled"),
		missed:      observability.Counter(meter, "helios.alarms.missed", "Alarms dropped at reconcile because their trigger time had passed"),
		armFailures: observability.Counter(meter, "helios.timer.arm_failures", "Wake timer arm failures"),
	}
}

// Ready is closed once the first Reconcile succeeds.
func (s *Scheduler) Ready() <-chan struct{} {
	return s.ready
}

func (s *Scheduler) await(ctx context.Context) error {
	select {
	case <-s.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Create persists a new alarm for the next occurrence of hour:minute and arms
// its wake timer. When arming fails the record is removed again.
func (s *Scheduler) Create(ctx context.Context, hour, minute int, label string) (alarm.Alarm, error) {
	if err := alarm.ValidateTime(hour, minute); err != nil {
		return alarm.Alarm{}, err
	}
	if err := s.await(ctx); err != nil {
		return alarm.Alarm{}, err
	}

	a := alarm.Alarm{
		ID:                uuid.NewString(),
		Hour:              hour,
		Minute:            minute,
		Label:             label,
		TriggerTimeMillis: alarm.NextTrigger(s.Now(), hour, minute).UnixMilli(),
	}

	ctx, span := s.tracer.Start(ctx, "scheduler.create", trace.WithAttributes(
		attribute.String("alarm.id", a.ID),
		attribute.Int("alarm.hour", hour),
		attribute.Int("alarm.minute", minute),
	))
	defer span.End()

	unlock := s.locks.Lock(a.ID)
	defer unlock()

	// Once started, the write completes even if the caller goes away.
	wctx := context.WithoutCancel(ctx)

	if err := s.store.Insert(wctx, a); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return alarm.Alarm{}, err
	}

	if err := s.timer.Arm(wctx, alarm.SlotID(a.ID), a.TriggerAt(), a.ID); err != nil {
		s.armFailures.Add(wctx, 1)
		_, delErr := s.store.DeleteByID(wctx, a.ID)
		err = alarm.Wrap(alarm.ErrScheduling, errors.Join(err, delErr), "arm wake timer")
		span.RecordError(err)
		span.SetStatus(codes.Error, "arm failed")
		s.logger.Error("failed to arm alarm", "alarm_id", a.ID, "error", err)
		return alarm.Alarm{}, err
	}

	s.created.Add(wctx, 1)
	s.logger.Info("alarm scheduled", "alarm_id", a.ID, "trigger_at", a.TriggerAt(), "label", a.Label)
	return a, nil
}

// Cancel disarms the alarm's wake timer and removes it from the store.
// Cancelling an alarm that is already gone is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, a alarm.Alarm) error {
	if err := s.await(ctx); err != nil {
		return err
	}

	ctx, span := s.tracer.Start(ctx, "scheduler.cancel", trace.WithAttributes(
		attribute.String("alarm.id", a.ID),
	))
	defer span.End()

	unlock := s.locks.Lock(a.ID)
	defer unlock()

	if err := s.cancelLocked(context.WithoutCancel(ctx), a.ID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return err
	}
	return nil
}

// CancelByID cancels the stored alarm with the given id and returns it.
// It fails with a not_found error when no such alarm exists.
func (s *Scheduler) CancelByID(ctx context.Context, id string) (alarm.Alarm, error) {
	if err := s.await(ctx); err != nil {
		return alarm.Alarm{}, err
	}

	ctx, span := s.tracer.Start(ctx, "scheduler.cancel_by_id", trace.WithAttributes(
		attribute.String("alarm.id", id),
	))
	defer span.End()

	unlock := s.locks.Lock(id)
	defer unlock()

	wctx := context.WithoutCancel(ctx)
	a, err := s.store.GetByID(wctx, id)
	if err != nil {
		return alarm.Alarm{}, err
	}
	if err := s.cancelLocked(wctx, id); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel failed")
		return alarm.Alarm{}, err
	}
	return a, nil
}

// cancelLocked disarms before deleting so a fire racing the cancel still
// finds the record for its own idempotent consume.
func (s *Scheduler) cancelLocked(ctx context.Context, id string) error {
	if err := s.timer.Disarm(ctx, alarm.SlotID(id)); err != nil {
		return alarm.Wrap(alarm.ErrScheduling, err, "disarm wake timer")
	}
	n, err := s.store.DeleteByID(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		s.cancelled.Add(ctx, 1)
		s.logger.Info("alarm cancelled", "alarm_id", id)
	}
	return nil
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Rearmed int
	Missed  int
}

// Reconcile rebuilds wake-timer registrations from the store. Alarms whose
// trigger instant is at or before now are dropped without firing. The first
// successful pass opens the startup barrier for Create and Cancel.
func (s *Scheduler) Reconcile(ctx context.Context) (ReconcileResult, error) {
	ctx, span := s.tracer.Start(ctx, "scheduler.reconcile")
	defer span.End()

	var res ReconcileResult

	alarms, err := s.store.GetAll(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return res, err
	}

	now := s.Now()
	for _, a := range alarms {
		if err := s.reconcileOne(ctx, a, now, &res); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reconcile failed")
			return res, err
		}
	}

	span.SetAttributes(
		attribute.Int("alarms.rearmed", res.Rearmed),
		attribute.Int("alarms.missed", res.Missed),
	)
	s.logger.Info("alarms reconciled", "rearmed", res.Rearmed, "missed", res.Missed)

	s.readyOnce.Do(func() { close(s.ready) })
	return res, nil
}

func (s *Scheduler) reconcileOne(ctx context.Context, a alarm.Alarm, now time.Time, res *ReconcileResult) error {
	unlock := s.locks.Lock(a.ID)
	defer unlock()

	// Cancelled or fired since the snapshot was taken.
	a, err := s.store.GetByID(ctx, a.ID)
	if alarm.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}

	if a.TriggerAt().After(now) {
		if err := s.timer.Arm(ctx, alarm.SlotID(a.ID), a.TriggerAt(), a.ID); err != nil {
			s.armFailures.Add(ctx, 1)
			return alarm.Wrap(alarm.ErrScheduling, err, "re-arm alarm "+a.ID)
		}
		res.Rearmed++
		return nil
	}

	// Missed while the process was down: dropped, never fired late.
	if err := s.timer.Disarm(ctx, alarm.SlotID(a.ID)); err != nil {
		return alarm.Wrap(alarm.ErrScheduling, err, "disarm missed alarm "+a.ID)
	}
	if _, err := s.store.DeleteByID(ctx, a.ID); err != nil {
		return err
	}
	res.Missed++
	s.missed.Add(ctx, 1)
	s.logger.Warn("dropped missed alarm", "alarm_id", a.ID, "trigger_at", a.TriggerAt(), "label", a.Label)
	return nil
}

// Lookup returns the stored alarm, serialized with other work on the same id.
func (s *Scheduler) Lookup(ctx context.Context, id string) (alarm.Alarm, error) {
	unlock := s.locks.Lock(id)
	defer unlock()
	return s.store.GetByID(ctx, id)
}

// Consume removes a fired alarm. Consuming an absent alarm is not an error.
func (s *Scheduler) Consume(ctx context.Context, id string) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	_, err := s.store.DeleteByID(context.WithoutCancel(ctx), id)
	return err
}
