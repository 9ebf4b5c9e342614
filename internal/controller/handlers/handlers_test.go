package handlers

import (
	"context"
	"time"

	"helios/internal/alarm"
	"helios/internal/ring"
)

// Mock Backend
type mockBackend struct {
	// Scheduler Hooks
	createResp    alarm.Alarm
	createErr     error
	cancelErr     error
	notReconciled bool

	// Store Hooks
	alarms  []alarm.Alarm
	listErr error
	pingErr error
	updates chan []alarm.Alarm

	// Ring Hooks
	dismissErr error
	live       []ring.SessionInfo

	// Last Fired Hooks
	last    alarm.LastFired
	lastErr error

	// Spies (to verify arguments passed by handlers)
	capturedHour      int
	capturedMinute    int
	capturedLabel     string
	capturedCancelID  string
	capturedDismissID string
	dismissAllCalls   int
}

func (m *mockBackend) backend() Backend {
	return Backend{Scheduler: m, Store: m, Ringer: m, LastFired: m}
}

func (m *mockBackend) Create(ctx context.Context, hour, minute int, label string) (alarm.Alarm, error) {
	m.capturedHour, m.capturedMinute, m.capturedLabel = hour, minute, label
	return m.createResp, m.createErr
}

func (m *mockBackend) CancelByID(ctx context.Context, id string) (alarm.Alarm, error) {
	m.capturedCancelID = id
	return alarm.Alarm{ID: id}, m.cancelErr
}

func (m *mockBackend) Ready() <-chan struct{} {
	c := make(chan struct{})
	if !m.notReconciled {
		close(c)
	}
	return c
}

func (m *mockBackend) GetAll(ctx context.Context) ([]alarm.Alarm, error) {
	return m.alarms, m.listErr
}

func (m *mockBackend) Observe(ctx context.Context) <-chan []alarm.Alarm {
	out := make(chan []alarm.Alarm, 1)
	out <- m.alarms
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case alarms, ok := <-m.updates:
				if !ok {
					return
				}
				out <- alarms
			}
		}
	}()
	return out
}

func (m *mockBackend) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockBackend) Dismiss(alarmID string) error {
	m.capturedDismissID = alarmID
	return m.dismissErr
}

func (m *mockBackend) DismissAll() int {
	m.dismissAllCalls++
	return len(m.live)
}

func (m *mockBackend) Live() []ring.SessionInfo {
	return m.live
}

func (m *mockBackend) Last(ctx context.Context) (alarm.LastFired, error) {
	return m.last, m.lastErr
}

var testAlarms = []alarm.Alarm{
	{ID: "a-1", Hour: 6, Minute: 30, Label: "run", TriggerTimeMillis: time.Date(2026, 3, 15, 6, 30, 0, 0, time.UTC).UnixMilli()},
	{ID: "a-2", Hour: 8, Minute: 0, Label: "", TriggerTimeMillis: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC).UnixMilli()},
}
