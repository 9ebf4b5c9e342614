// Package handlers contains HTTP handlers for the control API.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"helios/internal/alarm"
	"helios/internal/logger"
	"helios/internal/ring"
	"helios/pkg/api"
)

// Scheduler creates and cancels alarms.
type Scheduler interface {
	Create(ctx context.Context, hour, minute int, label string) (alarm.Alarm, error)
	CancelByID(ctx context.Context, id string) (alarm.Alarm, error)
	Ready() <-chan struct{}
}

// AlarmStore is the read side of the alarm store.
type AlarmStore interface {
	GetAll(ctx context.Context) ([]alarm.Alarm, error)
	Observe(ctx context.Context) <-chan []alarm.Alarm
	Ping(ctx context.Context) error
}

// Ringer controls ringing alarms.
type Ringer interface {
	Dismiss(alarmID string) error
	DismissAll() int
	Live() []ring.SessionInfo
}

// LastFired reads the last fired alarm.
type LastFired interface {
	Last(ctx context.Context) (alarm.LastFired, error)
}

// Backend holds everything the handlers delegate to.
type Backend struct {
	Scheduler Scheduler
	Store     AlarmStore
	Ringer    Ringer
	LastFired LastFired
}

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	scheduler Scheduler
	store     AlarmStore
	ringer    Ringer
	lastFired LastFired
	logger    *slog.Logger
}

// New creates a new Handlers instance.
func New(b Backend, log *slog.Logger) *Handlers {
	if log == nil {
		log = slog.Default()
	}
	return &Handlers{
		scheduler: b.Scheduler,
		store:     b.Store,
		ringer:    b.Ringer,
		lastFired: b.LastFired,
		logger:    log,
	}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{Error: message})
}

func (h *Handlers) log(r *http.Request) *slog.Logger {
	return logger.FromContext(r.Context(), h.logger)
}

func toAlarmResponse(a alarm.Alarm) api.AlarmResponse {
	return api.AlarmResponse{
		ID:                a.ID,
		Hour:              a.Hour,
		Minute:            a.Minute,
		Label:             a.Label,
		TriggerTimeMillis: a.TriggerTimeMillis,
	}
}

func toAlarmResponses(alarms []alarm.Alarm) []api.AlarmResponse {
	resp := make([]api.AlarmResponse, 0, len(alarms))
	for _, a := range alarms {
		resp = append(resp, toAlarmResponse(a))
	}
	return resp
}
