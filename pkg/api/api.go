// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and the helios daemon.
package api

import "time"

// SetAlarmRequest is the request body for POST /set.
// Hour and Minute are pointers so a missing field can be told apart from 0.
type SetAlarmRequest struct {
	Hour   *int   `json:"hour"`
	Minute *int   `json:"minute"`
	Label  string `json:"label,omitempty"`
}

// SetAlarmResponse is the response body after creating an alarm.
type SetAlarmResponse struct {
	ID string `json:"id"`
}

// RemoveAlarmRequest is the request body for POST /rm.
type RemoveAlarmRequest struct {
	ID string `json:"id"`
}

// DismissRequest is the request body for POST /dismiss.
// An empty ID dismisses every ringing alarm.
type DismissRequest struct {
	ID string `json:"id,omitempty"`
}

// StatusResponse acknowledges a command.
type StatusResponse struct {
	Status string `json:"status"`
}

const (
	StatusRemoved   = "removed"
	StatusDismissed = "dismissed"
)

// AlarmResponse represents an alarm in API responses.
type AlarmResponse struct {
	ID                string `json:"id"`
	Hour              int    `json:"hour"`
	Minute            int    `json:"minute"`
	Label             string `json:"label"`
	TriggerTimeMillis int64  `json:"triggerTimeMillis"`
}

// LastFiredResponse is the response body for GET /last.
type LastFiredResponse struct {
	Hour    int       `json:"hour"`
	Minute  int       `json:"minute"`
	Label   string    `json:"label"`
	FiredAt time.Time `json:"firedAt"`
}

// SessionResponse describes a ringing alarm.
type SessionResponse struct {
	SessionID string    `json:"sessionId"`
	AlarmID   string    `json:"alarmId"`
	Label     string    `json:"label"`
	State     string    `json:"state"`
	StartedAt time.Time `json:"startedAt"`
}

// WatchMessage is one frame of the GET /watch stream: the full alarm set
// after a change.
type WatchMessage struct {
	Alarms []AlarmResponse `json:"alarms"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error string `json:"error"`
}
