package handlers

import (
	"encoding/json"
	"net/http"

	"helios/internal/alarm"
	"helios/pkg/api"
)

// SetAlarm handles POST /set.
// It schedules a one-shot alarm for the next occurrence of hour:minute.
func (h *Handlers) SetAlarm(w http.ResponseWriter, r *http.Request) {
	var req api.SetAlarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Hour == nil || req.Minute == nil {
		h.httpError(w, "hour and minute are required", http.StatusBadRequest)
		return
	}

	a, err := h.scheduler.Create(r.Context(), *req.Hour, *req.Minute, req.Label)
	if err != nil {
		h.log(r).Warn("create alarm failed", "code", alarm.ErrorCode(err), "error", err)
		h.httpError(w, alarm.ErrorDescription(err), http.StatusBadRequest)
		return
	}

	h.respondJson(w, http.StatusCreated, api.SetAlarmResponse{ID: a.ID})
}

// RemoveAlarm handles POST /rm.
func (h *Handlers) RemoveAlarm(w http.ResponseWriter, r *http.Request) {
	var req api.RemoveAlarmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ID == "" {
		h.httpError(w, "id is required", http.StatusBadRequest)
		return
	}

	if _, err := h.scheduler.CancelByID(r.Context(), req.ID); err != nil {
		if alarm.IsNotFound(err) {
			h.httpError(w, "Alarm not found", http.StatusNotFound)
			return
		}
		h.log(r).Warn("cancel alarm failed", "alarm_id", req.ID, "code", alarm.ErrorCode(err), "error", err)
		h.httpError(w, alarm.ErrorDescription(err), http.StatusBadRequest)
		return
	}

	h.respondJson(w, http.StatusOK, api.StatusResponse{Status: api.StatusRemoved})
}

// ListAlarms handles GET /list.
// Alarms are ordered by time of day.
func (h *Handlers) ListAlarms(w http.ResponseWriter, r *http.Request) {
	alarms, err := h.store.GetAll(r.Context())
	if err != nil {
		h.log(r).Error("list alarms failed", "error", err)
		h.httpError(w, "Failed to list alarms", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, toAlarmResponses(alarms))
}
