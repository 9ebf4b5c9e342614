package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"helios/internal/alarm"
	"helios/pkg/api"
)

// Dismiss handles POST /dismiss.
// With an id it stops that alarm's ring; without one it stops all of them.
func (h *Handlers) Dismiss(w http.ResponseWriter, r *http.Request) {
	var req api.DismissRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.ID == "" {
		n := h.ringer.DismissAll()
		h.log(r).Info("dismissed ringing alarms", "count", n)
		h.respondJson(w, http.StatusOK, api.StatusResponse{Status: api.StatusDismissed})
		return
	}

	if err := h.ringer.Dismiss(req.ID); err != nil {
		if alarm.IsNotFound(err) {
			h.httpError(w, "Alarm not ringing", http.StatusNotFound)
			return
		}
		h.httpError(w, alarm.ErrorDescription(err), http.StatusBadRequest)
		return
	}
	h.respondJson(w, http.StatusOK, api.StatusResponse{Status: api.StatusDismissed})
}

// Sessions handles GET /sessions.
func (h *Handlers) Sessions(w http.ResponseWriter, r *http.Request) {
	live := h.ringer.Live()
	sort.Slice(live, func(i, j int) bool {
		return live[i].StartedAt.Before(live[j].StartedAt)
	})

	resp := make([]api.SessionResponse, 0, len(live))
	for _, s := range live {
		resp = append(resp, api.SessionResponse{
			SessionID: s.SessionID,
			AlarmID:   s.AlarmID,
			Label:     s.Label,
			State:     string(s.State),
			StartedAt: s.StartedAt,
		})
	}
	h.respondJson(w, http.StatusOK, resp)
}

// LastFired handles GET /last.
func (h *Handlers) LastFired(w http.ResponseWriter, r *http.Request) {
	rec, err := h.lastFired.Last(r.Context())
	if err != nil {
		if alarm.IsNotFound(err) {
			h.httpError(w, "No alarm has fired yet", http.StatusNotFound)
			return
		}
		h.log(r).Error("read last fired failed", "error", err)
		h.httpError(w, "Failed to read last fired alarm", http.StatusInternalServerError)
		return
	}
	h.respondJson(w, http.StatusOK, api.LastFiredResponse{
		Hour:    rec.Hour,
		Minute:  rec.Minute,
		Label:   rec.Label,
		FiredAt: rec.FiredAt,
	})
}
