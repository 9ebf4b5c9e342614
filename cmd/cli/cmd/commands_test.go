package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"helios/pkg/api"

	"github.com/gorilla/websocket"
	"github.com/spf13/viper"
)

func TestSetCommand(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		status     int
		respond    any
		wantOutput string
		wantCalled bool
	}{
		{
			name:       "Success",
			args:       []string{"set", "6:45", "--label", "Wake up"},
			status:     http.StatusCreated,
			respond:    api.SetAlarmResponse{ID: "alarm-123"},
			wantOutput: "alarm-123",
			wantCalled: true,
		},
		{
			name:       "Server Rejects",
			args:       []string{"set", "24:00", "--label", ""},
			status:     http.StatusBadRequest,
			respond:    api.ErrorResponse{Error: "hour must be between 0 and 23, got 24"},
			wantOutput: "hour must be between 0 and 23",
			wantCalled: true,
		},
		{
			name:       "Bad Format",
			args:       []string{"set", "0645", "--label", ""},
			wantOutput: "Invalid time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()

			called := false
			var got api.SetAlarmRequest
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				if r.Method != http.MethodPost || r.URL.Path != "/set" {
					t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
				}
				json.NewDecoder(r.Body).Decode(&got)
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(tt.respond)
			}))
			defer server.Close()
			viper.Set("url", server.URL)

			output := execute(t, tt.args...)

			if !strings.Contains(output, tt.wantOutput) {
				t.Errorf("expected %q in output, got: %s", tt.wantOutput, output)
			}
			if called != tt.wantCalled {
				t.Errorf("server called = %v, want %v", called, tt.wantCalled)
			}
			if tt.name == "Success" {
				if got.Hour == nil || *got.Hour != 6 || got.Minute == nil || *got.Minute != 45 || got.Label != "Wake up" {
					t.Errorf("unexpected request body %+v", got)
				}
			}
		})
	}
}

func TestRmCommand(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantOutput string
	}{
		{name: "Success", status: http.StatusOK, body: `{"status":"removed"}`, wantOutput: "removed"},
		{name: "Not Found", status: http.StatusNotFound, body: `{"error":"Alarm not found"}`, wantOutput: "API error (404): Alarm not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req api.RemoveAlarmRequest
				json.NewDecoder(r.Body).Decode(&req)
				if r.URL.Path != "/rm" || req.ID != "alarm-123" {
					t.Errorf("unexpected request %s %+v", r.URL.Path, req)
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()
			viper.Set("url", server.URL)

			output := execute(t, "rm", "alarm-123")
			if !strings.Contains(output, tt.wantOutput) {
				t.Errorf("expected %q in output, got: %s", tt.wantOutput, output)
			}
		})
	}
}

func TestListCommand(t *testing.T) {
	resetViper()

	trigger := time.Now().Add(90 * time.Minute)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/list" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode([]api.AlarmResponse{{
			ID: "alarm-1", Hour: trigger.Hour(), Minute: trigger.Minute(), Label: "Standup",
			TriggerTimeMillis: trigger.UnixMilli(),
		}})
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output := execute(t, "list")
	for _, want := range []string{"ID", "alarm-1", "Standup", "in 1h"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got: %s", want, output)
		}
	}
}

func TestListCommand_Empty(t *testing.T) {
	resetViper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	if output := execute(t, "list"); !strings.Contains(output, "No alarms scheduled") {
		t.Errorf("expected empty message, got: %s", output)
	}
}

func TestListCommand_ServerDown(t *testing.T) {
	resetViper()
	viper.Set("url", "http://127.0.0.1:1")

	if output := execute(t, "list"); !strings.Contains(output, "Failed to list alarms") {
		t.Errorf("expected failure message, got: %s", output)
	}
}

func TestDismissCommand(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		wantID     string
		wantOutput string
	}{
		{name: "One", args: []string{"dismiss", "alarm-1"}, wantID: "alarm-1", wantOutput: "Alarm alarm-1 dismissed"},
		{name: "All", args: []string{"dismiss"}, wantID: "", wantOutput: "All ringing alarms dismissed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetViper()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req api.DismissRequest
				json.NewDecoder(r.Body).Decode(&req)
				if req.ID != tt.wantID {
					t.Errorf("got id %q, want %q", req.ID, tt.wantID)
				}
				json.NewEncoder(w).Encode(api.StatusResponse{Status: api.StatusDismissed})
			}))
			defer server.Close()
			viper.Set("url", server.URL)

			if output := execute(t, tt.args...); !strings.Contains(output, tt.wantOutput) {
				t.Errorf("expected %q in output, got: %s", tt.wantOutput, output)
			}
		})
	}
}

func TestLastCommand(t *testing.T) {
	t.Run("Fired", func(t *testing.T) {
		resetViper()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/last":
				json.NewEncoder(w).Encode(api.LastFiredResponse{
					Hour: 7, Minute: 5, Label: "Gym", FiredAt: time.Now().Add(-2 * time.Hour),
				})
			case "/sessions":
				json.NewEncoder(w).Encode([]api.SessionResponse{{AlarmID: "alarm-9", State: "sounding"}})
			}
		}))
		defer server.Close()
		viper.Set("url", server.URL)

		output := execute(t, "last")
		for _, want := range []string{"07:05", "Gym", "2h ago", "alarm-9"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output, got: %s", want, output)
			}
		}
	})

	t.Run("Nothing Yet", func(t *testing.T) {
		resetViper()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(api.ErrorResponse{Error: "No alarm has fired yet"})
		}))
		defer server.Close()
		viper.Set("url", server.URL)

		if output := execute(t, "last"); !strings.Contains(output, "No alarm has fired yet.") {
			t.Errorf("expected not-yet message, got: %s", output)
		}
	})
}

func TestWatchCommand(t *testing.T) {
	resetViper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/watch" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		conn.WriteJSON(api.WatchMessage{Alarms: []api.AlarmResponse{}})
		conn.WriteJSON(api.WatchMessage{Alarms: []api.AlarmResponse{{ID: "alarm-7", Hour: 9, Minute: 15}}})
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
	}))
	defer server.Close()
	viper.Set("url", server.URL)

	output := execute(t, "watch")
	if !strings.Contains(output, "No alarms scheduled") {
		t.Errorf("expected initial empty snapshot, got: %s", output)
	}
	if !strings.Contains(output, "alarm-7") || !strings.Contains(output, "09:15") {
		t.Errorf("expected second snapshot, got: %s", output)
	}
	if strings.Contains(output, "Stream ended") {
		t.Errorf("going-away close should end quietly, got: %s", output)
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in           string
		hour, minute int
		ok           bool
	}{
		{"06:45", 6, 45, true},
		{"6:05", 6, 5, true},
		{" 23:59 ", 23, 59, true},
		{"24:00", 24, 0, true},
		{"0645", 0, 0, false},
		{"ab:cd", 0, 0, false},
	}

	for _, tt := range tests {
		h, m, err := parseClock(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("parseClock(%q) error = %v, want ok=%v", tt.in, err, tt.ok)
			continue
		}
		if tt.ok && (h != tt.hour || m != tt.minute) {
			t.Errorf("parseClock(%q) = %d:%d, want %d:%d", tt.in, h, m, tt.hour, tt.minute)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		duration time.Duration
		expected string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{125 * time.Minute, "2h 5m"},
	}

	for _, tt := range tests {
		if result := formatDuration(tt.duration); result != tt.expected {
			t.Errorf("formatDuration(%v) = %s, want %s", tt.duration, result, tt.expected)
		}
	}
}

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		offset   time.Duration
		contains string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{48 * time.Hour, "2 days"},
	}

	for _, tt := range tests {
		if result := relativeTime(tt.offset); !strings.Contains(result, tt.contains) {
			t.Errorf("relativeTime(%v) should contain %s, got: %s", tt.offset, tt.contains, result)
		}
	}
}
