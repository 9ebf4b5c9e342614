package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"helios/pkg/api"

	"github.com/gorilla/websocket"
)

// AlarmClient handles API calls to the helios control API.
type AlarmClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewAlarmClient creates a new client for the given base URL.
func NewAlarmClient(baseURL string) *AlarmClient {
	return &AlarmClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// APIError represents an error response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// do sends a request and decodes a successful response into out, if set.
func (c *AlarmClient) do(method, path string, in, out any, okStatus ...int) error {
	var body io.Reader
	if in != nil {
		bodyBytes, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequest(method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Add("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	ok := false
	for _, s := range okStatus {
		if resp.StatusCode == s {
			ok = true
		}
	}
	if !ok {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// errorMessage extracts the error field of an api.ErrorResponse, falling
// back to the raw body.
func errorMessage(body []byte) string {
	var e api.ErrorResponse
	if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// SetAlarm sends POST /set.
func (c *AlarmClient) SetAlarm(hour, minute int, label string) (*api.SetAlarmResponse, error) {
	var result api.SetAlarmResponse
	req := api.SetAlarmRequest{Hour: &hour, Minute: &minute, Label: label}
	if err := c.do(http.MethodPost, "/set", req, &result, http.StatusCreated); err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveAlarm sends POST /rm.
func (c *AlarmClient) RemoveAlarm(id string) error {
	return c.do(http.MethodPost, "/rm", api.RemoveAlarmRequest{ID: id}, nil, http.StatusOK)
}

// ListAlarms sends GET /list.
func (c *AlarmClient) ListAlarms() ([]api.AlarmResponse, error) {
	var result []api.AlarmResponse
	if err := c.do(http.MethodGet, "/list", nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result, nil
}

// Dismiss sends POST /dismiss. An empty id dismisses every ringing alarm.
func (c *AlarmClient) Dismiss(id string) error {
	return c.do(http.MethodPost, "/dismiss", api.DismissRequest{ID: id}, nil, http.StatusOK)
}

// LastFired sends GET /last.
func (c *AlarmClient) LastFired() (*api.LastFiredResponse, error) {
	var result api.LastFiredResponse
	if err := c.do(http.MethodGet, "/last", nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return &result, nil
}

// Sessions sends GET /sessions.
func (c *AlarmClient) Sessions() ([]api.SessionResponse, error) {
	var result []api.SessionResponse
	if err := c.do(http.MethodGet, "/sessions", nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result, nil
}

// Watch opens the GET /watch websocket.
func (c *AlarmClient) Watch() (*websocket.Conn, error) {
	u, err := url.Parse(c.BaseURL + "/watch")
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: err.Error()}
		}
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	return conn, nil
}
