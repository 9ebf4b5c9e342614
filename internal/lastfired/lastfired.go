// Package lastfired keeps the record of the most recently delivered alarm.
package lastfired

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"helios/internal/alarm"

	"gopkg.in/yaml.v3"
)

// Recorder persists the last fired alarm. Most recent write wins.
type Recorder interface {
	Save(ctx context.Context, rec alarm.LastFired) error
	// Last returns a not_found coded error when nothing has fired yet.
	Last(ctx context.Context) (alarm.LastFired, error)
}

// File stores the record as a small YAML document.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

// Save writes the record to a temporary file and renames it over the old one
// so a crash never leaves a half-written record behind.
func (f *File) Save(ctx context.Context, rec alarm.LastFired) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return alarm.Wrap(alarm.ErrStorage, err, "encode last fired")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return alarm.Wrap(alarm.ErrStorage, err, "create last fired directory")
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".last_fired-*")
	if err != nil {
		return alarm.Wrap(alarm.ErrStorage, err, "write last fired")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return alarm.Wrap(alarm.ErrStorage, err, "write last fired")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return alarm.Wrap(alarm.ErrStorage, err, "sync last fired")
	}
	if err := tmp.Close(); err != nil {
		return alarm.Wrap(alarm.ErrStorage, err, "write last fired")
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return alarm.Wrap(alarm.ErrStorage, err, "replace last fired")
	}
	return nil
}

func (f *File) Last(ctx context.Context) (alarm.LastFired, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return alarm.LastFired{}, alarm.Errorf(alarm.ErrNotFound, "no alarm has fired yet")
	}
	if err != nil {
		return alarm.LastFired{}, alarm.Wrap(alarm.ErrStorage, err, "read last fired")
	}

	var rec alarm.LastFired
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return alarm.LastFired{}, alarm.Wrap(alarm.ErrStorage, fmt.Errorf("%s: %w", f.path, err), "decode last fired")
	}
	return rec, nil
}

// Memory keeps the record in process memory.
type Memory struct {
	mu  sync.Mutex
	rec *alarm.LastFired
}

func (m *Memory) Save(ctx context.Context, rec alarm.LastFired) error {
	m.mu.Lock()
	m.rec = &rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Last(ctx context.Context) (alarm.LastFired, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rec == nil {
		return alarm.LastFired{}, alarm.Errorf(alarm.ErrNotFound, "no alarm has fired yet")
	}
	return *m.rec, nil
}
