// Package store contains the persistence layer for helios.
package store

import (
	"context"

	"helios/internal/alarm"
)

// AlarmStore is the durable source of truth for alarms that should
// eventually fire. A successful Insert survives a crash right after it
// returns; failures are reported as alarm.ErrStorage errors and leave no
// partial state behind.
type AlarmStore interface {
	// Insert upserts an alarm by id.
	Insert(ctx context.Context, a alarm.Alarm) error

	// GetAll returns every alarm ordered by hour and minute.
	GetAll(ctx context.Context) ([]alarm.Alarm, error)

	// GetByID returns an alarm.ErrNotFound error when the id is absent.
	GetByID(ctx context.Context, id string) (alarm.Alarm, error)

	// DeleteByID returns the number of removed rows, 0 or 1.
	DeleteByID(ctx context.Context, id string) (int64, error)

	// Observe emits the full alarm set on subscribe and after every change.
	// The channel is closed when ctx is done.
	Observe(ctx context.Context) <-chan []alarm.Alarm

	// Ping checks that the backing storage is reachable.
	Ping(ctx context.Context) error

	Close() error
}
