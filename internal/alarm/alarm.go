// Package alarm contains the domain types shared by the store, the scheduler
// and the ring subsystem.
package alarm

import (
	"time"

	"github.com/google/uuid"
)

// Alarm is a one-shot wall-clock alarm.
// It is created by the scheduler and never mutated; changing an alarm is a
// cancel followed by a create.
type Alarm struct {
	ID     string
	Hour   int
	Minute int
	Label  string

	// TriggerTimeMillis is the absolute fire instant in Unix milliseconds.
	TriggerTimeMillis int64

	// Date is kept for schema compatibility only. Scheduling never reads it.
	Date string
}

// TriggerAt returns the instant the alarm must fire.
func (a Alarm) TriggerAt() time.Time {
	return time.UnixMilli(a.TriggerTimeMillis)
}

// LastFired is the most recently delivered alarm. Display only.
type LastFired struct {
	Hour    int       `yaml:"hour"`
	Minute  int       `yaml:"minute"`
	Label   string    `yaml:"label"`
	FiredAt time.Time `yaml:"fired_at"`
}

// ValidateTime checks that hour and minute describe a time of day.
func ValidateTime(hour, minute int) error {
	if hour < 0 || hour > 23 {
		return Errorf(ErrValidation, "hour must be between 0 and 23, got %d", hour)
	}
	if minute < 0 || minute > 59 {
		return Errorf(ErrValidation, "minute must be between 0 and 59, got %d", minute)
	}
	return nil
}

// NextTrigger returns today at hour:minute:00.000 in now's location, or the
// same time tomorrow when that instant is not strictly after now.
func NextTrigger(now time.Time, hour, minute int) time.Time {
	y, m, d := now.Date()
	at := time.Date(y, m, d, hour, minute, 0, 0, now.Location())
	if !at.After(now) {
		at = time.Date(y, m, d+1, hour, minute, 0, 0, now.Location())
	}
	return at
}

var slotNamespace = uuid.MustParse("8a6f1c52-3b0e-4d7a-9f1e-5c2b7d9e4a10")

// SlotID derives the wake-timer slot for an alarm id. The mapping is stable,
// so arming the same alarm twice replaces its registration.
func SlotID(alarmID string) string {
	return uuid.NewSHA1(slotNamespace, []byte(alarmID)).String()
}
