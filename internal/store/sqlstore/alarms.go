package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"helios/internal/alarm"
)

// Insert upserts an alarm row.
func (s *Store) Insert(ctx context.Context, a alarm.Alarm) error {
	_, err := s.db.ExecContext(ctx, s.dialect.insertAlarm,
		a.ID,
		a.Hour,
		a.Minute,
		a.Label,
		a.TriggerTimeMillis,
		a.Date,
	)
	if err != nil {
		return alarm.Wrap(alarm.ErrStorage, err, "insert alarm "+a.ID)
	}
	s.publish(ctx)
	return nil
}

func (s *Store) GetAll(ctx context.Context) ([]alarm.Alarm, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.selectAlarms)
	if err != nil {
		return nil, alarm.Wrap(alarm.ErrStorage, err, "list alarms")
	}
	defer rows.Close()

	alarms := []alarm.Alarm{}
	for rows.Next() {
		var a alarm.Alarm
		if err := rows.Scan(&a.ID, &a.Hour, &a.Minute, &a.Label, &a.TriggerTimeMillis, &a.Date); err != nil {
			return nil, alarm.Wrap(alarm.ErrStorage, err, "scan alarm")
		}
		alarms = append(alarms, a)
	}
	if err := rows.Err(); err != nil {
		return nil, alarm.Wrap(alarm.ErrStorage, err, "list alarms")
	}

	return alarms, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (alarm.Alarm, error) {
	var a alarm.Alarm
	err := s.db.QueryRowContext(ctx, s.dialect.selectAlarmByID, id).Scan(
		&a.ID, &a.Hour, &a.Minute, &a.Label, &a.TriggerTimeMillis, &a.Date,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return alarm.Alarm{}, alarm.Errorf(alarm.ErrNotFound, "alarm %s not found", id)
	}
	if err != nil {
		return alarm.Alarm{}, alarm.Wrap(alarm.ErrStorage, err, "get alarm "+id)
	}
	return a, nil
}

// DeleteByID removes an alarm and reports how many rows went away.
func (s *Store) DeleteByID(ctx context.Context, id string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.deleteAlarm, id)
	if err != nil {
		return 0, alarm.Wrap(alarm.ErrStorage, err, "delete alarm "+id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, alarm.Wrap(alarm.ErrStorage, err, "delete alarm "+id)
	}
	if n > 0 {
		s.publish(ctx)
	}
	return n, nil
}

func (s *Store) Observe(ctx context.Context) <-chan []alarm.Alarm {
	return s.feed.Subscribe(ctx)
}

// publish notifies observers. The write already committed, so a failed
// snapshot is only logged; observers catch up on the next change.
func (s *Store) publish(ctx context.Context) {
	if err := s.feed.Publish(context.WithoutCancel(ctx)); err != nil {
		s.logger.Warn("publish alarm snapshot", "error", err)
	}
}
