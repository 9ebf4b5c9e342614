// Package memstore implements store.AlarmStore in memory.
// Nothing survives a restart; it backs the "memory" driver and tests.
package memstore

import (
	"context"
	"sort"
	"sync"

	"helios/internal/alarm"
	"helios/internal/store"
)

type Store struct {
	mu     sync.RWMutex
	alarms map[string]alarm.Alarm

	feed *store.Feed
}

var _ store.AlarmStore = (*Store)(nil)

func New() *Store {
	s := &Store{alarms: make(map[string]alarm.Alarm)}
	s.feed = store.NewFeed(s.GetAll)
	return s
}

func (s *Store) Insert(ctx context.Context, a alarm.Alarm) error {
	s.mu.Lock()
	s.alarms[a.ID] = a
	s.mu.Unlock()
	return s.feed.Publish(ctx)
}

func (s *Store) GetAll(ctx context.Context) ([]alarm.Alarm, error) {
	s.mu.RLock()
	alarms := make([]alarm.Alarm, 0, len(s.alarms))
	for _, a := range s.alarms {
		alarms = append(alarms, a)
	}
	s.mu.RUnlock()

	sort.Slice(alarms, func(i, j int) bool {
		ai, aj := alarms[i], alarms[j]
		if ai.Hour != aj.Hour {
			return ai.Hour < aj.Hour
		}
		if ai.Minute != aj.Minute {
			return ai.Minute < aj.Minute
		}
		return ai.ID < aj.ID
	})
	return alarms, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (alarm.Alarm, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alarms[id]
	if !ok {
		return alarm.Alarm{}, alarm.Errorf(alarm.ErrNotFound, "alarm %s not found", id)
	}
	return a, nil
}

func (s *Store) DeleteByID(ctx context.Context, id string) (int64, error) {
	s.mu.Lock()
	_, ok := s.alarms[id]
	delete(s.alarms, id)
	s.mu.Unlock()

	if !ok {
		return 0, nil
	}
	return 1, s.feed.Publish(ctx)
}

func (s *Store) Observe(ctx context.Context) <-chan []alarm.Alarm {
	return s.feed.Subscribe(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return nil
}

func (s *Store) Close() error {
	s.feed.Close()
	return nil
}
