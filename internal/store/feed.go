package store

import (
	"context"
	"sync"

	"helios/internal/alarm"
)

// SnapshotFunc loads the current alarm set.
type SnapshotFunc func(ctx context.Context) ([]alarm.Alarm, error)

// Feed fans alarm-set snapshots out to Observe subscribers.
//
// Each subscriber holds at most one pending snapshot. A subscriber that can't
// keep up only ever sees the latest set, which is all an observer needs.
type Feed struct {
	snapshot SnapshotFunc

	mu   sync.Mutex
	subs map[*subscription]struct{}
}

type subscription struct {
	c    chan []alarm.Alarm
	once sync.Once
}

func NewFeed(snapshot SnapshotFunc) *Feed {
	return &Feed{
		snapshot: snapshot,
		subs:     make(map[*subscription]struct{}),
	}
}

// Subscribe registers a subscriber and queues the current set for it.
func (f *Feed) Subscribe(ctx context.Context) <-chan []alarm.Alarm {
	sub := &subscription{c: make(chan []alarm.Alarm, 1)}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	if alarms, err := f.snapshot(ctx); err == nil {
		sub.c <- alarms
	}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		f.closeLocked(sub)
		f.mu.Unlock()
	}()
	return sub.c
}

// Publish loads a fresh snapshot and hands it to every subscriber.
// Publishing is serialized so subscribers never see an older set after a
// newer one.
func (f *Feed) Publish(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) == 0 {
		return nil
	}
	alarms, err := f.snapshot(ctx)
	if err != nil {
		return err
	}
	for sub := range f.subs {
		select {
		case <-sub.c:
		default:
		}
		sub.c <- alarms
	}
	return nil
}

// Close closes every subscription.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		f.closeLocked(sub)
	}
}

func (f *Feed) closeLocked(sub *subscription) {
	sub.once.Do(func() {
		close(sub.c)
	})
	delete(f.subs, sub)
}
