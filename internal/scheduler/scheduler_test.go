package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"helios/internal/alarm"
	"helios/internal/store/memstore"
)

type armed struct {
	at      time.Time
	payload string
}

type fakeTimer struct {
	mu        sync.Mutex
	slots     map[string]armed
	armErr    error
	disarmErr error
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{slots: make(map[string]armed)}
}

func (f *fakeTimer) Arm(ctx context.Context, slot string, at time.Time, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.armErr != nil {
		return f.armErr
	}
	f.slots[slot] = armed{at: at, payload: payload}
	return nil
}

func (f *fakeTimer) Disarm(ctx context.Context, slot string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.disarmErr != nil {
		return f.disarmErr
	}
	delete(f.slots, slot)
	return nil
}

func (f *fakeTimer) get(slot string) (armed, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.slots[slot]
	return a, ok
}

func (f *fakeTimer) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.slots)
}

var sevenAM = time.Date(2026, 3, 14, 7, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T) (*Scheduler, *memstore.Store, *fakeTimer) {
	t.Helper()
	st := memstore.New()
	timer := newFakeTimer()
	s := New(st, timer, nil)
	s.Now = func() time.Time { return sevenAM }
	if _, err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	return s, st, timer
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name   string
		hour   int
		minute int
		want   time.Time
	}{
		{name: "Later Today", hour: 8, minute: 0, want: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)},
		{name: "Exactly Now Rolls Over", hour: 7, minute: 0, want: time.Date(2026, 3, 15, 7, 0, 0, 0, time.UTC)},
		{name: "Earlier Rolls Over", hour: 6, minute: 59, want: time.Date(2026, 3, 15, 6, 59, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, st, timer := newTestScheduler(t)
			ctx := context.Background()

			a, err := s.Create(ctx, tt.hour, tt.minute, "Wake up")
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if !a.TriggerAt().Equal(tt.want) {
				t.Errorf("wrong trigger\ngot:  %v\nwant: %v", a.TriggerAt().UTC(), tt.want)
			}

			stored, err := st.GetByID(ctx, a.ID)
			if err != nil {
				t.Fatalf("alarm not stored: %v", err)
			}
			if stored != a {
				t.Errorf("stored %+v, returned %+v", stored, a)
			}

			reg, ok := timer.get(alarm.SlotID(a.ID))
			if !ok {
				t.Fatal("wake timer not armed")
			}
			if !reg.at.Equal(tt.want) || reg.payload != a.ID {
				t.Errorf("armed %+v, want at %v payload %s", reg, tt.want, a.ID)
			}
		})
	}
}

func TestCreate_Validation(t *testing.T) {
	s, st, timer := newTestScheduler(t)

	for _, hm := range [][2]int{{24, 0}, {-1, 0}, {0, 60}, {0, -1}} {
		_, err := s.Create(context.Background(), hm[0], hm[1], "")
		if got := alarm.ErrorCode(err); got != alarm.ErrValidation {
			t.Errorf("Create(%d, %d) code = %q, want %q", hm[0], hm[1], got, alarm.ErrValidation)
		}
	}

	all, _ := st.GetAll(context.Background())
	if len(all) != 0 || timer.len() != 0 {
		t.Errorf("invalid input left state behind: %d alarms, %d slots", len(all), timer.len())
	}
}

func TestCreate_ArmFailureRollsBack(t *testing.T) {
	s, st, timer := newTestScheduler(t)
	timer.armErr = errors.New("permission denied")

	_, err := s.Create(context.Background(), 8, 0, "")
	if got := alarm.ErrorCode(err); got != alarm.ErrScheduling {
		t.Fatalf("got code %q, want %q (err %v)", got, alarm.ErrScheduling, err)
	}

	all, _ := st.GetAll(context.Background())
	if len(all) != 0 {
		t.Errorf("orphaned alarms left in store: %+v", all)
	}
}

func TestCancel_Idempotent(t *testing.T) {
	s, st, timer := newTestScheduler(t)
	ctx := context.Background()

	a, err := s.Create(ctx, 8, 0, "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := s.Cancel(ctx, a); err != nil {
			t.Fatalf("Cancel #%d failed: %v", i+1, err)
		}
	}

	if _, err := st.GetByID(ctx, a.ID); !alarm.IsNotFound(err) {
		t.Errorf("alarm still stored after cancel: %v", err)
	}
	if _, ok := timer.get(alarm.SlotID(a.ID)); ok {
		t.Error("wake timer still armed after cancel")
	}
}

func TestCancel_DisarmFailureKeepsRecord(t *testing.T) {
	s, st, timer := newTestScheduler(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, 8, 0, "")
	timer.disarmErr = errors.New("busy")

	if err := s.Cancel(ctx, a); alarm.ErrorCode(err) != alarm.ErrScheduling {
		t.Fatalf("got %v, want scheduling error", err)
	}
	if _, err := st.GetByID(ctx, a.ID); err != nil {
		t.Errorf("record deleted although its timer is still armed: %v", err)
	}
}

func TestCancelByID(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, 9, 15, "standup")

	got, err := s.CancelByID(ctx, a.ID)
	if err != nil {
		t.Fatalf("CancelByID failed: %v", err)
	}
	if got.ID != a.ID || got.Label != "standup" {
		t.Errorf("got %+v, want %+v", got, a)
	}

	if _, err := s.CancelByID(ctx, a.ID); !alarm.IsNotFound(err) {
		t.Errorf("second CancelByID: got %v, want not_found", err)
	}
}

func TestReconcile(t *testing.T) {
	ctx := context.Background()
	now := sevenAM

	future := alarm.Alarm{ID: "future", Hour: 8, TriggerTimeMillis: now.Add(time.Hour).UnixMilli()}
	past := alarm.Alarm{ID: "past", Hour: 6, TriggerTimeMillis: now.Add(-time.Hour).UnixMilli()}
	edge := alarm.Alarm{ID: "edge", Hour: 7, TriggerTimeMillis: now.UnixMilli()}

	st := memstore.New()
	for _, a := range []alarm.Alarm{future, past, edge} {
		st.Insert(ctx, a)
	}
	timer := newFakeTimer()
	s := New(st, timer, nil)
	s.Now = func() time.Time { return now }

	res, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if res != (ReconcileResult{Rearmed: 1, Missed: 2}) {
		t.Errorf("got %+v, want 1 rearmed 2 missed", res)
	}

	all, _ := st.GetAll(ctx)
	if len(all) != 1 || all[0].ID != "future" {
		t.Errorf("store after reconcile: %+v", all)
	}
	if _, ok := timer.get(alarm.SlotID("future")); !ok || timer.len() != 1 {
		t.Errorf("expected exactly the future alarm armed, have %d slots", timer.len())
	}

	// A second pass changes nothing.
	res, err = s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if res != (ReconcileResult{Rearmed: 1}) || timer.len() != 1 {
		t.Errorf("second pass: %+v with %d slots", res, timer.len())
	}
}

func TestReconcile_AllMissedAfterRestart(t *testing.T) {
	ctx := context.Background()
	st := memstore.New()
	st.Insert(ctx, alarm.Alarm{ID: "a", TriggerTimeMillis: sevenAM.Add(-2 * time.Hour).UnixMilli()})
	st.Insert(ctx, alarm.Alarm{ID: "b", TriggerTimeMillis: sevenAM.Add(-time.Minute).UnixMilli()})

	timer := newFakeTimer()
	s := New(st, timer, nil)
	s.Now = func() time.Time { return sevenAM }

	res, err := s.Reconcile(ctx)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if res.Rearmed != 0 || res.Missed != 2 || timer.len() != 0 {
		t.Errorf("got %+v with %d slots, want all dropped", res, timer.len())
	}
}

func TestStartupBarrier(t *testing.T) {
	s := New(memstore.New(), newFakeTimer(), nil)
	s.Now = func() time.Time { return sevenAM }

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := s.Create(ctx, 8, 0, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Create before reconcile: got %v, want deadline exceeded", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.Create(context.Background(), 8, 0, "")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("Create returned before reconcile")
	case <-time.After(20 * time.Millisecond):
	}

	if _, err := s.Reconcile(context.Background()); err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Create after reconcile failed: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Create still blocked after reconcile")
	}
}

func TestLookupAndConsume(t *testing.T) {
	s, _, _ := newTestScheduler(t)
	ctx := context.Background()

	a, _ := s.Create(ctx, 8, 0, "")
	if _, err := s.Lookup(ctx, a.ID); err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Consume(ctx, a.ID); err != nil {
			t.Fatalf("Consume #%d failed: %v", i+1, err)
		}
	}
	if _, err := s.Lookup(ctx, a.ID); !alarm.IsNotFound(err) {
		t.Errorf("Lookup after consume: got %v, want not_found", err)
	}
}

func TestConcurrentCreateCancel(t *testing.T) {
	s, st, timer := newTestScheduler(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, err := s.Create(ctx, i%24, i%60, "")
			if err != nil {
				t.Errorf("Create failed: %v", err)
				return
			}
			if i%2 == 0 {
				if err := s.Cancel(ctx, a); err != nil {
					t.Errorf("Cancel failed: %v", err)
				}
			}
		}(i)
	}
	wg.Wait()

	all, _ := st.GetAll(ctx)
	if len(all) != 10 || timer.len() != 10 {
		t.Errorf("got %d alarms and %d slots, want 10 of each", len(all), timer.len())
	}
	for _, a := range all {
		if _, ok := timer.get(alarm.SlotID(a.ID)); !ok {
			t.Errorf("stored alarm %s has no armed slot", a.ID)
		}
	}
	if n := s.locks.size(); n != 0 {
		t.Errorf("%d id locks leaked", n)
	}
}
