// Package waketimer implements the wake-timer layer: named slots, each armed
// for an absolute instant, that call back with an opaque payload when due.
package waketimer

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"
)

// FireFunc receives the payload of a due slot. It runs on the timer
// goroutine and must not block.
type FireFunc func(payload string)

var ErrClosed = errors.New("wake timer closed")

// DefaultRecheck bounds how long Heap sleeps before re-reading the wall clock.
const DefaultRecheck = 30 * time.Second

// Heap keeps every armed slot in a min-heap ordered by fire instant and
// sleeps until the earliest one. It only fires while the process is awake.
//
// Go timers run on the monotonic clock, which stops during suspend and
// ignores clock steps, so each sleep is capped at Recheck and due slots are
// judged against Now.
type Heap struct {
	Now     func() time.Time
	Recheck time.Duration

	onFire FireFunc
	wake   chan struct{}

	mu     sync.Mutex
	slots  map[string]*heapEntry
	q      slotQueue
	closed bool

	cancel context.CancelFunc
}

func NewHeap(onFire FireFunc) *Heap {
	return &Heap{
		Now:     time.Now,
		Recheck: DefaultRecheck,
		onFire:  onFire,
		wake:    make(chan struct{}, 1),
		slots:   make(map[string]*heapEntry),
		cancel:  func() {},
	}
}

// Run starts the timer goroutine. Slots armed before Run fire once it starts.
func (h *Heap) Run(ctx context.Context) error {
	ctx, h.cancel = context.WithCancel(ctx)
	go h.run(ctx)
	return nil
}

// Interrupt stops the timer goroutine. Later Arm calls fail with ErrClosed.
func (h *Heap) Interrupt() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.cancel()
	return nil
}

// Arm registers slot to fire at the given instant, replacing any previous
// registration of the same slot.
func (h *Heap) Arm(ctx context.Context, slot string, at time.Time, payload string) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrClosed
	}
	if e, ok := h.slots[slot]; ok {
		e.at = at
		e.payload = payload
		heap.Fix(&h.q, e.index)
	} else {
		e := &heapEntry{slot: slot, at: at, payload: payload}
		h.slots[slot] = e
		heap.Push(&h.q, e)
	}
	h.mu.Unlock()

	h.poke()
	return nil
}

// Disarm removes slot. Disarming an unknown slot is a no-op.
func (h *Heap) Disarm(ctx context.Context, slot string) error {
	h.mu.Lock()
	if e, ok := h.slots[slot]; ok {
		heap.Remove(&h.q, e.index)
		delete(h.slots, slot)
	}
	h.mu.Unlock()

	h.poke()
	return nil
}

// Armed reports whether slot is registered.
func (h *Heap) Armed(slot string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.slots[slot]
	return ok
}

func (h *Heap) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.q)
}

func (h *Heap) poke() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Heap) run(ctx context.Context) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		if d, ok := h.next(); ok {
			if h.Recheck > 0 {
				d = min(d, h.Recheck)
			}
			timer.Reset(d)
		} else {
			timer.Stop()
		}

		select {
		case <-ctx.Done():
			return
		case <-h.wake:
		case <-timer.C:
			// Early wakeups and rechecks re-sleep on the next iteration.
			for _, payload := range h.popDue() {
				h.onFire(payload)
			}
		}
	}
}

func (h *Heap) next() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.q) == 0 {
		return 0, false
	}
	return h.q[0].at.Sub(h.Now()), true
}

func (h *Heap) popDue() []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.Now()
	var due []string
	for len(h.q) > 0 && !h.q[0].at.After(now) {
		e := heap.Pop(&h.q).(*heapEntry)
		delete(h.slots, e.slot)
		due = append(due, e.payload)
	}
	return due
}

type heapEntry struct {
	slot    string
	at      time.Time
	payload string
	index   int
}

type slotQueue []*heapEntry

var _ heap.Interface = (*slotQueue)(nil)

func (q slotQueue) Len() int {
	return len(q)
}

func (q slotQueue) Less(i, j int) bool {
	return q[i].at.Before(q[j].at)
}

func (q slotQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *slotQueue) Push(x any) {
	e := x.(*heapEntry)
	e.index = len(*q)
	*q = append(*q, e)
}

func (q *slotQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*q = old[:n-1]
	return e
}
