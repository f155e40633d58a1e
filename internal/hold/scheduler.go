// Package hold implements one-shot expiry timers for seat holds.
package hold

import (
	"container/heap"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/seat-reservation-service/internal/obs"
)

const (
	stateArmed int32 = iota
	stateFired
	stateCancelled
)

// idleWait bounds how long the broker sleeps when nothing is scheduled.
const idleWait = time.Minute

// Handle identifies one armed expiry. Exactly one of firing and
// cancellation succeeds for a handle.
type Handle struct {
	seq      uint64
	seat     int
	deadline time.Time
	onExpire func(h *Handle)
	state    atomic.Int32
	index    int // position in the heap, -1 once removed; guarded by Scheduler.mu
}

// Seat returns the seat number the handle was armed for.
func (h *Handle) Seat() int { return h.seat }

// Deadline returns when the handle fires unless cancelled.
func (h *Handle) Deadline() time.Time { return h.deadline }

// Fired reports whether the expiry callback has been claimed by the broker.
func (h *Handle) Fired() bool { return h.state.Load() == stateFired }

// Cancelled reports whether Cancel won against firing.
func (h *Handle) Cancelled() bool { return h.state.Load() == stateCancelled }

// Scheduler is a delayed-task queue drained by a background broker.
type Scheduler struct {
	mu      sync.Mutex
	pending handleHeap
	notify  chan struct{}
	nextSeq atomic.Uint64

	armed     atomic.Uint64
	fired     atomic.Uint64
	cancelled atomic.Uint64

	startOnce sync.Once
	stopOnce  sync.Once
	cancel    context.CancelFunc
	done      chan struct{}
	callbacks sync.WaitGroup
}

// NewScheduler creates an idle Scheduler. Call Start to begin firing.
func NewScheduler() *Scheduler {
	return &Scheduler{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start runs the broker loop until ctx is done or Stop is called.
func (s *Scheduler) Start(parent context.Context) {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(parent)
		s.cancel = cancel
		go s.broker(ctx)
	})
}

// Stop halts the broker and waits for running callbacks. Pending handles
// never fire after Stop returns.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.startOnce.Do(func() {})
		if s.cancel != nil {
			s.cancel()
			<-s.done
		}
		s.callbacks.Wait()
		obs.Logger.Info("hold_scheduler_stopped", "pending", s.Pending())
	})
}

// Arm schedules onExpire to run once after d with the handle Arm returns.
func (s *Scheduler) Arm(seat int, d time.Duration, onExpire func(h *Handle)) *Handle {
	h := &Handle{
		seq:      s.nextSeq.Add(1),
		seat:     seat,
		deadline: time.Now().Add(d),
		onExpire: onExpire,
	}
	s.mu.Lock()
	heap.Push(&s.pending, h)
	s.mu.Unlock()
	s.armed.Add(1)
	s.wake()
	return h
}

// Cancel prevents h from firing. It returns false when the callback was
// already claimed or h was cancelled before.
func (s *Scheduler) Cancel(h *Handle) bool {
	if h == nil || !h.state.CompareAndSwap(stateArmed, stateCancelled) {
		return false
	}
	s.mu.Lock()
	if h.index >= 0 {
		heap.Remove(&s.pending, h.index)
	}
	s.mu.Unlock()
	s.cancelled.Add(1)
	return true
}

// Pending returns the number of handles waiting for their deadline.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Metrics returns counters and sizes for observability.
func (s *Scheduler) Metrics() (armed, fired, cancelled uint64, pending int) {
	return s.armed.Load(), s.fired.Load(), s.cancelled.Load(), s.Pending()
}

func (s *Scheduler) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// broker fires due handles and sleeps until the next deadline.
func (s *Scheduler) broker(ctx context.Context) {
	defer close(s.done)
	timer := time.NewTimer(idleWait)
	defer timer.Stop()
	for {
		timer.Reset(s.fireDue())
		select {
		case <-ctx.Done():
			return
		case <-s.notify:
		case <-timer.C:
		}
	}
}

// fireDue dispatches every handle whose deadline passed and returns the
// wait until the next one.
func (s *Scheduler) fireDue() time.Duration {
	now := time.Now()
	var due []*Handle
	s.mu.Lock()
	for len(s.pending) > 0 && !s.pending[0].deadline.After(now) {
		due = append(due, heap.Pop(&s.pending).(*Handle))
	}
	wait := idleWait
	if len(s.pending) > 0 {
		wait = s.pending[0].deadline.Sub(now)
	}
	s.mu.Unlock()

	for _, h := range due {
		if !h.state.CompareAndSwap(stateArmed, stateFired) {
			continue
		}
		s.fired.Add(1)
		s.callbacks.Add(1)
		go func(h *Handle) {
			defer s.callbacks.Done()
			h.onExpire(h)
		}(h)
	}
	return wait
}

// handleHeap orders handles by deadline, then by arming order.
type handleHeap []*Handle

func (q handleHeap) Len() int { return len(q) }

func (q handleHeap) Less(i, j int) bool {
	if q[i].deadline.Equal(q[j].deadline) {
		return q[i].seq < q[j].seq
	}
	return q[i].deadline.Before(q[j].deadline)
}

func (q handleHeap) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *handleHeap) Push(x any) {
	h := x.(*Handle)
	h.index = len(*q)
	*q = append(*q, h)
}

func (q *handleHeap) Pop() any {
	old := *q
	n := len(old)
	h := old[n-1]
	old[n-1] = nil
	h.index = -1
	*q = old[:n-1]
	return h
}
