package hold

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler()
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	return s
}

func TestSchedulerFiresOnce(t *testing.T) {
	s := startScheduler(t)
	var calls atomic.Int32
	var got atomic.Int64
	h := s.Arm(7, 20*time.Millisecond, func(fired *Handle) {
		calls.Add(1)
		got.Store(int64(fired.Seat()))
	})

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, int64(7), got.Load())
	assert.True(t, h.Fired())
	assert.False(t, s.Cancel(h), "cancel after fire must be a no-op")

	armed, fired, cancelled, pending := s.Metrics()
	assert.Equal(t, uint64(1), armed)
	assert.Equal(t, uint64(1), fired)
	assert.Equal(t, uint64(0), cancelled)
	assert.Equal(t, 0, pending)
}

func TestSchedulerCancelBeforeFire(t *testing.T) {
	s := startScheduler(t)
	var calls atomic.Int32
	h := s.Arm(1, 30*time.Millisecond, func(*Handle) { calls.Add(1) })

	require.True(t, s.Cancel(h))
	require.False(t, s.Cancel(h), "second cancel is idempotent")
	assert.True(t, h.Cancelled())
	assert.Equal(t, 0, s.Pending())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())
}

func TestSchedulerOrdersByDeadline(t *testing.T) {
	s := startScheduler(t)
	var mu sync.Mutex
	var order []int
	record := func(h *Handle) {
		mu.Lock()
		order = append(order, h.Seat())
		mu.Unlock()
	}
	s.Arm(3, 90*time.Millisecond, record)
	s.Arm(1, 10*time.Millisecond, record)
	s.Arm(2, 50*time.Millisecond, record)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSchedulerArmBeforeStart(t *testing.T) {
	s := NewScheduler()
	var calls atomic.Int32
	s.Arm(4, time.Millisecond, func(*Handle) { calls.Add(1) })
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load(), "nothing fires before Start")

	s.Start(context.Background())
	defer s.Stop()
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSchedulerCancelMiddleOfHeap(t *testing.T) {
	s := startScheduler(t)
	var fired sync.Map
	handles := make([]*Handle, 0, 10)
	for i := 1; i <= 10; i++ {
		handles = append(handles, s.Arm(i, time.Duration(i)*5*time.Millisecond, func(h *Handle) {
			fired.Store(h.Seat(), true)
		}))
	}
	for _, h := range handles {
		if h.Seat()%2 == 0 {
			require.True(t, s.Cancel(h))
		}
	}

	require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()
	for i := 1; i <= 10; i++ {
		_, ok := fired.Load(i)
		assert.Equal(t, i%2 == 1, ok, "seat %d", i)
	}
}

func TestSchedulerCancelRacesFire(t *testing.T) {
	s := startScheduler(t)
	const n = 500
	var calls atomic.Int32
	var cancelWins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		h := s.Arm(i, time.Millisecond, func(*Handle) { calls.Add(1) })
		wg.Add(1)
		go func() {
			defer wg.Done()
			time.Sleep(time.Millisecond)
			if s.Cancel(h) {
				cancelWins.Add(1)
			}
		}()
	}
	wg.Wait()
	require.Eventually(t, func() bool { return s.Pending() == 0 }, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	assert.Equal(t, int32(n), calls.Load()+cancelWins.Load(), "exactly one of fire and cancel wins per handle")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	s := NewScheduler()
	s.Stop()
	s.Stop()

	started := NewScheduler()
	started.Start(context.Background())
	started.Stop()
	started.Stop()
}
