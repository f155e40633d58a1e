package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fairyhunter13/seat-reservation-service/internal/clock"
	"github.com/fairyhunter13/seat-reservation-service/internal/hold"
	"github.com/fairyhunter13/seat-reservation-service/internal/inventory"
	"github.com/fairyhunter13/seat-reservation-service/internal/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SeatEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.SeatEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []model.SeatEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.SeatEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

var now = time.Date(2024, 10, 20, 12, 0, 0, 0, time.UTC)

func newCatalog(t *testing.T, opts ...Option) (*Catalog, *recordingPublisher) {
	t.Helper()
	s := hold.NewScheduler()
	s.Start(context.Background())
	t.Cleanup(s.Stop)
	pub := &recordingPublisher{}
	return New(s, clock.NewFixed(now), pub, opts...), pub
}

func addReleased(t *testing.T, c *Catalog, seats int) string {
	t.Helper()
	info, err := c.AddEvent("Sommarfest", now.Add(14*24*time.Hour), now.Add(-time.Minute), seats)
	require.NoError(t, err)
	return info.ID
}

func TestAddEventAndList(t *testing.T) {
	c, _ := newCatalog(t)
	released, err := c.AddEvent("Hallawinfest", now.Add(48*time.Hour), now.Add(-time.Hour), 20)
	require.NoError(t, err)
	upcoming, err := c.AddEvent("Studentfest", now.Add(72*time.Hour), now.Add(time.Hour), 10)
	require.NoError(t, err)

	assert.NotEmpty(t, released.ID)
	assert.NotEqual(t, released.ID, upcoming.ID)
	assert.True(t, released.Released)
	assert.False(t, upcoming.Released)
	assert.Equal(t, 20, released.AvailableSeats)

	events := c.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "Hallawinfest", events[0].Name)
	assert.Equal(t, "Studentfest", events[1].Name)

	got, err := c.Event(upcoming.ID)
	require.NoError(t, err)
	assert.Equal(t, upcoming, got)

	_, err = c.Event("nope")
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = c.Inventory("nope")
	assert.ErrorIs(t, err, ErrEventNotFound)

	_, err = c.AddEvent("Empty", now, now, 0)
	assert.ErrorIs(t, err, ErrInvalidSeatCount)
}

func TestReserveBeforeRelease(t *testing.T) {
	c, pub := newCatalog(t)
	info, err := c.AddEvent("Studentfest", now.Add(72*time.Hour), now.Add(time.Minute), 10)
	require.NoError(t, err)

	_, err = c.Reserve(context.Background(), info.ID, []int{1})
	require.ErrorIs(t, err, ErrNotReleased)
	var nr *NotReleasedError
	require.True(t, errors.As(err, &nr))
	assert.Equal(t, now.Add(time.Minute), nr.ReleaseDate)

	inv, err := c.Inventory(info.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, inv.AvailableCount())
	assert.Empty(t, pub.types())
}

func TestReserveTicketCountLimit(t *testing.T) {
	c, _ := newCatalog(t, WithMaxTickets(2))
	id := addReleased(t, c, 10)
	assert.Equal(t, 2, c.MaxTickets())

	_, err := c.Reserve(context.Background(), id, []int{1, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidTicketCount)
	_, err = c.Reserve(context.Background(), id, nil)
	assert.ErrorIs(t, err, ErrInvalidTicketCount)

	_, err = c.Reserve(context.Background(), id, []int{1, 2})
	assert.NoError(t, err)
}

func TestReservePurchaseFlow(t *testing.T) {
	c, pub := newCatalog(t)
	id := addReleased(t, c, 4)
	ctx := context.Background()

	res, err := c.Reserve(ctx, id, []int{1, 3})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, res.Seats)

	out, err := c.Purchase(ctx, id, []int{1, 3, 4})
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.NoError(t, out[0].Err)
	assert.NoError(t, out[1].Err)
	assert.ErrorIs(t, out[2].Err, inventory.ErrNoActiveReservation)

	assert.Equal(t, []model.SeatEventType{model.SeatHeld, model.SeatHeld, model.SeatSold, model.SeatSold}, pub.types())
	pub.mu.Lock()
	assert.Equal(t, res.ID, pub.events[0].HoldID)
	assert.Equal(t, "Sommarfest", pub.events[0].EventName)
	assert.Equal(t, now, pub.events[0].OccurredAt)
	pub.mu.Unlock()

	bookings := c.Bookings()
	require.Len(t, bookings, 1)
	assert.Equal(t, id, bookings[0].EventID)
	require.Len(t, bookings[0].Seats, 2)
	assert.Equal(t, 1, bookings[0].Seats[0].Number)
	assert.Equal(t, 3, bookings[0].Seats[1].Number)

	info, err := c.Event(id)
	require.NoError(t, err)
	assert.Equal(t, 2, info.AvailableSeats)
}

func TestReserveUnavailable(t *testing.T) {
	c, pub := newCatalog(t)
	id := addReleased(t, c, 4)
	ctx := context.Background()

	_, err := c.Reserve(ctx, id, []int{2})
	require.NoError(t, err)
	_, err = c.Reserve(ctx, id, []int{1, 2})
	require.ErrorIs(t, err, inventory.ErrSeatsUnavailable)

	inv, err := c.Inventory(id)
	require.NoError(t, err)
	seat, _ := inv.Seat(1)
	assert.Equal(t, model.StatusFree, seat.Status)
	assert.Equal(t, []model.SeatEventType{model.SeatHeld}, pub.types())
}

func TestCancelHold(t *testing.T) {
	c, pub := newCatalog(t)
	id := addReleased(t, c, 4)
	ctx := context.Background()

	_, err := c.Reserve(ctx, id, []int{2})
	require.NoError(t, err)
	require.NoError(t, c.CancelHold(ctx, id, 2))
	assert.ErrorIs(t, c.CancelHold(ctx, id, 2), inventory.ErrNoActiveReservation)
	assert.ErrorIs(t, c.CancelHold(ctx, "nope", 2), ErrEventNotFound)

	_, err = c.Reserve(ctx, id, []int{2})
	require.NoError(t, err)
	assert.Equal(t, []model.SeatEventType{model.SeatHeld, model.HoldCancelled, model.SeatHeld}, pub.types())
}

func TestHoldExpiryPublishes(t *testing.T) {
	c, pub := newCatalog(t, WithHoldDuration(20*time.Millisecond))
	id := addReleased(t, c, 4)

	res, err := c.Reserve(context.Background(), id, []int{4})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(pub.types()) == 2 }, 2*time.Second, 5*time.Millisecond)
	pub.mu.Lock()
	last := pub.events[1]
	pub.mu.Unlock()
	assert.Equal(t, model.HoldExpired, last.Type)
	assert.Equal(t, 4, last.Seat)
	assert.Equal(t, res.ID, last.HoldID)

	info, err := c.Event(id)
	require.NoError(t, err)
	assert.Equal(t, 4, info.AvailableSeats)
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	c, pub := newCatalog(t)
	pub.err = errors.New("broker down")
	id := addReleased(t, c, 2)

	_, err := c.Reserve(context.Background(), id, []int{1})
	require.NoError(t, err)
	out, err := c.Purchase(context.Background(), id, []int{1})
	require.NoError(t, err)
	assert.NoError(t, out[0].Err)
}

func TestPurchaseUnknownEvent(t *testing.T) {
	c, _ := newCatalog(t)
	_, err := c.Purchase(context.Background(), "nope", []int{1})
	assert.ErrorIs(t, err, ErrEventNotFound)
	_, err = c.Reserve(context.Background(), "nope", []int{1})
	assert.ErrorIs(t, err, ErrEventNotFound)
}

func TestSeed(t *testing.T) {
	c, _ := newCatalog(t)
	ids, err := Seed(c, now, 20, time.Minute)
	require.NoError(t, err)
	require.Len(t, ids, 3)

	events := c.Events()
	require.Len(t, events, 3)
	names := []string{events[0].Name, events[1].Name, events[2].Name}
	assert.Equal(t, []string{"Hallawinfest", "Sommarfest", "Studentfest"}, names)
	for _, ev := range events {
		assert.Equal(t, 20, ev.TotalSeats)
		assert.Equal(t, now.Add(time.Minute), ev.ReleaseDate)
		assert.False(t, ev.Released)
	}
}

// blockingPublisher waits for the caller's context on expiry events.
type blockingPublisher struct {
	recordingPublisher
	expiredErr chan error
}

func (p *blockingPublisher) Publish(ctx context.Context, ev model.SeatEvent) error {
	if ev.Type != model.HoldExpired {
		return p.recordingPublisher.Publish(ctx, ev)
	}
	<-ctx.Done()
	p.expiredErr <- ctx.Err()
	return ctx.Err()
}

func TestExpiryPublishIsBounded(t *testing.T) {
	s := hold.NewScheduler()
	s.Start(context.Background())
	pub := &blockingPublisher{expiredErr: make(chan error, 1)}
	c := New(s, clock.NewFixed(now), pub,
		WithHoldDuration(10*time.Millisecond),
		WithPublishTimeout(30*time.Millisecond),
	)
	id := addReleased(t, c, 2)

	_, err := c.Reserve(context.Background(), id, []int{1})
	require.NoError(t, err)

	select {
	case err := <-pub.expiredErr:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "expiry publish was never cut off")
	}

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		require.FailNow(t, "scheduler stop waited on a stuck publisher")
	}
}
