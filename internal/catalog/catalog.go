// Package catalog keeps the events on sale and gates reservations on each
// event's ticket release date.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/seat-reservation-service/internal/clock"
	"github.com/fairyhunter13/seat-reservation-service/internal/inventory"
	"github.com/fairyhunter13/seat-reservation-service/internal/model"
	"github.com/fairyhunter13/seat-reservation-service/internal/notify"
	"github.com/fairyhunter13/seat-reservation-service/internal/obs"
)

const (
	// DefaultMaxTickets caps how many seats one reservation may hold.
	DefaultMaxTickets = 5
	// DefaultPublishTimeout bounds publishing from hold expiry callbacks,
	// which have no request context.
	DefaultPublishTimeout = 5 * time.Second
)

var (
	ErrEventNotFound      = errors.New("event not found")
	ErrNotReleased        = errors.New("tickets not released yet")
	ErrInvalidTicketCount = errors.New("invalid ticket count")
	ErrInvalidSeatCount   = errors.New("seat count must be positive")
)

// NotReleasedError carries the release date of the event.
type NotReleasedError struct {
	EventName   string
	ReleaseDate time.Time
}

func (e *NotReleasedError) Error() string {
	return fmt.Sprintf("tickets for %s are released at %s", e.EventName, e.ReleaseDate.Format("2006-01-02 15:04"))
}

func (e *NotReleasedError) Is(target error) bool { return target == ErrNotReleased }

type entry struct {
	id  string
	inv *inventory.Inventory
}

// Catalog owns the events and routes seat operations to their inventory.
type Catalog struct {
	timer        inventory.Timer
	clock        clock.Clock
	pub          notify.Publisher
	holdDuration   time.Duration
	maxTickets     int
	publishTimeout time.Duration

	mu     sync.RWMutex
	events []*entry
	byID   map[string]*entry
}

// Option customises a Catalog.
type Option func(*Catalog)

// WithHoldDuration sets the hold duration of inventories added afterwards.
func WithHoldDuration(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.holdDuration = d
		}
	}
}

// WithMaxTickets overrides DefaultMaxTickets.
func WithMaxTickets(n int) Option {
	return func(c *Catalog) {
		if n > 0 {
			c.maxTickets = n
		}
	}
}

// WithPublishTimeout overrides DefaultPublishTimeout.
func WithPublishTimeout(d time.Duration) Option {
	return func(c *Catalog) {
		if d > 0 {
			c.publishTimeout = d
		}
	}
}

// New creates an empty catalog. A nil publisher discards events.
func New(timer inventory.Timer, clk clock.Clock, pub notify.Publisher, opts ...Option) *Catalog {
	if pub == nil {
		pub = notify.Nop{}
	}
	c := &Catalog{
		timer:        timer,
		clock:        clk,
		pub:          pub,
		holdDuration:   inventory.DefaultHoldDuration,
		maxTickets:     DefaultMaxTickets,
		publishTimeout: DefaultPublishTimeout,
		byID:           make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MaxTickets returns the per-reservation seat limit.
func (c *Catalog) MaxTickets() int { return c.maxTickets }

// AddEvent creates an event with seatCount free seats.
func (c *Catalog) AddEvent(name string, eventDate, releaseDate time.Time, seatCount int) (model.EventInfo, error) {
	if seatCount < 1 {
		return model.EventInfo{}, ErrInvalidSeatCount
	}
	e := &entry{
		id:  uuid.NewString(),
		inv: inventory.New(name, eventDate, releaseDate, seatCount, c.timer, inventory.WithHoldDuration(c.holdDuration)),
	}
	c.mu.Lock()
	c.events = append(c.events, e)
	c.byID[e.id] = e
	c.mu.Unlock()
	obs.Logger.Info("event_added", "event_id", e.id, "event_name", name, "seats", seatCount, "release_date", releaseDate)
	return c.info(e), nil
}

func (c *Catalog) info(e *entry) model.EventInfo {
	return model.EventInfo{
		ID:             e.id,
		Name:           e.inv.Name(),
		EventDate:      e.inv.EventDate(),
		ReleaseDate:    e.inv.ReleaseDate(),
		TotalSeats:     e.inv.SeatCount(),
		AvailableSeats: e.inv.AvailableCount(),
		Released:       !c.clock.Now().Before(e.inv.ReleaseDate()),
	}
}

func (c *Catalog) lookup(id string) (*entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byID[id]
	if !ok {
		return nil, ErrEventNotFound
	}
	return e, nil
}

// Events lists events in the order they were added.
func (c *Catalog) Events() []model.EventInfo {
	c.mu.RLock()
	entries := append([]*entry(nil), c.events...)
	c.mu.RUnlock()
	out := make([]model.EventInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, c.info(e))
	}
	return out
}

// Event returns one event.
func (c *Catalog) Event(id string) (model.EventInfo, error) {
	e, err := c.lookup(id)
	if err != nil {
		return model.EventInfo{}, err
	}
	return c.info(e), nil
}

// Inventory exposes the seat inventory of an event for read access.
func (c *Catalog) Inventory(id string) (*inventory.Inventory, error) {
	e, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.inv, nil
}

// Reserve holds seats once the event's tickets are released.
func (c *Catalog) Reserve(ctx context.Context, eventID string, seats []int) (inventory.Reservation, error) {
	e, err := c.lookup(eventID)
	if err != nil {
		return inventory.Reservation{}, err
	}
	if c.clock.Now().Before(e.inv.ReleaseDate()) {
		return inventory.Reservation{}, &NotReleasedError{EventName: e.inv.Name(), ReleaseDate: e.inv.ReleaseDate()}
	}
	if len(seats) < 1 || len(seats) > c.maxTickets {
		return inventory.Reservation{}, fmt.Errorf("%w: choose between 1 and %d seats", ErrInvalidTicketCount, c.maxTickets)
	}

	// holdID is written once the reservation exists; an expiry that fires
	// earlier waits for it.
	var holdID string
	idSet := make(chan struct{})
	res, err := e.inv.ReserveSeats(seats, func(seat int) {
		<-idSet
		obs.Logger.Info("hold_expired", "event_id", e.id, "seat", seat, "hold_id", holdID)
		pctx, cancel := context.WithTimeout(context.Background(), c.publishTimeout)
		defer cancel()
		c.publish(pctx, e, model.HoldExpired, seat, holdID)
	})
	if err != nil {
		return inventory.Reservation{}, err
	}
	holdID = res.ID
	close(idSet)
	for _, seat := range res.Seats {
		c.publish(ctx, e, model.SeatHeld, seat, res.ID)
	}
	return res, nil
}

// Purchase sells the held seats of an event; see Inventory.CompletePurchase.
func (c *Catalog) Purchase(ctx context.Context, eventID string, seats []int) ([]inventory.SeatOutcome, error) {
	e, err := c.lookup(eventID)
	if err != nil {
		return nil, err
	}
	out := e.inv.CompletePurchase(seats)
	for _, o := range out {
		if o.Err == nil {
			c.publish(ctx, e, model.SeatSold, o.Seat, "")
		}
	}
	return out, nil
}

// CancelHold releases one held seat.
func (c *Catalog) CancelHold(ctx context.Context, eventID string, seat int) error {
	e, err := c.lookup(eventID)
	if err != nil {
		return err
	}
	if err := e.inv.CancelHold(seat); err != nil {
		return err
	}
	c.publish(ctx, e, model.HoldCancelled, seat, "")
	return nil
}

// Bookings returns the sold seats of every event, in catalog order.
func (c *Catalog) Bookings() []model.EventSeats {
	c.mu.RLock()
	entries := append([]*entry(nil), c.events...)
	c.mu.RUnlock()
	out := make([]model.EventSeats, 0, len(entries))
	for _, e := range entries {
		out = append(out, model.EventSeats{
			EventID:   e.id,
			EventName: e.inv.Name(),
			Seats:     e.inv.BookedSeats(),
		})
	}
	return out
}

// publish reports a transition that already happened; failures are logged.
func (c *Catalog) publish(ctx context.Context, e *entry, typ model.SeatEventType, seat int, holdID string) {
	ev := model.SeatEvent{
		Type:       typ,
		EventID:    e.id,
		EventName:  e.inv.Name(),
		Seat:       seat,
		HoldID:     holdID,
		OccurredAt: c.clock.Now(),
	}
	if err := c.pub.Publish(ctx, ev); err != nil {
		obs.Logger.Warn("seat_event_publish_failed", "type", typ, "event_id", e.id, "seat", seat, "error", err)
	}
}
