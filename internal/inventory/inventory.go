// Package inventory owns the seats of one event and their reservation
// lifecycle: free, held for a limited time, sold.
package inventory

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fairyhunter13/seat-reservation-service/internal/hold"
	"github.com/fairyhunter13/seat-reservation-service/internal/model"
)

// DefaultHoldDuration is how long a reserved seat stays held.
const DefaultHoldDuration = 10 * time.Minute

var (
	ErrEmptySelection      = errors.New("no seats selected")
	ErrSeatsUnavailable    = errors.New("seats unavailable")
	ErrNoActiveReservation = errors.New("no active reservation for seat")
)

// UnavailableError lists the requested seats that were missing, not free,
// or requested twice.
type UnavailableError struct {
	Seats []int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("seats unavailable: %v", e.Seats)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrSeatsUnavailable }

// Timer arms and cancels one-shot hold expiries. *hold.Scheduler satisfies it.
type Timer interface {
	Arm(seat int, d time.Duration, onExpire func(h *hold.Handle)) *hold.Handle
	Cancel(h *hold.Handle) bool
}

// Reservation is the result of a successful ReserveSeats call.
type Reservation struct {
	ID        string    `json:"hold_id"`
	Seats     []int     `json:"seats"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SeatOutcome is the per-seat result of CompletePurchase. Err is nil when
// the seat was sold.
type SeatOutcome struct {
	Seat int
	Err  error
}

type slot struct {
	seat model.Seat
	hold *hold.Handle // live only while seat.Status is held
}

// Inventory holds the ordered seats of one event.
type Inventory struct {
	name         string
	eventDate    time.Time
	releaseDate  time.Time
	timer        Timer
	holdDuration time.Duration

	mu    sync.RWMutex
	slots []slot
}

// Option customises an Inventory.
type Option func(*Inventory)

// WithHoldDuration overrides DefaultHoldDuration.
func WithHoldDuration(d time.Duration) Option {
	return func(inv *Inventory) {
		if d > 0 {
			inv.holdDuration = d
		}
	}
}

// New creates an inventory of seatCount free seats numbered from 1.
func New(name string, eventDate, releaseDate time.Time, seatCount int, timer Timer, opts ...Option) *Inventory {
	if seatCount < 0 {
		seatCount = 0
	}
	inv := &Inventory{
		name:         name,
		eventDate:    eventDate,
		releaseDate:  releaseDate,
		timer:        timer,
		holdDuration: DefaultHoldDuration,
		slots:        make([]slot, seatCount),
	}
	for i := range inv.slots {
		n := i + 1
		inv.slots[i].seat = model.Seat{Number: n, Category: model.CategoryFor(n), Status: model.StatusFree}
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv
}

func (inv *Inventory) Name() string           { return inv.name }
func (inv *Inventory) EventDate() time.Time   { return inv.eventDate }
func (inv *Inventory) ReleaseDate() time.Time { return inv.releaseDate }
func (inv *Inventory) SeatCount() int         { return len(inv.slots) }

// HoldDuration returns how long new holds last.
func (inv *Inventory) HoldDuration() time.Duration { return inv.holdDuration }

// slotFor returns the slot of seat n or nil. Callers hold inv.mu.
func (inv *Inventory) slotFor(n int) *slot {
	if n < 1 || n > len(inv.slots) {
		return nil
	}
	return &inv.slots[n-1]
}

// ReserveSeats holds every requested seat or none. Each held seat gets its
// own expiry; when it fires while the seat is still held by that hold, the
// seat is released and onExpire is called with its number.
func (inv *Inventory) ReserveSeats(seatNumbers []int, onExpire func(seat int)) (Reservation, error) {
	if len(seatNumbers) == 0 {
		return Reservation{}, ErrEmptySelection
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	var unavailable []int
	seen := make(map[int]struct{}, len(seatNumbers))
	for _, n := range seatNumbers {
		if _, dup := seen[n]; dup {
			unavailable = append(unavailable, n)
			continue
		}
		seen[n] = struct{}{}
		if sl := inv.slotFor(n); sl == nil || sl.seat.Status != model.StatusFree {
			unavailable = append(unavailable, n)
		}
	}
	if len(unavailable) > 0 {
		return Reservation{}, &UnavailableError{Seats: unavailable}
	}

	res := Reservation{
		ID:    uuid.NewString(),
		Seats: append([]int(nil), seatNumbers...),
	}
	for _, n := range seatNumbers {
		sl := inv.slotFor(n)
		sl.seat.Status = model.StatusHeld
		sl.hold = inv.timer.Arm(n, inv.holdDuration, func(h *hold.Handle) {
			if inv.expire(h) && onExpire != nil {
				onExpire(h.Seat())
			}
		})
		if d := sl.hold.Deadline(); d.After(res.ExpiresAt) {
			res.ExpiresAt = d
		}
	}
	return res, nil
}

// expire releases the seat of h if h is still the seat's current hold.
func (inv *Inventory) expire(h *hold.Handle) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	sl := inv.slotFor(h.Seat())
	if sl == nil || sl.seat.Status != model.StatusHeld || sl.hold != h || !h.Fired() {
		return false
	}
	sl.seat.Status = model.StatusFree
	sl.hold = nil
	return true
}

// CompletePurchase sells each held seat in the batch. Seats that are not
// held get ErrNoActiveReservation without affecting the others.
func (inv *Inventory) CompletePurchase(seatNumbers []int) []SeatOutcome {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	out := make([]SeatOutcome, 0, len(seatNumbers))
	for _, n := range seatNumbers {
		sl := inv.slotFor(n)
		if sl == nil || sl.seat.Status != model.StatusHeld {
			out = append(out, SeatOutcome{Seat: n, Err: ErrNoActiveReservation})
			continue
		}
		inv.timer.Cancel(sl.hold)
		sl.seat.Status = model.StatusSold
		sl.hold = nil
		out = append(out, SeatOutcome{Seat: n})
	}
	return out
}

// CancelHold returns a held seat to free.
func (inv *Inventory) CancelHold(n int) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	sl := inv.slotFor(n)
	if sl == nil || sl.seat.Status != model.StatusHeld {
		return ErrNoActiveReservation
	}
	inv.timer.Cancel(sl.hold)
	sl.seat.Status = model.StatusFree
	sl.hold = nil
	return nil
}

// Seat returns a copy of seat n.
func (inv *Inventory) Seat(n int) (model.Seat, bool) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	sl := inv.slotFor(n)
	if sl == nil {
		return model.Seat{}, false
	}
	return sl.seat, true
}

// Seats returns all seats in number order.
func (inv *Inventory) Seats() []model.Seat {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := make([]model.Seat, len(inv.slots))
	for i := range inv.slots {
		out[i] = inv.slots[i].seat
	}
	return out
}

// SeatsWithStatus returns the seats in st, in number order.
func (inv *Inventory) SeatsWithStatus(st model.SeatStatus) []model.Seat {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	out := []model.Seat{}
	for i := range inv.slots {
		if inv.slots[i].seat.Status == st {
			out = append(out, inv.slots[i].seat)
		}
	}
	return out
}

func (inv *Inventory) AvailableSeats() []model.Seat { return inv.SeatsWithStatus(model.StatusFree) }
func (inv *Inventory) HeldSeats() []model.Seat      { return inv.SeatsWithStatus(model.StatusHeld) }
func (inv *Inventory) BookedSeats() []model.Seat    { return inv.SeatsWithStatus(model.StatusSold) }

// AvailableCount counts free seats.
func (inv *Inventory) AvailableCount() int {
	free, _, _ := inv.Counts()
	return free
}

// Counts returns the number of free, held and sold seats.
func (inv *Inventory) Counts() (free, held, sold int) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	for i := range inv.slots {
		switch inv.slots[i].seat.Status {
		case model.StatusFree:
			free++
		case model.StatusHeld:
			held++
		case model.StatusSold:
			sold++
		}
	}
	return free, held, sold
}
