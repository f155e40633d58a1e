// Package model defines domain types used by the service.
package model

import "time"

// SeatCategory is the kind of seat, fixed by its number.
type SeatCategory string

const (
	CategoryFolding SeatCategory = "folding"
	CategoryBench   SeatCategory = "bench"
)

// CategoryFor derives the category of a seat: even numbers are folding
// chairs, odd numbers are benches.
func CategoryFor(number int) SeatCategory {
	if number%2 == 0 {
		return CategoryFolding
	}
	return CategoryBench
}

// SeatStatus is the lifecycle state of a seat.
type SeatStatus string

const (
	StatusFree SeatStatus = "free"
	StatusHeld SeatStatus = "held"
	StatusSold SeatStatus = "sold"
)

// ParseSeatStatus accepts the lowercase wire form of a status.
func ParseSeatStatus(s string) (SeatStatus, bool) {
	switch st := SeatStatus(s); st {
	case StatusFree, StatusHeld, StatusSold:
		return st, true
	}
	return "", false
}

// Seat is a single inventory unit of an event.
type Seat struct {
	Number   int          `json:"number"`
	Category SeatCategory `json:"category"`
	Status   SeatStatus   `json:"status"`
}

// EventInfo is the catalog view of one event.
type EventInfo struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	EventDate      time.Time `json:"event_date"`
	ReleaseDate    time.Time `json:"release_date"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	Released       bool      `json:"released"`
}

// EventSeats groups seats under the event they belong to.
type EventSeats struct {
	EventID   string `json:"event_id"`
	EventName string `json:"event_name"`
	Seats     []Seat `json:"seats"`
}

// SeatEventType names a seat lifecycle transition.
type SeatEventType string

const (
	SeatHeld      SeatEventType = "seat_held"
	SeatSold      SeatEventType = "seat_sold"
	HoldCancelled SeatEventType = "hold_cancelled"
	HoldExpired   SeatEventType = "hold_expired"
)

// SeatEvent is published after a seat changes state.
type SeatEvent struct {
	Type       SeatEventType `json:"type"`
	EventID    string        `json:"event_id"`
	EventName  string        `json:"event_name"`
	Seat       int           `json:"seat"`
	HoldID     string        `json:"hold_id,omitempty"`
	OccurredAt time.Time     `json:"occurred_at"`
}

// Status returns the seat status a lifecycle event leaves behind.
func (e SeatEvent) Status() SeatStatus {
	switch e.Type {
	case SeatHeld:
		return StatusHeld
	case SeatSold:
		return StatusSold
	}
	return StatusFree
}
