package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryFor(t *testing.T) {
	assert.Equal(t, CategoryBench, CategoryFor(1))
	assert.Equal(t, CategoryFolding, CategoryFor(2))
	assert.Equal(t, CategoryBench, CategoryFor(19))
	assert.Equal(t, CategoryFolding, CategoryFor(20))
}

func TestParseSeatStatus(t *testing.T) {
	for _, s := range []string{"free", "held", "sold"} {
		st, ok := ParseSeatStatus(s)
		assert.True(t, ok, s)
		assert.Equal(t, SeatStatus(s), st)
	}
	_, ok := ParseSeatStatus("Free")
	assert.False(t, ok)
	_, ok = ParseSeatStatus("")
	assert.False(t, ok)
}

func TestSeatEventStatus(t *testing.T) {
	cases := map[SeatEventType]SeatStatus{
		SeatHeld:      StatusHeld,
		SeatSold:      StatusSold,
		HoldCancelled: StatusFree,
		HoldExpired:   StatusFree,
	}
	for typ, want := range cases {
		assert.Equal(t, want, SeatEvent{Type: typ}.Status(), typ)
	}
}
