package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("10:30")
	require.NoError(t, err)
	require.Equal(t, Clock(630), c)
	require.Equal(t, "10:30", c.String())

	_, err = ParseClock("25:00")
	require.Error(t, err)
	_, err = ParseClock("9am")
	require.Error(t, err)
}

func TestClock_JSON(t *testing.T) {
	var v struct {
		At Clock `json:"at"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"at":"07:05"}`), &v))
	require.Equal(t, Clock(425), v.At)

	b, err := json.Marshal(v)
	require.NoError(t, err)
	require.JSONEq(t, `{"at":"07:05"}`, string(b))
}

func TestClock_On(t *testing.T) {
	d, err := ParseDate("2026-03-01")
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 3, 1, 9, 15, 0, 0, time.UTC), Clock(555).On(d))
}

func TestWindow_Overlaps(t *testing.T) {
	booked := Window{Start: 600, End: 660}

	require.True(t, booked.Overlaps(Window{Start: 630, End: 690}))
	require.False(t, booked.Overlaps(Window{Start: 660, End: 720}))
	require.False(t, booked.Overlaps(Window{Start: 540, End: 600}))
	require.True(t, booked.Overlaps(Window{Start: 500, End: 800}))
}

func TestWindow_OverlapsIsSymmetric(t *testing.T) {
	windows := []Window{
		{Start: 0, End: 60}, {Start: 30, End: 90}, {Start: 60, End: 120},
		{Start: 10, End: 20}, {Start: 600, End: 660}, {Start: 659, End: 700},
	}
	for _, a := range windows {
		for _, b := range windows {
			require.Equal(t, a.Overlaps(b), b.Overlaps(a), "%v vs %v", a, b)
		}
	}
}

func TestWindow_ContainsAndValid(t *testing.T) {
	open := Window{Start: 480, End: 720}
	require.True(t, open.Contains(Window{Start: 480, End: 540}))
	require.False(t, open.Contains(Window{Start: 700, End: 760}))

	require.True(t, open.Valid())
	require.False(t, Window{Start: 600, End: 600}.Valid())
	require.False(t, Window{Start: 1400, End: 1500}.Valid())
}

func TestCanTransition(t *testing.T) {
	require.True(t, CanTransition(BookingStatusPending, BookingStatusConfirmed))
	require.True(t, CanTransition(BookingStatusPending, BookingStatusCancelled))
	require.True(t, CanTransition(BookingStatusConfirmed, BookingStatusCompleted))
	require.True(t, CanTransition(BookingStatusConfirmed, BookingStatusCancelled))
	require.False(t, CanTransition(BookingStatusPending, BookingStatusCompleted))
	require.False(t, CanTransition(BookingStatusCancelled, BookingStatusPending))
	require.False(t, CanTransition(BookingStatusCompleted, BookingStatusCancelled))
}
