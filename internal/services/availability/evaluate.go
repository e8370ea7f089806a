package availability

import (
	"github.com/cola500/equinet/internal/geo"
	"github.com/cola500/equinet/internal/models"
)

const (
	ReasonClosed              = "provider closed"
	ReasonOutsideHours        = "outside available hours"
	ReasonBooked              = "slot already booked"
	ReasonTravel              = "insufficient travel time"
	ReasonProviderUnavailable = "provider unavailable"
)

type Result struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

func available() Result {
	return Result{Available: true}
}

func unavailable(reason string) Result {
	return Result{Reason: reason}
}

// Travel enables travel-time padding around the candidate window.
type Travel struct {
	// Candidate is where the requested appointment takes place.
	Candidate *geo.Point
	// Base is the provider's home location, used for adjacent bookings without coordinates.
	Base     *geo.Point
	SpeedKmH float64
}

type Input struct {
	Window    models.Window
	Exception *models.AvailabilityException
	// Bookings are the provider's bookings on the same date; inactive ones are ignored.
	Bookings []*models.Booking
	Travel   *Travel
}

// Evaluate decides whether in.Window is bookable. It is pure and never mutates its input.
func Evaluate(in Input) Result {
	if in.Exception != nil {
		if in.Exception.IsClosed {
			return unavailable(ReasonClosed)
		}
		if open, ok := in.Exception.Window(); ok && !open.Contains(in.Window) {
			return unavailable(ReasonOutsideHours)
		}
	}

	var prev, next *models.Booking
	for _, b := range in.Bookings {
		if !b.IsActive() {
			continue
		}
		if b.Window().Overlaps(in.Window) {
			return unavailable(ReasonBooked)
		}
		if b.EndTime <= in.Window.Start && (prev == nil || b.EndTime > prev.EndTime) {
			prev = b
		}
		if b.StartTime >= in.Window.End && (next == nil || b.StartTime < next.StartTime) {
			next = b
		}
	}

	if in.Travel != nil && in.Travel.Candidate != nil {
		if prev != nil && !in.Travel.enough(prev, int(in.Window.Start-prev.EndTime)) {
			return unavailable(ReasonTravel)
		}
		if next != nil && !in.Travel.enough(next, int(next.StartTime-in.Window.End)) {
			return unavailable(ReasonTravel)
		}
	}

	return available()
}

// enough reports whether gapMinutes covers the drive between the candidate and b.
// A leg with an unknown location needs no buffer.
func (t *Travel) enough(b *models.Booking, gapMinutes int) bool {
	loc, ok := geo.PointOf(b.Latitude, b.Longitude)
	if !ok {
		if t.Base == nil {
			return true
		}
		loc = *t.Base
	}
	need := geo.TravelMinutes(loc.DistanceTo(*t.Candidate), t.SpeedKmH)
	return float64(gapMinutes) >= need
}
