package availability

import (
	"testing"

	"github.com/cola500/equinet/internal/geo"
	"github.com/cola500/equinet/internal/models"
	"github.com/stretchr/testify/require"
)

func clockPtr(c models.Clock) *models.Clock { return &c }

func booking(start, end models.Clock, status string) *models.Booking {
	return &models.Booking{StartTime: start, EndTime: end, Status: status}
}

func TestEvaluate_HalfOpenOverlap(t *testing.T) {
	existing := []*models.Booking{booking(600, 660, models.BookingStatusConfirmed)}

	res := Evaluate(Input{Window: models.Window{Start: 630, End: 690}, Bookings: existing})
	require.Equal(t, Result{Available: false, Reason: ReasonBooked}, res)

	res = Evaluate(Input{Window: models.Window{Start: 660, End: 720}, Bookings: existing})
	require.Equal(t, Result{Available: true}, res)
}

func TestEvaluate_IgnoresInactiveBookings(t *testing.T) {
	existing := []*models.Booking{
		booking(600, 660, models.BookingStatusCancelled),
		booking(600, 660, models.BookingStatusCompleted),
	}
	res := Evaluate(Input{Window: models.Window{Start: 600, End: 660}, Bookings: existing})
	require.True(t, res.Available)
}

func TestEvaluate_Exceptions(t *testing.T) {
	w := models.Window{Start: 600, End: 660}

	res := Evaluate(Input{Window: w, Exception: &models.AvailabilityException{IsClosed: true}})
	require.Equal(t, ReasonClosed, res.Reason)

	restricted := &models.AvailabilityException{StartTime: clockPtr(480), EndTime: clockPtr(630)}
	res = Evaluate(Input{Window: w, Exception: restricted})
	require.Equal(t, ReasonOutsideHours, res.Reason)

	restricted.EndTime = clockPtr(660)
	res = Evaluate(Input{Window: w, Exception: restricted})
	require.True(t, res.Available)
}

func TestEvaluate_ClosedWinsOverBooked(t *testing.T) {
	res := Evaluate(Input{
		Window:    models.Window{Start: 600, End: 660},
		Exception: &models.AvailabilityException{IsClosed: true},
		Bookings:  []*models.Booking{booking(600, 660, models.BookingStatusPending)},
	})
	require.Equal(t, ReasonClosed, res.Reason)
}

func TestEvaluate_TravelPadding(t *testing.T) {
	// One degree of latitude is ~111.19 km; 15 km north is ~0.1349 degrees.
	here := geo.Point{Lat: 59.0, Lon: 18.0}
	farLat, farLon := 59.0+15.0/111.19, 18.0
	prev := booking(540, 600, models.BookingStatusConfirmed)
	prev.Latitude, prev.Longitude = &farLat, &farLon

	tr := &Travel{Candidate: &here, SpeedKmH: 50}

	// 15 km at 50 km/h needs 18 minutes after 10:00.
	res := Evaluate(Input{Window: models.Window{Start: 610, End: 670}, Bookings: []*models.Booking{prev}, Travel: tr})
	require.Equal(t, ReasonTravel, res.Reason)

	res = Evaluate(Input{Window: models.Window{Start: 620, End: 680}, Bookings: []*models.Booking{prev}, Travel: tr})
	require.True(t, res.Available)

	// Without padding the 10:10 slot is fine.
	res = Evaluate(Input{Window: models.Window{Start: 610, End: 670}, Bookings: []*models.Booking{prev}})
	require.True(t, res.Available)
}

func TestEvaluate_TravelPaddingToNextBooking(t *testing.T) {
	here := geo.Point{Lat: 59.0, Lon: 18.0}
	farLat, farLon := 59.0+15.0/111.19, 18.0
	next := booking(720, 780, models.BookingStatusPending)
	next.Latitude, next.Longitude = &farLat, &farLon

	tr := &Travel{Candidate: &here, SpeedKmH: 50}
	res := Evaluate(Input{Window: models.Window{Start: 600, End: 710}, Bookings: []*models.Booking{next}, Travel: tr})
	require.Equal(t, ReasonTravel, res.Reason)

	res = Evaluate(Input{Window: models.Window{Start: 600, End: 700}, Bookings: []*models.Booking{next}, Travel: tr})
	require.True(t, res.Available)
}

func TestEvaluate_TravelFallsBackToProviderBase(t *testing.T) {
	here := geo.Point{Lat: 59.0, Lon: 18.0}
	base := geo.Point{Lat: 59.0 + 15.0/111.19, Lon: 18.0}
	prev := booking(540, 600, models.BookingStatusConfirmed)

	res := Evaluate(Input{
		Window:   models.Window{Start: 605, End: 665},
		Bookings: []*models.Booking{prev},
		Travel:   &Travel{Candidate: &here, Base: &base, SpeedKmH: 50},
	})
	require.Equal(t, ReasonTravel, res.Reason)

	// No location anywhere: no buffer.
	res = Evaluate(Input{
		Window:   models.Window{Start: 600, End: 660},
		Bookings: []*models.Booking{prev},
		Travel:   &Travel{Candidate: &here, SpeedKmH: 50},
	})
	require.True(t, res.Available)
}

func TestEvaluate_OnlyNearestNeighboursCount(t *testing.T) {
	here := geo.Point{Lat: 59.0, Lon: 18.0}
	farLat, farLon := 60.0, 18.0
	early := booking(420, 480, models.BookingStatusConfirmed)
	early.Latitude, early.Longitude = &farLat, &farLon
	lat, lon := here.Lat, here.Lon
	adjacent := booking(540, 600, models.BookingStatusConfirmed)
	adjacent.Latitude, adjacent.Longitude = &lat, &lon

	res := Evaluate(Input{
		Window:   models.Window{Start: 600, End: 660},
		Bookings: []*models.Booking{early, adjacent},
		Travel:   &Travel{Candidate: &here, SpeedKmH: 50},
	})
	require.True(t, res.Available)
}
