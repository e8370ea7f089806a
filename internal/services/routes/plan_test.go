package routes

import (
	"testing"
	"time"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
	"github.com/stretchr/testify/require"
)

var routeDay = time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

func order(id uint64, horses int, lat, lon *float64) *models.RouteOrder {
	return &models.RouteOrder{ID: id, NumberOfHorses: horses, Latitude: lat, Longitude: lon, Status: models.RouteOrderStatusPending}
}

func f(v float64) *float64 { return &v }

// 15 km due north of (59, 18).
var northLat = 59.0 + 15.0/111.19

func TestPlanRoute_Scenario(t *testing.T) {
	orders := []*models.RouteOrder{
		order(1, 2, f(59.0), f(18.0)),
		order(2, 1, f(northLat), f(18.0)),
	}
	p := PlanRoute(orders, routeDay, 480, 50)

	require.Equal(t, 198, p.TotalDurationMinutes)
	require.InDelta(t, 15.0, p.TotalDistanceKm, 0.01)
	require.Zero(t, p.MissingLegs)

	require.Len(t, p.Stops, 2)
	require.Equal(t, PlannedStop{RouteOrderID: 1, StopOrder: 1, EstimatedArrival: routeDay.Add(8 * time.Hour), EstimatedDurationMin: 120}, p.Stops[0])
	require.Equal(t, 2, p.Stops[1].StopOrder)
	require.Equal(t, 60, p.Stops[1].EstimatedDurationMin)
	// 08:00 + 120 min + ~18 min travel.
	require.WithinDuration(t, routeDay.Add(10*time.Hour+18*time.Minute), p.Stops[1].EstimatedArrival, 5*time.Second)
}

func TestPlanRoute_KeepsCallerOrderAndArrivalsNonDecreasing(t *testing.T) {
	orders := []*models.RouteOrder{
		order(30, 1, f(59.5), f(18.0)),
		order(10, 3, f(59.0), f(18.0)),
		order(20, 1, f(59.4), f(18.1)),
	}
	p := PlanRoute(orders, routeDay, 420, 50)

	require.Len(t, p.Stops, 3)
	for i, st := range p.Stops {
		require.Equal(t, i+1, st.StopOrder)
		require.Equal(t, orders[i].ID, st.RouteOrderID)
		if i > 0 {
			require.False(t, st.EstimatedArrival.Before(p.Stops[i-1].EstimatedArrival))
		}
	}
}

func TestPlanRoute_MissingCoordinatesSkipLeg(t *testing.T) {
	orders := []*models.RouteOrder{
		order(1, 1, f(59.0), f(18.0)),
		order(2, 1, nil, nil),
		order(3, 1, f(northLat), f(18.0)),
	}
	p := PlanRoute(orders, routeDay, 480, 50)

	require.Equal(t, 2, p.MissingLegs)
	require.Zero(t, p.TotalDistanceKm)
	require.Equal(t, 180, p.TotalDurationMinutes)
	require.Equal(t, routeDay.Add(10*time.Hour), p.Stops[2].EstimatedArrival)
}

func TestPlanRoute_SingleStop(t *testing.T) {
	p := PlanRoute([]*models.RouteOrder{order(1, 4, nil, nil)}, routeDay, 360, 50)
	require.Equal(t, 240, p.TotalDurationMinutes)
	require.Zero(t, p.MissingLegs)
	require.Len(t, p.Stops, 1)
}

func TestCheckOrders(t *testing.T) {
	require.NoError(t, CheckOrders([]*models.RouteOrder{order(1, 1, nil, nil), order(2, 4, nil, nil)}))
	require.NoError(t, CheckOrders(nil))

	err := CheckOrders([]*models.RouteOrder{order(1, 2, nil, nil), order(2, -3, nil, nil), order(3, 1, nil, nil)})
	require.True(t, errs.Is(err, errs.Validation))
	require.Contains(t, err.Error(), "route order 2")

	err = CheckOrders([]*models.RouteOrder{order(7, 0, nil, nil)})
	require.True(t, errs.Is(err, errs.Validation))
}
