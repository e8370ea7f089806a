package routes

import (
	"math"
	"time"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/geo"
	"github.com/cola500/equinet/internal/models"
)

// MinutesPerHorse is the planned service time per horse. It ignores the actual service
// duration; kept for parity with how routes have always been estimated.
// TODO: take the duration from the order's service once route orders reference a service id.
const MinutesPerHorse = 60

type PlannedStop struct {
	RouteOrderID         uint64
	StopOrder            int
	EstimatedArrival     time.Time
	EstimatedDurationMin int
}

type Plan struct {
	Stops                []PlannedStop
	TotalDistanceKm      float64
	TotalDurationMinutes int
	// MissingLegs counts legs skipped because a stop had no coordinates.
	// Totals understate the real route when it is non-zero.
	MissingLegs int
}

// CheckOrders rejects orders PlanRoute cannot estimate. A stop with no horses would
// have no service time, and a negative count would move later arrivals backwards.
func CheckOrders(orders []*models.RouteOrder) error {
	for _, o := range orders {
		if o.NumberOfHorses < 1 {
			return errs.Newf(errs.Validation, "route order %d has %d horses, want at least 1", o.ID, o.NumberOfHorses)
		}
	}
	return nil
}

// PlanRoute walks orders in the given order. No reordering is done.
func PlanRoute(orders []*models.RouteOrder, routeDate time.Time, start models.Clock, speedKmH float64) Plan {
	var (
		plan    Plan
		elapsed float64 // minutes since start
	)
	origin := start.On(routeDate)

	for i, o := range orders {
		dur := o.NumberOfHorses * MinutesPerHorse
		plan.Stops = append(plan.Stops, PlannedStop{
			RouteOrderID:         o.ID,
			StopOrder:            i + 1,
			EstimatedArrival:     origin.Add(minutes(elapsed)),
			EstimatedDurationMin: dur,
		})
		elapsed += float64(dur)

		if i+1 == len(orders) {
			break
		}
		next := orders[i+1]
		if !o.HasCoordinates() || !next.HasCoordinates() {
			plan.MissingLegs++
			continue
		}
		km := geo.DistanceKm(*o.Latitude, *o.Longitude, *next.Latitude, *next.Longitude)
		plan.TotalDistanceKm += km
		elapsed += geo.TravelMinutes(km, speedKmH)
	}

	plan.TotalDurationMinutes = int(math.Round(elapsed))
	return plan
}

func minutes(m float64) time.Duration {
	return time.Duration(math.Round(m * float64(time.Minute)))
}
