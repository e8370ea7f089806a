package models

import "time"

const (
	RouteOrderStatusPending   = "pending"
	RouteOrderStatusInRoute   = "in_route"
	RouteOrderStatusCompleted = "completed"
	RouteOrderStatusCancelled = "cancelled"
)

const (
	PriorityNormal = "normal"
	PriorityUrgent = "urgent"
)

const (
	RouteStatusPlanned     = "planned"
	RouteStopStatusPending = "pending"
)

type RouteOrder struct {
	ID             uint64
	CustomerID     uint64
	ServiceType    string
	Address        string
	Latitude       *float64
	Longitude      *float64
	NumberOfHorses int
	Priority       string
	DateFrom       time.Time
	DateTo         time.Time
	Status         string
	CreatedAt      time.Time
}

// HasCoordinates reports whether the order can take part in distance calculations.
func (o *RouteOrder) HasCoordinates() bool {
	return o.Latitude != nil && o.Longitude != nil
}

type Route struct {
	ID                   uint64
	ProviderID           uint64
	RouteName            string
	RouteDate            time.Time
	StartTime            Clock
	Status               string
	TotalDistanceKm      float64
	TotalDurationMinutes int
	CreatedAt            time.Time
	Stops                []*RouteStop
}

type RouteStop struct {
	ID                   uint64
	RouteID              uint64
	RouteOrderID         uint64
	StopOrder            int
	EstimatedArrival     time.Time
	EstimatedDurationMin int
	Status               string
}
