package models

import "time"

const (
	BookingStatusPending   = "pending"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
)

const (
	SeriesStatusActive    = "active"
	SeriesStatusCancelled = "cancelled"
	SeriesStatusCompleted = "completed"
)

type Provider struct {
	ID                   uint64
	Name                 string
	IsActive             bool
	AcceptingCustomers   bool
	RecurringEnabled     bool
	MaxSeriesOccurrences int
	Latitude             *float64
	Longitude            *float64
}

type Service struct {
	ID                       uint64
	ProviderID               uint64
	Name                     string
	DurationMinutes          int
	Price                    float64
	IsActive                 bool
	RecommendedIntervalWeeks *int
}

type AvailabilityException struct {
	ProviderID uint64
	Date       time.Time
	IsClosed   bool
	StartTime  *Clock
	EndTime    *Clock
	Reason     *string
}

// Window returns the restricted opening window, if the exception defines one.
func (e *AvailabilityException) Window() (Window, bool) {
	if e == nil || e.StartTime == nil || e.EndTime == nil {
		return Window{}, false
	}
	return Window{Start: *e.StartTime, End: *e.EndTime}, true
}

type Booking struct {
	ID             uint64
	ProviderID     uint64
	CustomerID     uint64
	ServiceID      uint64
	HorseID        *uint64
	RouteOrderID   *uint64
	SeriesID       *uint64
	BookingDate    time.Time
	StartTime      Clock
	EndTime        Clock
	Status         string
	Latitude       *float64
	Longitude      *float64
	IdempotencyKey *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (b *Booking) Window() Window {
	return Window{Start: b.StartTime, End: b.EndTime}
}

// IsActive reports whether the booking occupies its slot.
func (b *Booking) IsActive() bool {
	return IsActiveBookingStatus(b.Status)
}

func IsActiveBookingStatus(status string) bool {
	return status == BookingStatusPending || status == BookingStatusConfirmed
}

// CanTransition lists the only allowed booking status changes.
func CanTransition(from, to string) bool {
	switch from {
	case BookingStatusPending:
		return to == BookingStatusConfirmed || to == BookingStatusCancelled
	case BookingStatusConfirmed:
		return to == BookingStatusCompleted || to == BookingStatusCancelled
	default:
		return false
	}
}

type BookingRequest struct {
	ProviderID     uint64
	CustomerID     uint64
	ServiceID      uint64
	HorseID        *uint64
	RouteOrderID   *uint64
	BookingDate    time.Time
	StartTime      Clock
	EndTime        *Clock // derived from the service duration when nil
	Latitude       *float64
	Longitude      *float64
	IdempotencyKey *string
}

type BookingSeries struct {
	ID               uint64
	CreatorID        uint64
	ProviderID       uint64
	ServiceID        uint64
	HorseID          *uint64
	FirstBookingDate time.Time
	StartTime        Clock
	IntervalWeeks    int
	TotalOccurrences int
	CreatedCount     int
	Status           string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type HorseServiceInterval struct {
	ID            uint64
	HorseID       uint64
	ProviderID    uint64
	ServiceID     *uint64
	IntervalWeeks int
}

// ReminderCandidate is the latest completed booking for a (horse, provider, service) triple
// that has no reminder planned yet.
type ReminderCandidate struct {
	BookingID    uint64
	CustomerID   uint64
	HorseID      uint64
	ProviderID   uint64
	ServiceID    uint64
	CompletedAt  time.Time
	DefaultWeeks int
}

type Reminder struct {
	BookingID  uint64
	CustomerID uint64
	HorseID    uint64
	ProviderID uint64
	ServiceID  uint64
	DueAt      time.Time
}
