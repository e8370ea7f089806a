package messages

import "time"

type BookingEvent struct {
	BookingID      uint64  `json:"booking_id"`
	ProviderID     uint64  `json:"provider_id"`
	CustomerID     uint64  `json:"customer_id"`
	ServiceID      uint64  `json:"service_id"`
	HorseID        *uint64 `json:"horse_id,omitempty"`
	SeriesID       *uint64 `json:"series_id,omitempty"`
	BookingDate    string  `json:"booking_date"`
	StartTime      string  `json:"start_time"`
	EndTime        string  `json:"end_time"`
	Status         string  `json:"status"`
	PreviousStatus string  `json:"previous_status,omitempty"`
}

type SeriesEvent struct {
	SeriesID         uint64   `json:"series_id"`
	ProviderID       uint64   `json:"provider_id"`
	CreatorID        uint64   `json:"creator_id"`
	IntervalWeeks    int      `json:"interval_weeks"`
	TotalOccurrences int      `json:"total_occurrences"`
	CreatedCount     int      `json:"created_count"`
	BookingIDs       []uint64 `json:"booking_ids,omitempty"`
	SkippedDates     []string `json:"skipped_dates,omitempty"`
	Status           string   `json:"status"`
}

type RouteCreated struct {
	RouteID              uint64   `json:"route_id"`
	ProviderID           uint64   `json:"provider_id"`
	RouteDate            string   `json:"route_date"`
	RouteOrderIDs        []uint64 `json:"route_order_ids"`
	TotalDistanceKm      float64  `json:"total_distance_km"`
	TotalDurationMinutes int      `json:"total_duration_minutes"`
}

type ReminderDue struct {
	BookingID  uint64    `json:"booking_id"`
	CustomerID uint64    `json:"customer_id"`
	HorseID    uint64    `json:"horse_id"`
	ProviderID uint64    `json:"provider_id"`
	ServiceID  uint64    `json:"service_id"`
	DueAt      time.Time `json:"due_at"`
}
