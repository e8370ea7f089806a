package scheduling_api

import (
	"time"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/services/availability"
	"github.com/cola500/equinet/internal/services/routes"
	"github.com/cola500/equinet/internal/services/series"
)

// Dates travel as "YYYY-MM-DD" and times of day as "HH:MM".

type slotRequest struct {
	ProviderID uint64        `json:"providerId"`
	ServiceID  uint64        `json:"serviceId"`
	Date       string        `json:"date"`
	StartTime  models.Clock  `json:"startTime"`
	EndTime    *models.Clock `json:"endTime,omitempty"`
	Latitude   *float64      `json:"latitude,omitempty"`
	Longitude  *float64      `json:"longitude,omitempty"`
}

func (r slotRequest) toAvailability() (availability.Request, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return availability.Request{}, err
	}
	return availability.Request{
		ProviderID: r.ProviderID,
		ServiceID:  r.ServiceID,
		Date:       date,
		StartTime:  r.StartTime,
		EndTime:    r.EndTime,
		Latitude:   r.Latitude,
		Longitude:  r.Longitude,
	}, nil
}

type createBookingRequest struct {
	slotRequest
	CustomerID     uint64  `json:"customerId"`
	HorseID        *uint64 `json:"horseId,omitempty"`
	RouteOrderID   *uint64 `json:"routeOrderId,omitempty"`
	IdempotencyKey *string `json:"idempotencyKey,omitempty"`
}

func (r createBookingRequest) toModel() (models.BookingRequest, error) {
	date, err := parseDate("date", r.Date)
	if err != nil {
		return models.BookingRequest{}, err
	}
	return models.BookingRequest{
		ProviderID:     r.ProviderID,
		CustomerID:     r.CustomerID,
		ServiceID:      r.ServiceID,
		HorseID:        r.HorseID,
		RouteOrderID:   r.RouteOrderID,
		BookingDate:    date,
		StartTime:      r.StartTime,
		EndTime:        r.EndTime,
		Latitude:       r.Latitude,
		Longitude:      r.Longitude,
		IdempotencyKey: r.IdempotencyKey,
	}, nil
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type createSeriesRequest struct {
	CreatorID        uint64       `json:"creatorId"`
	ProviderID       uint64       `json:"providerId"`
	ServiceID        uint64       `json:"serviceId"`
	HorseID          *uint64      `json:"horseId,omitempty"`
	FirstBookingDate string       `json:"firstBookingDate"`
	StartTime        models.Clock `json:"startTime"`
	IntervalWeeks    *int         `json:"intervalWeeks,omitempty"`
	TotalOccurrences int          `json:"totalOccurrences"`
	Latitude         *float64     `json:"latitude,omitempty"`
	Longitude        *float64     `json:"longitude,omitempty"`
}

func (r createSeriesRequest) toService() (series.Request, error) {
	first, err := parseDate("firstBookingDate", r.FirstBookingDate)
	if err != nil {
		return series.Request{}, err
	}
	return series.Request{
		CreatorID:        r.CreatorID,
		ProviderID:       r.ProviderID,
		ServiceID:        r.ServiceID,
		HorseID:          r.HorseID,
		FirstBookingDate: first,
		StartTime:        r.StartTime,
		IntervalWeeks:    r.IntervalWeeks,
		TotalOccurrences: r.TotalOccurrences,
		Latitude:         r.Latitude,
		Longitude:        r.Longitude,
	}, nil
}

type cancelSeriesRequest struct {
	ActorID uint64 `json:"actorId"`
}

type createRouteRequest struct {
	ProviderID    uint64       `json:"providerId"`
	RouteName     string       `json:"routeName,omitempty"`
	RouteDate     string       `json:"routeDate"`
	StartTime     models.Clock `json:"startTime"`
	RouteOrderIDs []uint64     `json:"routeOrderIds"`
}

func (r createRouteRequest) toService() (routes.Request, error) {
	date, err := parseDate("routeDate", r.RouteDate)
	if err != nil {
		return routes.Request{}, err
	}
	return routes.Request{
		ProviderID: r.ProviderID,
		RouteName:  r.RouteName,
		RouteDate:  date,
		StartTime:  r.StartTime,
		OrderIDs:   r.RouteOrderIDs,
	}, nil
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type bookingDTO struct {
	ID           uint64       `json:"id"`
	ProviderID   uint64       `json:"providerId"`
	CustomerID   uint64       `json:"customerId"`
	ServiceID    uint64       `json:"serviceId"`
	HorseID      *uint64      `json:"horseId,omitempty"`
	RouteOrderID *uint64      `json:"routeOrderId,omitempty"`
	SeriesID     *uint64      `json:"seriesId,omitempty"`
	BookingDate  string       `json:"bookingDate"`
	StartTime    models.Clock `json:"startTime"`
	EndTime      models.Clock `json:"endTime"`
	Status       string       `json:"status"`
	Latitude     *float64     `json:"latitude,omitempty"`
	Longitude    *float64     `json:"longitude,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

func toBookingDTO(b *models.Booking) bookingDTO {
	return bookingDTO{
		ID:           b.ID,
		ProviderID:   b.ProviderID,
		CustomerID:   b.CustomerID,
		ServiceID:    b.ServiceID,
		HorseID:      b.HorseID,
		RouteOrderID: b.RouteOrderID,
		SeriesID:     b.SeriesID,
		BookingDate:  models.FormatDate(b.BookingDate),
		StartTime:    b.StartTime,
		EndTime:      b.EndTime,
		Status:       b.Status,
		Latitude:     b.Latitude,
		Longitude:    b.Longitude,
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func toBookingDTOs(bs []*models.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingDTO(b))
	}
	return out
}

type seriesDTO struct {
	ID               uint64       `json:"id"`
	CreatorID        uint64       `json:"creatorId"`
	ProviderID       uint64       `json:"providerId"`
	ServiceID        uint64       `json:"serviceId"`
	HorseID          *uint64      `json:"horseId,omitempty"`
	FirstBookingDate string       `json:"firstBookingDate"`
	StartTime        models.Clock `json:"startTime"`
	IntervalWeeks    int          `json:"intervalWeeks"`
	TotalOccurrences int          `json:"totalOccurrences"`
	CreatedCount     int          `json:"createdCount"`
	Status           string       `json:"status"`
	CreatedAt        time.Time    `json:"createdAt"`
}

func toSeriesDTO(s *models.BookingSeries) seriesDTO {
	return seriesDTO{
		ID:               s.ID,
		CreatorID:        s.CreatorID,
		ProviderID:       s.ProviderID,
		ServiceID:        s.ServiceID,
		HorseID:          s.HorseID,
		FirstBookingDate: models.FormatDate(s.FirstBookingDate),
		StartTime:        s.StartTime,
		IntervalWeeks:    s.IntervalWeeks,
		TotalOccurrences: s.TotalOccurrences,
		CreatedCount:     s.CreatedCount,
		Status:           s.Status,
		CreatedAt:        s.CreatedAt,
	}
}

type skippedDateDTO struct {
	Date    string    `json:"date"`
	Reason  errs.Code `json:"reason"`
	Message string    `json:"message,omitempty"`
}

type seriesResultDTO struct {
	Series          seriesDTO        `json:"series"`
	CreatedBookings []bookingDTO     `json:"createdBookings"`
	SkippedDates    []skippedDateDTO `json:"skippedDates"`
}

func toSeriesResultDTO(r *series.Result) seriesResultDTO {
	skipped := make([]skippedDateDTO, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		skipped = append(skipped, skippedDateDTO{
			Date:    models.FormatDate(s.Date),
			Reason:  s.Reason,
			Message: s.Message,
		})
	}
	return seriesResultDTO{
		Series:          toSeriesDTO(r.Series),
		CreatedBookings: toBookingDTOs(r.Created),
		SkippedDates:    skipped,
	}
}

type cancelSeriesDTO struct {
	Series            seriesDTO    `json:"series"`
	CancelledBookings []bookingDTO `json:"cancelledBookings"`
}

type routeStopDTO struct {
	ID                       uint64    `json:"id"`
	RouteOrderID             uint64    `json:"routeOrderId"`
	StopOrder                int       `json:"stopOrder"`
	EstimatedArrival         time.Time `json:"estimatedArrival"`
	EstimatedDurationMinutes int       `json:"estimatedDurationMinutes"`
	Status                   string    `json:"status"`
}

type routeDTO struct {
	ID                   uint64         `json:"id"`
	ProviderID           uint64         `json:"providerId"`
	RouteName            string         `json:"routeName"`
	RouteDate            string         `json:"routeDate"`
	StartTime            models.Clock   `json:"startTime"`
	Status               string         `json:"status"`
	TotalDistanceKm      float64        `json:"totalDistanceKm"`
	TotalDurationMinutes int            `json:"totalDurationMinutes"`
	Stops                []routeStopDTO `json:"stops"`
}

func toRouteDTO(r *models.Route) routeDTO {
	stops := make([]routeStopDTO, 0, len(r.Stops))
	for _, s := range r.Stops {
		stops = append(stops, routeStopDTO{
			ID:                       s.ID,
			RouteOrderID:             s.RouteOrderID,
			StopOrder:                s.StopOrder,
			EstimatedArrival:         s.EstimatedArrival,
			EstimatedDurationMinutes: s.EstimatedDurationMin,
			Status:                   s.Status,
		})
	}
	return routeDTO{
		ID:                   r.ID,
		ProviderID:           r.ProviderID,
		RouteName:            r.RouteName,
		RouteDate:            models.FormatDate(r.RouteDate),
		StartTime:            r.StartTime,
		Status:               r.Status,
		TotalDistanceKm:      r.TotalDistanceKm,
		TotalDurationMinutes: r.TotalDurationMinutes,
		Stops:                stops,
	}
}

func parseDate(field, v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, errs.Newf(errs.Validation, "%s is required", field)
	}
	d, err := models.ParseDate(v)
	if err != nil {
		return time.Time{}, errs.Newf(errs.Validation, "%s must be YYYY-MM-DD", field)
	}
	return d, nil
}
