package pgbooking

import (
	"context"
	"time"

	"github.com/cola500/equinet/internal/models"
	"github.com/pkg/errors"
)

// The writers below back fixture loading (equinetctl seed) and tests.
// Regular CRUD for these entities lives outside this service.

func (s *Storage) CreateProvider(ctx context.Context, p *models.Provider) error {
	err := s.db.QueryRow(ctx, `
INSERT INTO providers (name, is_active, accepting_customers, recurring_enabled, max_series_occurrences, latitude, longitude)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING id
`, p.Name, p.IsActive, p.AcceptingCustomers, p.RecurringEnabled, p.MaxSeriesOccurrences, p.Latitude, p.Longitude).Scan(&p.ID)
	return errors.Wrap(err, "insert provider")
}

func (s *Storage) CreateService(ctx context.Context, svc *models.Service) error {
	err := s.db.QueryRow(ctx, `
INSERT INTO services (provider_id, name, duration_minutes, price, is_active, recommended_interval_weeks)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, svc.ProviderID, svc.Name, svc.DurationMinutes, svc.Price, svc.IsActive, svc.RecommendedIntervalWeeks).Scan(&svc.ID)
	return errors.Wrap(err, "insert service")
}

func (s *Storage) UpsertAvailabilityException(ctx context.Context, e *models.AvailabilityException) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO availability_exceptions (provider_id, exception_date, is_closed, start_minute, end_minute, reason)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (provider_id, exception_date)
DO UPDATE SET is_closed = EXCLUDED.is_closed, start_minute = EXCLUDED.start_minute,
              end_minute = EXCLUDED.end_minute, reason = EXCLUDED.reason
`, e.ProviderID, e.Date, e.IsClosed, intPtr(e.StartTime), intPtr(e.EndTime), e.Reason)
	return errors.Wrap(err, "upsert availability exception")
}

func (s *Storage) CreateRouteOrder(ctx context.Context, o *models.RouteOrder) error {
	if o.Status == "" {
		o.Status = models.RouteOrderStatusPending
	}
	if o.Priority == "" {
		o.Priority = models.PriorityNormal
	}
	err := s.db.QueryRow(ctx, `
INSERT INTO route_orders (
  customer_id, service_type, address, latitude, longitude,
  number_of_horses, priority, date_from, date_to, status, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10, now())
RETURNING id, created_at
`, o.CustomerID, o.ServiceType, o.Address, o.Latitude, o.Longitude,
		o.NumberOfHorses, o.Priority, o.DateFrom, o.DateTo, o.Status).Scan(&o.ID, &o.CreatedAt)
	return errors.Wrap(err, "insert route order")
}

func (s *Storage) UpsertHorseInterval(ctx context.Context, hi *models.HorseServiceInterval) error {
	var q string
	if hi.ServiceID == nil {
		q = `
INSERT INTO horse_service_intervals (horse_id, provider_id, service_id, interval_weeks)
VALUES ($1,$2,$3,$4)
ON CONFLICT (horse_id, provider_id) WHERE service_id IS NULL
DO UPDATE SET interval_weeks = EXCLUDED.interval_weeks
RETURNING id`
	} else {
		q = `
INSERT INTO horse_service_intervals (horse_id, provider_id, service_id, interval_weeks)
VALUES ($1,$2,$3,$4)
ON CONFLICT (horse_id, provider_id, service_id) WHERE service_id IS NOT NULL
DO UPDATE SET interval_weeks = EXCLUDED.interval_weeks
RETURNING id`
	}
	err := s.db.QueryRow(ctx, q, hi.HorseID, hi.ProviderID, hi.ServiceID, hi.IntervalWeeks).Scan(&hi.ID)
	return errors.Wrap(err, "upsert horse interval")
}

// CompleteBookingAt marks a booking completed as of at. Used by fixtures that replay history.
func (s *Storage) CompleteBookingAt(ctx context.Context, id uint64, at time.Time) error {
	_, err := s.db.Exec(ctx, `UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1`, id, models.BookingStatusCompleted, at.UTC())
	return errors.Wrap(err, "complete booking")
}
