package pgbooking

import (
	"context"
	"time"

	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

func (s *Storage) GetProvider(ctx context.Context, id uint64) (*models.Provider, error) {
	var p models.Provider
	err := s.db.QueryRow(ctx, `
SELECT id, name, is_active, accepting_customers, recurring_enabled, max_series_occurrences, latitude, longitude
FROM providers
WHERE id = $1
`, id).Scan(&p.ID, &p.Name, &p.IsActive, &p.AcceptingCustomers, &p.RecurringEnabled, &p.MaxSeriesOccurrences, &p.Latitude, &p.Longitude)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select provider")
	}
	return &p, nil
}

func (s *Storage) GetService(ctx context.Context, id uint64) (*models.Service, error) {
	var svc models.Service
	err := s.db.QueryRow(ctx, `
SELECT id, provider_id, name, duration_minutes, price, is_active, recommended_interval_weeks
FROM services
WHERE id = $1
`, id).Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.DurationMinutes, &svc.Price, &svc.IsActive, &svc.RecommendedIntervalWeeks)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select service")
	}
	return &svc, nil
}

// GetAvailabilityException returns nil without error when the date has no exception.
func (s *Storage) GetAvailabilityException(ctx context.Context, providerID uint64, date time.Time) (*models.AvailabilityException, error) {
	var (
		e          models.AvailabilityException
		start, end *int
	)
	err := s.db.QueryRow(ctx, `
SELECT provider_id, exception_date, is_closed, start_minute, end_minute, reason
FROM availability_exceptions
WHERE provider_id = $1 AND exception_date = $2
`, providerID, date).Scan(&e.ProviderID, &e.Date, &e.IsClosed, &start, &end, &e.Reason)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select availability exception")
	}
	e.StartTime = clockPtr(start)
	e.EndTime = clockPtr(end)
	return &e, nil
}

func (s *Storage) ListHorseIntervals(ctx context.Context, horseID, providerID uint64) ([]*models.HorseServiceInterval, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, horse_id, provider_id, service_id, interval_weeks
FROM horse_service_intervals
WHERE horse_id = $1 AND provider_id = $2
ORDER BY id
`, horseID, providerID)
	if err != nil {
		return nil, errors.Wrap(err, "select horse intervals")
	}
	defer rows.Close()

	var out []*models.HorseServiceInterval
	for rows.Next() {
		var hi models.HorseServiceInterval
		if err := rows.Scan(&hi.ID, &hi.HorseID, &hi.ProviderID, &hi.ServiceID, &hi.IntervalWeeks); err != nil {
			return nil, errors.Wrap(err, "scan horse interval")
		}
		out = append(out, &hi)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func clockPtr(v *int) *models.Clock {
	if v == nil {
		return nil
	}
	c := models.Clock(*v)
	return &c
}

func intPtr(c *models.Clock) *int {
	if c == nil {
		return nil
	}
	v := int(*c)
	return &v
}
