package pgbooking

import (
	"context"
	"fmt"
	"time"

	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const bookingColumns = `
  id, provider_id, customer_id, service_id, horse_id, route_order_id, series_id,
  booking_date, start_minute, end_minute, status, latitude, longitude, idempotency_key,
  created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanBooking(row scanner) (*models.Booking, error) {
	var (
		b          models.Booking
		start, end int
	)
	if err := row.Scan(
		&b.ID, &b.ProviderID, &b.CustomerID, &b.ServiceID, &b.HorseID, &b.RouteOrderID, &b.SeriesID,
		&b.BookingDate, &start, &end, &b.Status, &b.Latitude, &b.Longitude, &b.IdempotencyKey,
		&b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	b.StartTime = models.Clock(start)
	b.EndTime = models.Clock(end)
	return &b, nil
}

func queryBookings(ctx context.Context, q querier, sql string, args ...any) ([]*models.Booking, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, errors.Wrap(err, "select bookings")
	}
	defer rows.Close()

	var out []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan booking")
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func getBooking(ctx context.Context, q querier, sql string, args ...any) (*models.Booking, error) {
	b, err := scanBooking(q.QueryRow(ctx, sql, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select booking")
	}
	return b, nil
}

func listActiveBookings(ctx context.Context, q querier, providerID uint64, date time.Time) ([]*models.Booking, error) {
	return queryBookings(ctx, q, `
SELECT`+bookingColumns+`
FROM bookings
WHERE provider_id = $1
  AND booking_date = $2
  AND status IN ($3, $4)
ORDER BY start_minute, id
`, providerID, date, models.BookingStatusPending, models.BookingStatusConfirmed)
}

func (s *Storage) ListActiveBookings(ctx context.Context, providerID uint64, date time.Time) ([]*models.Booking, error) {
	return listActiveBookings(ctx, s.db, providerID, date)
}

func (s *Storage) GetBooking(ctx context.Context, id uint64) (*models.Booking, error) {
	return getBooking(ctx, s.db, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

// pgTx implements storage.Tx on top of one pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

var _ storage.Tx = (*pgTx)(nil)

// LockProviderDay takes a transaction-scoped advisory lock keyed by provider and date.
func (t *pgTx) LockProviderDay(ctx context.Context, providerID uint64, date time.Time) error {
	key := fmt.Sprintf("provider:%d:%s", providerID, models.FormatDate(date))
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key)
	return errors.Wrap(err, "lock provider day")
}

func (t *pgTx) ListActiveBookings(ctx context.Context, providerID uint64, date time.Time) ([]*models.Booking, error) {
	return listActiveBookings(ctx, t.tx, providerID, date)
}

func (t *pgTx) FindBookingByIdempotencyKey(ctx context.Context, customerID uint64, key string) (*models.Booking, error) {
	return getBooking(ctx, t.tx, `
SELECT`+bookingColumns+`
FROM bookings
WHERE customer_id = $1 AND idempotency_key = $2
`, customerID, key)
}

func (t *pgTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	now := time.Now().UTC()
	err := t.tx.QueryRow(ctx, `
INSERT INTO bookings (
  provider_id, customer_id, service_id, horse_id, route_order_id, series_id,
  booking_date, start_minute, end_minute, status, latitude, longitude, idempotency_key,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
RETURNING id
`, b.ProviderID, b.CustomerID, b.ServiceID, b.HorseID, b.RouteOrderID, b.SeriesID,
		b.BookingDate, int(b.StartTime), int(b.EndTime), b.Status, b.Latitude, b.Longitude, b.IdempotencyKey,
		now).Scan(&b.ID)
	if err != nil {
		return errors.Wrap(mapConstraint(err), "insert booking")
	}
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func (t *pgTx) GetBookingForUpdate(ctx context.Context, id uint64) (*models.Booking, error) {
	return getBooking(ctx, t.tx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, id uint64, status string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE bookings SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(mapConstraint(err), "update booking status")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *pgTx) InsertSeries(ctx context.Context, sr *models.BookingSeries) error {
	now := time.Now().UTC()
	err := t.tx.QueryRow(ctx, `
INSERT INTO booking_series (
  creator_id, provider_id, service_id, horse_id, first_booking_date, start_minute,
  interval_weeks, total_occurrences, created_count, status, created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING id
`, sr.CreatorID, sr.ProviderID, sr.ServiceID, sr.HorseID, sr.FirstBookingDate, int(sr.StartTime),
		sr.IntervalWeeks, sr.TotalOccurrences, sr.CreatedCount, sr.Status, now).Scan(&sr.ID)
	if err != nil {
		return errors.Wrap(err, "insert series")
	}
	sr.CreatedAt = now
	sr.UpdatedAt = now
	return nil
}

func (t *pgTx) AttachBookingsToSeries(ctx context.Context, seriesID uint64, bookingIDs []uint64) error {
	tag, err := t.tx.Exec(ctx, `UPDATE bookings SET series_id = $1, updated_at = now() WHERE id = ANY($2)`, seriesID, bookingIDs)
	if err != nil {
		return errors.Wrap(err, "attach bookings to series")
	}
	if int(tag.RowsAffected()) != len(bookingIDs) {
		return storage.ErrNotFound
	}
	return nil
}

func (t *pgTx) GetSeriesForUpdate(ctx context.Context, id uint64) (*models.BookingSeries, error) {
	var (
		sr    models.BookingSeries
		start int
	)
	err := t.tx.QueryRow(ctx, `
SELECT
  id, creator_id, provider_id, service_id, horse_id, first_booking_date, start_minute,
  interval_weeks, total_occurrences, created_count, status, created_at, updated_at
FROM booking_series
WHERE id = $1
FOR UPDATE
`, id).Scan(
		&sr.ID, &sr.CreatorID, &sr.ProviderID, &sr.ServiceID, &sr.HorseID, &sr.FirstBookingDate, &start,
		&sr.IntervalWeeks, &sr.TotalOccurrences, &sr.CreatedCount, &sr.Status, &sr.CreatedAt, &sr.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select series")
	}
	sr.StartTime = models.Clock(start)
	return &sr, nil
}

func (t *pgTx) UpdateSeriesStatus(ctx context.Context, id uint64, status string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE booking_series SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return errors.Wrap(err, "update series status")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (t *pgTx) ListSeriesBookings(ctx context.Context, seriesID uint64) ([]*models.Booking, error) {
	return queryBookings(ctx, t.tx, `
SELECT`+bookingColumns+`
FROM bookings
WHERE series_id = $1
ORDER BY booking_date, start_minute, id
FOR UPDATE
`, seriesID)
}
