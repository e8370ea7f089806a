package pgbooking

import (
	"context"
	"time"

	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// ListUnscheduledReminders returns the latest completed booking per (horse, provider, service)
// that has no reminder planned yet. A visit is skipped only when neither the service nor the
// horse has an interval; DefaultWeeks is 0 when only the horse override exists.
func (s *Storage) ListUnscheduledReminders(ctx context.Context, limit int) ([]*models.ReminderCandidate, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, customer_id, horse_id, provider_id, service_id, updated_at, weeks
FROM (
  SELECT DISTINCT ON (b.horse_id, b.provider_id, b.service_id)
    b.id, b.customer_id, b.horse_id, b.provider_id, b.service_id, b.updated_at,
    b.reminder_due_at, COALESCE(s.recommended_interval_weeks, 0) AS weeks
  FROM bookings b
  JOIN services s ON s.id = b.service_id
  WHERE b.status = $1
    AND b.horse_id IS NOT NULL
    AND (s.recommended_interval_weeks IS NOT NULL OR EXISTS (
      SELECT 1 FROM horse_service_intervals h
      WHERE h.horse_id = b.horse_id
        AND h.provider_id = b.provider_id
        AND (h.service_id IS NULL OR h.service_id = b.service_id)
    ))
  ORDER BY b.horse_id, b.provider_id, b.service_id, b.updated_at DESC, b.id DESC
) latest
WHERE reminder_due_at IS NULL
ORDER BY updated_at, id
LIMIT $2
`, models.BookingStatusCompleted, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select reminder candidates")
	}
	defer rows.Close()

	var out []*models.ReminderCandidate
	for rows.Next() {
		var c models.ReminderCandidate
		if err := rows.Scan(&c.BookingID, &c.CustomerID, &c.HorseID, &c.ProviderID, &c.ServiceID, &c.CompletedAt, &c.DefaultWeeks); err != nil {
			return nil, errors.Wrap(err, "scan reminder candidate")
		}
		out = append(out, &c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ScheduleReminder plans a reminder for bookingID and drops unsent reminders of older
// bookings for the same horse, provider and service.
func (s *Storage) ScheduleReminder(ctx context.Context, bookingID uint64, dueAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, `
UPDATE bookings
SET reminder_due_at = $2, reminder_sent_at = NULL, reminder_lease_until = NULL
WHERE id = $1
`, bookingID, dueAt.UTC())
	if err != nil {
		return errors.Wrap(err, "schedule reminder")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}

	_, err = tx.Exec(ctx, `
UPDATE bookings old
SET reminder_due_at = NULL, reminder_lease_until = NULL
FROM bookings cur
WHERE cur.id = $1
  AND old.id <> cur.id
  AND old.horse_id = cur.horse_id
  AND old.provider_id = cur.provider_id
  AND old.service_id = cur.service_id
  AND old.reminder_due_at IS NOT NULL
  AND old.reminder_sent_at IS NULL
`, bookingID)
	if err != nil {
		return errors.Wrap(err, "drop superseded reminders")
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit tx")
	}
	return nil
}

// ClaimDueReminders picks due, unsent reminders and leases them so that concurrent
// workers skip them until the lease expires. Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueReminders(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Reminder, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT id, customer_id, COALESCE(horse_id, 0), provider_id, service_id, reminder_due_at
FROM bookings
WHERE reminder_due_at <= $1
  AND reminder_sent_at IS NULL
  AND (reminder_lease_until IS NULL OR reminder_lease_until <= $1)
ORDER BY reminder_due_at ASC, id ASC
LIMIT $2
FOR UPDATE SKIP LOCKED
`, now.UTC(), limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due reminders")
	}
	defer rows.Close()

	var picked []*models.Reminder
	for rows.Next() {
		var r models.Reminder
		if err := rows.Scan(&r.BookingID, &r.CustomerID, &r.HorseID, &r.ProviderID, &r.ServiceID, &r.DueAt); err != nil {
			return nil, errors.Wrap(err, "scan due reminder")
		}
		picked = append(picked, &r)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	rows.Close()

	if len(picked) > 0 {
		ids := make([]uint64, 0, len(picked))
		for _, r := range picked {
			ids = append(ids, r.BookingID)
		}
		if _, err := tx.Exec(ctx, `UPDATE bookings SET reminder_lease_until = $2 WHERE id = ANY($1)`, ids, now.UTC().Add(lease)); err != nil {
			return nil, errors.Wrap(err, "lease reminders")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

func (s *Storage) MarkReminderSent(ctx context.Context, bookingID uint64, sentAt time.Time) error {
	tag, err := s.db.Exec(ctx, `
UPDATE bookings
SET reminder_sent_at = $2, reminder_lease_until = NULL
WHERE id = $1 AND reminder_due_at IS NOT NULL
`, bookingID, sentAt.UTC())
	if err != nil {
		return errors.Wrap(err, "mark reminder sent")
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
