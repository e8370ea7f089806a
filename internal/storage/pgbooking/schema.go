package pgbooking

import (
	"context"

	"github.com/pkg/errors"
)

// InitSchema creates the tables if they do not exist. Safe to run on every start.
func (s *Storage) InitSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS btree_gist`,
		`
CREATE TABLE IF NOT EXISTS providers (
  id BIGSERIAL PRIMARY KEY,
  name TEXT NOT NULL,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  accepting_customers BOOLEAN NOT NULL DEFAULT TRUE,
  recurring_enabled BOOLEAN NOT NULL DEFAULT FALSE,
  max_series_occurrences INT NOT NULL DEFAULT 12,
  latitude DOUBLE PRECISION NULL,
  longitude DOUBLE PRECISION NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS services (
  id BIGSERIAL PRIMARY KEY,
  provider_id BIGINT NOT NULL REFERENCES providers(id),
  name TEXT NOT NULL,
  duration_minutes INT NOT NULL CHECK (duration_minutes > 0),
  price DOUBLE PRECISION NOT NULL DEFAULT 0,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  recommended_interval_weeks INT NULL CHECK (recommended_interval_weeks BETWEEN 1 AND 52)
)`,
		`
CREATE TABLE IF NOT EXISTS availability_exceptions (
  provider_id BIGINT NOT NULL REFERENCES providers(id),
  exception_date DATE NOT NULL,
  is_closed BOOLEAN NOT NULL DEFAULT FALSE,
  start_minute INT NULL,
  end_minute INT NULL,
  reason TEXT NULL,
  PRIMARY KEY (provider_id, exception_date)
)`,
		`
CREATE TABLE IF NOT EXISTS route_orders (
  id BIGSERIAL PRIMARY KEY,
  customer_id BIGINT NOT NULL,
  service_type TEXT NOT NULL DEFAULT '',
  address TEXT NOT NULL DEFAULT '',
  latitude DOUBLE PRECISION NULL,
  longitude DOUBLE PRECISION NULL,
  number_of_horses INT NOT NULL DEFAULT 1 CHECK (number_of_horses > 0),
  priority TEXT NOT NULL DEFAULT 'normal',
  date_from DATE NOT NULL,
  date_to DATE NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
		`
CREATE TABLE IF NOT EXISTS booking_series (
  id BIGSERIAL PRIMARY KEY,
  creator_id BIGINT NOT NULL,
  provider_id BIGINT NOT NULL REFERENCES providers(id),
  service_id BIGINT NOT NULL REFERENCES services(id),
  horse_id BIGINT NULL,
  first_booking_date DATE NOT NULL,
  start_minute INT NOT NULL,
  interval_weeks INT NOT NULL CHECK (interval_weeks BETWEEN 1 AND 52),
  total_occurrences INT NOT NULL CHECK (total_occurrences BETWEEN 2 AND 52),
  created_count INT NOT NULL,
  status TEXT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS bookings (
  id BIGSERIAL PRIMARY KEY,
  provider_id BIGINT NOT NULL REFERENCES providers(id),
  customer_id BIGINT NOT NULL,
  service_id BIGINT NOT NULL REFERENCES services(id),
  horse_id BIGINT NULL,
  route_order_id BIGINT NULL REFERENCES route_orders(id),
  series_id BIGINT NULL REFERENCES booking_series(id),
  booking_date DATE NOT NULL,
  start_minute INT NOT NULL,
  end_minute INT NOT NULL,
  status TEXT NOT NULL,
  latitude DOUBLE PRECISION NULL,
  longitude DOUBLE PRECISION NULL,
  idempotency_key TEXT NULL,
  reminder_due_at TIMESTAMPTZ NULL,
  reminder_sent_at TIMESTAMPTZ NULL,
  reminder_lease_until TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  CHECK (start_minute >= 0 AND end_minute <= 1440 AND start_minute < end_minute),
  CONSTRAINT bookings_no_overlap EXCLUDE USING gist (
    provider_id WITH =,
    booking_date WITH =,
    int4range(start_minute, end_minute) WITH &&
  ) WHERE (status IN ('pending', 'confirmed'))
)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_provider_date ON bookings(provider_id, booking_date)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_series ON bookings(series_id) WHERE series_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_idempotency ON bookings(customer_id, idempotency_key) WHERE idempotency_key IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_reminder_due ON bookings(reminder_due_at) WHERE reminder_sent_at IS NULL`,
		`
CREATE TABLE IF NOT EXISTS routes (
  id BIGSERIAL PRIMARY KEY,
  provider_id BIGINT NOT NULL REFERENCES providers(id),
  route_name TEXT NOT NULL,
  route_date DATE NOT NULL,
  start_minute INT NOT NULL,
  status TEXT NOT NULL,
  total_distance_km DOUBLE PRECISION NOT NULL,
  total_duration_minutes INT NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`
CREATE TABLE IF NOT EXISTS route_stops (
  id BIGSERIAL PRIMARY KEY,
  route_id BIGINT NOT NULL REFERENCES routes(id) ON DELETE CASCADE,
  route_order_id BIGINT NOT NULL REFERENCES route_orders(id),
  stop_order INT NOT NULL CHECK (stop_order > 0),
  estimated_arrival TIMESTAMPTZ NOT NULL,
  estimated_duration_min INT NOT NULL,
  status TEXT NOT NULL,
  UNIQUE (route_id, stop_order)
)`,
		`
CREATE TABLE IF NOT EXISTS horse_service_intervals (
  id BIGSERIAL PRIMARY KEY,
  horse_id BIGINT NOT NULL,
  provider_id BIGINT NOT NULL REFERENCES providers(id),
  service_id BIGINT NULL REFERENCES services(id),
  interval_weeks INT NOT NULL CHECK (interval_weeks BETWEEN 1 AND 104)
)`,
		// One provider-wide row and one row per service for a horse.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_horse_interval_service ON horse_service_intervals(horse_id, provider_id, service_id) WHERE service_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_horse_interval_provider ON horse_service_intervals(horse_id, provider_id) WHERE service_id IS NULL`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
