// Package storage declares the persistence collaborator the scheduling services depend on.
// Implementations live in subpackages: pgbooking (PostgreSQL) and memstore (in-process).
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/cola500/equinet/internal/models"
)

var (
	// ErrNotFound is returned by lookups that found no row.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when an insert would break the no-overlap invariant
	// or a uniqueness rule the store enforces on its own.
	ErrConflict = errors.New("conflict")
)

// Tx is the set of operations that must run inside one atomic transaction.
// Every write path of the engine goes through it.
type Tx interface {
	// LockProviderDay serializes writers of one provider's booking set for one date
	// until the transaction ends.
	LockProviderDay(ctx context.Context, providerID uint64, date time.Time) error
	ListActiveBookings(ctx context.Context, providerID uint64, date time.Time) ([]*models.Booking, error)
	FindBookingByIdempotencyKey(ctx context.Context, customerID uint64, key string) (*models.Booking, error)
	InsertBooking(ctx context.Context, b *models.Booking) error
	GetBookingForUpdate(ctx context.Context, id uint64) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, id uint64, status string) error

	InsertSeries(ctx context.Context, s *models.BookingSeries) error
	AttachBookingsToSeries(ctx context.Context, seriesID uint64, bookingIDs []uint64) error
	GetSeriesForUpdate(ctx context.Context, id uint64) (*models.BookingSeries, error)
	UpdateSeriesStatus(ctx context.Context, id uint64, status string) error
	ListSeriesBookings(ctx context.Context, seriesID uint64) ([]*models.Booking, error)

	// LockRouteOrders returns the orders that exist, locked for the rest of the transaction.
	LockRouteOrders(ctx context.Context, ids []uint64) ([]*models.RouteOrder, error)
	SetRouteOrdersStatus(ctx context.Context, ids []uint64, status string) error
	InsertRoute(ctx context.Context, r *models.Route) error
	InsertRouteStop(ctx context.Context, s *models.RouteStop) error
}

// Runner runs fn in a transaction. fn's error rolls everything back and is returned as is.
type Runner interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}
