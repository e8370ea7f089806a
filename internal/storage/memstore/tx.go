package memstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
)

// tx runs with Store.mu held by InTx.
type tx struct {
	s *Store
}

var _ storage.Tx = (*tx)(nil)

// LockProviderDay is a no-op: InTx already holds the store-wide lock.
func (t *tx) LockProviderDay(context.Context, uint64, time.Time) error {
	return nil
}

func (t *tx) ListActiveBookings(_ context.Context, providerID uint64, date time.Time) ([]*models.Booking, error) {
	return t.s.activeBookings(providerID, date), nil
}

func (t *tx) FindBookingByIdempotencyKey(_ context.Context, customerID uint64, key string) (*models.Booking, error) {
	for _, b := range t.s.st.bookings {
		if b.CustomerID == customerID && b.IdempotencyKey != nil && *b.IdempotencyKey == key {
			return &b, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (t *tx) InsertBooking(ctx context.Context, b *models.Booking) error {
	if b.IdempotencyKey != nil {
		if _, err := t.FindBookingByIdempotencyKey(ctx, b.CustomerID, *b.IdempotencyKey); err == nil {
			return fmt.Errorf("idempotency key %q: %w", *b.IdempotencyKey, storage.ErrConflict)
		}
	}
	// Same guarantee as the exclusion constraint in PostgreSQL.
	if b.IsActive() {
		for _, other := range t.s.activeBookings(b.ProviderID, b.BookingDate) {
			if other.Window().Overlaps(b.Window()) {
				return fmt.Errorf("overlaps booking %d: %w", other.ID, storage.ErrConflict)
			}
		}
	}
	now := t.s.now()
	b.ID = t.s.id()
	b.CreatedAt = now
	b.UpdatedAt = now
	t.s.st.bookings[b.ID] = *b
	return nil
}

func (t *tx) GetBookingForUpdate(_ context.Context, id uint64) (*models.Booking, error) {
	b, ok := t.s.st.bookings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &b, nil
}

func (t *tx) UpdateBookingStatus(_ context.Context, id uint64, status string) error {
	b, ok := t.s.st.bookings[id]
	if !ok {
		return storage.ErrNotFound
	}
	b.Status = status
	b.UpdatedAt = t.s.now()
	t.s.st.bookings[id] = b
	return nil
}

func (t *tx) InsertSeries(_ context.Context, sr *models.BookingSeries) error {
	now := t.s.now()
	sr.ID = t.s.id()
	sr.CreatedAt = now
	sr.UpdatedAt = now
	t.s.st.series[sr.ID] = *sr
	return nil
}

func (t *tx) AttachBookingsToSeries(_ context.Context, seriesID uint64, bookingIDs []uint64) error {
	if _, ok := t.s.st.series[seriesID]; !ok {
		return storage.ErrNotFound
	}
	for _, id := range bookingIDs {
		b, ok := t.s.st.bookings[id]
		if !ok {
			return storage.ErrNotFound
		}
		sid := seriesID
		b.SeriesID = &sid
		t.s.st.bookings[id] = b
	}
	return nil
}

func (t *tx) GetSeriesForUpdate(_ context.Context, id uint64) (*models.BookingSeries, error) {
	sr, ok := t.s.st.series[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &sr, nil
}

func (t *tx) UpdateSeriesStatus(_ context.Context, id uint64, status string) error {
	sr, ok := t.s.st.series[id]
	if !ok {
		return storage.ErrNotFound
	}
	sr.Status = status
	sr.UpdatedAt = t.s.now()
	t.s.st.series[id] = sr
	return nil
}

func (t *tx) ListSeriesBookings(_ context.Context, seriesID uint64) ([]*models.Booking, error) {
	var out []*models.Booking
	for _, b := range t.s.st.bookings {
		if b.SeriesID != nil && *b.SeriesID == seriesID {
			b := b
			out = append(out, &b)
		}
	}
	sortBookings(out)
	return out, nil
}

func (t *tx) LockRouteOrders(_ context.Context, ids []uint64) ([]*models.RouteOrder, error) {
	out := make([]*models.RouteOrder, 0, len(ids))
	for _, id := range ids {
		if o, ok := t.s.st.routeOrders[id]; ok {
			out = append(out, &o)
		}
	}
	return out, nil
}

func (t *tx) SetRouteOrdersStatus(_ context.Context, ids []uint64, status string) error {
	for _, id := range ids {
		o, ok := t.s.st.routeOrders[id]
		if !ok {
			return storage.ErrNotFound
		}
		o.Status = status
		t.s.st.routeOrders[id] = o
	}
	return nil
}

func (t *tx) InsertRoute(_ context.Context, r *models.Route) error {
	r.ID = t.s.id()
	r.CreatedAt = t.s.now()
	stored := *r
	stored.Stops = nil
	t.s.st.routes[r.ID] = stored
	return nil
}

func (t *tx) InsertRouteStop(_ context.Context, st *models.RouteStop) error {
	if _, ok := t.s.st.routes[st.RouteID]; !ok {
		return storage.ErrNotFound
	}
	if _, ok := t.s.st.routeOrders[st.RouteOrderID]; !ok {
		return storage.ErrNotFound
	}
	for _, other := range t.s.st.stops {
		if other.RouteID == st.RouteID && other.StopOrder == st.StopOrder {
			return fmt.Errorf("stop order %d already used in route %d", st.StopOrder, st.RouteID)
		}
	}
	st.ID = t.s.id()
	t.s.st.stops[st.ID] = *st
	return nil
}
