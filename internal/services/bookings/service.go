package bookings

import (
	"context"
	"fmt"

	"github.com/cola500/equinet/internal/broker/messages"
	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/services/availability"
	"github.com/cola500/equinet/internal/storage"
	"github.com/pkg/errors"
)

type Checker interface {
	Resolve(ctx context.Context, req availability.Request) (*availability.Slot, error)
	CheckSlot(ctx context.Context, slot *availability.Slot, req availability.Request) (availability.Result, error)
}

type Service struct {
	tx      storage.Runner
	checker Checker
	events  messages.Publisher
	topic   string
}

func New(tx storage.Runner, checker Checker, events messages.Publisher, topic string) *Service {
	return &Service{tx: tx, checker: checker, events: events, topic: topic}
}

// CreateBooking books one slot. The read-time availability check runs first; the
// authoritative overlap check is repeated inside the write transaction.
func (s *Service) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error) {
	if req.CustomerID == 0 {
		return nil, errs.New(errs.Validation, "customerId is required")
	}

	if req.IdempotencyKey != nil {
		if *req.IdempotencyKey == "" {
			return nil, errs.New(errs.Validation, "idempotencyKey must not be empty")
		}
		prev, err := s.findByKey(ctx, req.CustomerID, *req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if prev != nil {
			return prev, nil
		}
	}

	areq := availability.Request{
		ProviderID: req.ProviderID,
		ServiceID:  req.ServiceID,
		Date:       req.BookingDate,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	}
	slot, err := s.checker.Resolve(ctx, areq)
	if err != nil {
		return nil, err
	}
	res, err := s.checker.CheckSlot(ctx, slot, areq)
	if err != nil {
		return nil, err
	}
	if !res.Available {
		if res.Reason == availability.ReasonBooked {
			return nil, errs.New(errs.SlotConflict, res.Reason)
		}
		return nil, errs.New(errs.SlotUnavailable, res.Reason)
	}

	b := &models.Booking{
		ProviderID:     req.ProviderID,
		CustomerID:     req.CustomerID,
		ServiceID:      req.ServiceID,
		HorseID:        req.HorseID,
		RouteOrderID:   req.RouteOrderID,
		BookingDate:    req.BookingDate,
		StartTime:      slot.Window.Start,
		EndTime:        slot.Window.End,
		Status:         models.BookingStatusPending,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		IdempotencyKey: req.IdempotencyKey,
	}
	created, err := s.Insert(ctx, b)
	if err != nil {
		return nil, err
	}

	if created == b {
		messages.Emit(ctx, s.events, s.topic, eventKey(b.ProviderID), messages.TypeBookingCreated, bookingEvent(b, ""))
	}
	return created, nil
}

// Insert runs the write-time conflict guard for an already resolved booking.
// When the idempotency key matches an existing booking, that booking is returned instead.
func (s *Service) Insert(ctx context.Context, b *models.Booking) (*models.Booking, error) {
	out := b
	err := s.tx.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProviderDay(ctx, b.ProviderID, b.BookingDate); err != nil {
			return err
		}
		if b.IdempotencyKey != nil {
			prev, err := tx.FindBookingByIdempotencyKey(ctx, b.CustomerID, *b.IdempotencyKey)
			if err == nil {
				out = prev
				return nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
		}

		active, err := tx.ListActiveBookings(ctx, b.ProviderID, b.BookingDate)
		if err != nil {
			return err
		}
		for _, other := range active {
			if other.Window().Overlaps(b.Window()) {
				return errs.Newf(errs.SlotConflict, "overlaps booking %d", other.ID)
			}
		}

		if err := tx.InsertBooking(ctx, b); err != nil {
			if errors.Is(err, storage.ErrConflict) {
				return errs.New(errs.SlotConflict, "slot was taken concurrently")
			}
			return err
		}
		return nil
	})
	if errors.Is(err, storage.ErrConflict) {
		return nil, errs.New(errs.SlotConflict, "slot was taken concurrently")
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateStatus moves a booking along pending -> confirmed -> completed, or to cancelled.
func (s *Service) UpdateStatus(ctx context.Context, bookingID uint64, status string) (*models.Booking, error) {
	if bookingID == 0 {
		return nil, errs.New(errs.Validation, "bookingId is required")
	}

	var (
		out      *models.Booking
		previous string
	)
	err := s.tx.InTx(ctx, func(tx storage.Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if errors.Is(err, storage.ErrNotFound) {
			return errs.Newf(errs.NotFound, "booking %d not found", bookingID)
		}
		if err != nil {
			return err
		}
		if !models.CanTransition(b.Status, status) {
			return errs.Newf(errs.InvalidTransition, "%s -> %s", b.Status, status)
		}
		if err := tx.UpdateBookingStatus(ctx, bookingID, status); err != nil {
			return err
		}
		previous = b.Status
		b.Status = status
		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages.Emit(ctx, s.events, s.topic, eventKey(out.ProviderID), messages.TypeBookingStatusChanged, bookingEvent(out, previous))
	return out, nil
}

func (s *Service) findByKey(ctx context.Context, customerID uint64, key string) (*models.Booking, error) {
	var found *models.Booking
	err := s.tx.InTx(ctx, func(tx storage.Tx) error {
		b, err := tx.FindBookingByIdempotencyKey(ctx, customerID, key)
		if errors.Is(err, storage.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = b
		return nil
	})
	return found, err
}

func eventKey(providerID uint64) string {
	return fmt.Sprintf("provider:%d", providerID)
}

func bookingEvent(b *models.Booking, previous string) messages.BookingEvent {
	return messages.BookingEvent{
		BookingID:      b.ID,
		ProviderID:     b.ProviderID,
		CustomerID:     b.CustomerID,
		ServiceID:      b.ServiceID,
		HorseID:        b.HorseID,
		SeriesID:       b.SeriesID,
		BookingDate:    models.FormatDate(b.BookingDate),
		StartTime:      b.StartTime.String(),
		EndTime:        b.EndTime.String(),
		Status:         b.Status,
		PreviousStatus: previous,
	}
}
