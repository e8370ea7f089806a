package availability

import (
	"context"
	"time"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/geo"
	"github.com/cola500/equinet/internal/models"
)

type Repository interface {
	// GetAvailabilityException returns nil, nil when the date has no exception.
	GetAvailabilityException(ctx context.Context, providerID uint64, date time.Time) (*models.AvailabilityException, error)
	ListActiveBookings(ctx context.Context, providerID uint64, date time.Time) ([]*models.Booking, error)
}

type Catalog interface {
	GetProvider(ctx context.Context, id uint64) (*models.Provider, error)
	GetService(ctx context.Context, id uint64) (*models.Service, error)
}

type Request struct {
	ProviderID uint64
	ServiceID  uint64
	Date       time.Time
	StartTime  models.Clock
	EndTime    *models.Clock
	Latitude   *float64
	Longitude  *float64
}

// Slot is a request resolved against the catalog.
type Slot struct {
	Provider *models.Provider
	Service  *models.Service
	Window   models.Window
}

type Service struct {
	repo     Repository
	catalog  Catalog
	speedKmH float64
}

func New(repo Repository, catalog Catalog, speedKmH float64) *Service {
	if speedKmH <= 0 {
		speedKmH = geo.DefaultSpeedKmH
	}
	return &Service{repo: repo, catalog: catalog, speedKmH: speedKmH}
}

// Resolve loads the provider and service and computes the requested window.
// The end time defaults to start plus the service duration.
func (s *Service) Resolve(ctx context.Context, req Request) (*Slot, error) {
	if req.ProviderID == 0 {
		return nil, errs.New(errs.Validation, "providerId is required")
	}
	if req.ServiceID == 0 {
		return nil, errs.New(errs.Validation, "serviceId is required")
	}
	if req.Date.IsZero() {
		return nil, errs.New(errs.Validation, "date is required")
	}

	p, err := s.catalog.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	svc, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}
	if svc.ProviderID != p.ID {
		return nil, errs.Newf(errs.Validation, "service %d does not belong to provider %d", svc.ID, p.ID)
	}
	if !svc.IsActive {
		return nil, errs.Newf(errs.Validation, "service %d is not active", svc.ID)
	}

	w := models.Window{Start: req.StartTime, End: req.StartTime.Add(svc.DurationMinutes)}
	if req.EndTime != nil {
		w.End = *req.EndTime
	}
	if !w.Valid() {
		return nil, errs.Newf(errs.Validation, "invalid time window %s-%s", w.Start, w.End)
	}

	return &Slot{Provider: p, Service: svc, Window: w}, nil
}

// Check is the read-time availability check. It is advisory; the write path re-checks.
func (s *Service) Check(ctx context.Context, req Request) (Result, error) {
	slot, err := s.Resolve(ctx, req)
	if err != nil {
		return Result{}, err
	}
	return s.CheckSlot(ctx, slot, req)
}

func (s *Service) CheckSlot(ctx context.Context, slot *Slot, req Request) (Result, error) {
	if !slot.Provider.IsActive || !slot.Provider.AcceptingCustomers {
		return unavailable(ReasonProviderUnavailable), nil
	}

	exc, err := s.repo.GetAvailabilityException(ctx, slot.Provider.ID, req.Date)
	if err != nil {
		return Result{}, err
	}
	bookings, err := s.repo.ListActiveBookings(ctx, slot.Provider.ID, req.Date)
	if err != nil {
		return Result{}, err
	}

	in := Input{Window: slot.Window, Exception: exc, Bookings: bookings}
	if cand, ok := geo.PointOf(req.Latitude, req.Longitude); ok {
		tr := &Travel{Candidate: &cand, SpeedKmH: s.speedKmH}
		if base, ok := geo.PointOf(slot.Provider.Latitude, slot.Provider.Longitude); ok {
			tr.Base = &base
		}
		in.Travel = tr
	}
	return Evaluate(in), nil
}
