package series

import (
	"context"
	"fmt"
	"time"

	"github.com/cola500/equinet/internal/broker/messages"
	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/features"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
	"github.com/pkg/errors"
)

const (
	MinIntervalWeeks = 1
	MaxIntervalWeeks = 52
	MinOccurrences   = 2
	MaxOccurrences   = 52
)

type Flags interface {
	IsEnabled(ctx context.Context, name string) bool
}

type Catalog interface {
	GetProvider(ctx context.Context, id uint64) (*models.Provider, error)
	GetService(ctx context.Context, id uint64) (*models.Service, error)
}

type IntervalResolver interface {
	Resolve(ctx context.Context, horseID *uint64, providerID, serviceID uint64, defaultWeeks int) (int, error)
}

type Booker interface {
	CreateBooking(ctx context.Context, req models.BookingRequest) (*models.Booking, error)
}

type Request struct {
	CreatorID        uint64
	ProviderID       uint64
	ServiceID        uint64
	HorseID          *uint64
	FirstBookingDate time.Time
	StartTime        models.Clock
	IntervalWeeks    *int // nil: horse override or the service's recommended interval
	TotalOccurrences int
	Latitude         *float64
	Longitude        *float64
}

type SkippedDate struct {
	Date    time.Time
	Reason  errs.Code
	Message string
}

// Result is a partial success: Created and Skipped together cover every candidate date.
type Result struct {
	Series  *models.BookingSeries
	Created []*models.Booking
	Skipped []SkippedDate
}

type CancelResult struct {
	Series    *models.BookingSeries
	Cancelled []*models.Booking
}

type Service struct {
	tx        storage.Runner
	catalog   Catalog
	flags     Flags
	intervals IntervalResolver
	booker    Booker
	events    messages.Publisher
	topic     string
	now       func() time.Time
}

func New(tx storage.Runner, catalog Catalog, flags Flags, intervals IntervalResolver, booker Booker, events messages.Publisher, topic string) *Service {
	return &Service{
		tx:        tx,
		catalog:   catalog,
		flags:     flags,
		intervals: intervals,
		booker:    booker,
		events:    events,
		topic:     topic,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CandidateDates returns first + k*intervalWeeks weeks for k = 0..n-1.
func CandidateDates(first time.Time, intervalWeeks, n int) []time.Time {
	out := make([]time.Time, 0, n)
	for k := 0; k < n; k++ {
		out = append(out, first.AddDate(0, 0, k*intervalWeeks*7))
	}
	return out
}

func (s *Service) CreateSeries(ctx context.Context, req Request) (*Result, error) {
	if !s.flags.IsEnabled(ctx, features.RecurringBookings) {
		return nil, errs.New(errs.RecurringFeatureOff, "recurring bookings are switched off")
	}
	if req.CreatorID == 0 {
		return nil, errs.New(errs.Validation, "customerId is required")
	}
	if req.FirstBookingDate.IsZero() {
		return nil, errs.New(errs.Validation, "firstBookingDate is required")
	}

	p, err := s.catalog.GetProvider(ctx, req.ProviderID)
	if errs.Is(err, errs.NotFound) {
		return nil, errs.Newf(errs.RecurringDisabled, "provider %d not found", req.ProviderID)
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive || !p.RecurringEnabled {
		return nil, errs.Newf(errs.RecurringDisabled, "provider %d does not take recurring bookings", p.ID)
	}

	var weeks int
	if req.IntervalWeeks != nil {
		weeks = *req.IntervalWeeks
	} else {
		weeks, err = s.defaultInterval(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	if weeks < MinIntervalWeeks || weeks > MaxIntervalWeeks {
		return nil, errs.Newf(errs.InvalidInterval, "intervalWeeks must be %d-%d, got %d", MinIntervalWeeks, MaxIntervalWeeks, weeks)
	}

	maxN := MaxOccurrences
	if p.MaxSeriesOccurrences > 0 && p.MaxSeriesOccurrences < maxN {
		maxN = p.MaxSeriesOccurrences
	}
	if req.TotalOccurrences < MinOccurrences || req.TotalOccurrences > maxN {
		return nil, errs.Newf(errs.InvalidOccurrences, "totalOccurrences must be %d-%d, got %d", MinOccurrences, maxN, req.TotalOccurrences)
	}

	res := &Result{}
	// Sequential on purpose: each attempt must see the bookings made by the previous ones.
	for _, date := range CandidateDates(req.FirstBookingDate, weeks, req.TotalOccurrences) {
		b, err := s.booker.CreateBooking(ctx, models.BookingRequest{
			ProviderID:  req.ProviderID,
			CustomerID:  req.CreatorID,
			ServiceID:   req.ServiceID,
			HorseID:     req.HorseID,
			BookingDate: date,
			StartTime:   req.StartTime,
			Latitude:    req.Latitude,
			Longitude:   req.Longitude,
		})
		if err != nil {
			code := errs.CodeOf(err)
			if code != errs.SlotConflict && code != errs.SlotUnavailable {
				return nil, err
			}
			var de *errs.Error
			msg := ""
			if errors.As(err, &de) {
				msg = de.Msg
			}
			res.Skipped = append(res.Skipped, SkippedDate{Date: date, Reason: code, Message: msg})
			continue
		}
		res.Created = append(res.Created, b)
	}

	if len(res.Created) == 0 {
		return nil, errs.Newf(errs.NoBookingsCreated, "all %d dates were unavailable", req.TotalOccurrences)
	}

	sr := &models.BookingSeries{
		CreatorID:        req.CreatorID,
		ProviderID:       req.ProviderID,
		ServiceID:        req.ServiceID,
		HorseID:          req.HorseID,
		FirstBookingDate: req.FirstBookingDate,
		StartTime:        req.StartTime,
		IntervalWeeks:    weeks,
		TotalOccurrences: req.TotalOccurrences,
		CreatedCount:     len(res.Created),
		Status:           models.SeriesStatusActive,
	}
	ids := make([]uint64, 0, len(res.Created))
	for _, b := range res.Created {
		ids = append(ids, b.ID)
	}
	err = s.tx.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertSeries(ctx, sr); err != nil {
			return err
		}
		return tx.AttachBookingsToSeries(ctx, sr.ID, ids)
	})
	if err != nil {
		return nil, errors.Wrap(err, "persist series")
	}
	for _, b := range res.Created {
		id := sr.ID
		b.SeriesID = &id
	}
	res.Series = sr

	skipped := make([]string, 0, len(res.Skipped))
	for _, sk := range res.Skipped {
		skipped = append(skipped, models.FormatDate(sk.Date))
	}
	messages.Emit(ctx, s.events, s.topic, eventKey(sr.ProviderID), messages.TypeSeriesCreated, messages.SeriesEvent{
		SeriesID:         sr.ID,
		ProviderID:       sr.ProviderID,
		CreatorID:        sr.CreatorID,
		IntervalWeeks:    sr.IntervalWeeks,
		TotalOccurrences: sr.TotalOccurrences,
		CreatedCount:     sr.CreatedCount,
		BookingIDs:       ids,
		SkippedDates:     skipped,
		Status:           sr.Status,
	})
	return res, nil
}

func (s *Service) defaultInterval(ctx context.Context, req Request) (int, error) {
	svc, err := s.catalog.GetService(ctx, req.ServiceID)
	if err != nil {
		return 0, err
	}
	def := 0
	if svc.RecommendedIntervalWeeks != nil {
		def = *svc.RecommendedIntervalWeeks
	}
	return s.intervals.Resolve(ctx, req.HorseID, req.ProviderID, req.ServiceID, def)
}

// CancelSeries cancels the series and its active bookings from today on. Past bookings stay as they are.
func (s *Service) CancelSeries(ctx context.Context, seriesID, actorID uint64) (*CancelResult, error) {
	today := s.now().Truncate(24 * time.Hour)
	out := &CancelResult{}
	changed := false
	err := s.tx.InTx(ctx, func(tx storage.Tx) error {
		sr, err := tx.GetSeriesForUpdate(ctx, seriesID)
		if errors.Is(err, storage.ErrNotFound) {
			return errs.Newf(errs.SeriesNotFound, "series %d not found", seriesID)
		}
		if err != nil {
			return err
		}
		if sr.CreatorID != actorID {
			return errs.Newf(errs.NotOwner, "series %d belongs to another customer", seriesID)
		}
		out.Series = sr
		if sr.Status == models.SeriesStatusCancelled {
			return nil
		}

		bookings, err := tx.ListSeriesBookings(ctx, seriesID)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if !b.IsActive() || b.BookingDate.Before(today) {
				continue
			}
			if err := tx.UpdateBookingStatus(ctx, b.ID, models.BookingStatusCancelled); err != nil {
				return err
			}
			b.Status = models.BookingStatusCancelled
			out.Cancelled = append(out.Cancelled, b)
		}
		if err := tx.UpdateSeriesStatus(ctx, seriesID, models.SeriesStatusCancelled); err != nil {
			return err
		}
		sr.Status = models.SeriesStatusCancelled
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		ids := make([]uint64, 0, len(out.Cancelled))
		for _, b := range out.Cancelled {
			ids = append(ids, b.ID)
		}
		messages.Emit(ctx, s.events, s.topic, eventKey(out.Series.ProviderID), messages.TypeSeriesCancelled, messages.SeriesEvent{
			SeriesID:         out.Series.ID,
			ProviderID:       out.Series.ProviderID,
			CreatorID:        out.Series.CreatorID,
			IntervalWeeks:    out.Series.IntervalWeeks,
			TotalOccurrences: out.Series.TotalOccurrences,
			CreatedCount:     out.Series.CreatedCount,
			BookingIDs:       ids,
			Status:           out.Series.Status,
		})
	}
	return out, nil
}

func eventKey(providerID uint64) string {
	return fmt.Sprintf("provider:%d", providerID)
}
