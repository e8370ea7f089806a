package intervals

import (
	"context"
	"time"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
)

type Repository interface {
	ListHorseIntervals(ctx context.Context, horseID, providerID uint64) ([]*models.HorseServiceInterval, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Pick returns the most specific override for serviceID among one horse's overrides
// at one provider: a service-specific row beats a provider-wide row.
func Pick(overrides []*models.HorseServiceInterval, serviceID uint64) (int, bool) {
	weeks, found := 0, false
	for _, o := range overrides {
		switch {
		case o.ServiceID != nil && *o.ServiceID == serviceID:
			return o.IntervalWeeks, true
		case o.ServiceID == nil && !found:
			weeks, found = o.IntervalWeeks, true
		}
	}
	return weeks, found
}

// Resolve returns the effective recall interval. An override replaces the default
// whether it is shorter or longer.
func (s *Service) Resolve(ctx context.Context, horseID *uint64, providerID, serviceID uint64, defaultWeeks int) (int, error) {
	if providerID == 0 || serviceID == 0 {
		return 0, errs.New(errs.Validation, "providerId and serviceId are required")
	}
	if horseID == nil {
		return defaultWeeks, nil
	}
	overrides, err := s.repo.ListHorseIntervals(ctx, *horseID, providerID)
	if err != nil {
		return 0, err
	}
	if weeks, ok := Pick(overrides, serviceID); ok {
		return weeks, nil
	}
	return defaultWeeks, nil
}

// DueDate is when the next visit is due after a completed one.
func DueDate(lastCompleted time.Time, weeks int) time.Time {
	return lastCompleted.AddDate(0, 0, weeks*7)
}
