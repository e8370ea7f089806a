package reminders

import (
	"context"
	"time"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/services/intervals"
)

type IntervalResolver interface {
	Resolve(ctx context.Context, horseID *uint64, providerID, serviceID uint64, defaultWeeks int) (int, error)
}

type PlannerConfig struct {
	PublishAttempts int           // default: 5
	RetryBase       time.Duration // default: 150ms, grows linearly per attempt
}

func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{
		PublishAttempts: 5,
		RetryBase:       150 * time.Millisecond,
	}
}

// Planner turns a completed visit into the date the next one is due.
type Planner struct {
	cfg       PlannerConfig
	intervals IntervalResolver
}

func NewPlanner(cfg PlannerConfig, resolver IntervalResolver) *Planner {
	def := DefaultPlannerConfig()
	if cfg.PublishAttempts <= 0 {
		cfg.PublishAttempts = def.PublishAttempts
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = def.RetryBase
	}
	return &Planner{cfg: cfg, intervals: resolver}
}

// DueAt applies the horse's override when one exists, the service default otherwise.
// It fails with INVALID_INTERVAL when neither yields a positive number of weeks.
func (p *Planner) DueAt(ctx context.Context, c *models.ReminderCandidate) (time.Time, error) {
	weeks := c.DefaultWeeks
	if p.intervals != nil {
		horseID := c.HorseID
		w, err := p.intervals.Resolve(ctx, &horseID, c.ProviderID, c.ServiceID, c.DefaultWeeks)
		if err != nil {
			return time.Time{}, err
		}
		weeks = w
	}
	if weeks < 1 {
		return time.Time{}, errs.Newf(errs.InvalidInterval, "no interval for horse %d service %d", c.HorseID, c.ServiceID)
	}
	return intervals.DueDate(c.CompletedAt, weeks), nil
}

// RetryDelay is the pause after the attempt-th failed publish (1-based).
func (p *Planner) RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(attempt) * p.cfg.RetryBase
}

func (p *Planner) Attempts() int {
	return p.cfg.PublishAttempts
}
