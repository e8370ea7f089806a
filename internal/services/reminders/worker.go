// Package reminders plans recall reminders for completed visits and publishes them
// to Kafka once they fall due.
package reminders

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cola500/equinet/internal/broker/messages"
	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	ListUnscheduledReminders(ctx context.Context, limit int) ([]*models.ReminderCandidate, error)
	ScheduleReminder(ctx context.Context, bookingID uint64, dueAt time.Time) error
	ClaimDueReminders(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Reminder, error)
	MarkReminderSent(ctx context.Context, bookingID uint64, sentAt time.Time) error
}

type Worker struct {
	repo     Repository
	producer messages.Publisher
	planner  *Planner

	topic string

	pollInterval time.Duration
	batchSize    int
	concurrency  int
	lease        time.Duration

	now       func() time.Time
	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalPlanned        atomic.Int64
	totalClaimed        atomic.Int64
	totalSent           atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, resolver IntervalResolver, producer messages.Publisher, topic string) *Worker {
	return &Worker{
		repo:              repo,
		producer:          producer,
		planner:           NewPlanner(DefaultPlannerConfig(), resolver),
		topic:             topic,
		pollInterval:      30 * time.Second,
		batchSize:         100,
		concurrency:       4,
		lease:             2 * time.Minute,
		now:               func() time.Time { return time.Now().UTC() },
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (w *Worker) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration) *Worker {
	if pollInterval > 0 {
		w.pollInterval = pollInterval
	}
	if batchSize > 0 {
		w.batchSize = batchSize
	}
	if concurrency > 0 {
		w.concurrency = concurrency
	}
	if lease > 0 {
		w.lease = lease
	}
	return w
}

func (w *Worker) WithPlanner(cfg PlannerConfig) *Worker {
	w.planner = NewPlanner(cfg, w.planner.intervals)
	return w
}

func (w *Worker) WithClock(now func() time.Time) *Worker {
	if now != nil {
		w.now = now
	}
	return w
}

// Trigger asks for an immediate cycle. Non-blocking; triggers coalesce.
func (w *Worker) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastCycleAt   *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt *time.Time `json:"lastTriggerAt,omitempty"`
	TotalPlanned  int64      `json:"totalPlanned"`
	TotalClaimed  int64      `json:"totalClaimed"`
	TotalSent     int64      `json:"totalSent"`
	TotalErrors   int64      `json:"totalErrors"`
	InFlight      int64      `json:"inFlight"`
	LastError     string     `json:"lastError,omitempty"`
}

func (w *Worker) Stats() Stats {
	st := Stats{
		StartedAt:    time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalPlanned: w.totalPlanned.Load(),
		TotalClaimed: w.totalClaimed.Load(),
		TotalSent:    w.totalSent.Load(),
		TotalErrors:  w.totalErrors.Load(),
		InFlight:     w.inFlight.Load(),
	}
	if n := w.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.lastErrorMu.Lock()
	st.LastError = w.lastError
	w.lastErrorMu.Unlock()
	return st
}

func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.RunOnce(ctx)
		case <-w.triggerCh:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce plans reminders for newly completed visits, then sends the ones that are due.
func (w *Worker) RunOnce(ctx context.Context) {
	now := w.now()
	w.lastCycleUnixNano.Store(time.Now().UTC().UnixNano())

	if err := w.plan(ctx); err != nil {
		w.fail(err)
		slog.Error("plan reminders", "error", err.Error())
	}

	items, err := w.repo.ClaimDueReminders(ctx, now, w.batchSize, w.lease)
	if err != nil {
		w.fail(err)
		slog.Error("claim due reminders", "error", err.Error())
		return
	}
	w.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, r := range items {
		sem <- struct{}{}
		wg.Add(1)
		w.inFlight.Add(1)
		go func(r *models.Reminder) {
			defer func() {
				w.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := w.send(ctx, r); err != nil {
				w.fail(err)
				slog.Error("send reminder", "booking_id", r.BookingID, "error", err.Error())
				return
			}
			w.totalSent.Add(1)
		}(r)
	}
	wg.Wait()
}

func (w *Worker) plan(ctx context.Context) error {
	cands, err := w.repo.ListUnscheduledReminders(ctx, w.batchSize)
	if err != nil {
		return errors.Wrap(err, "list unscheduled reminders")
	}
	for _, c := range cands {
		dueAt, err := w.planner.DueAt(ctx, c)
		if errs.Is(err, errs.InvalidInterval) {
			slog.Warn("reminder skipped", "booking_id", c.BookingID, "err", err)
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "resolve interval for booking %d", c.BookingID)
		}
		if err := w.repo.ScheduleReminder(ctx, c.BookingID, dueAt); err != nil {
			return errors.Wrapf(err, "schedule reminder for booking %d", c.BookingID)
		}
		w.totalPlanned.Add(1)
		slog.Info("reminder planned", "booking_id", c.BookingID, "horse_id", c.HorseID, "due_at", dueAt)
	}
	return nil
}

// send publishes and only then marks the reminder sent. A failed publish leaves the
// lease to expire so the reminder is claimed again later.
func (w *Worker) send(ctx context.Context, r *models.Reminder) error {
	env, err := messages.NewEnvelope(messages.TypeReminderDue, messages.ReminderDue{
		BookingID:  r.BookingID,
		CustomerID: r.CustomerID,
		HorseID:    r.HorseID,
		ProviderID: r.ProviderID,
		ServiceID:  r.ServiceID,
		DueAt:      r.DueAt,
	})
	if err != nil {
		return errors.Wrap(err, "encode reminder")
	}
	b, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	key := []byte(strconv.FormatUint(r.HorseID, 10))
	var pubErr error
	for i := 1; i <= w.planner.Attempts(); i++ {
		if pubErr = w.producer.Publish(ctx, w.topic, key, b); pubErr == nil {
			break
		}
		if i == w.planner.Attempts() {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.planner.RetryDelay(i)):
		}
	}
	if pubErr != nil {
		return errors.Wrap(pubErr, "publish reminder")
	}
	return w.repo.MarkReminderSent(ctx, r.BookingID, w.now())
}

// HandleBookingEvent is a Kafka handler for booking events: a visit marked completed
// triggers a cycle so its reminder is planned without waiting for the ticker.
func (w *Worker) HandleBookingEvent(_ context.Context, _, value []byte) error {
	var env messages.Envelope
	if err := json.Unmarshal(value, &env); err != nil {
		slog.Warn("skip malformed booking event", "error", err.Error())
		return nil
	}
	if env.Type != messages.TypeBookingStatusChanged {
		return nil
	}
	var ev messages.BookingEvent
	if err := env.Decode(&ev); err != nil {
		slog.Warn("skip malformed booking event", "event_id", env.EventID, "error", err.Error())
		return nil
	}
	if ev.Status == models.BookingStatusCompleted && ev.HorseID != nil {
		w.Trigger()
	}
	return nil
}

func (w *Worker) fail(err error) {
	w.totalErrors.Add(1)
	w.lastErrorMu.Lock()
	w.lastError = err.Error()
	w.lastErrorMu.Unlock()
}
