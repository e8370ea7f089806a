package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/cola500/equinet/config"
	"github.com/cola500/equinet/internal/services/intervals"
	"github.com/cola500/equinet/internal/services/reminders"
)

type workerSettings struct {
	bookingTopic  string
	reminderTopic string
	group         string
	httpAddr      string
	pollInterval  time.Duration
	batchSize     int
	concurrency   int
	lease         time.Duration
	attempts      int
}

func settingsFrom(cfg *config.Config) workerSettings {
	s := workerSettings{
		bookingTopic:  cfg.Kafka.BookingEventsTopic,
		reminderTopic: cfg.Kafka.ReminderDueTopic,
		group:         cfg.Equinet.WorkerConsumerGroup,
		httpAddr:      cfg.Equinet.WorkerHTTPAddr,
		pollInterval:  time.Duration(cfg.Equinet.WorkerPollIntervalSeconds) * time.Second,
		batchSize:     cfg.Equinet.WorkerBatchSize,
		concurrency:   cfg.Equinet.WorkerConcurrency,
		lease:         time.Duration(cfg.Equinet.WorkerLeaseSeconds) * time.Second,
		attempts:      cfg.Equinet.WorkerPublishAttempts,
	}
	if s.bookingTopic == "" {
		s.bookingTopic = "booking.events"
	}
	if s.reminderTopic == "" {
		s.reminderTopic = "reminder.due"
	}
	if s.group == "" {
		s.group = "equinet-worker"
	}
	if s.httpAddr == "" {
		s.httpAddr = ":8082"
	}
	if s.pollInterval <= 0 {
		s.pollInterval = 30 * time.Second
	}
	if s.batchSize <= 0 {
		s.batchSize = 100
	}
	if s.concurrency <= 0 {
		s.concurrency = 4
	}
	if s.lease <= 0 {
		s.lease = 2 * time.Minute
	}
	return s
}

// RunWorker builds the reminder worker and runs it until ctx ends. When swaggerPath is set
// the worker HTTP server runs next to it.
func RunWorker(ctx context.Context, cfg *config.Config, f workerFactories, swaggerPath string) error {
	s := settingsFrom(cfg)

	st, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	w := reminders.New(st, intervals.New(st), f.newProducer(cfg), s.reminderTopic).
		WithSettings(s.pollInterval, s.batchSize, s.concurrency, s.lease).
		WithPlanner(reminders.PlannerConfig{PublishAttempts: s.attempts})

	if f.newConsumer != nil {
		if c := f.newConsumer(cfg, s.bookingTopic, s.group); c != nil {
			defer func() { _ = c.Close() }()
			go func() {
				slog.Info("kafka consumer started", "topic", s.bookingTopic, "group", s.group)
				if err := c.Consume(ctx, w.HandleBookingEvent); err != nil && ctx.Err() == nil {
					slog.Error("kafka consumer stopped", "error", err.Error())
				}
			}()
		}
	}

	if swaggerPath != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    s.httpAddr,
				swaggerPath: swaggerPath,
				worker:      w,
				settings:    &s,
			})
			if err != nil && ctx.Err() == nil {
				slog.Error("worker http server", "error", err.Error())
			}
		}()
	}

	slog.Info("reminder worker started", "poll_interval", s.pollInterval.String(), "batch", s.batchSize)
	return w.Run(ctx)
}
