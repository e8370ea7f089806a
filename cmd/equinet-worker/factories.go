package main

import (
	"context"

	"github.com/cola500/equinet/config"
	"github.com/cola500/equinet/internal/broker/kafka"
	"github.com/cola500/equinet/internal/broker/messages"
	"github.com/cola500/equinet/internal/services/intervals"
	"github.com/cola500/equinet/internal/services/reminders"
	"github.com/cola500/equinet/internal/storage/pgbooking"
)

type store interface {
	reminders.Repository
	intervals.Repository
}

type bookingEventsConsumer interface {
	Consume(ctx context.Context, handler func(ctx context.Context, key, value []byte) error) error
	Close() error
}

type workerFactories struct {
	newStorage  func(cfg *config.Config) (st store, closeFn func(), err error)
	newProducer func(cfg *config.Config) messages.Publisher
	// newConsumer may return nil: the worker then relies on its ticker alone.
	newConsumer func(cfg *config.Config, topic, group string) bookingEventsConsumer
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (store, func(), error) {
			st, err := pgbooking.New(cfg.Database.ConnString())
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) messages.Publisher {
			return kafka.NewProducer(cfg.Kafka.Brokers())
		},
		newConsumer: func(cfg *config.Config, topic, group string) bookingEventsConsumer {
			return kafka.NewConsumer(cfg.Kafka.Brokers(), topic, group).WithTypes(messages.TypeBookingStatusChanged)
		},
	}
}
