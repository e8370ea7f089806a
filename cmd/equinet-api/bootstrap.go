package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cola500/equinet/config"
	schedulingapi "github.com/cola500/equinet/internal/api/scheduling_api"
	"github.com/cola500/equinet/internal/broker/kafka"
	"github.com/cola500/equinet/internal/cache/rediscache"
	"github.com/cola500/equinet/internal/features"
	"github.com/cola500/equinet/internal/geo"
	"github.com/cola500/equinet/internal/services/availability"
	"github.com/cola500/equinet/internal/services/bookings"
	"github.com/cola500/equinet/internal/services/catalog"
	"github.com/cola500/equinet/internal/services/intervals"
	"github.com/cola500/equinet/internal/services/routes"
	"github.com/cola500/equinet/internal/services/series"
	"github.com/cola500/equinet/internal/storage/pgbooking"
)

type apiApp struct {
	ctx    context.Context
	cancel context.CancelFunc
	opts   apiOpts
	api    *schedulingapi.SchedulingAPI

	closers []func()
}

func mustBootstrapAPI() *apiApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("config parse error: %v", err))
	}

	httpAddr := cfg.Equinet.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	topic := cfg.Kafka.BookingEventsTopic
	if topic == "" {
		topic = "booking.events"
	}
	speed := cfg.Equinet.SpeedKmH
	if speed <= 0 {
		speed = geo.DefaultSpeedKmH
	}
	cacheTTL := cfg.Equinet.CacheTTL()
	if cacheTTL <= 0 {
		cacheTTL = catalog.DefaultTTL
	}
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "equinet:"
	}

	st := mustOpenPostgresWithRetry(cfg.Database.ConnString(), 60*time.Second)
	rc := rediscache.New(cfg.Redis.Addr(), prefix)
	producer := kafka.NewProducer(cfg.Kafka.Brokers())

	cat := catalog.New(st, rc, cacheTTL)
	av := availability.New(st, cat, speed)
	bk := bookings.New(st, av, producer, topic)
	iv := intervals.New(st)
	flags := features.New(features.WithDefaults(cfg.Equinet.Features), rc)
	sr := series.New(st, cat, flags, iv, bk, producer, topic)
	rt := routes.New(st, cat, speed, producer, topic)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &apiApp{
		ctx:    ctx,
		cancel: cancel,
		opts: apiOpts{
			httpAddr:    httpAddr,
			swaggerPath: swaggerPath,
			ready:       st.Ping,
		},
		api: schedulingapi.New(av, bk, sr, rt, iv),
		closers: []func(){
			func() { _ = producer.Close() },
			func() { _ = rc.Close() },
			st.Close,
		},
	}
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgbooking.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgbooking.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *apiApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	for _, c := range a.closers {
		c()
	}
}

func (a *apiApp) Run() error {
	return runAPI(a.ctx, a.opts, a.api)
}
