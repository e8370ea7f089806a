package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cola500/equinet/config"
	"github.com/cola500/equinet/internal/broker/kafka"
	"github.com/cola500/equinet/internal/broker/messages"
	"github.com/cola500/equinet/internal/services/intervals"
	"github.com/cola500/equinet/internal/services/reminders"
	"github.com/cola500/equinet/internal/storage/memstore"
	"github.com/stretchr/testify/require"
)

type noopProducer struct{}

func (noopProducer) Publish(context.Context, string, []byte, []byte) error { return nil }

type fakeConsumer struct {
	consumed atomic.Bool
	closed   atomic.Bool
}

func (c *fakeConsumer) Consume(ctx context.Context, _ func(ctx context.Context, key, value []byte) error) error {
	c.consumed.Store(true)
	<-ctx.Done()
	return ctx.Err()
}

func (c *fakeConsumer) Close() error {
	c.closed.Store(true)
	return nil
}

func TestSettingsFrom_Defaults(t *testing.T) {
	s := settingsFrom(&config.Config{})
	require.Equal(t, "booking.events", s.bookingTopic)
	require.Equal(t, "reminder.due", s.reminderTopic)
	require.Equal(t, "equinet-worker", s.group)
	require.Equal(t, ":8082", s.httpAddr)
	require.Equal(t, 30*time.Second, s.pollInterval)
	require.Equal(t, 100, s.batchSize)
	require.Equal(t, 2*time.Minute, s.lease)

	s = settingsFrom(&config.Config{Equinet: config.EquinetConfig{WorkerBatchSize: 7, WorkerLeaseSeconds: 10}})
	require.Equal(t, 7, s.batchSize)
	require.Equal(t, 10*time.Second, s.lease)
}

func TestDefaultWorkerFactories_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{Kafka: config.KafkaConfig{Host: "localhost", Port: 9092}}

	p := f.newProducer(cfg)
	_, ok := p.(*kafka.Producer)
	require.True(t, ok)
	require.NotNil(t, f.newStorage)
	require.NotNil(t, f.newConsumer)
}

func TestRunWorker_ContextCanceled(t *testing.T) {
	calledClose := false
	consumer := &fakeConsumer{}
	f := workerFactories{
		newStorage: func(*config.Config) (store, func(), error) {
			return memstore.New(), func() { calledClose = true }, nil
		},
		newProducer: func(*config.Config) messages.Publisher { return noopProducer{} },
		newConsumer: func(*config.Config, string, string) bookingEventsConsumer { return consumer },
	}
	cfg := &config.Config{Equinet: config.EquinetConfig{WorkerPollIntervalSeconds: 1}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := RunWorker(ctx, cfg, f, "")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, calledClose)
	require.True(t, consumer.closed.Load())
}

func TestWorkerRouter(t *testing.T) {
	sw := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(sw, []byte(`{"swagger":"2.0"}`), 0o600))

	st := memstore.New()
	w := reminders.New(st, intervals.New(st), noopProducer{}, "reminder.due")
	s := settingsFrom(&config.Config{})
	h := newWorkerRouter(workerHTTPOpts{swaggerPath: sw, worker: w, settings: &s})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/trigger", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"triggered":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats reminders.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.NotNil(t, stats.LastTriggerAt)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/config", nil))
	var cfg map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cfg))
	require.Equal(t, "reminder.due", cfg["reminderTopic"])
	require.EqualValues(t, 100, cfg["batchSize"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/swagger.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "swagger")
}

func TestRunWorkerHTTPServer_RequiresSwagger(t *testing.T) {
	err := runWorkerHTTPServer(context.Background(), workerHTTPOpts{httpAddr: "127.0.0.1:0"})
	require.Error(t, err)
}
