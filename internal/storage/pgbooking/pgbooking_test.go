package pgbooking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/services/availability"
	"github.com/cola500/equinet/internal/services/bookings"
	"github.com/cola500/equinet/internal/services/catalog"
	"github.com/cola500/equinet/internal/services/routes"
	"github.com/cola500/equinet/internal/storage"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) *Storage {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "admin",
			"POSTGRES_PASSWORD": "admin",
			"POSTGRES_DB":       "equinet_test",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	host, err := pgC.Host(ctx)
	require.NoError(t, err)
	port, err := pgC.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := "postgres://admin:admin@" + host + ":" + port.Port() + "/equinet_test?sslmode=disable"
	var st *Storage
	// the port opens before postgres accepts connections
	require.Eventually(t, func() bool {
		st, err = New(dsn)
		return err == nil
	}, 30*time.Second, 500*time.Millisecond)
	t.Cleanup(st.Close)
	return st
}

func TestPGBooking_RepoFlow(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)
	require.NoError(t, st.Ping(ctx))
	// schema init is idempotent
	require.NoError(t, st.InitSchema(ctx))

	lat, lon := 59.33, 18.06
	p := &models.Provider{Name: "Hovslagare", IsActive: true, AcceptingCustomers: true, RecurringEnabled: true, Latitude: &lat, Longitude: &lon}
	require.NoError(t, st.CreateProvider(ctx, p))
	require.NotZero(t, p.ID)
	weeks := 6
	svc := &models.Service{ProviderID: p.ID, Name: "Verkning", DurationMinutes: 60, Price: 900, IsActive: true, RecommendedIntervalWeeks: &weeks}
	require.NoError(t, st.CreateService(ctx, svc))

	gotP, err := st.GetProvider(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Hovslagare", gotP.Name)
	require.InDelta(t, lat, *gotP.Latitude, 1e-9)
	gotS, err := st.GetService(ctx, svc.ID)
	require.NoError(t, err)
	require.Equal(t, 6, *gotS.RecommendedIntervalWeeks)
	_, err = st.GetProvider(ctx, 424242)
	require.ErrorIs(t, err, storage.ErrNotFound)

	date := time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC)
	horse := uint64(11)
	key := "idem-1"
	newBooking := func(start, end models.Clock) *models.Booking {
		return &models.Booking{
			ProviderID: p.ID, CustomerID: 5, ServiceID: svc.ID, HorseID: &horse,
			BookingDate: date, StartTime: start, EndTime: end, Status: models.BookingStatusPending,
		}
	}

	first := newBooking(clk(10, 0), clk(11, 0))
	first.IdempotencyKey = &key
	require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.LockProviderDay(ctx, p.ID, date); err != nil {
			return err
		}
		return tx.InsertBooking(ctx, first)
	}))
	require.NotZero(t, first.ID)

	// the exclusion constraint rejects overlaps even without the in-tx check
	err = st.InTx(ctx, func(tx storage.Tx) error {
		return tx.InsertBooking(ctx, newBooking(clk(10, 30), clk(11, 30)))
	})
	require.ErrorIs(t, err, storage.ErrConflict)

	// touching intervals are fine
	adjacent := newBooking(clk(11, 0), clk(12, 0))
	require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error { return tx.InsertBooking(ctx, adjacent) }))

	active, err := st.ListActiveBookings(ctx, p.ID, date)
	require.NoError(t, err)
	require.Len(t, active, 2)

	require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error {
		found, err := tx.FindBookingByIdempotencyKey(ctx, 5, key)
		require.NoError(t, err)
		require.Equal(t, first.ID, found.ID)
		_, err = tx.FindBookingByIdempotencyKey(ctx, 6, key)
		require.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	}))

	// a cancelled booking frees its slot
	require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error {
		return tx.UpdateBookingStatus(ctx, adjacent.ID, models.BookingStatusCancelled)
	}))
	replacement := newBooking(clk(11, 0), clk(12, 0))
	require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error { return tx.InsertBooking(ctx, replacement) }))

	// errors inside fn roll back the whole transaction
	rolledBack := newBooking(clk(14, 0), clk(15, 0))
	err = st.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.InsertBooking(ctx, rolledBack); err != nil {
			return err
		}
		return errs.New(errs.Validation, "boom")
	})
	require.True(t, errs.Is(err, errs.Validation))
	active, err = st.ListActiveBookings(ctx, p.ID, date)
	require.NoError(t, err)
	require.Len(t, active, 2)

	exc, err := st.GetAvailabilityException(ctx, p.ID, date)
	require.NoError(t, err)
	require.Nil(t, exc)
	open, closeAt := clk(8, 0), clk(12, 0)
	require.NoError(t, st.UpsertAvailabilityException(ctx, &models.AvailabilityException{
		ProviderID: p.ID, Date: date, StartTime: &open, EndTime: &closeAt,
	}))
	exc, err = st.GetAvailabilityException(ctx, p.ID, date)
	require.NoError(t, err)
	require.NotNil(t, exc)
	require.False(t, exc.IsClosed)
	require.Equal(t, open, *exc.StartTime)

	require.NoError(t, st.UpsertHorseInterval(ctx, &models.HorseServiceInterval{HorseID: horse, ProviderID: p.ID, IntervalWeeks: 8}))
	require.NoError(t, st.UpsertHorseInterval(ctx, &models.HorseServiceInterval{HorseID: horse, ProviderID: p.ID, ServiceID: &svc.ID, IntervalWeeks: 4}))
	require.NoError(t, st.UpsertHorseInterval(ctx, &models.HorseServiceInterval{HorseID: horse, ProviderID: p.ID, IntervalWeeks: 7}))
	overrides, err := st.ListHorseIntervals(ctx, horse, p.ID)
	require.NoError(t, err)
	require.Len(t, overrides, 2)
	require.Equal(t, 7, overrides[0].IntervalWeeks)
	require.Nil(t, overrides[0].ServiceID)
	require.Equal(t, 4, overrides[1].IntervalWeeks)
}

func TestPGBooking_SeriesTx(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	p := &models.Provider{Name: "P", IsActive: true, AcceptingCustomers: true, RecurringEnabled: true}
	require.NoError(t, st.CreateProvider(ctx, p))
	svc := &models.Service{ProviderID: p.ID, Name: "S", DurationMinutes: 45, IsActive: true}
	require.NoError(t, st.CreateService(ctx, svc))

	d1 := time.Date(2027, 4, 5, 0, 0, 0, 0, time.UTC)
	d2 := d1.AddDate(0, 0, 14)
	sr := &models.BookingSeries{
		CreatorID: 3, ProviderID: p.ID, ServiceID: svc.ID, FirstBookingDate: d1,
		StartTime: clk(9, 0), IntervalWeeks: 2, TotalOccurrences: 2, CreatedCount: 2,
		Status: models.SeriesStatusActive,
	}
	var ids []uint64
	require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error {
		for _, d := range []time.Time{d1, d2} {
			b := &models.Booking{
				ProviderID: p.ID, CustomerID: 3, ServiceID: svc.ID, BookingDate: d,
				StartTime: clk(9, 0), EndTime: clk(9, 45), Status: models.BookingStatusPending,
			}
			if err := tx.InsertBooking(ctx, b); err != nil {
				return err
			}
			ids = append(ids, b.ID)
		}
		if err := tx.InsertSeries(ctx, sr); err != nil {
			return err
		}
		return tx.AttachBookingsToSeries(ctx, sr.ID, ids)
	}))
	require.NotZero(t, sr.ID)

	require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error {
		got, err := tx.GetSeriesForUpdate(ctx, sr.ID)
		require.NoError(t, err)
		require.Equal(t, 2, got.CreatedCount)
		require.Equal(t, clk(9, 0), got.StartTime)

		linked, err := tx.ListSeriesBookings(ctx, sr.ID)
		require.NoError(t, err)
		require.Len(t, linked, 2)
		require.Equal(t, sr.ID, *linked[0].SeriesID)
		return tx.UpdateSeriesStatus(ctx, sr.ID, models.SeriesStatusCancelled)
	}))

	err := st.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.GetSeriesForUpdate(ctx, 999999)
		return err
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPGBooking_ConcurrentCreateBooking(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	p := &models.Provider{Name: "P", IsActive: true, AcceptingCustomers: true}
	require.NoError(t, st.CreateProvider(ctx, p))
	svc := &models.Service{ProviderID: p.ID, Name: "S", DurationMinutes: 60, IsActive: true}
	require.NoError(t, st.CreateService(ctx, svc))

	cat := catalog.New(st, nil, 0)
	bk := bookings.New(st, availability.New(st, cat, 50), nil, "")

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(customer uint64) {
			defer wg.Done()
			_, err := bk.CreateBooking(ctx, models.BookingRequest{
				ProviderID: p.ID, ServiceID: svc.ID, CustomerID: customer,
				BookingDate: time.Date(2027, 5, 3, 0, 0, 0, 0, time.UTC), StartTime: clk(10, 0),
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errs.Is(err, errs.SlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(100 + i))
	}
	wg.Wait()

	require.Equal(t, 1, created)
	require.Equal(t, n-1, conflicts)
}

func TestPGBooking_Routes(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	p := &models.Provider{Name: "P", IsActive: true, AcceptingCustomers: true}
	require.NoError(t, st.CreateProvider(ctx, p))

	lat1, lat2, lon := 59.0, 59.1, 18.0
	day := time.Date(2027, 6, 1, 0, 0, 0, 0, time.UTC)
	o1 := &models.RouteOrder{CustomerID: 1, ServiceType: "trim", Address: "A", Latitude: &lat1, Longitude: &lon, NumberOfHorses: 1, DateFrom: day, DateTo: day.AddDate(0, 0, 7)}
	o2 := &models.RouteOrder{CustomerID: 2, ServiceType: "trim", Address: "B", Latitude: &lat2, Longitude: &lon, NumberOfHorses: 2, DateFrom: day, DateTo: day.AddDate(0, 0, 7)}
	require.NoError(t, st.CreateRouteOrder(ctx, o1))
	require.NoError(t, st.CreateRouteOrder(ctx, o2))
	require.Equal(t, models.RouteOrderStatusPending, o1.Status)

	rt := routes.New(st, catalog.New(st, nil, 0), 50, nil, "")
	req := routes.Request{ProviderID: p.ID, RouteDate: day, StartTime: clk(8, 0), OrderIDs: []uint64{o2.ID, o1.ID}}
	route, err := rt.CreateRoute(ctx, req)
	require.NoError(t, err)
	require.NotZero(t, route.ID)
	require.Len(t, route.Stops, 2)
	require.Equal(t, o2.ID, route.Stops[0].RouteOrderID)
	require.NotZero(t, route.Stops[1].ID)

	require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error {
		locked, err := tx.LockRouteOrders(ctx, []uint64{o1.ID, o2.ID})
		require.NoError(t, err)
		require.Len(t, locked, 2)
		for _, o := range locked {
			require.Equal(t, models.RouteOrderStatusInRoute, o.Status)
		}
		return nil
	}))

	_, err = rt.CreateRoute(ctx, req)
	require.True(t, errs.Is(err, errs.OrdersUnavailable))
}

func TestPGBooking_Reminders(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	p := &models.Provider{Name: "P", IsActive: true, AcceptingCustomers: true}
	require.NoError(t, st.CreateProvider(ctx, p))
	weeks := 6
	svc := &models.Service{ProviderID: p.ID, Name: "S", DurationMinutes: 60, IsActive: true, RecommendedIntervalWeeks: &weeks}
	require.NoError(t, st.CreateService(ctx, svc))

	horse := uint64(21)
	insert := func(date time.Time) *models.Booking {
		b := &models.Booking{
			ProviderID: p.ID, CustomerID: 9, ServiceID: svc.ID, HorseID: &horse, BookingDate: date,
			StartTime: clk(10, 0), EndTime: clk(11, 0), Status: models.BookingStatusConfirmed,
		}
		require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error { return tx.InsertBooking(ctx, b) }))
		return b
	}
	older := insert(time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC))
	latest := insert(time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC))
	completedAt := time.Date(2026, 2, 2, 11, 0, 0, 0, time.UTC)
	require.NoError(t, st.CompleteBookingAt(ctx, older.ID, completedAt.AddDate(0, 0, -28)))
	require.NoError(t, st.CompleteBookingAt(ctx, latest.ID, completedAt))

	cands, err := st.ListUnscheduledReminders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, latest.ID, cands[0].BookingID)
	require.Equal(t, 6, cands[0].DefaultWeeks)
	require.WithinDuration(t, completedAt, cands[0].CompletedAt, time.Second)

	dueAt := completedAt.AddDate(0, 0, 42)
	require.NoError(t, st.ScheduleReminder(ctx, latest.ID, dueAt))
	require.ErrorIs(t, st.ScheduleReminder(ctx, 999999, dueAt), storage.ErrNotFound)

	cands, err = st.ListUnscheduledReminders(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, cands)

	due, err := st.ClaimDueReminders(ctx, dueAt.Add(-time.Hour), 10, time.Minute)
	require.NoError(t, err)
	require.Empty(t, due)

	now := dueAt.Add(time.Hour)
	lease := 2 * time.Minute
	due, err = st.ClaimDueReminders(ctx, now, 10, lease)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, latest.ID, due[0].BookingID)
	require.Equal(t, horse, due[0].HorseID)
	require.WithinDuration(t, dueAt, due[0].DueAt, time.Second)

	// leased
	again, err := st.ClaimDueReminders(ctx, now.Add(time.Minute), 10, lease)
	require.NoError(t, err)
	require.Empty(t, again)

	again, err = st.ClaimDueReminders(ctx, now.Add(lease+time.Second), 10, lease)
	require.NoError(t, err)
	require.Len(t, again, 1)

	require.NoError(t, st.MarkReminderSent(ctx, latest.ID, now))
	again, err = st.ClaimDueReminders(ctx, now.Add(time.Hour), 10, lease)
	require.NoError(t, err)
	require.Empty(t, again)
	require.ErrorIs(t, st.MarkReminderSent(ctx, older.ID, now), storage.ErrNotFound)
}

func TestPGBooking_RemindersFromHorseOverride(t *testing.T) {
	ctx := context.Background()
	st := startPostgres(t)

	p := &models.Provider{Name: "P", IsActive: true, AcceptingCustomers: true}
	require.NoError(t, st.CreateProvider(ctx, p))
	svc := &models.Service{ProviderID: p.ID, Name: "Dental", DurationMinutes: 45, IsActive: true}
	require.NoError(t, st.CreateService(ctx, svc))

	complete := func(horse uint64) *models.Booking {
		b := &models.Booking{
			ProviderID: p.ID, CustomerID: 9, ServiceID: svc.ID, HorseID: &horse,
			BookingDate: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC),
			StartTime:   clk(10, 0), EndTime: clk(10, 45), Status: models.BookingStatusConfirmed,
		}
		require.NoError(t, st.InTx(ctx, func(tx storage.Tx) error { return tx.InsertBooking(ctx, b) }))
		require.NoError(t, st.CompleteBookingAt(ctx, b.ID, time.Date(2026, 2, 2, 10, 45, 0, 0, time.UTC)))
		return b
	}
	withOverride := complete(77)
	complete(78)
	require.NoError(t, st.UpsertHorseInterval(ctx, &models.HorseServiceInterval{HorseID: 77, ProviderID: p.ID, IntervalWeeks: 6}))

	cands, err := st.ListUnscheduledReminders(ctx, 10)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	require.Equal(t, withOverride.ID, cands[0].BookingID)
	require.Zero(t, cands[0].DefaultWeeks)
}

func clk(h, m int) models.Clock {
	return models.Clock(h*60 + m)
}
