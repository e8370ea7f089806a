package routes

import (
	"context"
	"errors"
	"testing"

	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/services/catalog"
	"github.com/cola500/equinet/internal/storage"
	"github.com/cola500/equinet/internal/storage/memstore"
	"github.com/stretchr/testify/suite"
)

type ServiceSuite struct {
	suite.Suite

	store      *memstore.Store
	svc        *Service
	providerID uint64
	orders     []uint64
}

func (s *ServiceSuite) SetupTest() {
	s.store = memstore.New()
	s.providerID = s.store.AddProvider(models.Provider{Name: "P", IsActive: true, AcceptingCustomers: true})
	s.orders = []uint64{
		s.store.AddRouteOrder(models.RouteOrder{CustomerID: 1, NumberOfHorses: 2, Latitude: f(59.0), Longitude: f(18.0)}),
		s.store.AddRouteOrder(models.RouteOrder{CustomerID: 2, NumberOfHorses: 1, Latitude: f(northLat), Longitude: f(18.0)}),
	}
	s.svc = New(s.store, catalog.New(s.store, nil, 0), 50, nil, "")
}

func (s *ServiceSuite) req(ids ...uint64) Request {
	return Request{ProviderID: s.providerID, RouteDate: routeDay, StartTime: 480, OrderIDs: ids}
}

func (s *ServiceSuite) TestCreateRoute_OK() {
	r, err := s.svc.CreateRoute(context.Background(), s.req(s.orders...))
	s.Require().NoError(err)
	s.Require().NotZero(r.ID)
	s.Require().Equal(198, r.TotalDurationMinutes)
	s.Require().InDelta(15.0, r.TotalDistanceKm, 0.01)
	s.Require().Equal("Route 2026-05-04", r.RouteName)
	s.Require().Len(r.Stops, 2)
	s.Require().Equal(s.orders[0], r.Stops[0].RouteOrderID)
	s.Require().Equal(1, r.Stops[0].StopOrder)
	s.Require().Equal(2, r.Stops[1].StopOrder)

	for _, id := range s.orders {
		o, err := s.store.GetRouteOrder(context.Background(), id)
		s.Require().NoError(err)
		s.Require().Equal(models.RouteOrderStatusInRoute, o.Status)
	}
	stored := s.store.Routes()
	s.Require().Len(stored, 1)
	s.Require().Len(stored[0].Stops, 2)
}

func (s *ServiceSuite) TestCreateRoute_OrderAlreadyClaimed() {
	_, err := s.svc.CreateRoute(context.Background(), s.req(s.orders[1]))
	s.Require().NoError(err)

	_, err = s.svc.CreateRoute(context.Background(), s.req(s.orders...))
	s.Require().True(errs.Is(err, errs.OrdersUnavailable))

	o, err := s.store.GetRouteOrder(context.Background(), s.orders[0])
	s.Require().NoError(err)
	s.Require().Equal(models.RouteOrderStatusPending, o.Status)
	s.Require().Len(s.store.Routes(), 1)
}

func (s *ServiceSuite) TestCreateRoute_UnknownOrder() {
	_, err := s.svc.CreateRoute(context.Background(), s.req(s.orders[0], 999))
	s.Require().True(errs.Is(err, errs.OrdersUnavailable))
	s.Require().Empty(s.store.Routes())
}

func (s *ServiceSuite) TestCreateRoute_Validation() {
	ctx := context.Background()
	_, err := s.svc.CreateRoute(ctx, s.req())
	s.Require().True(errs.Is(err, errs.Validation))

	_, err = s.svc.CreateRoute(ctx, s.req(s.orders[0], s.orders[0]))
	s.Require().True(errs.Is(err, errs.Validation))

	r := s.req(s.orders...)
	r.ProviderID = 0
	_, err = s.svc.CreateRoute(ctx, r)
	s.Require().True(errs.Is(err, errs.Validation))

	r.ProviderID = 404
	_, err = s.svc.CreateRoute(ctx, r)
	s.Require().True(errs.Is(err, errs.NotFound))
}

func (s *ServiceSuite) TestCreateRoute_RejectsOrderWithoutHorses() {
	for _, horses := range []int{0, -3} {
		bad := s.store.AddRouteOrder(models.RouteOrder{CustomerID: 3, NumberOfHorses: horses, Latitude: f(59.2), Longitude: f(18.0)})

		_, err := s.svc.CreateRoute(context.Background(), s.req(s.orders[0], bad, s.orders[1]))
		s.Require().True(errs.Is(err, errs.Validation), "horses=%d: %v", horses, err)
		s.Require().Empty(s.store.Routes())

		for _, id := range append([]uint64{bad}, s.orders...) {
			o, err := s.store.GetRouteOrder(context.Background(), id)
			s.Require().NoError(err)
			s.Require().Equal(models.RouteOrderStatusPending, o.Status)
		}
	}
}

func (s *ServiceSuite) TestCreateRoute_StopFailureRollsBackEverything() {
	boom := errors.New("disk full")
	svc := New(&failingStopRunner{Store: s.store, failAt: 2, err: boom}, catalog.New(s.store, nil, 0), 50, nil, "")

	_, err := svc.CreateRoute(context.Background(), s.req(s.orders...))
	s.Require().ErrorIs(err, boom)

	s.Require().Empty(s.store.Routes())
	for _, id := range s.orders {
		o, err := s.store.GetRouteOrder(context.Background(), id)
		s.Require().NoError(err)
		s.Require().Equal(models.RouteOrderStatusPending, o.Status)
	}
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

type failingStopRunner struct {
	*memstore.Store
	failAt int
	err    error
}

func (r *failingStopRunner) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	return r.Store.InTx(ctx, func(tx storage.Tx) error {
		return fn(&failingStopTx{Tx: tx, failAt: r.failAt, err: r.err})
	})
}

type failingStopTx struct {
	storage.Tx
	n      int
	failAt int
	err    error
}

func (t *failingStopTx) InsertRouteStop(ctx context.Context, st *models.RouteStop) error {
	t.n++
	if t.n == t.failAt {
		return t.err
	}
	return t.Tx.InsertRouteStop(ctx, st)
}
