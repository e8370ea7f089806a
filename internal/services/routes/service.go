package routes

import (
	"context"
	"fmt"
	"time"

	"github.com/cola500/equinet/internal/broker/messages"
	"github.com/cola500/equinet/internal/errs"
	"github.com/cola500/equinet/internal/geo"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
)

type Catalog interface {
	GetProvider(ctx context.Context, id uint64) (*models.Provider, error)
}

type Request struct {
	ProviderID uint64
	RouteName  string
	RouteDate  time.Time
	StartTime  models.Clock
	OrderIDs   []uint64 // visiting order
}

type Service struct {
	tx       storage.Runner
	catalog  Catalog
	speedKmH float64
	events   messages.Publisher
	topic    string
}

func New(tx storage.Runner, catalog Catalog, speedKmH float64, events messages.Publisher, topic string) *Service {
	if speedKmH <= 0 {
		speedKmH = geo.DefaultSpeedKmH
	}
	return &Service{tx: tx, catalog: catalog, speedKmH: speedKmH, events: events, topic: topic}
}

// CreateRoute claims the orders and stores the planned route. All or nothing: if any
// order is gone or no longer pending, nothing is written.
func (s *Service) CreateRoute(ctx context.Context, req Request) (*models.Route, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	p, err := s.catalog.GetProvider(ctx, req.ProviderID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, errs.Newf(errs.Validation, "provider %d is not active", p.ID)
	}

	name := req.RouteName
	if name == "" {
		name = fmt.Sprintf("Route %s", models.FormatDate(req.RouteDate))
	}

	var route *models.Route
	err = s.tx.InTx(ctx, func(tx storage.Tx) error {
		locked, err := tx.LockRouteOrders(ctx, req.OrderIDs)
		if err != nil {
			return err
		}
		byID := make(map[uint64]*models.RouteOrder, len(locked))
		for _, o := range locked {
			byID[o.ID] = o
		}
		ordered := make([]*models.RouteOrder, 0, len(req.OrderIDs))
		for _, id := range req.OrderIDs {
			o, ok := byID[id]
			if !ok {
				return errs.Newf(errs.OrdersUnavailable, "route order %d not found", id)
			}
			if o.Status != models.RouteOrderStatusPending {
				return errs.Newf(errs.OrdersUnavailable, "route order %d is %s", id, o.Status)
			}
			ordered = append(ordered, o)
		}
		if err := CheckOrders(ordered); err != nil {
			return err
		}

		plan := PlanRoute(ordered, req.RouteDate, req.StartTime, s.speedKmH)
		r := &models.Route{
			ProviderID:           req.ProviderID,
			RouteName:            name,
			RouteDate:            req.RouteDate,
			StartTime:            req.StartTime,
			Status:               models.RouteStatusPlanned,
			TotalDistanceKm:      plan.TotalDistanceKm,
			TotalDurationMinutes: plan.TotalDurationMinutes,
		}
		if err := tx.InsertRoute(ctx, r); err != nil {
			return err
		}
		for _, ps := range plan.Stops {
			st := &models.RouteStop{
				RouteID:              r.ID,
				RouteOrderID:         ps.RouteOrderID,
				StopOrder:            ps.StopOrder,
				EstimatedArrival:     ps.EstimatedArrival,
				EstimatedDurationMin: ps.EstimatedDurationMin,
				Status:               models.RouteStopStatusPending,
			}
			if err := tx.InsertRouteStop(ctx, st); err != nil {
				return err
			}
			r.Stops = append(r.Stops, st)
		}
		if err := tx.SetRouteOrdersStatus(ctx, req.OrderIDs, models.RouteOrderStatusInRoute); err != nil {
			return err
		}
		route = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	messages.Emit(ctx, s.events, s.topic, fmt.Sprintf("provider:%d", route.ProviderID), messages.TypeRouteCreated, messages.RouteCreated{
		RouteID:              route.ID,
		ProviderID:           route.ProviderID,
		RouteDate:            models.FormatDate(route.RouteDate),
		RouteOrderIDs:        req.OrderIDs,
		TotalDistanceKm:      route.TotalDistanceKm,
		TotalDurationMinutes: route.TotalDurationMinutes,
	})
	return route, nil
}

func validate(req Request) error {
	if req.ProviderID == 0 {
		return errs.New(errs.Validation, "providerId is required")
	}
	if req.RouteDate.IsZero() {
		return errs.New(errs.Validation, "routeDate is required")
	}
	if req.StartTime < 0 || req.StartTime >= models.MinutesPerDay {
		return errs.Newf(errs.Validation, "invalid startTime %d", int(req.StartTime))
	}
	if len(req.OrderIDs) == 0 {
		return errs.New(errs.Validation, "orderIds is empty")
	}
	seen := make(map[uint64]struct{}, len(req.OrderIDs))
	for _, id := range req.OrderIDs {
		if _, ok := seen[id]; ok {
			return errs.Newf(errs.Validation, "route order %d listed twice", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
