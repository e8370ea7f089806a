package pgbooking

import (
	"context"

	"github.com/cola500/equinet/internal/models"
	"github.com/pkg/errors"
)

func (t *pgTx) LockRouteOrders(ctx context.Context, ids []uint64) ([]*models.RouteOrder, error) {
	rows, err := t.tx.Query(ctx, `
SELECT
  id, customer_id, service_type, address, latitude, longitude,
  number_of_horses, priority, date_from, date_to, status, created_at
FROM route_orders
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select route orders")
	}
	defer rows.Close()

	out := make([]*models.RouteOrder, 0, len(ids))
	for rows.Next() {
		var o models.RouteOrder
		if err := rows.Scan(
			&o.ID, &o.CustomerID, &o.ServiceType, &o.Address, &o.Latitude, &o.Longitude,
			&o.NumberOfHorses, &o.Priority, &o.DateFrom, &o.DateTo, &o.Status, &o.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan route order")
		}
		out = append(out, &o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (t *pgTx) SetRouteOrdersStatus(ctx context.Context, ids []uint64, status string) error {
	_, err := t.tx.Exec(ctx, `UPDATE route_orders SET status = $2 WHERE id = ANY($1)`, ids, status)
	return errors.Wrap(err, "update route orders status")
}

func (t *pgTx) InsertRoute(ctx context.Context, r *models.Route) error {
	err := t.tx.QueryRow(ctx, `
INSERT INTO routes (
  provider_id, route_name, route_date, start_minute, status,
  total_distance_km, total_duration_minutes, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7, now())
RETURNING id, created_at
`, r.ProviderID, r.RouteName, r.RouteDate, int(r.StartTime), r.Status,
		r.TotalDistanceKm, r.TotalDurationMinutes).Scan(&r.ID, &r.CreatedAt)
	return errors.Wrap(err, "insert route")
}

func (t *pgTx) InsertRouteStop(ctx context.Context, st *models.RouteStop) error {
	err := t.tx.QueryRow(ctx, `
INSERT INTO route_stops (
  route_id, route_order_id, stop_order, estimated_arrival, estimated_duration_min, status
)
VALUES ($1,$2,$3,$4,$5,$6)
RETURNING id
`, st.RouteID, st.RouteOrderID, st.StopOrder, st.EstimatedArrival, st.EstimatedDurationMin, st.Status).Scan(&st.ID)
	return errors.Wrap(err, "insert route stop")
}
