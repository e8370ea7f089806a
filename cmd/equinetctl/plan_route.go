package main

import (
	"encoding/json"
	"os"

	"github.com/cola500/equinet/internal/geo"
	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/services/routes"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type planOrder struct {
	ID             uint64   `json:"id"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
	NumberOfHorses int      `json:"numberOfHorses"`
}

type plannedStopOut struct {
	RouteOrderID             uint64 `json:"routeOrderId"`
	StopOrder                int    `json:"stopOrder"`
	EstimatedArrival         string `json:"estimatedArrival"`
	EstimatedDurationMinutes int    `json:"estimatedDurationMinutes"`
}

type planOut struct {
	Stops                []plannedStopOut `json:"stops"`
	TotalDistanceKm      float64          `json:"totalDistanceKm"`
	TotalDurationMinutes int              `json:"totalDurationMinutes"`
	MissingLegs          int              `json:"missingLegs,omitempty"`
}

func newPlanRouteCmd() *cobra.Command {
	var (
		ordersPath string
		date       string
		start      string
		speed      float64
	)
	cmd := &cobra.Command{
		Use:   "plan-route",
		Short: "Estimate a route from a JSON list of orders without touching the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			routeDate, err := models.ParseDate(date)
			if err != nil {
				return errors.Wrap(err, "--date")
			}
			startAt, err := models.ParseClock(start)
			if err != nil {
				return errors.Wrap(err, "--start")
			}
			data, err := os.ReadFile(ordersPath)
			if err != nil {
				return errors.Wrap(err, "read orders")
			}
			var in []planOrder
			if err := json.Unmarshal(data, &in); err != nil {
				return errors.Wrap(err, "parse orders")
			}
			if len(in) == 0 {
				return errors.New("orders file is empty")
			}

			orders := make([]*models.RouteOrder, 0, len(in))
			for _, o := range in {
				orders = append(orders, &models.RouteOrder{
					ID: o.ID, Latitude: o.Latitude, Longitude: o.Longitude, NumberOfHorses: o.NumberOfHorses,
				})
			}
			if err := routes.CheckOrders(orders); err != nil {
				return err
			}
			plan := routes.PlanRoute(orders, routeDate, startAt, speed)

			out := planOut{
				TotalDistanceKm:      plan.TotalDistanceKm,
				TotalDurationMinutes: plan.TotalDurationMinutes,
				MissingLegs:          plan.MissingLegs,
			}
			for _, s := range plan.Stops {
				out.Stops = append(out.Stops, plannedStopOut{
					RouteOrderID:             s.RouteOrderID,
					StopOrder:                s.StopOrder,
					EstimatedArrival:         s.EstimatedArrival.Format("2006-01-02T15:04"),
					EstimatedDurationMinutes: s.EstimatedDurationMin,
				})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
	cmd.Flags().StringVar(&ordersPath, "orders", "", "JSON file with orders in visiting order")
	cmd.Flags().StringVar(&date, "date", "", "route date, YYYY-MM-DD")
	cmd.Flags().StringVar(&start, "start", "08:00", "start time, HH:MM")
	cmd.Flags().Float64Var(&speed, "speed", geo.DefaultSpeedKmH, "average travel speed, km/h")
	_ = cmd.MarkFlagRequired("orders")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}
