package main

import (
	"context"
	"fmt"
	"os"

	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage/pgbooking"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v4"
)

type seedFile struct {
	Providers   []seedProvider   `yaml:"providers"`
	RouteOrders []seedRouteOrder `yaml:"route_orders"`
}

type seedProvider struct {
	Name                 string          `yaml:"name"`
	Inactive             bool            `yaml:"inactive"`
	NotAccepting         bool            `yaml:"not_accepting"`
	RecurringEnabled     bool            `yaml:"recurring_enabled"`
	MaxSeriesOccurrences int             `yaml:"max_series_occurrences"`
	Latitude             *float64        `yaml:"latitude"`
	Longitude            *float64        `yaml:"longitude"`
	Services             []seedService   `yaml:"services"`
	Exceptions           []seedException `yaml:"exceptions"`
	HorseIntervals       []seedInterval  `yaml:"horse_intervals"`
}

type seedService struct {
	Name                     string  `yaml:"name"`
	DurationMinutes          int     `yaml:"duration_minutes"`
	Price                    float64 `yaml:"price"`
	RecommendedIntervalWeeks *int    `yaml:"recommended_interval_weeks"`
}

type seedException struct {
	Date      string        `yaml:"date"`
	Closed    bool          `yaml:"closed"`
	StartTime *models.Clock `yaml:"start_time"`
	EndTime   *models.Clock `yaml:"end_time"`
	Reason    *string       `yaml:"reason"`
}

// seedInterval.Service names one of the provider's services; empty means all of them.
type seedInterval struct {
	HorseID       uint64 `yaml:"horse_id"`
	Service       string `yaml:"service"`
	IntervalWeeks int    `yaml:"interval_weeks"`
}

type seedRouteOrder struct {
	CustomerID     uint64   `yaml:"customer_id"`
	ServiceType    string   `yaml:"service_type"`
	Address        string   `yaml:"address"`
	Latitude       *float64 `yaml:"latitude"`
	Longitude      *float64 `yaml:"longitude"`
	NumberOfHorses int      `yaml:"number_of_horses"`
	Priority       string   `yaml:"priority"`
	DateFrom       string   `yaml:"date_from"`
	DateTo         string   `yaml:"date_to"`
}

type seeder interface {
	CreateProvider(ctx context.Context, p *models.Provider) error
	CreateService(ctx context.Context, svc *models.Service) error
	UpsertAvailabilityException(ctx context.Context, e *models.AvailabilityException) error
	UpsertHorseInterval(ctx context.Context, hi *models.HorseServiceInterval) error
	CreateRouteOrder(ctx context.Context, o *models.RouteOrder) error
}

type seedReport struct {
	Providers, Services, Exceptions, Intervals, RouteOrders int
}

func (r seedReport) String() string {
	return fmt.Sprintf("providers=%d services=%d exceptions=%d intervals=%d route_orders=%d",
		r.Providers, r.Services, r.Exceptions, r.Intervals, r.RouteOrders)
}

func loadSeed(path string) (*seedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read seed file")
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse seed file")
	}
	return &f, nil
}

// applySeed writes f through s. inv, when set, drops cached rows for every provider written
// so an API process never serves a row left over from a database that was reset and reseeded.
func applySeed(ctx context.Context, s seeder, inv catalogInvalidator, f *seedFile) (seedReport, error) {
	var rep seedReport
	for _, sp := range f.Providers {
		p := &models.Provider{
			Name:                 sp.Name,
			IsActive:             !sp.Inactive,
			AcceptingCustomers:   !sp.NotAccepting,
			RecurringEnabled:     sp.RecurringEnabled,
			MaxSeriesOccurrences: sp.MaxSeriesOccurrences,
			Latitude:             sp.Latitude,
			Longitude:            sp.Longitude,
		}
		if err := s.CreateProvider(ctx, p); err != nil {
			return rep, err
		}
		rep.Providers++

		byName := map[string]uint64{}
		var serviceIDs []uint64
		for _, ss := range sp.Services {
			svc := &models.Service{
				ProviderID:               p.ID,
				Name:                     ss.Name,
				DurationMinutes:          ss.DurationMinutes,
				Price:                    ss.Price,
				IsActive:                 true,
				RecommendedIntervalWeeks: ss.RecommendedIntervalWeeks,
			}
			if svc.DurationMinutes <= 0 {
				return rep, fmt.Errorf("service %q: duration_minutes must be positive", ss.Name)
			}
			if err := s.CreateService(ctx, svc); err != nil {
				return rep, err
			}
			byName[ss.Name] = svc.ID
			serviceIDs = append(serviceIDs, svc.ID)
			rep.Services++
		}
		if inv != nil {
			inv.Invalidate(ctx, p.ID, serviceIDs...)
		}

		for _, se := range sp.Exceptions {
			d, err := models.ParseDate(se.Date)
			if err != nil {
				return rep, errors.Wrapf(err, "exception date %q", se.Date)
			}
			e := &models.AvailabilityException{
				ProviderID: p.ID,
				Date:       d,
				IsClosed:   se.Closed,
				StartTime:  se.StartTime,
				EndTime:    se.EndTime,
				Reason:     se.Reason,
			}
			if err := s.UpsertAvailabilityException(ctx, e); err != nil {
				return rep, err
			}
			rep.Exceptions++
		}

		for _, si := range sp.HorseIntervals {
			hi := &models.HorseServiceInterval{HorseID: si.HorseID, ProviderID: p.ID, IntervalWeeks: si.IntervalWeeks}
			if si.Service != "" {
				id, ok := byName[si.Service]
				if !ok {
					return rep, fmt.Errorf("horse interval: provider %q has no service %q", sp.Name, si.Service)
				}
				hi.ServiceID = &id
			}
			if err := s.UpsertHorseInterval(ctx, hi); err != nil {
				return rep, err
			}
			rep.Intervals++
		}
	}

	for _, so := range f.RouteOrders {
		from, err := models.ParseDate(so.DateFrom)
		if err != nil {
			return rep, errors.Wrapf(err, "route order date_from %q", so.DateFrom)
		}
		to, err := models.ParseDate(so.DateTo)
		if err != nil {
			return rep, errors.Wrapf(err, "route order date_to %q", so.DateTo)
		}
		o := &models.RouteOrder{
			CustomerID:     so.CustomerID,
			ServiceType:    so.ServiceType,
			Address:        so.Address,
			Latitude:       so.Latitude,
			Longitude:      so.Longitude,
			NumberOfHorses: so.NumberOfHorses,
			Priority:       so.Priority,
			DateFrom:       from,
			DateTo:         to,
		}
		if err := s.CreateRouteOrder(ctx, o); err != nil {
			return rep, err
		}
		rep.RouteOrders++
	}
	return rep, nil
}

func newSeedCmd(opts *rootOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load providers, services, exceptions and route orders from a YAML fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadSeed(args[0])
			if err != nil {
				return err
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := pgbooking.New(cfg.Database.ConnString())
			if err != nil {
				return err
			}
			defer st.Close()
			cat, closeCache := openCatalogCache(cfg)
			defer closeCache()

			rep, err := applySeed(cmd.Context(), st, cat, f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rep.String())
			return nil
		},
	}
}
