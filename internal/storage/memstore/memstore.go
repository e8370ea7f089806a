// Package memstore is an in-process implementation of the storage collaborator.
// A single mutex serializes transactions; a failed transaction restores the snapshot
// taken when it started.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
)

type exceptionKey struct {
	providerID uint64
	date       string
}

type reminderState struct {
	dueAt      time.Time
	sentAt     *time.Time
	leaseUntil *time.Time
}

type state struct {
	nextID uint64

	providers   map[uint64]models.Provider
	services    map[uint64]models.Service
	exceptions  map[exceptionKey]models.AvailabilityException
	bookings    map[uint64]models.Booking
	series      map[uint64]models.BookingSeries
	routeOrders map[uint64]models.RouteOrder
	routes      map[uint64]models.Route
	stops       map[uint64]models.RouteStop
	intervals   map[uint64]models.HorseServiceInterval
	reminders   map[uint64]reminderState
}

func newState() state {
	return state{
		providers:   map[uint64]models.Provider{},
		services:    map[uint64]models.Service{},
		exceptions:  map[exceptionKey]models.AvailabilityException{},
		bookings:    map[uint64]models.Booking{},
		series:      map[uint64]models.BookingSeries{},
		routeOrders: map[uint64]models.RouteOrder{},
		routes:      map[uint64]models.Route{},
		stops:       map[uint64]models.RouteStop{},
		intervals:   map[uint64]models.HorseServiceInterval{},
		reminders:   map[uint64]reminderState{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// clone copies the maps; values are stored by value so the copy is independent.
func (s state) clone() state {
	return state{
		nextID:      s.nextID,
		providers:   cloneMap(s.providers),
		services:    cloneMap(s.services),
		exceptions:  cloneMap(s.exceptions),
		bookings:    cloneMap(s.bookings),
		series:      cloneMap(s.series),
		routeOrders: cloneMap(s.routeOrders),
		routes:      cloneMap(s.routes),
		stops:       cloneMap(s.stops),
		intervals:   cloneMap(s.intervals),
		reminders:   cloneMap(s.reminders),
	}
}

type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

func New() *Store {
	return &Store{st: newState(), now: func() time.Time { return time.Now().UTC() }}
}

// SetNow replaces the clock used for timestamps.
func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&tx{s: s}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

func (s *Store) id() uint64 {
	s.st.nextID++
	return s.st.nextID
}

func dateKey(d time.Time) string {
	return models.FormatDate(d)
}

// --- seeding ---

func (s *Store) AddProvider(p models.Provider) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		p.ID = s.id()
	}
	s.st.providers[p.ID] = p
	return p.ID
}

func (s *Store) AddService(svc models.Service) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if svc.ID == 0 {
		svc.ID = s.id()
	}
	s.st.services[svc.ID] = svc
	return svc.ID
}

func (s *Store) AddException(e models.AvailabilityException) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.exceptions[exceptionKey{e.ProviderID, dateKey(e.Date)}] = e
}

func (s *Store) AddRouteOrder(o models.RouteOrder) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o.ID == 0 {
		o.ID = s.id()
	}
	if o.Status == "" {
		o.Status = models.RouteOrderStatusPending
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.st.routeOrders[o.ID] = o
	return o.ID
}

func (s *Store) AddHorseInterval(hi models.HorseServiceInterval) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hi.ID == 0 {
		hi.ID = s.id()
	}
	s.st.intervals[hi.ID] = hi
	return hi.ID
}

// AddBooking stores b as is, bypassing the conflict guard.
func (s *Store) AddBooking(b models.Booking) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.ID == 0 {
		b.ID = s.id()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
		b.UpdatedAt = b.CreatedAt
	}
	s.st.bookings[b.ID] = b
	return b.ID
}

// Bookings returns every stored booking ordered by id.
func (s *Store) Bookings() []*models.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Booking, 0, len(s.st.bookings))
	for _, b := range s.st.bookings {
		b := b
		out = append(out, &b)
	}
	sortBookings(out)
	return out
}

func (s *Store) Routes() []*models.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Route, 0, len(s.st.routes))
	for _, r := range s.st.routes {
		r := r
		r.Stops = s.routeStops(r.ID)
		out = append(out, &r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) routeStops(routeID uint64) []*models.RouteStop {
	var stops []*models.RouteStop
	for _, st := range s.st.stops {
		if st.RouteID == routeID {
			st := st
			stops = append(stops, &st)
		}
	}
	sort.Slice(stops, func(i, j int) bool { return stops[i].StopOrder < stops[j].StopOrder })
	return stops
}

func (s *Store) GetRouteOrder(_ context.Context, id uint64) (*models.RouteOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.st.routeOrders[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &o, nil
}

func (s *Store) GetSeries(_ context.Context, id uint64) (*models.BookingSeries, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sr, ok := s.st.series[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &sr, nil
}

// --- reads outside a transaction ---

func (s *Store) GetProvider(_ context.Context, id uint64) (*models.Provider, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.st.providers[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (s *Store) GetService(_ context.Context, id uint64) (*models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.st.services[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &svc, nil
}

// GetAvailabilityException returns nil without error when the date has no exception.
func (s *Store) GetAvailabilityException(_ context.Context, providerID uint64, date time.Time) (*models.AvailabilityException, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.exceptions[exceptionKey{providerID, dateKey(date)}]
	if !ok {
		return nil, nil
	}
	return &e, nil
}

func (s *Store) ListActiveBookings(_ context.Context, providerID uint64, date time.Time) ([]*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeBookings(providerID, date), nil
}

func (s *Store) activeBookings(providerID uint64, date time.Time) []*models.Booking {
	day := dateKey(date)
	var out []*models.Booking
	for _, b := range s.st.bookings {
		if b.ProviderID == providerID && dateKey(b.BookingDate) == day && b.IsActive() {
			b := b
			out = append(out, &b)
		}
	}
	sortBookings(out)
	return out
}

func (s *Store) GetBooking(_ context.Context, id uint64) (*models.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.bookings[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &b, nil
}

func (s *Store) ListHorseIntervals(_ context.Context, horseID, providerID uint64) ([]*models.HorseServiceInterval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.HorseServiceInterval
	for _, hi := range s.st.intervals {
		if hi.HorseID == horseID && hi.ProviderID == providerID {
			hi := hi
			out = append(out, &hi)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func sortBookings(bs []*models.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].BookingDate.Equal(bs[j].BookingDate) {
			return bs[i].BookingDate.Before(bs[j].BookingDate)
		}
		if bs[i].StartTime != bs[j].StartTime {
			return bs[i].StartTime < bs[j].StartTime
		}
		return bs[i].ID < bs[j].ID
	})
}
