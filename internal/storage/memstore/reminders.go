package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/cola500/equinet/internal/models"
	"github.com/cola500/equinet/internal/storage"
)

type triple struct {
	horseID, providerID, serviceID uint64
}

func (s *Store) ListUnscheduledReminders(_ context.Context, limit int) ([]*models.ReminderCandidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := map[triple]models.Booking{}
	for _, b := range s.st.bookings {
		if b.Status != models.BookingStatusCompleted || b.HorseID == nil {
			continue
		}
		k := triple{*b.HorseID, b.ProviderID, b.ServiceID}
		cur, ok := latest[k]
		if !ok || b.UpdatedAt.After(cur.UpdatedAt) || (b.UpdatedAt.Equal(cur.UpdatedAt) && b.ID > cur.ID) {
			latest[k] = b
		}
	}

	var out []*models.ReminderCandidate
	for k, b := range latest {
		if _, planned := s.st.reminders[b.ID]; planned {
			continue
		}
		svc, ok := s.st.services[b.ServiceID]
		if !ok {
			continue
		}
		var weeks int
		if svc.RecommendedIntervalWeeks != nil {
			weeks = *svc.RecommendedIntervalWeeks
		} else if !s.hasHorseInterval(k) {
			continue
		}
		out = append(out, &models.ReminderCandidate{
			BookingID:    b.ID,
			CustomerID:   b.CustomerID,
			HorseID:      k.horseID,
			ProviderID:   k.providerID,
			ServiceID:    k.serviceID,
			CompletedAt:  b.UpdatedAt,
			DefaultWeeks: weeks,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].BookingID < out[j].BookingID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// hasHorseInterval reports whether the horse has an override for the service or a
// provider-wide one.
func (s *Store) hasHorseInterval(k triple) bool {
	for _, hi := range s.st.intervals {
		if hi.HorseID != k.horseID || hi.ProviderID != k.providerID {
			continue
		}
		if hi.ServiceID == nil || *hi.ServiceID == k.serviceID {
			return true
		}
	}
	return false
}

// ScheduleReminder plans a reminder for bookingID and drops unsent reminders of older
// bookings for the same horse, provider and service.
func (s *Store) ScheduleReminder(_ context.Context, bookingID uint64, dueAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.st.bookings[bookingID]
	if !ok {
		return storage.ErrNotFound
	}
	for id, r := range s.st.reminders {
		if r.sentAt != nil || id == bookingID {
			continue
		}
		old := s.st.bookings[id]
		if old.ProviderID == b.ProviderID && old.ServiceID == b.ServiceID &&
			old.HorseID != nil && b.HorseID != nil && *old.HorseID == *b.HorseID {
			delete(s.st.reminders, id)
		}
	}
	s.st.reminders[bookingID] = reminderState{dueAt: dueAt.UTC()}
	return nil
}

func (s *Store) ClaimDueReminders(_ context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	type due struct {
		id uint64
		at time.Time
	}
	var picked []due
	for id, r := range s.st.reminders {
		if r.sentAt != nil || r.dueAt.After(now) {
			continue
		}
		if r.leaseUntil != nil && r.leaseUntil.After(now) {
			continue
		}
		picked = append(picked, due{id, r.dueAt})
	}
	sort.Slice(picked, func(i, j int) bool {
		if !picked[i].at.Equal(picked[j].at) {
			return picked[i].at.Before(picked[j].at)
		}
		return picked[i].id < picked[j].id
	})
	if limit > 0 && len(picked) > limit {
		picked = picked[:limit]
	}

	leaseUntil := now.UTC().Add(lease)
	out := make([]*models.Reminder, 0, len(picked))
	for _, p := range picked {
		r := s.st.reminders[p.id]
		r.leaseUntil = &leaseUntil
		s.st.reminders[p.id] = r

		b := s.st.bookings[p.id]
		var horseID uint64
		if b.HorseID != nil {
			horseID = *b.HorseID
		}
		out = append(out, &models.Reminder{
			BookingID:  b.ID,
			CustomerID: b.CustomerID,
			HorseID:    horseID,
			ProviderID: b.ProviderID,
			ServiceID:  b.ServiceID,
			DueAt:      r.dueAt,
		})
	}
	return out, nil
}

func (s *Store) MarkReminderSent(_ context.Context, bookingID uint64, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.st.reminders[bookingID]
	if !ok {
		return storage.ErrNotFound
	}
	at := sentAt.UTC()
	r.sentAt = &at
	r.leaseUntil = nil
	s.st.reminders[bookingID] = r
	return nil
}

// ReminderDueAt reports the planned due time for bookingID and whether it was sent.
func (s *Store) ReminderDueAt(bookingID uint64) (dueAt time.Time, sent bool, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.st.reminders[bookingID]
	if !ok {
		return time.Time{}, false, false
	}
	return r.dueAt, r.sentAt != nil, true
}
