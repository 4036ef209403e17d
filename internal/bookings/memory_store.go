package bookings

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
)

// MemoryStore keeps appointments in process memory. Insert is serialized by a mutex,
// which gives the same no-overlap guarantee as the Postgres store for a single process.
type MemoryStore struct {
	mu    sync.Mutex
	appts map[string]*Appointment
	order []string
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{appts: make(map[string]*Appointment)}
}

func (s *MemoryStore) Insert(_ context.Context, appt *Appointment) error {
	if appt == nil {
		return ErrInvalid
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.appts[appt.ID]; exists {
		return ErrDuplicate
	}
	key := appt.ResourceKey()
	for _, id := range s.order {
		existing := s.appts[id]
		if !existing.Active() || existing.ResourceKey() != key {
			continue
		}
		if existing.Interval().Overlaps(appt.StartTime, appt.EndTime) {
			return ErrOverlap
		}
	}
	stored := *appt
	s.appts[appt.ID] = &stored
	s.order = append(s.order, appt.ID)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, merchantID, id string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok || appt.MerchantID != merchantID {
		return nil, ErrNotFound
	}
	out := *appt
	return &out, nil
}

func (s *MemoryStore) Cancel(_ context.Context, merchantID, id string) (*Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	appt, ok := s.appts[id]
	if !ok || appt.MerchantID != merchantID {
		return nil, ErrNotFound
	}
	appt.Status = StatusCancelled
	out := *appt
	return &out, nil
}

func (s *MemoryStore) ListBusy(_ context.Context, resourceKey string, from, to time.Time) ([]availability.Interval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []availability.Interval
	for _, id := range s.order {
		appt := s.appts[id]
		if !appt.Active() || appt.ResourceKey() != resourceKey {
			continue
		}
		iv := appt.Interval()
		if iv.Overlaps(from, to) {
			out = append(out, iv)
		}
	}
	availability.SortIntervals(out)
	return out, nil
}

// Count returns the number of active appointments.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, appt := range s.appts {
		if appt.Active() {
			n++
		}
	}
	return n
}
