// Package calendar reads busy intervals for a bookable resource.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
)

// ErrUnavailable wraps every failure to read busy intervals.
var ErrUnavailable = errors.New("calendar: unavailable")

// Source lists busy intervals for a resource (staff id, or merchant id when no staff applies)
// overlapping [from, to).
type Source interface {
	ListBusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]availability.Interval, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, resourceID string, from, to time.Time) ([]availability.Interval, error)

func (f SourceFunc) ListBusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]availability.Interval, error) {
	return f(ctx, resourceID, from, to)
}

// BusyLister is implemented by the appointment store.
type BusyLister interface {
	ListBusy(ctx context.Context, resourceKey string, from, to time.Time) ([]availability.Interval, error)
}

// AppointmentSource exposes committed appointments as busy intervals.
type AppointmentSource struct {
	store BusyLister
}

func NewAppointmentSource(store BusyLister) *AppointmentSource {
	return &AppointmentSource{store: store}
}

func (s *AppointmentSource) ListBusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]availability.Interval, error) {
	busy, err := s.store.ListBusy(ctx, resourceID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: appointments: %v", ErrUnavailable, err)
	}
	return busy, nil
}

// Merged unions the intervals of several sources. Any failing source fails the whole read.
type Merged []Source

func (m Merged) ListBusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]availability.Interval, error) {
	var out []availability.Interval
	for _, src := range m {
		if src == nil {
			continue
		}
		busy, err := src.ListBusyIntervals(ctx, resourceID, from, to)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		out = append(out, busy...)
	}
	availability.SortIntervals(out)
	return out, nil
}
