package bookings

import (
	"context"
	"time"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
)

// Store persists appointments. Insert must be atomic: it either stores the
// appointment or fails with ErrOverlap when the resource is already taken for
// any part of [StartTime, EndTime).
type Store interface {
	Insert(ctx context.Context, appt *Appointment) error
	Get(ctx context.Context, merchantID, id string) (*Appointment, error)
	Cancel(ctx context.Context, merchantID, id string) (*Appointment, error)
	ListBusy(ctx context.Context, resourceKey string, from, to time.Time) ([]availability.Interval, error)
}
