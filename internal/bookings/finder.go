package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
	"github.com/wolfman30/wa-booking-assistant/internal/calendar"
	"github.com/wolfman30/wa-booking-assistant/internal/catalog"
	"github.com/wolfman30/wa-booking-assistant/internal/observability/metrics"
)

// Reasons reported when a day has no slots.
const (
	ReasonClosed         = "closed"
	ReasonNoAvailability = "no_availability"
)

// ErrCalendarUnavailable means busy intervals could not be read. Callers must not
// guess availability.
var ErrCalendarUnavailable = errors.New("bookings: calendar unavailable")

// SlotQuery selects one day for one service and resource.
type SlotQuery struct {
	Profile *catalog.Profile
	Service catalog.Service
	StaffID string
	Date    time.Time
	Now     time.Time
}

// DaySlots is the free slot list of one day. Reason is set when Slots is empty.
type DaySlots struct {
	Date   string      `json:"date"`
	Slots  []time.Time `json:"slots"`
	Reason string      `json:"reason,omitempty"`
}

// SlotFinder combines working hours, busy intervals and service duration.
type SlotFinder struct {
	source  calendar.Source
	metrics *metrics.BookingMetrics
}

func NewSlotFinder(source calendar.Source, m *metrics.BookingMetrics) *SlotFinder {
	if source == nil {
		panic("bookings: calendar source required")
	}
	return &SlotFinder{source: source, metrics: m}
}

// Find returns the bookable starts of q.Date in the merchant timezone. Starts before
// q.Now are dropped.
func (f *SlotFinder) Find(ctx context.Context, q SlotQuery) (*DaySlots, error) {
	profile := q.Profile
	if profile == nil {
		profile = catalog.DefaultProfile(q.Service.MerchantID)
	}
	loc := profile.Location()
	day := time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), 0, 0, 0, 0, loc)
	out := &DaySlots{Date: day.Format("2006-01-02"), Slots: []time.Time{}}

	hours := profile.WorkingHours.ForDay(day.Weekday())
	if hours == nil {
		out.Reason = ReasonClosed
		f.metrics.ObserveSlots(0)
		return out, nil
	}
	open, closeAt, err := availability.Window(day, hours.Open, hours.Close, loc)
	if err != nil {
		return nil, fmt.Errorf("bookings: working hours: %w", err)
	}

	resourceKey := ResourceKey(profile.MerchantID, q.StaffID)
	if profile.MerchantID == "" {
		resourceKey = ResourceKey(q.Service.MerchantID, q.StaffID)
	}
	busy, err := f.source.ListBusyIntervals(ctx, resourceKey, open.Add(-profile.Buffer()), closeAt.Add(profile.Buffer()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCalendarUnavailable, err)
	}

	slots, err := availability.ComputeSlots(availability.Request{
		Open:        open,
		Close:       closeAt,
		Duration:    q.Service.Duration(),
		Buffer:      profile.Buffer(),
		Granularity: profile.Granularity(),
		Busy:        busy,
	})
	if err != nil {
		return nil, fmt.Errorf("bookings: compute slots: %w", err)
	}
	if !q.Now.IsZero() {
		slots = availability.NotBefore(slots, q.Now)
	}
	out.Slots = slots
	if len(slots) == 0 {
		out.Reason = ReasonNoAvailability
	}
	f.metrics.ObserveSlots(len(slots))
	return out, nil
}

// onGrid reports whether start is a slot start inside working hours on q.Date
// when nothing is booked.
func onGrid(q SlotQuery, start time.Time) bool {
	profile := q.Profile
	if profile == nil {
		profile = catalog.DefaultProfile(q.Service.MerchantID)
	}
	loc := profile.Location()
	day := time.Date(q.Date.Year(), q.Date.Month(), q.Date.Day(), 0, 0, 0, 0, loc)
	hours := profile.WorkingHours.ForDay(day.Weekday())
	if hours == nil {
		return false
	}
	open, closeAt, err := availability.Window(day, hours.Open, hours.Close, loc)
	if err != nil {
		return false
	}
	slots, err := availability.ComputeSlots(availability.Request{
		Open:        open,
		Close:       closeAt,
		Duration:    q.Service.Duration(),
		Buffer:      profile.Buffer(),
		Granularity: profile.Granularity(),
	})
	if err != nil {
		return false
	}
	return containsStart(slots, start)
}

func containsStart(slots []time.Time, start time.Time) bool {
	for _, s := range slots {
		if s.Equal(start) {
			return true
		}
	}
	return false
}
