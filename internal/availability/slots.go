// Package availability computes bookable slot starts inside a working-hours window.
package availability

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/wolfman30/wa-booking-assistant/internal/dates"
)

// DefaultGranularity is the candidate step when a request leaves it unset.
const DefaultGranularity = 30 * time.Minute

// ErrInvalidDuration is returned when the service duration is not positive.
var ErrInvalidDuration = errors.New("availability: duration must be positive")

// Interval is a half-open busy range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether [start, end) intersects the interval.
func (i Interval) Overlaps(start, end time.Time) bool {
	return start.Before(i.End) && i.Start.Before(end)
}

// Request describes one day of availability for one resource.
type Request struct {
	Open        time.Time
	Close       time.Time
	Duration    time.Duration
	Buffer      time.Duration
	Granularity time.Duration
	Busy        []Interval
}

// ComputeSlots returns slot starts c with Open <= c, c+Duration <= Close, where the buffered
// range [c-Buffer, c+Duration+Buffer) overlaps no busy interval. Slots are ascending and the
// result depends only on the request.
func ComputeSlots(req Request) ([]time.Time, error) {
	if req.Duration <= 0 {
		return nil, ErrInvalidDuration
	}
	step := req.Granularity
	if step <= 0 {
		step = DefaultGranularity
	}
	buffer := req.Buffer
	if buffer < 0 {
		buffer = 0
	}
	if req.Close.Sub(req.Open) < req.Duration {
		return []time.Time{}, nil
	}

	slots := []time.Time{}
	for c := req.Open; !c.Add(req.Duration).After(req.Close); c = c.Add(step) {
		if !overlapsAny(c.Add(-buffer), c.Add(req.Duration+buffer), req.Busy) {
			slots = append(slots, c)
		}
	}
	return slots, nil
}

func overlapsAny(start, end time.Time, busy []Interval) bool {
	for _, b := range busy {
		if b.Overlaps(start, end) {
			return true
		}
	}
	return false
}

// Window builds the open and close instants of a working day from HH:MM clocks.
func Window(date time.Time, open, close string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = date.Location()
	}
	openMin, err := dates.ClockMinutes(open)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("availability: open: %w", err)
	}
	closeMin, err := dates.ClockMinutes(close)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("availability: close: %w", err)
	}
	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, loc)
	return day.Add(time.Duration(openMin) * time.Minute), day.Add(time.Duration(closeMin) * time.Minute), nil
}

// NotBefore drops slots starting before now.
func NotBefore(slots []time.Time, now time.Time) []time.Time {
	out := make([]time.Time, 0, len(slots))
	for _, s := range slots {
		if !s.Before(now) {
			out = append(out, s)
		}
	}
	return out
}

// SortIntervals orders intervals by start, then end.
func SortIntervals(in []Interval) {
	sort.Slice(in, func(i, j int) bool {
		if in[i].Start.Equal(in[j].Start) {
			return in[i].End.Before(in[j].End)
		}
		return in[i].Start.Before(in[j].Start)
	})
}

// ClockLabels renders slot starts as HH:MM in their own location.
func ClockLabels(slots []time.Time) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.Format(dates.ClockLayout)
	}
	return out
}
