package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

// Directory maps a resource to the Google calendar that mirrors it.
type Directory interface {
	CalendarID(ctx context.Context, resourceID string) (string, bool, error)
}

// GoogleSource reads busy intervals from the Google Calendar free/busy API.
// Resources without a linked calendar have no external busy time.
type GoogleSource struct {
	svc       *gcal.Service
	directory Directory
	logger    *logging.Logger
}

// NewGoogleSource creates a source from client options (credentials file, endpoint, HTTP client).
func NewGoogleSource(ctx context.Context, directory Directory, logger *logging.Logger, opts ...option.ClientOption) (*GoogleSource, error) {
	if logger == nil {
		logger = logging.Default()
	}
	opts = append([]option.ClientOption{option.WithScopes(gcal.CalendarReadonlyScope)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar: create google service: %w", err)
	}
	return &GoogleSource{svc: svc, directory: directory, logger: logger}, nil
}

func (g *GoogleSource) ListBusyIntervals(ctx context.Context, resourceID string, from, to time.Time) ([]availability.Interval, error) {
	calendarID, ok, err := g.directory.CalendarID(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("%w: directory: %v", ErrUnavailable, err)
	}
	if !ok {
		return nil, nil
	}

	resp, err := g.svc.Freebusy.Query(&gcal.FreeBusyRequest{
		TimeMin: from.Format(time.RFC3339),
		TimeMax: to.Format(time.RFC3339),
		Items:   []*gcal.FreeBusyRequestItem{{Id: calendarID}},
	}).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: google freebusy: %v", ErrUnavailable, err)
	}

	cal, found := resp.Calendars[calendarID]
	if !found {
		return nil, fmt.Errorf("%w: google freebusy: calendar %s missing from response", ErrUnavailable, calendarID)
	}
	if len(cal.Errors) > 0 {
		reasons := make([]string, 0, len(cal.Errors))
		for _, e := range cal.Errors {
			reasons = append(reasons, e.Reason)
		}
		return nil, fmt.Errorf("%w: google freebusy: %s", ErrUnavailable, strings.Join(reasons, ","))
	}

	loc := from.Location()
	out := make([]availability.Interval, 0, len(cal.Busy))
	for _, period := range cal.Busy {
		start, err := time.Parse(time.RFC3339, period.Start)
		if err != nil {
			return nil, fmt.Errorf("%w: google freebusy: start %q: %v", ErrUnavailable, period.Start, err)
		}
		end, err := time.Parse(time.RFC3339, period.End)
		if err != nil {
			return nil, fmt.Errorf("%w: google freebusy: end %q: %v", ErrUnavailable, period.End, err)
		}
		out = append(out, availability.Interval{Start: start.In(loc), End: end.In(loc)})
	}
	g.logger.Debug("google busy intervals loaded", "resource_id", resourceID, "count", len(out))
	return out, nil
}
