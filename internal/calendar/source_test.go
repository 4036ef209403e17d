package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

type stubLister struct {
	busy []availability.Interval
	err  error
	key  string
}

func (s *stubLister) ListBusy(_ context.Context, resourceKey string, _, _ time.Time) ([]availability.Interval, error) {
	s.key = resourceKey
	return s.busy, s.err
}

type staticDirectory map[string]string

func (d staticDirectory) CalendarID(_ context.Context, resourceID string) (string, bool, error) {
	id, ok := d[resourceID]
	return id, ok, nil
}

func day() time.Time {
	return time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
}

func TestAppointmentSource(t *testing.T) {
	d := day()
	lister := &stubLister{busy: []availability.Interval{{Start: d.Add(10 * time.Hour), End: d.Add(11 * time.Hour)}}}
	src := NewAppointmentSource(lister)

	busy, err := src.ListBusyIntervals(context.Background(), "st-1", d, d.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, busy, 1)
	assert.Equal(t, "st-1", lister.key)

	lister.err = errors.New("connection refused")
	_, err = src.ListBusyIntervals(context.Background(), "st-1", d, d.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMergedSortsAndFailsClosed(t *testing.T) {
	d := day()
	a := SourceFunc(func(context.Context, string, time.Time, time.Time) ([]availability.Interval, error) {
		return []availability.Interval{{Start: d.Add(14 * time.Hour), End: d.Add(15 * time.Hour)}}, nil
	})
	b := SourceFunc(func(context.Context, string, time.Time, time.Time) ([]availability.Interval, error) {
		return []availability.Interval{{Start: d.Add(9 * time.Hour), End: d.Add(10 * time.Hour)}}, nil
	})

	busy, err := Merged{a, nil, b}.ListBusyIntervals(context.Background(), "m1", d, d.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, busy, 2)
	assert.Equal(t, d.Add(9*time.Hour), busy[0].Start)

	failing := SourceFunc(func(context.Context, string, time.Time, time.Time) ([]availability.Interval, error) {
		return nil, errors.New("timeout")
	})
	_, err = Merged{a, failing}.ListBusyIntervals(context.Background(), "m1", d, d.Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)
}

func newGoogleTestSource(t *testing.T, handler http.HandlerFunc, dir Directory) *GoogleSource {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	src, err := NewGoogleSource(context.Background(), dir, logging.Discard(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return src
}

func TestGoogleSourceFreeBusy(t *testing.T) {
	var requested struct {
		TimeMin string `json:"timeMin"`
		Items   []struct {
			ID string `json:"id"`
		} `json:"items"`
	}
	src := newGoogleTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&requested))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"kind": "calendar#freeBusy",
			"calendars": {
				"dewi@example.com": {
					"busy": [{"start": "2026-10-20T03:00:00Z", "end": "2026-10-20T04:00:00Z"}]
				}
			}
		}`))
	}, staticDirectory{"st-1": "dewi@example.com"})

	wib := time.FixedZone("WIB", 7*60*60)
	from := time.Date(2026, 10, 20, 0, 0, 0, 0, wib)
	busy, err := src.ListBusyIntervals(context.Background(), "st-1", from, from.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, busy, 1)
	assert.Equal(t, 10, busy[0].Start.Hour())
	assert.Equal(t, wib, busy[0].Start.Location())
	require.Len(t, requested.Items, 1)
	assert.Equal(t, "dewi@example.com", requested.Items[0].ID)
	assert.Equal(t, "2026-10-20T00:00:00+07:00", requested.TimeMin)
}

func TestGoogleSourceUnlinkedResource(t *testing.T) {
	called := false
	src := newGoogleTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	}, staticDirectory{})

	busy, err := src.ListBusyIntervals(context.Background(), "st-9", day(), day().Add(24*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, busy)
	assert.False(t, called)
}

func TestGoogleSourceErrors(t *testing.T) {
	src := newGoogleTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"calendars": {"dewi@example.com": {"errors": [{"domain": "global", "reason": "notFound"}]}}}`))
	}, staticDirectory{"st-1": "dewi@example.com"})
	_, err := src.ListBusyIntervals(context.Background(), "st-1", day(), day().Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "notFound")

	down := newGoogleTestSource(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}, staticDirectory{"st-1": "dewi@example.com"})
	_, err = down.ListBusyIntervals(context.Background(), "st-1", day(), day().Add(24*time.Hour))
	assert.ErrorIs(t, err, ErrUnavailable)
}
