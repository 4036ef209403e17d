package bookings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wa-booking-assistant/internal/availability"
	"github.com/wolfman30/wa-booking-assistant/internal/calendar"
	"github.com/wolfman30/wa-booking-assistant/internal/catalog"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

func newTestHandler(t *testing.T, source calendar.Source) (http.Handler, *MemoryStore) {
	t.Helper()
	cat := catalog.NewMemoryCatalog()
	cat.PutService(catalog.Service{ID: "svc-cut", MerchantID: "m1", Name: "Haircut", DurationMinutes: 60, Active: true})
	cat.PutStaff(catalog.Staff{ID: "st-1", MerchantID: "m1", Name: "Dewi", Active: true})
	cat.PutStaff(catalog.Staff{ID: "st-old", MerchantID: "m1", Name: "Budi", Active: false})
	cat.PutProfile(testProfile())

	store := NewMemoryStore()
	if source == nil {
		source = calendar.NewAppointmentSource(store)
	}
	h := NewHandler(cat, NewSlotFinder(source, nil), NewCommitter(store, logging.Discard(), WithBackoff(0)), logging.Discard())
	h.now = func() time.Time { return time.Date(2026, 10, 14, 1, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	r.Mount("/v1/merchants", h.Routes())
	return r, store
}

func TestHandlerCreateAndConflict(t *testing.T) {
	router, _ := newTestHandler(t, nil)
	body := `{"service_id":"svc-cut","date":"2026-10-20","time":"10:00","customer_phone":"+628111"}`

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/merchants/m1/appointments", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	var appt Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	assert.Equal(t, "m1", appt.MerchantID)
	assert.Equal(t, "2026-10-20", appt.Date)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/merchants/m1/appointments", strings.NewReader(body)))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/merchants/m1/appointments/"+appt.ID+"/cancel", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/merchants/m1/appointments", strings.NewReader(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestHandlerAvailability(t *testing.T) {
	router, _ := newTestHandler(t, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/m1/availability?service_id=svc-cut&date=2026-10-20", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp availabilityResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2026-10-20", resp.Date)
	require.NotEmpty(t, resp.Slots)
	assert.Equal(t, "09:00", resp.Slots[0])
	assert.Equal(t, "17:00", resp.Slots[len(resp.Slots)-1])

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/m1/availability?service_id=nope&date=2026-10-20", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/m1/availability?service_id=svc-cut&date=besok", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerAvailabilityCalendarDown(t *testing.T) {
	router, _ := newTestHandler(t, calendar.SourceFunc(func(context.Context, string, time.Time, time.Time) ([]availability.Interval, error) {
		return nil, errors.New("upstream 500")
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/merchants/m1/availability?service_id=svc-cut&date=2026-10-20", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandlerCancelUnknown(t *testing.T) {
	router, _ := newTestHandler(t, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/merchants/m1/appointments/nope/cancel", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerCreateOnlyBooksFreeSlots(t *testing.T) {
	router, store := newTestHandler(t, nil)
	post := func(body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/merchants/m1/appointments", strings.NewReader(body)))
		return rec
	}

	cases := []struct {
		name string
		body string
		code int
	}{
		{"before opening", `{"service_id":"svc-cut","date":"2026-10-20","time":"03:00","customer_phone":"+628111"}`, http.StatusUnprocessableEntity},
		{"ends after closing", `{"service_id":"svc-cut","date":"2026-10-20","time":"17:30","customer_phone":"+628111"}`, http.StatusUnprocessableEntity},
		{"off the slot grid", `{"service_id":"svc-cut","date":"2026-10-20","time":"10:15","customer_phone":"+628111"}`, http.StatusUnprocessableEntity},
		{"closed sunday", `{"service_id":"svc-cut","date":"2026-10-25","time":"10:00","customer_phone":"+628111"}`, http.StatusUnprocessableEntity},
		{"already past", `{"service_id":"svc-cut","date":"2026-10-13","time":"10:00","customer_phone":"+628111"}`, http.StatusUnprocessableEntity},
		{"unknown staff", `{"service_id":"svc-cut","staff_id":"m1-ghost","date":"2026-10-20","time":"10:00","customer_phone":"+628111"}`, http.StatusNotFound},
		{"inactive staff", `{"service_id":"svc-cut","staff_id":"st-old","date":"2026-10-20","time":"10:00","customer_phone":"+628111"}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := post(tc.body)
			assert.Equal(t, tc.code, rec.Code, rec.Body.String())
		})
	}
	assert.Equal(t, 0, store.Count())

	rec := post(`{"service_id":"svc-cut","date":"2026-10-25","time":"10:00","customer_phone":"+628111"}`)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ReasonClosed, body["reason"])

	rec = post(`{"service_id":"svc-cut","staff_id":"st-1","date":"2026-10-20","time":"17:00","customer_phone":"+628111"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var appt Appointment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &appt))
	assert.Equal(t, "st-1", appt.ResourceKey())

	// Overlaps the 17:00 booking of the same staff.
	rec = post(`{"service_id":"svc-cut","staff_id":"st-1","date":"2026-10-20","time":"16:30","customer_phone":"+628222"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, store.Count())
}

func TestHandlerCreateCalendarDown(t *testing.T) {
	router, store := newTestHandler(t, calendar.SourceFunc(func(context.Context, string, time.Time, time.Time) ([]availability.Interval, error) {
		return nil, errors.New("upstream 500")
	}))

	rec := httptest.NewRecorder()
	body := `{"service_id":"svc-cut","date":"2026-10-20","time":"10:00","customer_phone":"+628111"}`
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/merchants/m1/appointments", strings.NewReader(body)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 0, store.Count())
}
