package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wa-booking-assistant/internal/bookings"
	"github.com/wolfman30/wa-booking-assistant/internal/calendar"
	"github.com/wolfman30/wa-booking-assistant/internal/catalog"
	"github.com/wolfman30/wa-booking-assistant/internal/dialogue"
	"github.com/wolfman30/wa-booking-assistant/internal/observability/metrics"
	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

func newTestConfig(t *testing.T) *Config {
	t.Helper()
	logger := logging.Discard()

	cat := catalog.NewMemoryCatalog()
	cat.PutProfile(catalog.DefaultProfile("m1"))
	cat.PutService(catalog.Service{ID: "svc-cut", MerchantID: "m1", Name: "Haircut", DurationMinutes: 60, Active: true})

	reg := prometheus.NewRegistry()
	m := metrics.NewBookingMetrics(reg)
	store := bookings.NewMemoryStore()
	finder := bookings.NewSlotFinder(calendar.NewAppointmentSource(store), m)
	committer := bookings.NewCommitter(store, logger, bookings.WithMetrics(m))
	engine := dialogue.NewEngine(dialogue.NewMemoryStateStore(), cat, finder, committer, logger, dialogue.WithMetrics(m))

	return &Config{
		Logger:         logger,
		Conversations:  dialogue.NewHandler(engine, nil, logger),
		Bookings:       bookings.NewHandler(cat, finder, committer, logger),
		MetricsHandler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func turnRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/v1/conversations/c1/turns",
		strings.NewReader(`{"merchant_id":"m1","customer_phone":"+628111","message":"haircut"}`))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestRouterHealthEndpoint(t *testing.T) {
	r := New(newTestConfig(t))

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRouterReadinessReportsFailures(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HealthChecks = map[string]HealthCheck{
		"redis":    func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	}
	rec := serve(New(cfg), httptest.NewRequest(http.MethodGet, "/ready", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestRouterMountsConversationsAndMetrics(t *testing.T) {
	r := New(newTestConfig(t))

	rec := serve(r, turnRequest(""))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var out dialogue.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, dialogue.StageAwaitDate, out.Stage)

	rec = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "wabook_dialogue_turns_total")
}

func TestRouterMountsMerchantRoutes(t *testing.T) {
	r := New(newTestConfig(t))
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/v1/merchants/m1/appointments/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterRequiresServiceToken(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.ServiceJWTSecret = "secret"
	r := New(cfg)

	assert.Equal(t, http.StatusUnauthorized, serve(r, turnRequest("")).Code)
	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/health", nil)).Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "gateway",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, serve(r, turnRequest(token)).Code)
}

func TestRouterRateLimitsAPI(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.RateLimitRPS = 0.001
	cfg.RateLimitBurst = 1
	r := New(cfg)

	assert.Equal(t, http.StatusOK, serve(r, turnRequest("")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(r, turnRequest("")).Code)
}
