package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/wa-booking-assistant/pkg/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func signedToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestServiceJWTDisabledWithoutSecret(t *testing.T) {
	rec := httptest.NewRecorder()
	ServiceJWT("")(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServiceJWTRejectsMissingAndBadTokens(t *testing.T) {
	mw := ServiceJWT("secret")

	rec := httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/v1", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "wrong", "gateway"))
	rec = httptest.NewRecorder()
	mw(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestServiceJWTStoresClaims(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/v1", nil)
	req.Header.Set("Authorization", "Bearer "+signedToken(t, "secret", "gateway"))
	rec := httptest.NewRecorder()

	var subject string
	ServiceJWT("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ServiceClaimsFromContext(r.Context())
		require.True(t, ok)
		subject = claims.Subject
	})).ServeHTTP(rec, req)

	assert.Equal(t, "gateway", subject)
}

func TestRateLimiterRefills(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 2, func() time.Time { return now })

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	rl := newRateLimiter(1, 1, func() time.Time { return now })
	rl.Allow("a")
	now = now.Add(bucketIdleTTL + time.Minute)
	rl.Allow("b")

	rl.evictIdle()
	assert.Equal(t, 1, rl.size())
	rl.Stop()
	rl.Stop()
}

func TestRateLimitKeysBySubjectThenIP(t *testing.T) {
	rl := newRateLimiter(0, 1, time.Now)
	h := ServiceJWT("secret")(RateLimitWith(rl)(okHandler()))

	send := func(subject, ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1", nil)
		req.RemoteAddr = ip
		if subject != "" {
			req.Header.Set("Authorization", "Bearer "+signedToken(t, "secret", subject))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send("gateway-a", "10.0.0.1:1"))
	assert.Equal(t, http.StatusTooManyRequests, send("gateway-a", "10.0.0.2:1"))
	assert.Equal(t, http.StatusOK, send("gateway-b", "10.0.0.1:1"))
}

func TestRequestLoggerEchoesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, "info")
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get("X-Request-ID"))
	out := buf.String()
	assert.True(t, strings.Contains(out, `"request_id":"req-1"`), out)
	assert.True(t, strings.Contains(out, `"status":418`), out)
}

func TestRequestLoggerGeneratesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	RequestLogger(logging.Discard())(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
