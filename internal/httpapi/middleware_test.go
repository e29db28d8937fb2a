package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"recruitcore.io/internal/ids"
)

func TestRateLimitExceeded(t *testing.T) {
	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequestID(limitWith(newLimiter(1, 1), base))

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, req.Clone(context.Background()))
	require.Equal(t, http.StatusOK, rr1.Code)

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, req.Clone(context.Background()))
	require.Equal(t, http.StatusTooManyRequests, rr2.Code)
	require.Equal(t, "1", rr2.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr2.Body.Bytes(), &body))
	require.Equal(t, "rate limit exceeded", body["error"])
	require.NotEmpty(t, body["request_id"])

	other := req.Clone(context.Background())
	other.RemoteAddr = "10.0.0.2:1234"
	rr3 := httptest.NewRecorder()
	handler.ServeHTTP(rr3, other)
	require.Equal(t, http.StatusOK, rr3.Code)
}

func TestCredentialEndpointsShareLimiter(t *testing.T) {
	api := newTestAPI(t, withAPIOptions(WithRateLimit(1, 2)))

	for i := 0; i < 2; i++ {
		api.expect(api.do(http.MethodPost, "/v1/auth/login", "", loginRequest{Email: "x@example.com", Password: "whatever1"}), http.StatusUnauthorized, nil)
	}
	api.expect(api.do(http.MethodPost, "/v1/auth/refresh", "", refreshRequest{RefreshToken: "x"}), http.StatusTooManyRequests, nil)
	api.expect(api.do(http.MethodGet, "/healthz", "", nil), http.StatusOK, nil)
}

func TestLoggingEmitsStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var inner zerolog.Logger
	handler := RequestID(Logging(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = *zerolog.Ctx(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("ok"))
	}), logger))

	req := httptest.NewRequest(http.MethodGet, "/log-test", nil)
	req.Header.Set(requestIDHeader, "req-abc")
	req.RemoteAddr = "127.0.0.1:1234"

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, "req-abc", rr.Header().Get(requestIDHeader))
	require.NotEqual(t, zerolog.Disabled, inner.GetLevel())

	line := strings.TrimSpace(buf.String())
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(line), &entry))
	for _, key := range []string{"level", "message", "request_id", "method", "path", "status", "duration_ms"} {
		require.Contains(t, entry, key)
	}
	require.Equal(t, "request_complete", entry["message"])
	require.Equal(t, "req-abc", entry["request_id"])
	require.EqualValues(t, http.StatusTeapot, entry["status"])
}

func TestRequestIDIsGeneratedWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.True(t, ids.Valid(seen), seen)
	require.Equal(t, seen, rr.Header().Get(requestIDHeader))
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })

	cases := []struct {
		name    string
		origins []string
		origin  string
		allowed bool
	}{
		{"localhost by default", nil, "http://localhost:3000", true},
		{"foreign by default", nil, "https://evil.test", false},
		{"configured origin", []string{"https://hr.example.com/"}, "https://hr.example.com", true},
		{"localhost when configured", []string{"https://hr.example.com"}, "http://localhost:3000", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/v1/auth/login", nil)
			req.Header.Set("Origin", tc.origin)
			rr := httptest.NewRecorder()
			CORS(ok, tc.origins).ServeHTTP(rr, req)
			require.Equal(t, http.StatusNoContent, rr.Code)
			if tc.allowed {
				require.Equal(t, tc.origin, rr.Header().Get("Access-Control-Allow-Origin"))
			} else {
				require.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestSecurityHeaders(t *testing.T) {
	rr := httptest.NewRecorder()
	SecurityHeaders(http.NotFoundHandler()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
	require.Equal(t, "DENY", rr.Header().Get("X-Frame-Options"))
	require.NotEmpty(t, rr.Header().Get("Content-Security-Policy"))
}

func TestExtractBearerToken(t *testing.T) {
	tok, err := extractBearerToken("bearer abc.def")
	require.NoError(t, err)
	require.Equal(t, "abc.def", tok)

	for _, h := range []string{"", "Basic xyz", "Bearer ", "Bear"} {
		_, err := extractBearerToken(h)
		require.Error(t, err, h)
	}
}
