package middleware

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pliu/chatroom/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	issuer, err := auth.NewIssuer("test-secret", time.Minute)
	require.NoError(t, err)
	valid, err := issuer.Issue("u123", "alice")
	require.NoError(t, err)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "u123", UserID(r))
		assert.Equal(t, "alice", Username(r))
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		setup          func(r *http.Request)
		expectedStatus int
	}{
		{
			name:           "Valid Bearer Token",
			setup:          func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+valid) },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Valid Cookie",
			setup:          func(r *http.Request) { r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: valid}) },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Valid Query Token",
			setup:          func(r *http.Request) { r.URL.RawQuery = "token=" + valid },
			expectedStatus: http.StatusOK,
		},
		{
			name:           "Invalid Token",
			setup:          func(r *http.Request) { r.Header.Set("Authorization", "Bearer invalid") },
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "Missing Token",
			setup:          func(r *http.Request) {},
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			tt.setup(req)
			rr := httptest.NewRecorder()

			AuthMiddleware(issuer)(nextHandler).ServeHTTP(rr, req)

			assert.Equal(t, tt.expectedStatus, rr.Code)
			if tt.expectedStatus == http.StatusUnauthorized {
				assert.Contains(t, rr.Body.String(), `"success":false`)
			}
		})
	}
}

func TestUserIDOutsideMiddleware(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	assert.Empty(t, UserID(req))
}

func TestLoggingMiddleware(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Context().Value(RequestIDKey))
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest("GET", "/", nil)
	rr := httptest.NewRecorder()

	LoggingMiddleware(nextHandler).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
}

func TestLoggingMiddlewareKeepsRequestID(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rr := httptest.NewRecorder()

	LoggingMiddleware(nextHandler).ServeHTTP(rr, req)

	assert.Equal(t, "req-1", rr.Header().Get("X-Request-ID"))
}

// MockHijacker implements http.Hijacker for testing
type MockHijacker struct {
	httptest.ResponseRecorder
}

func (m *MockHijacker) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return nil, nil, nil
}

func TestLoggingMiddleware_Hijack(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hijacker, ok := w.(http.Hijacker)
		require.True(t, ok, "ResponseWriter does not implement http.Hijacker")
		_, _, err := hijacker.Hijack()
		assert.NoError(t, err)
	})

	req := httptest.NewRequest("GET", "/", nil)
	mockWriter := &MockHijacker{ResponseRecorder: *httptest.NewRecorder()}

	LoggingMiddleware(nextHandler).ServeHTTP(mockWriter, req)
}

func TestLoggingMiddleware_HijackUnsupported(t *testing.T) {
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, err := w.(http.Hijacker).Hijack()
		assert.Error(t, err)
	})

	req := httptest.NewRequest("GET", "/", nil)
	LoggingMiddleware(nextHandler).ServeHTTP(httptest.NewRecorder(), req)
}
