package rest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/heartmarshall/dutchstory-backend/internal/transport/middleware"
)

func newTestRouter(askLimit middleware.Middleware) http.Handler {
	return NewRouter(
		NewTutorHandler(okService(), 0, slog.Default()),
		NewHealthHandler(&dbPingerMock{}, loadedKB, "test"),
		askLimit,
	)
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	router := newTestRouter(nil)

	tests := []struct {
		method   string
		target   string
		wantCode int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/ask?query=kat", http.StatusOK},
		{http.MethodGet, "/ask", http.StatusBadRequest},
		{http.MethodGet, "/live", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/docs", http.StatusNotFound},
		{http.MethodGet, "/ask/extra", http.StatusNotFound},
		{http.MethodPost, "/ask?query=kat", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
		assert.Equal(t, tt.wantCode, rec.Code, "%s %s", tt.method, tt.target)
	}
}

func TestRouter_RateLimitOnlyOnAsk(t *testing.T) {
	t.Parallel()

	rl := middleware.NewRateLimiter(time.Minute)
	defer rl.Stop()

	router := newTestRouter(rl.Limit(1))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodGet, "/ask?query=kat", nil)
		req.RemoteAddr = "9.9.9.9:1"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, want, rec.Code, "ask request %d", i)
	}

	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "9.9.9.9:1"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}
