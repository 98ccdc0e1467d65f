package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllowsBurstThenBlocks(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	require.True(t, rl.allow("client-1"))
	require.True(t, rl.allow("client-1"))
	require.False(t, rl.allow("client-1"), "third immediate request should exceed burst of 2")
}

func TestRateLimiterTracksClientsIndependently(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	require.True(t, rl.allow("client-a"))
	require.True(t, rl.allow("client-b"), "a different client must have its own bucket")
}

func TestRateLimiterMiddlewareReturns429(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req)
	require.Equal(t, http.StatusOK, rec1.Code)

	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req)
	require.Equal(t, http.StatusTooManyRequests, rec2.Code)
}

func TestRateLimiterSweepDropsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	rl.allow("stale-client")
	rl.clients["stale-client"].lastSeen = time.Now().Add(-time.Hour)

	rl.Sweep(time.Minute)

	rl.mu.Lock()
	_, exists := rl.clients["stale-client"]
	rl.mu.Unlock()
	require.False(t, exists)
}
