package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/graphgate/graphgate/ratelimit"
)

func TestHandleHealth(t *testing.T) {
	limiter := ratelimit.NewLimiter(10, time.Minute, zap.NewNop())
	h := NewHealthHandler(limiter, zap.NewNop())

	// Two identities, three tracked requests total.
	limiter.Admit("alpha")
	limiter.Admit("alpha")
	limiter.Admit("beta")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	h.HandleHealth(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Timestamp)
	assert.Equal(t, 2, resp.RateLimiting.ActiveUsers)
	assert.Equal(t, 3, resp.RateLimiting.TrackedRequests)
}
