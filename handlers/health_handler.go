package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/graphgate/graphgate/ratelimit"
	"github.com/graphgate/graphgate/utils"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status       string          `json:"status"`
	Timestamp    string          `json:"timestamp"`
	RateLimiting ratelimit.Stats `json:"rateLimiting"`
}

// HealthHandler handles health-related HTTP requests
type HealthHandler struct {
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(limiter *ratelimit.Limiter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		limiter: limiter,
		logger:  logger,
	}
}

// HandleHealth handles GET /health. Always 200 while the process is up;
// the rate limiting block exposes live limiter statistics.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:       "healthy",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		RateLimiting: h.limiter.Stats(),
	}

	if err := utils.WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("failed to write health response", zap.Error(err))
	}
}
