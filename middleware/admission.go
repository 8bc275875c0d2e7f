package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/graphgate/graphgate/ratelimit"
	"github.com/graphgate/graphgate/tenant"
	"github.com/graphgate/graphgate/token"
	"github.com/graphgate/graphgate/utils"
)

// Admission guards protected routes: it extracts claims from the bearer
// token, enforces the tenant allowlist, and applies per-identity rate
// limiting before handing the request to the downstream handler.
//
// Unauthenticated probes fail before reaching the limiter, so they are not
// throttled here; the budget belongs to authenticated identities only.
type Admission struct {
	gate    *tenant.Gate
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewAdmission creates the admission middleware with its injected
// collaborators.
func NewAdmission(gate *tenant.Gate, limiter *ratelimit.Limiter, logger *zap.Logger) *Admission {
	return &Admission{
		gate:    gate,
		limiter: limiter,
		logger:  logger,
	}
}

// Require is the middleware. Every terminal outcome maps to a fixed HTTP
// status and machine-readable error code; an unanticipated fault inside the
// pipeline becomes a 500 server_error with no internal text leaked.
func (a *Admission) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())

		defer func() {
			if rec := recover(); rec != nil {
				a.logger.Error("admission pipeline panic",
					zap.String("request_id", requestID),
					zap.Any("panic", rec))
				_ = utils.WriteServerError(w)
			}
		}()

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			// Benign: discovery probes arrive without credentials.
			a.logger.Debug("missing authorization header",
				zap.String("request_id", requestID),
				zap.String("path", r.URL.Path))
			_ = utils.WriteUnauthorized(w, utils.ErrInvalidRequest, "Missing Authorization header")
			return
		}

		scheme, rawToken, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") {
			_ = utils.WriteUnauthorized(w, utils.ErrInvalidRequest, "Authorization header must use Bearer scheme")
			return
		}

		rawToken = strings.TrimSpace(rawToken)
		if rawToken == "" {
			_ = utils.WriteUnauthorized(w, utils.ErrInvalidToken, "Bearer token is empty")
			return
		}

		claims, err := token.ParseClaims(rawToken)
		if err != nil {
			a.logger.Warn("token rejected",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, tokenErrorCode(err), "Bearer token was rejected")
			return
		}

		if err := a.gate.Check(claims.TenantID); err != nil {
			a.logger.Warn("tenant rejected",
				zap.String("request_id", requestID),
				zap.String("tenant_id", claims.TenantID))
			_ = utils.WriteForbidden(w, utils.ErrTenantNotAllowed, "Tenant is not permitted by this gateway")
			return
		}

		decision := a.limiter.Admit(claims.Subject)
		setRateLimitHeaders(w, decision)
		if !decision.Allowed {
			w.Header().Set("Retry-After", strconv.Itoa(decision.RetryAfterSeconds()))
			a.logger.Info("request rate limited",
				zap.String("request_id", requestID),
				zap.String("subject", claims.Subject),
				zap.Int("retry_after_s", decision.RetryAfterSeconds()))
			_ = utils.WriteError(w, http.StatusTooManyRequests, utils.ErrRateLimitExceeded, "Rate limit exceeded")
			return
		}

		ac := &AuthContext{
			RawToken:  rawToken,
			Subject:   claims.Subject,
			TenantID:  claims.TenantID,
			DisplayID: claims.DisplayID,
		}

		a.logger.Debug("request admitted",
			zap.String("request_id", requestID),
			zap.String("subject", claims.Subject),
			zap.String("tenant_id", claims.TenantID),
			zap.String("identity", claims.DisplayID),
			zap.Int("remaining", decision.Remaining))

		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), ac)))
	})
}

// tokenErrorCode maps claim-extraction failures onto wire error codes.
func tokenErrorCode(err error) string {
	if errors.Is(err, token.ErrExpiredToken) {
		return utils.ErrExpiredToken
	}
	return utils.ErrInvalidToken
}

// setRateLimitHeaders exposes the limiter decision so well-behaved clients
// can pace themselves. Set on admitted and denied responses alike.
func setRateLimitHeaders(w http.ResponseWriter, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.UnixMilli(), 10))
}
