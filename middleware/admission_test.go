package middleware

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/graphgate/graphgate/ratelimit"
	"github.com/graphgate/graphgate/tenant"
	"github.com/graphgate/graphgate/utils"
)

func testToken(t *testing.T, claims map[string]interface{}) string {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	require.NoError(t, err)

	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + ".sig"
}

func bearerFor(t *testing.T, subject, tenantID string) string {
	t.Helper()
	return "Bearer " + testToken(t, map[string]interface{}{
		"oid": subject,
		"tid": tenantID,
		"upn": subject + "@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
}

func newAdmission(allowlist string, limit int) *Admission {
	return NewAdmission(
		tenant.NewGate(allowlist),
		ratelimit.NewLimiter(limit, time.Minute, zap.NewNop()),
		zap.NewNop(),
	)
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body utils.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestAdmissionRejections(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "", http.StatusUnauthorized, "invalid_request"},
		{"wrong scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "invalid_request"},
		{"no token after scheme", "Bearer ", http.StatusUnauthorized, "invalid_token"},
		{"garbage token", "Bearer not.a.token", http.StatusUnauthorized, "invalid_token"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := newAdmission("", 10).Require(okHandler)

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tc.wantStatus, w.Code)
			assert.Equal(t, tc.wantCode, errorCode(t, w))
		})
	}
}

func TestAdmissionExpiredToken(t *testing.T) {
	handler := newAdmission("", 10).Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	expired := testToken(t, map[string]interface{}{
		"oid": "user-1",
		"tid": "tenant-1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+expired)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "expired_token", errorCode(t, w))
}

func TestAdmissionTenantGate(t *testing.T) {
	handler := newAdmission("Contoso", 10).Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed tenant passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", bearerFor(t, "user-1", "Contoso"))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("foreign tenant is rejected with 403", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", bearerFor(t, "user-2", "contoso"))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "tenant_not_allowed", errorCode(t, w))
	})
}

func TestAdmissionAttachesAuthContext(t *testing.T) {
	var seen *AuthContext
	handler := newAdmission("", 10).Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetAuthContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rawToken := testToken(t, map[string]interface{}{
		"oid": "user-7",
		"tid": "tenant-7",
		"upn": "grace@example.com",
		"exp": time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+rawToken)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, seen)
	assert.Equal(t, rawToken, seen.RawToken)
	assert.Equal(t, "user-7", seen.Subject)
	assert.Equal(t, "tenant-7", seen.TenantID)
	assert.Equal(t, "grace@example.com", seen.DisplayID)
}

func TestAdmissionRateLimiting(t *testing.T) {
	handler := newAdmission("", 2).Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	auth := bearerFor(t, "user-9", "tenant-9")

	// Budget headers are present on admitted responses too.
	for i, wantRemaining := range []string{"1", "0"} {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", auth)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, wantRemaining, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	// Third request hits the budget.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", auth)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "rate_limit_exceeded", errorCode(t, w))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestAdmissionPanicBecomesServerError(t *testing.T) {
	a := NewAdmission(nil, ratelimit.NewLimiter(1, time.Minute, zap.NewNop()), zap.NewNop())
	handler := a.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	// A nil gate panics inside the pipeline; the caller must only see a
	// generic server_error.
	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", bearerFor(t, "user-1", "tenant-1"))
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "server_error", errorCode(t, w))
}
