package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testProxy(upstreamToken string) *Proxy {
	return NewProxy(ProxyConfig{
		AuthorizeURL: "https://login.example.com/oauth2/v2.0/authorize",
		TokenURL:     upstreamToken,
		ClientID:     "gateway-client-id",
		ClientSecret: "gateway-secret",
		Scopes:       "openid profile User.Read",
		Timeout:      5 * time.Second,
	}, zap.NewNop())
}

func TestBuildAuthorizeURL(t *testing.T) {
	p := testProxy("")

	t.Run("caller client_id is always overridden", func(t *testing.T) {
		raw := p.BuildAuthorizeURL(url.Values{
			"response_type": {"code"},
			"redirect_uri":  {"http://localhost/cb"},
			"client_id":     {"evil123"},
		})

		parsed, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "gateway-client-id", parsed.Query().Get("client_id"))
		assert.Equal(t, "code", parsed.Query().Get("response_type"))
		assert.Equal(t, "http://localhost/cb", parsed.Query().Get("redirect_uri"))
	})

	t.Run("scope injected when absent", func(t *testing.T) {
		raw := p.BuildAuthorizeURL(url.Values{"response_type": {"code"}})

		parsed, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "openid profile User.Read", parsed.Query().Get("scope"))
	})

	t.Run("caller scope preserved when present", func(t *testing.T) {
		raw := p.BuildAuthorizeURL(url.Values{"scope": {"Mail.Read"}})

		parsed, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "Mail.Read", parsed.Query().Get("scope"))
	})

	t.Run("unknown parameters are dropped", func(t *testing.T) {
		raw := p.BuildAuthorizeURL(url.Values{
			"response_type": {"code"},
			"resource":      {"https://evil.example"},
			"audience":      {"spoofed"},
		})

		parsed, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Empty(t, parsed.Query().Get("resource"))
		assert.Empty(t, parsed.Query().Get("audience"))
	})

	t.Run("PKCE parameters are forwarded", func(t *testing.T) {
		raw := p.BuildAuthorizeURL(url.Values{
			"code_challenge":        {"abc"},
			"code_challenge_method": {"S256"},
			"state":                 {"xyz"},
		})

		parsed, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, "abc", parsed.Query().Get("code_challenge"))
		assert.Equal(t, "S256", parsed.Query().Get("code_challenge_method"))
		assert.Equal(t, "xyz", parsed.Query().Get("state"))
	})
}

func TestValidateTokenRequest(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		wantErr error
	}{
		{
			"authorization_code with required params",
			url.Values{"grant_type": {"authorization_code"}, "code": {"c"}, "redirect_uri": {"http://localhost/cb"}},
			nil,
		},
		{
			"authorization_code missing code",
			url.Values{"grant_type": {"authorization_code"}, "redirect_uri": {"http://localhost/cb"}},
			ErrMissingParam,
		},
		{
			"authorization_code missing redirect_uri",
			url.Values{"grant_type": {"authorization_code"}, "code": {"c"}},
			ErrMissingParam,
		},
		{
			"refresh_token with token",
			url.Values{"grant_type": {"refresh_token"}, "refresh_token": {"rt"}},
			nil,
		},
		{
			"refresh_token missing token",
			url.Values{"grant_type": {"refresh_token"}},
			ErrMissingParam,
		},
		{
			"password grant is unsupported",
			url.Values{"grant_type": {"password"}, "username": {"u"}, "password": {"p"}},
			ErrUnsupportedGrant,
		},
		{
			"empty grant type is unsupported",
			url.Values{},
			ErrUnsupportedGrant,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateTokenRequest(tc.form)
			if tc.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
		})
	}
}

func TestExchangeToken(t *testing.T) {
	t.Run("forwards form with gateway credentials", func(t *testing.T) {
		var received url.Values
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			require.NoError(t, r.ParseForm())
			received = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"at","token_type":"Bearer"}`))
		}))
		defer upstream.Close()

		p := testProxy(upstream.URL)
		resp, err := p.ExchangeToken(context.Background(), url.Values{
			"grant_type":   {"authorization_code"},
			"code":         {"the-code"},
			"redirect_uri": {"http://localhost/cb"},
			"client_id":    {"caller-supplied"},
		})
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.JSONEq(t, `{"access_token":"at","token_type":"Bearer"}`, string(resp.Body))

		// Gateway identity replaces whatever the caller sent.
		assert.Equal(t, "gateway-client-id", received.Get("client_id"))
		assert.Equal(t, "gateway-secret", received.Get("client_secret"))
		assert.Equal(t, "the-code", received.Get("code"))
	})

	t.Run("upstream errors pass through verbatim", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
		}))
		defer upstream.Close()

		p := testProxy(upstream.URL)
		resp, err := p.ExchangeToken(context.Background(), url.Values{
			"grant_type": {"refresh_token"}, "refresh_token": {"rt"},
		})
		require.NoError(t, err)

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.JSONEq(t, `{"error":"invalid_grant","error_description":"code expired"}`, string(resp.Body))
	})

	t.Run("transport failure is an error", func(t *testing.T) {
		// Point at a closed server so the dial fails.
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		upstream.Close()

		p := testProxy(upstream.URL)
		_, err := p.ExchangeToken(context.Background(), url.Values{
			"grant_type": {"refresh_token"}, "refresh_token": {"rt"},
		})
		assert.Error(t, err)
	})

	t.Run("honors context cancellation", func(t *testing.T) {
		release := make(chan struct{})
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer upstream.Close()
		defer close(release)

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		p := testProxy(upstream.URL)
		_, err := p.ExchangeToken(ctx, url.Values{
			"grant_type": {"refresh_token"}, "refresh_token": {"rt"},
		})
		assert.Error(t, err)
	})
}
