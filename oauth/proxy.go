package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Grant types the façade will forward upstream. Anything else is rejected
// locally without contacting the upstream server.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantRefreshToken      = "refresh_token"
)

var (
	// ErrUnsupportedGrant is returned for grant types the façade refuses
	// to forward.
	ErrUnsupportedGrant = errors.New("unsupported grant type")

	// ErrMissingParam is returned when a grant-required parameter is
	// absent from the token request.
	ErrMissingParam = errors.New("missing required parameter")
)

// authorizeParamAllowlist is the explicit set of caller-supplied query
// parameters forwarded to the upstream authorize endpoint. client_id is
// not on the list; the gateway always substitutes its own.
var authorizeParamAllowlist = []string{
	"response_type",
	"redirect_uri",
	"scope",
	"state",
	"code_challenge",
	"code_challenge_method",
	"prompt",
	"login_hint",
}

// ProxyConfig configures the upstream authorization server endpoints and
// the gateway's own application identity there.
type ProxyConfig struct {
	AuthorizeURL string
	TokenURL     string

	// ClientID and ClientSecret are the gateway's registered application
	// identity at the upstream server.
	ClientID     string
	ClientSecret string

	// Scopes is the space-separated scope set injected when the caller
	// supplies none.
	Scopes string

	// Timeout bounds the upstream token call.
	Timeout time.Duration
}

// UpstreamResponse carries an upstream token endpoint reply verbatim.
type UpstreamResponse struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Proxy forwards authorize redirects and token exchanges to the upstream
// authorization server. It holds no per-request state.
type Proxy struct {
	cfg    ProxyConfig
	client *http.Client
	logger *zap.Logger
}

// NewProxy creates a Proxy with a bounded-timeout HTTP client.
func NewProxy(cfg ProxyConfig, logger *zap.Logger) *Proxy {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Proxy{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// BuildAuthorizeURL builds the upstream authorize redirect from the
// caller's query. Only allowlisted parameters are forwarded, client_id is
// always the gateway's own regardless of what the caller sent, and the
// configured scope set is injected when the caller supplies none.
func (p *Proxy) BuildAuthorizeURL(query url.Values) string {
	params := url.Values{}
	for _, name := range authorizeParamAllowlist {
		if v := query.Get(name); v != "" {
			params.Set(name, v)
		}
	}

	params.Set("client_id", p.cfg.ClientID)
	if params.Get("scope") == "" {
		params.Set("scope", p.cfg.Scopes)
	}

	return p.cfg.AuthorizeURL + "?" + params.Encode()
}

// ValidateTokenRequest checks the grant type and its required parameters
// before anything is sent upstream.
func ValidateTokenRequest(form url.Values) error {
	switch form.Get("grant_type") {
	case GrantAuthorizationCode:
		for _, name := range []string{"code", "redirect_uri"} {
			if form.Get(name) == "" {
				return fmt.Errorf("%w: %s", ErrMissingParam, name)
			}
		}
	case GrantRefreshToken:
		if form.Get("refresh_token") == "" {
			return fmt.Errorf("%w: refresh_token", ErrMissingParam)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedGrant, form.Get("grant_type"))
	}
	return nil
}

// ExchangeToken forwards a validated token request upstream using the
// gateway's own client credentials. The upstream status and body are
// returned verbatim, success or not; only a transport failure produces an
// error. The call honors ctx so an aborted request stops the exchange.
func (p *Proxy) ExchangeToken(ctx context.Context, form url.Values) (*UpstreamResponse, error) {
	upstream := url.Values{}
	for name, values := range form {
		if len(values) > 0 {
			upstream.Set(name, values[0])
		}
	}
	upstream.Set("client_id", p.cfg.ClientID)
	if p.cfg.ClientSecret != "" {
		upstream.Set("client_secret", p.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL,
		strings.NewReader(upstream.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream token call failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream token response: %w", err)
	}

	if resp.StatusCode >= 400 {
		p.logger.Warn("upstream token endpoint returned error",
			zap.Int("status", resp.StatusCode),
			zap.String("grant_type", form.Get("grant_type")))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	return &UpstreamResponse{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
	}, nil
}
