package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/graphgate/graphgate/config"
	"github.com/graphgate/graphgate/oauth"
	"github.com/graphgate/graphgate/utils"
)

// maxRegistrationBody bounds the registration request body.
const maxRegistrationBody = 64 * 1024

// OAuthHandler serves the authorization-server façade endpoints: discovery
// metadata, dynamic client registration, and the authorize/token proxies.
type OAuthHandler struct {
	cfg      *config.Config
	registry *oauth.Registry
	proxy    *oauth.Proxy
	logger   *zap.Logger
}

// NewOAuthHandler creates a new OAuthHandler
func NewOAuthHandler(cfg *config.Config, registry *oauth.Registry, proxy *oauth.Proxy, logger *zap.Logger) *OAuthHandler {
	return &OAuthHandler{
		cfg:      cfg,
		registry: registry,
		proxy:    proxy,
		logger:   logger,
	}
}

// HandleRegister handles POST /register (RFC 7591 dynamic registration).
func (h *OAuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req oauth.ClientRegistrationRequest

	body := http.MaxBytesReader(w, r.Body, maxRegistrationBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Registration body must be a JSON object")
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid client metadata: "+err.Error())
		return
	}

	client, err := h.registry.Register(&req)
	if err != nil {
		h.logger.Error("client registration failed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err))
		_ = utils.WriteServerError(w)
		return
	}

	_ = utils.WriteJSON(w, http.StatusCreated, oauth.ClientRegistrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            client.ClientSecret,
		ClientIDIssuedAt:        client.IssuedAt.Unix(),
		ClientName:              client.ClientName,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		ResponseTypes:           client.ResponseTypes,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
	})
}

// HandleAuthorize handles GET /authorize: redirect the caller to the
// upstream authorize endpoint with only allowlisted parameters forwarded.
func (h *OAuthHandler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	redirect := h.proxy.BuildAuthorizeURL(r.URL.Query())
	http.Redirect(w, r, redirect, http.StatusFound)
}

// HandleToken handles POST /token: validate the grant locally, then proxy
// the exchange upstream. Upstream replies pass through verbatim; a
// transport failure collapses to server_error.
func (h *OAuthHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		_ = utils.WriteBadRequest(w, "Token request body must be form-encoded")
		return
	}

	if err := oauth.ValidateTokenRequest(r.PostForm); err != nil {
		if errors.Is(err, oauth.ErrUnsupportedGrant) {
			_ = utils.WriteError(w, http.StatusBadRequest, utils.ErrUnsupportedGrantType,
				"Supported grant types are authorization_code and refresh_token")
			return
		}
		_ = utils.WriteBadRequest(w, err.Error())
		return
	}

	resp, err := h.proxy.ExchangeToken(r.Context(), r.PostForm)
	if err != nil {
		h.logger.Error("upstream token exchange failed",
			zap.String("request_id", chimw.GetReqID(r.Context())),
			zap.Error(err))
		_ = utils.WriteServerError(w)
		return
	}

	w.Header().Set("Content-Type", resp.ContentType)
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

// HandleProtectedResourceMetadata handles
// GET /.well-known/oauth-protected-resource (RFC 9728).
func (h *OAuthHandler) HandleProtectedResourceMetadata(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(h.cfg.Server.BaseURL, "/")
	_ = utils.WriteJSON(w, http.StatusOK, oauth.ProtectedResourceMetadata{
		Resource:               base,
		AuthorizationServers:   []string{base},
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        strings.Fields(h.cfg.OAuth.Scopes),
	})
}

// HandleAuthorizationServerMetadata handles
// GET /.well-known/oauth-authorization-server (RFC 8414). The gateway
// advertises its own endpoints, which proxy to the upstream server.
func (h *OAuthHandler) HandleAuthorizationServerMetadata(w http.ResponseWriter, r *http.Request) {
	base := strings.TrimSuffix(h.cfg.Server.BaseURL, "/")
	_ = utils.WriteJSON(w, http.StatusOK, oauth.AuthorizationServerMetadata{
		Issuer:                            base,
		AuthorizationEndpoint:             base + "/authorize",
		TokenEndpoint:                     base + "/token",
		RegistrationEndpoint:              base + "/register",
		ScopesSupported:                   strings.Fields(h.cfg.OAuth.Scopes),
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{oauth.GrantAuthorizationCode, oauth.GrantRefreshToken},
		TokenEndpointAuthMethodsSupported: []string{"client_secret_post", "none"},
		CodeChallengeMethodsSupported:     []string{"S256"},
	})
}
