// Package app wires the gateway's components together.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/graphgate/graphgate/config"
	"github.com/graphgate/graphgate/handlers"
	"github.com/graphgate/graphgate/middleware"
	"github.com/graphgate/graphgate/oauth"
	"github.com/graphgate/graphgate/ratelimit"
	"github.com/graphgate/graphgate/tenant"
)

// Dependencies holds all gateway dependencies. Process-wide state (the
// rate limiter's windows and the client registry) is constructed exactly
// once here and injected; no component keeps hidden globals.
type Dependencies struct {
	Config *config.Config
	Logger *zap.Logger

	// Admission pipeline
	TenantGate *tenant.Gate
	Limiter    *ratelimit.Limiter
	Admission  *middleware.Admission

	// OAuth façade
	ClientRegistry *oauth.Registry
	OAuthProxy     *oauth.Proxy

	// Handlers
	Health     *handlers.HealthHandler
	OAuth      *handlers.OAuthHandler
	GraphProxy *handlers.GraphProxy
}

// NewDependencies creates and wires up all gateway dependencies.
func NewDependencies(cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.TenantGate = tenant.NewGate(cfg.Tenancy.AllowedTenants)
	deps.Limiter = ratelimit.NewLimiter(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, logger)
	deps.Admission = middleware.NewAdmission(deps.TenantGate, deps.Limiter, logger)

	deps.ClientRegistry = oauth.NewRegistry(logger)
	deps.OAuthProxy = oauth.NewProxy(oauth.ProxyConfig{
		AuthorizeURL: cfg.OAuth.AuthorizeURL,
		TokenURL:     cfg.OAuth.TokenURL,
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Scopes:       cfg.OAuth.Scopes,
		Timeout:      cfg.OAuth.UpstreamTimeout,
	}, logger)

	deps.Health = handlers.NewHealthHandler(deps.Limiter, logger)
	deps.OAuth = handlers.NewOAuthHandler(cfg, deps.ClientRegistry, deps.OAuthProxy, logger)

	graphProxy, err := handlers.NewGraphProxy(cfg.Graph.BaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize resource proxy: %w", err)
	}
	deps.GraphProxy = graphProxy

	logger.Info("all dependencies initialized",
		zap.Int("rate_limit_max", cfg.RateLimit.MaxRequests),
		zap.Duration("rate_limit_window", cfg.RateLimit.Window),
		zap.Bool("open_tenant_mode", deps.TenantGate.Open()))

	return deps, nil
}
