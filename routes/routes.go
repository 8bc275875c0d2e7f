// Package routes configures the gateway's HTTP surface.
package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/graphgate/graphgate/app"
	"github.com/graphgate/graphgate/utils"
)

// SetupRoutes configures all gateway routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	r := chi.NewRouter()

	// Core middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "https://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health
	r.Get("/health", deps.Health.HandleHealth)

	// OAuth façade: discovery, dynamic registration, authorize/token proxies
	r.Get("/.well-known/oauth-protected-resource", deps.OAuth.HandleProtectedResourceMetadata)
	r.Get("/.well-known/oauth-authorization-server", deps.OAuth.HandleAuthorizationServerMetadata)
	r.Post("/register", deps.OAuth.HandleRegister)
	r.Get("/authorize", deps.OAuth.HandleAuthorize)
	r.Post("/token", deps.OAuth.HandleToken)

	// Protected resource routes: admission pipeline, then downstream proxy
	r.Route("/api", func(r chi.Router) {
		r.Use(deps.Admission.Require)
		r.Handle("/*", deps.GraphProxy)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusNotFound, utils.ErrInvalidRequest, "Unknown route")
	})

	return r
}
