// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wingedpig/gamepanel/internal/api/handlers"
	"github.com/wingedpig/gamepanel/internal/api/middleware"
	"github.com/wingedpig/gamepanel/internal/api/version"
	"github.com/wingedpig/gamepanel/internal/events"
	"github.com/wingedpig/gamepanel/internal/instance"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host         string
	Port         int
	TLSCert      string // Path to TLS certificate file
	TLSKey       string // Path to TLS private key file
	TailscaleTLS bool   // Fetch certificates from the local tailscaled
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Instances instance.Manager
	EventBus  events.EventBus
	Java      handlers.JavaLister
	Version   string // Application version string
}

// NewRouter creates a new API router.
func NewRouter(deps Dependencies) *mux.Router {
	return newRouter(deps, handlers.NewTerminalHandler(deps.Instances))
}

func newRouter(deps Dependencies, terminalHandler *handlers.TerminalHandler) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(version.Middleware)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSON(w, http.StatusOK, map[string]string{
			"version":     deps.Version,
			"api_version": version.FromContext(r.Context()),
		})
	}).Methods("GET")

	// Instance handlers
	instanceHandler := handlers.NewInstanceHandler(deps.Instances)
	api.HandleFunc("/instances", instanceHandler.List).Methods("GET")
	api.HandleFunc("/instances", instanceHandler.Create).Methods("POST")
	api.HandleFunc("/instances/{id}", instanceHandler.Get).Methods("GET")
	api.HandleFunc("/instances/{id}", instanceHandler.Update).Methods("PUT")
	api.HandleFunc("/instances/{id}", instanceHandler.Delete).Methods("DELETE")
	api.HandleFunc("/instances/{id}/start", instanceHandler.Start).Methods("POST")
	api.HandleFunc("/instances/{id}/stop", instanceHandler.Stop).Methods("POST")
	api.HandleFunc("/instances/{id}/restart", instanceHandler.Restart).Methods("POST")
	api.HandleFunc("/instances/{id}/terminal/close", instanceHandler.CloseTerminal).Methods("POST")
	api.HandleFunc("/instances/{id}/input", instanceHandler.Input).Methods("POST")
	api.HandleFunc("/instances/{id}/terminal/ws", terminalHandler.WebSocket).Methods("GET")

	// Java runtimes
	javaHandler := handlers.NewJavaHandler(deps.Java)
	api.HandleFunc("/java", javaHandler.List).Methods("GET")

	// Event handlers
	if deps.EventBus != nil {
		eventHandler := handlers.NewEventHandler(deps.EventBus)
		api.HandleFunc("/events", eventHandler.History).Methods("GET")
		api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")
	}

	return r
}

// Server represents the API server.
type Server struct {
	router          *mux.Router
	cfg             ServerConfig
	server          *http.Server
	terminalHandler *handlers.TerminalHandler
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	terminalHandler := handlers.NewTerminalHandler(deps.Instances)
	return &Server{
		router:          newRouter(deps, terminalHandler),
		cfg:             cfg,
		terminalHandler: terminalHandler,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
}

// ListenAndServe starts the server. Tailscale TLS takes certificates from
// the local tailscaled; otherwise tls_cert and tls_key enable HTTPS.
func (s *Server) ListenAndServe() error {
	tlsConfig, err := serverTLS(s.cfg)
	if err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	addr := s.Addr()
	s.server = &http.Server{
		Addr:      addr,
		Handler:   s.router,
		TLSConfig: tlsConfig,
	}

	if tlsConfig == nil {
		log.Printf("API server listening on http://%s", addr)
		return s.server.ListenAndServe()
	}

	mode := "TLS enabled"
	if s.cfg.TailscaleTLS {
		mode = "Tailscale TLS"
	}
	log.Printf("API server listening on https://%s (%s)", addr, mode)
	return s.server.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	// Terminal websockets are hijacked and not tracked by http.Server
	if s.terminalHandler != nil {
		s.terminalHandler.Shutdown()
	}

	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}

	return s.server.Shutdown(shutdownCtx)
}
