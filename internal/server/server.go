// Package server is the development front controller. It compiles and renders
// pages on request, serves the JavaScript bundle and pushes live reload
// notifications to connected browsers.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/conneroisu/tplc/internal/assets"
	"github.com/conneroisu/tplc/internal/cache"
	"github.com/conneroisu/tplc/internal/config"
	"github.com/conneroisu/tplc/internal/errors"
	"github.com/conneroisu/tplc/internal/logging"
	"github.com/conneroisu/tplc/internal/middleware"
	"github.com/conneroisu/tplc/internal/template"
)

// Deps are the compiler components the server drives.
type Deps struct {
	Engine   *template.Engine
	Renderer *template.Renderer
	Store    cache.Store
	Bundler  *assets.Bundler
	Caches   *cache.Manager
	Logger   logging.Logger
}

// Server serves pages with live reload capability
type Server struct {
	config   *config.Config
	engine   *template.Engine
	renderer *template.Renderer
	store    cache.Store
	bundler  *assets.Bundler
	caches   *cache.Manager
	hub      *hub
	errors   *errors.ErrorHandler
	logger   logging.Logger
	started  time.Time

	serverMutex  sync.RWMutex
	httpServer   *http.Server
	shutdownOnce sync.Once
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Pages     []string  `json:"pages,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// New creates a development server
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if deps.Engine == nil || deps.Renderer == nil {
		return nil, fmt.Errorf("server requires an engine and a renderer")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.WithComponent("server")

	return &Server{
		config:   cfg,
		engine:   deps.Engine,
		renderer: deps.Renderer,
		store:    deps.Store,
		bundler:  deps.Bundler,
		caches:   deps.Caches,
		hub:      newHub(logger),
		errors:   errors.NewErrorHandler(logger),
		logger:   logger,
		started:  time.Now(),
	}, nil
}

// Addr is the configured listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.config.Server.Host, strconv.Itoa(s.config.Server.Port))
}

// Handler returns the routed handler wrapped in panic recovery and request
// logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/cache", s.handleCache)
	mux.HandleFunc("DELETE /api/cache", s.handleCacheClear)
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.bundler != nil {
		mux.HandleFunc("GET "+s.config.BundleURL(), s.handleBundle)
	}
	mux.HandleFunc("GET /", s.handlePage)
	return middleware.NewChain(
		middleware.Recover(s.logger),
		middleware.Logging(s.logger),
	).Apply(mux)
}

// Start serves until ctx is canceled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on an existing listener until ctx is canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn(shutdownCtx, err, "Shutdown failed")
		}
	}()

	s.logger.Info(ctx, "Serving", "addr", listener.Addr().String(), "live_reload", s.config.Server.LiveReload)
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown closes live reload connections and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.hub.closeAll()

		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			shutdownErr = server.Shutdown(ctx)
		}
	})
	return shutdownErr
}

// Reload tells connected browsers that pages changed.
func (s *Server) Reload(pages []string) {
	if !s.config.Server.LiveReload {
		return
	}
	s.hub.broadcast(UpdateMessage{Type: "reload", Pages: pages, Timestamp: time.Now()})
}
