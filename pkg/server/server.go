// Package server exposes the dialogue engine over a websocket command
// channel plus a small HTTP surface.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/colloquy/pkg/dialogue"
	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/stream"
)

// Version is reported in the hello frame and on /health.
const Version = "0.1.0"

// Settings controls the embedded HTTP server.
type Settings struct {
	Addr        string
	IdleTimeout time.Duration
}

// Server owns the HTTP handlers, the session registry, and the streaming
// hub.
type Server struct {
	baseCtx  context.Context
	settings Settings

	registry *dialogue.Registry
	hub      *stream.Hub
	router   *events.EventRouter

	mux      *http.ServeMux
	server   *http.Server
	upgrader websocket.Upgrader
}

// New wires a server around an event router and a session registry. The
// hub's broadcasters subscribe through the router's subscriber side.
func New(ctx context.Context, settings Settings, registry *dialogue.Registry, router *events.EventRouter) *Server {
	hubOpts := []stream.HubOption{}
	if settings.IdleTimeout > 0 {
		hubOpts = append(hubOpts, stream.WithIdleTimeout(settings.IdleTimeout))
	}
	s := &Server{
		baseCtx:  ctx,
		settings: settings,
		registry: registry,
		hub:      stream.NewHub(ctx, router.Subscriber, hubOpts...),
		router:   router,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}

	s.registerHTTPHandlers()

	s.server = &http.Server{
		Addr:              settings.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the HTTP handler, for tests that mount it on their own
// listener.
func (s *Server) Handler() http.Handler { return s.mux }

// Run starts the event router and HTTP server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	eg := errgroup.Group{}
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	eg.Go(func() error { return s.router.Run(srvCtx) })

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-srvCtx.Done():
		}
		srvCancel()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		if err := s.router.Close(); err != nil {
			log.Error().Err(err).Msg("router close error")
		}
		log.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		log.Info().Str("addr", s.settings.Addr).Msg("starting dialogue server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		return nil
	})

	return eg.Wait()
}

func (s *Server) registerHTTPHandlers() {
	s.mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        "ok",
			"version":       Version,
			"conversations": s.registry.Count(),
			"connections":   s.hub.Connections(),
			"engines":       s.registry.Engines().Providers(),
		})
	})

	s.mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error().Err(err).Msg("websocket upgrade failed")
			return
		}
		go s.serveConn(conn)
	})
}
