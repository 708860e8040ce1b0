package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"cardroom-server/internal/game"
)

const (
	rateLimitMax    = 20
	rateLimitWindow = time.Second
)

// Server ties the registry to the transport layer: it accepts WebSocket
// connections, feeds their inbound frames to the registry, and exposes
// health over plain HTTP.
type Server struct {
	cfg      Config
	registry *Registry
	limiter  *RateLimiter
	logger   *zap.SugaredLogger
	started  time.Time
}

// NewServer builds the application server and its http.Server from the
// environment.
func NewServer(logger *zap.SugaredLogger) (*Server, *http.Server) {
	cfg := LoadConfig()

	s := &Server{
		cfg:      cfg,
		registry: NewRegistry(cfg.MinPlayers, defaultEngineFactory, logger),
		limiter:  NewRateLimiter(rateLimitMax, rateLimitWindow),
		logger:   logger,
		started:  time.Now(),
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return s, httpServer
}

// Registry exposes the state indices, mainly for tests and health.
func (s *Server) Registry() *Registry { return s.registry }

// Shutdown closes every live client connection. In-memory state is not
// persisted anywhere; lobbies and sessions end with the process.
func (s *Server) Shutdown(ctx context.Context) error {
	conns := s.registry.DrainConnections()
	s.logger.Infow("closing client connections", "count", len(conns))
	for _, c := range conns {
		c.shutdown(websocket.StatusGoingAway, "server shutting down")
	}
	return ctx.Err()
}

func defaultEngineFactory(seats []EngineSeat) Engine {
	gs := make([]game.Seat, len(seats))
	for i, seat := range seats {
		gs[i] = game.Seat{PlayerID: seat.PlayerID, Name: seat.Name}
	}
	return game.New(gs)
}
