package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/metrics"
	"github.com/CandyToyBox/WaveWarz-Stats-App/syncClient/syncer"
)

// Deps are the backends the query server reads from. Any of them may be nil,
// in which case the matching routes answer 503. MaxSyncLimit bounds the
// limit a caller may request and defaults to syncer.MaxLimit.
type Deps struct {
	Syncer       SyncTrigger
	MaxSyncLimit int
	Stats        StatsProvider
	Battles      BattleReader
	Runs         RunReader
	Metrics      *metrics.Metrics
}

// Server provides HTTP endpoints
type Server struct {
	deps   Deps
	logger zerolog.Logger
	server *http.Server
}

// NewServer creates a new Server instance
func NewServer(deps Deps, logger zerolog.Logger, port int) *Server {
	if deps.MaxSyncLimit <= 0 {
		deps.MaxSyncLimit = syncer.MaxLimit
	}
	s := &Server{
		deps:   deps,
		logger: logger.With().Str("component", "query_server").Logger(),
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	if s.server == nil {
		return fmt.Errorf("query server is nil")
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to bind to address %s: %w", s.server.Addr, err)
	}

	go func() {
		err := s.server.Serve(ln)
		switch err {
		case nil:
			s.logger.Info().Msg("query server stopped normally")
		case http.ErrServerClosed:
			s.logger.Info().Msg("query server closed gracefully")
		default:
			s.logger.Error().Err(err).Msg("query server error")
		}
	}()

	s.logger.Info().Str("addr", ln.Addr().String()).Msg("query server listening")
	return nil
}

// Stop gracefully shuts down the HTTP server, waiting for in-flight requests
// until ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
