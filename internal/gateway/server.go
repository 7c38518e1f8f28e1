package gateway

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net"
	"net/http"
	"time"
)

// Suspender stops the backend instance on shutdown.
type Suspender interface {
	Close(ctx context.Context) error
}

// Server wraps the gateway with lifecycle management
type Server struct {
	gateway  *Gateway
	server   *http.Server
	instance Suspender
	logger   *slog.Logger
}

// NewServer creates a server listening on addr. inst may be nil.
func NewServer(addr string, g *Gateway, inst Suspender) *Server {
	// No read or write deadline: a forward lasts as long as the backend
	// takes to answer.
	server := &http.Server{
		Addr:              addr,
		Handler:           g,
		ReadHeaderTimeout: 30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &Server{
		gateway:  g,
		server:   server,
		instance: inst,
		logger:   g.config.Logger,
	}
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	l, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("starting gateway", "addr", l.Addr().String())
	if err := s.server.Serve(l); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight forwards to
// finish, then suspends the instance.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down gateway")
	err := s.server.Shutdown(ctx)

	if s.instance != nil {
		if cerr := s.instance.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := s.gateway.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
