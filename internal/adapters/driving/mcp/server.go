package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/chatlogs/internal/logger"
)

// Version is reported to clients in the initialize handshake.
const Version = "0.1.0"

// instructions tells clients what the tools are for.
const instructions = "Archive chat transcripts and read them back. " +
	"submit_log stores a transcript and returns its fingerprint; " +
	"resubmitting identical content returns the existing record."

// Server exposes the log service over the Model Context Protocol.
type Server struct {
	ports   *Ports
	server  *mcp.Server
	metrics http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h at /metrics alongside the HTTP transport.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// NewServer registers the chatlogs tools and resources on a fresh server.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports}
	for _, opt := range opts {
		opt(s)
	}
	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "chatlogs", Version: Version},
		&mcp.ServerOptions{Instructions: instructions},
	)

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run serves one client on stdin/stdout until ctx ends or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP handler, with /metrics mounted
// when a metrics handler was given.
func (s *Server) Handler() http.Handler {
	streamable := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	if s.metrics == nil {
		return streamable
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics)
	mux.Handle("/", streamable)
	return mux
}

// RunHTTP serves the streamable HTTP transport on addr until ctx ends.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("mcp: shutdown: %v", err)
		}
	}()

	logger.Info("mcp: listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
