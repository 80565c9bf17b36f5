// Package api exposes the assistant and knowledge base over HTTP.
//
// Endpoints:
//
//	GET    /health               liveness probe
//	GET    /ready                readiness probe (vector store reachable)
//	GET    /api/status           provider and index status
//	POST   /api/chat             general chat turn
//	POST   /api/logs/analyze     log analysis turn
//	POST   /api/yaml/generate    manifest generation turn
//	POST   /api/documents        upload documents into the knowledge base
//	GET    /api/documents        list logical documents
//	DELETE /api/documents/{fileName}  delete a document and all its chunks
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/kubesage/kubesage/internal/log"
)

const (
	// DefaultAddr is the default listen address.
	DefaultAddr = "127.0.0.1:7007"

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout = 10 * time.Second

	// ReadHeaderTimeout bounds header reads to prevent Slowloris-style
	// connection hoarding.
	ReadHeaderTimeout = 10 * time.Second

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout = 60 * time.Second

	// WriteTimeout is the maximum duration for writing the response. Chat
	// turns wait on the model provider, so this is generous.
	WriteTimeout = 180 * time.Second

	// IdleTimeout is the keep-alive idle limit.
	IdleTimeout = 120 * time.Second
)

// Server is the HTTP server for the REST API.
type Server struct {
	mux         *http.ServeMux
	corsOrigins []string
	logger      log.Logger

	health    *HealthHandler
	documents *DocumentsHandler
	assist    *AssistHandler
}

// NewServer creates an HTTP server with all routes registered.
func NewServer(health *HealthHandler, documents *DocumentsHandler, assist *AssistHandler, corsOrigins []string, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()
	s := &Server{
		mux:         mux,
		corsOrigins: corsOrigins,
		logger:      logger,
		health:      health,
		documents:   documents,
		assist:      assist,
	}

	s.health.RegisterRoutes(mux)
	s.documents.RegisterRoutes(mux)
	s.assist.RegisterRoutes(mux)
	return s
}

// Handler returns the HTTP handler with middleware applied.
// Middleware order: recovery, then CORS, then logging.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware(s.logger),
		corsMiddleware(s.corsOrigins),
		loggingMiddleware(s.logger),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: ReadHeaderTimeout,
		ReadTimeout:       ReadTimeout,
		WriteTimeout:      WriteTimeout,
		IdleTimeout:       IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting HTTP server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
