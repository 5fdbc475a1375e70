// Package api exposes the assistant over a JSON HTTP API.
//
// Endpoints:
//
//	POST /api/v1/chat                        one user message through the loop
//	GET  /api/v1/sessions                    list sessions
//	GET  /api/v1/sessions/{id}/history       conversation history
//	GET  /api/v1/sessions/{id}/export        portable session document
//	POST /api/v1/sessions/import             import a session document
//	POST /api/v1/sessions/{id}/clear         drop a session's turns
//	PUT  /api/v1/sessions/{id}/topic         attach or detach a topic
//	DELETE /api/v1/sessions/{id}             delete a session
//	CRUD /api/v1/topics                      topic management
//	GET  /api/v1/posts/{id}                  read a post
//	GET  /api/v1/posts/{id}/revisions        snapshot history
//	POST /api/v1/posts/{id}/revisions/{rev}/restore  roll a post back
//	GET  /api/v1/posts/{id}/media            attached media
//	GET  /api/v1/providers                   registered backends
//	POST /api/v1/providers/{name}/test       connectivity self-test
//	GET  /api/v1/providers/diagnostics       last wire round trip
//	GET  /api/v1/settings/presets            generation profiles
//	GET  /api/v1/audit                       tool execution log
//	GET  /health, /ready                     probes
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/scrivo-ai/scrivo/internal/log"
)

// Server timeouts.
const (
	ShutdownTimeout   = 10 * time.Second
	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second

	// WriteTimeout must cover a full orchestration run, which can chain
	// several provider round trips.
	WriteTimeout = 11 * time.Minute

	IdleTimeout = 120 * time.Second
)

// Config wires a Server.
type Config struct {
	Runner    ChatRunner
	Sessions  SessionStore
	Topics    TopicStore
	Posts     PostReader
	Media     MediaLister
	Providers ProviderService
	Audit     AuditReader
	DB        Pinger

	CORSOrigins []string
	RateLimit   float64
	RateBurst   int

	Logger log.Logger
}

// Server is the HTTP server for the assistant API.
type Server struct {
	mux    *http.ServeMux
	cfg    Config
	logger log.Logger
}

// NewServer creates a server with all routes registered.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	mux := http.NewServeMux()

	NewChatHandler(cfg.Runner, cfg.Posts, logger).RegisterRoutes(mux)
	NewSessionHandler(cfg.Sessions, logger).RegisterRoutes(mux)
	NewTopicHandler(cfg.Topics, logger).RegisterRoutes(mux)
	NewPostHandler(cfg.Posts, cfg.Media, logger).RegisterRoutes(mux)
	NewProviderHandler(cfg.Providers, logger).RegisterRoutes(mux)
	NewAuditHandler(cfg.Audit, logger).RegisterRoutes(mux)
	NewHealthHandler(cfg.DB, logger).RegisterRoutes(mux)

	return &Server{mux: mux, cfg: cfg, logger: logger}
}

// Handler returns the HTTP handler with middleware applied.
// Order: recovery → request id → logging → CORS → rate limit → routes.
func (s *Server) Handler() http.Handler {
	return chain(s.mux,
		recoveryMiddleware,
		requestIDMiddleware,
		loggingMiddleware,
		corsMiddleware(s.cfg.CORSOrigins),
		rateLimitMiddleware(s.cfg.RateLimit, s.cfg.RateBurst),
	)
}

// Run starts the HTTP server and blocks until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
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
