package remoteworker

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Config holds the bootstrapped worker's HTTP server configuration.
type Config struct {
	Port         int
	Token        string
	WorkDir      string
	Version      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns sane defaults; its caller, cmd/opencode-server's
// --worker-daemon startup, always sets Token and WorkDir and takes Port
// from its --port flag, where 0 keeps the ephemeral-port default.
func DefaultConfig() *Config {
	return &Config{
		Port:         0, // 0 asks the OS for an ephemeral port
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Server is the §6 remote worker HTTP API: health, exec, file read/write,
// and shutdown, all but /health behind a bearer-token check.
type Server struct {
	config  *Config
	router  *chi.Mux
	httpSrv *http.Server

	shutdownOnce func()
}

// New builds a Server; call Start to bind and serve.
func New(cfg *Config, onShutdown func()) *Server {
	s := &Server{config: cfg, router: chi.NewRouter(), shutdownOnce: onShutdown}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RealIP)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Post("/exec", s.handleExec)
		r.Post("/file/read", s.handleFileRead)
		r.Post("/file/write", s.handleFileWrite)
		r.Post("/shutdown", s.handleShutdown)
	})
}

// requireToken enforces "Authorization: Bearer <token>" against the
// server's configured token. /health is deliberately outside this group
// so a connection pool can distinguish "host unreachable" from "host
// reachable but wrong token" during its verify step.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		want := "Bearer " + s.config.Token
		if r.Header.Get("Authorization") != want {
			writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Start binds the configured port and serves until Shutdown is called.
func (s *Server) Start() error {
	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.ListenAndServe()
}

// Listen binds the configured port (0 picks an ephemeral one). Call it
// before Serve when the caller needs to observe the bound port first, as
// the --worker-daemon bootstrap banner does.
func (s *Server) Listen() (net.Listener, error) {
	return net.Listen("tcp", fmt.Sprintf(":%d", s.config.Port))
}

// Serve runs the HTTP server on an already-bound listener until Shutdown
// is called.
func (s *Server) Serve(ln net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}
	return s.httpSrv.Serve(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Router exposes the chi router for tests.
func (s *Server) Router() *chi.Mux {
	return s.router
}
