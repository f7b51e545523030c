// Package webserver serves the briefing dashboard: report pages, the JSON API
// used for manual overrides and advisor chat, and Prometheus metrics.
package webserver

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"github.com/aiwargamer/sitroom/internal/webapi"
)

// Config holds the HTTP server configuration.
type Config struct {
	Host           string
	Port           int
	NoBrowser      bool
	AllowedOrigins []string
	Logger         *slog.Logger
	Deps           webapi.Deps
}

// Server wraps the HTTP server with configuration.
type Server struct {
	cfg    Config
	srv    *http.Server
	logger *slog.Logger
}

// New creates a new HTTP server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8501
	}
	if cfg.Deps.Reports == nil {
		return nil, fmt.Errorf("webserver: a report store is required")
	}

	mux := http.NewServeMux()
	registerRoutes(mux, cfg)

	handler := webapi.CORSMiddleware(mux, cfg.AllowedOrigins...)
	handler = logRequests(handler, cfg.Logger)

	return &Server{
		cfg:    cfg,
		logger: cfg.Logger,
		srv: &http.Server{
			Addr:              net.JoinHostPort(cfg.Host, fmt.Sprint(cfg.Port)),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// URL returns the address users should open.
func (s *Server) URL() string {
	host := s.cfg.Host
	if host == "127.0.0.1" || host == "0.0.0.0" || host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, fmt.Sprint(s.cfg.Port)))
}

// ListenAndServe starts the HTTP server and optionally opens a browser.
// It returns after ctx is canceled and the server has shut down.
func (s *Server) ListenAndServe(ctx context.Context) error {
	url := s.URL()
	s.logger.Info("HTTP server starting", "address", s.srv.Addr, "url", url)
	fmt.Printf("sitroom dashboard: %s\n", url)

	if !s.cfg.NoBrowser {
		go func() {
			time.Sleep(500 * time.Millisecond)
			if err := openBrowser(url); err != nil {
				s.logger.Debug("failed to open browser", "error", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("HTTP server shutdown error", "error", err)
		}
	}()

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server error: %w", err)
	}
	<-done
	return nil
}

// Handler returns the underlying http.Handler (useful for testing).
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// openBrowser opens the given URL in the default browser.
func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
	return cmd.Start()
}
