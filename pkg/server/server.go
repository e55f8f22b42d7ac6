// Package server serves the generated dashboard directory over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/buildtimes/pkg/config"
	"github.com/ethpandaops/buildtimes/pkg/dashboard"
)

const shutdownTimeout = 10 * time.Second

// ErrDashboardMissing is returned by Start when the served directory does
// not contain a generated dashboard document.
var ErrDashboardMissing = errors.New("dashboard data not found")

// Server exposes the dashboard HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
	// Addr returns the bound listen address once Start has succeeded.
	Addr() string
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.ServerConfig
	dir        string
	metrics    *httpMetrics
	httpServer *http.Server
	listener   net.Listener
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a server for the dashboard files under dir.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.ServerConfig,
	dir string,
) Server {
	return &server{
		log:  log.WithField("component", "server"),
		cfg:  cfg,
		dir:  dir,
		done: make(chan struct{}),
	}
}

// Start checks the dashboard directory, binds the listener and serves
// requests in the background.
func (s *server) Start(_ context.Context) error {
	if err := checkDashboard(s.dir); err != nil {
		return err
	}

	if s.cfg.Metrics {
		s.metrics = newHTTPMetrics()
	}

	ln, err := listen(s.log, s.cfg.Host, s.cfg.Port)
	if err != nil {
		return err
	}

	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithFields(logrus.Fields{
			"listen": ln.Addr().String(),
			"dir":    s.dir,
		}).Info("Dashboard server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	s.log.Info("Dashboard server stopped")

	return nil
}

func (s *server) Addr() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// checkDashboard verifies that dir holds the generated document.
func checkDashboard(dir string) error {
	path := filepath.Join(dir, dashboard.FileName)

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s (run 'buildtimes generate' first)",
				ErrDashboardMissing, path)
		}

		return fmt.Errorf("checking %s: %w", path, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrDashboardMissing, path)
	}

	return nil
}

// listen binds host:port, trying port+1 once when the port is taken.
func listen(log logrus.FieldLogger, host string, port int) (net.Listener, error) {
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ln, err := net.Listen("tcp", addr)
	if err == nil {
		return ln, nil
	}

	if port == 0 || !errors.Is(err, syscall.EADDRINUSE) {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	next := net.JoinHostPort(host, strconv.Itoa(port+1))

	log.WithFields(logrus.Fields{
		"busy":     addr,
		"fallback": next,
	}).Warn("Port in use, trying next port")

	ln, err = net.Listen("tcp", next)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", next, err)
	}

	return ln, nil
}
