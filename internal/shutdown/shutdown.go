// Package shutdown orchestrates graceful process termination: the
// per-ticker scheduler goroutines and the KV client are stopped first, then
// the HTTP intake server. Only the HTTP server's shutdown is bounded by the
// timeout; the scheduler and KV adapters ignore it and return when their
// Stop or Close call returns.
package shutdown

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zano-fusd/deposit-watcher/internal/logger"
)

// Shutdowner is a component that can wind down within a bounded timeout.
type Shutdowner interface {
	Shutdown(timeout time.Duration) error
}

// Manager coordinates an ordered shutdown: registered Shutdowners first
// (the scheduler, the KV client), then the HTTP server.
type Manager struct {
	server      *http.Server
	shutdowners []Shutdowner
	log         *logger.Logger
	timeout     time.Duration
}

// NewManager builds a Manager for the given HTTP server, defaulting the
// overall shutdown budget to 30s.
func NewManager(server *http.Server, log *logger.Logger) *Manager {
	return &Manager{
		server:      server,
		shutdowners: make([]Shutdowner, 0),
		log:         log,
		timeout:     30 * time.Second,
	}
}

// Register adds a component to shut down before the HTTP server stops.
func (m *Manager) Register(s Shutdowner) {
	m.shutdowners = append(m.shutdowners, s)
}

// WaitForShutdown blocks until SIGINT/SIGTERM, then shuts everything down
// in order and returns.
func (m *Manager) WaitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	m.log.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	for _, s := range m.shutdowners {
		if err := s.Shutdown(m.timeout); err != nil {
			m.log.Warn("component shutdown error", "err", err)
		}
	}

	if m.server != nil {
		if err := m.server.Shutdown(ctx); err != nil {
			m.log.Error("http server forced shutdown", "err", err)
		}
	}

	m.log.Info("shutdown complete")
}

// SchedulerShutdowner adapts a component exposing a bare Stop() to the
// Shutdowner interface, for the Scheduler which has no failure mode.
type SchedulerShutdowner struct {
	StopFunc func()
}

// Shutdown calls StopFunc and returns when it does; Stop() blocks until
// every ticker goroutine has exited, so the timeout is not applied.
func (s SchedulerShutdowner) Shutdown(timeout time.Duration) error {
	s.StopFunc()
	return nil
}

// KVShutdowner adapts a kv.Store's Close() to the Shutdowner interface.
type KVShutdowner struct {
	CloseFunc func() error
}

// Shutdown closes the KV client connection.
func (k KVShutdowner) Shutdown(timeout time.Duration) error {
	return k.CloseFunc()
}
