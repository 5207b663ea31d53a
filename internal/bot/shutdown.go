// internal/bot/shutdown.go
package bot

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// CloseFunc allows using a plain function as an io.Closer.
type CloseFunc func() error

func (f CloseFunc) Close() error { return f() }

// ShutdownHandler tears registered services down in reverse order of
// registration, so consumers stop before the things they consume.
type ShutdownHandler struct {
	logger  *zap.Logger
	timeout time.Duration

	mu       sync.Mutex
	services []namedService
	done     bool
}

type namedService struct {
	name   string
	closer io.Closer
}

func NewShutdownHandler(logger *zap.Logger, timeout time.Duration) *ShutdownHandler {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &ShutdownHandler{
		logger:  logger.Named("shutdown"),
		timeout: timeout,
	}
}

// Add registers a service for shutdown.
func (sh *ShutdownHandler) Add(name string, closer io.Closer) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.services = append(sh.services, namedService{name: name, closer: closer})
}

// AddFunc registers a shutdown function.
func (sh *ShutdownHandler) AddFunc(name string, fn func() error) {
	sh.Add(name, CloseFunc(fn))
}

// Wait blocks until an interrupt arrives or ctx ends, then closes
// everything.
func (sh *ShutdownHandler) Wait(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		sh.logger.Info("shutdown signal received", zap.String("signal", sig.String()))
	case <-ctx.Done():
		sh.logger.Info("run context ended")
	}

	sh.Shutdown()
}

// Shutdown closes all registered services, newest first. Safe to call
// more than once; only the first call does work.
func (sh *ShutdownHandler) Shutdown() {
	sh.mu.Lock()
	if sh.done {
		sh.mu.Unlock()
		return
	}
	sh.done = true
	services := make([]namedService, len(sh.services))
	copy(services, sh.services)
	sh.mu.Unlock()

	sh.logger.Info("graceful shutdown started", zap.Int("services", len(services)))
	deadline := time.Now().Add(sh.timeout)

	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		if time.Now().After(deadline) {
			sh.logger.Error("shutdown timeout, abandoning remaining services",
				zap.Int("remaining", i+1))
			return
		}

		sh.logger.Debug("closing service", zap.String("service", svc.name))
		if err := svc.closer.Close(); err != nil {
			sh.logger.Error("service close failed",
				zap.String("service", svc.name),
				zap.Error(err))
		}
	}

	sh.logger.Info("graceful shutdown complete")
}
