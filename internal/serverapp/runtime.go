package serverapp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"
)

const signalRefreshTimeout = time.Minute

// Start launches the HTTP server goroutine. It requires Init to have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	if a.started {
		return a.serverErrors, nil
	}

	a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.registry.Names())
	a.started = true
	return a.serverErrors, nil
}

// Refresh rebuilds the schema of every connection.
func (a *App) Refresh(ctx context.Context) error {
	registry := a.Registry()
	if registry == nil {
		return fmt.Errorf("app is not initialized")
	}
	return refreshAll(ctx, registry, a.logger)
}

// WaitForStop waits for a shutdown signal or a server error. SIGHUP
// refreshes every schema and keeps waiting.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (reason string, err error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}

	if stop == nil && serverErrors == nil {
		return "", fmt.Errorf("both stop and serverErrors channels are nil")
	}

	for {
		select {
		case err := <-serverErrors:
			if err == nil {
				return "server_error", fmt.Errorf("server stopped unexpectedly")
			}
			return "server_error", fmt.Errorf("server failed: %w", err)
		case sig := <-stop:
			if sig == syscall.SIGHUP {
				a.logger.Info("received refresh signal", slog.String("signal", sig.String()))
				ctx, cancel := context.WithTimeout(context.Background(), signalRefreshTimeout)
				if err := a.Refresh(ctx); err != nil {
					a.logger.Warn("signal refresh failed", slog.String("error", err.Error()))
				}
				cancel()
				continue
			}
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			return "signal", nil
		}
	}
}
