// surf-server runs the Autonomy Core's HTTP API: event ingestion, the
// Planner/goal endpoints, recommendations, exec approvals, verification and
// release gating, and a Prometheus /metrics endpoint, grounded on the
// teacher's cmd/alex-server bootstrap shape.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"surf-core/internal/async"
	"surf-core/internal/config"
	"surf-core/internal/core"
	"surf-core/internal/httpapi"
	"surf-core/internal/logging"
	"surf-core/internal/tracing"
)

func main() {
	cfg, err := config.Load(os.Getenv("SURF_CONFIG_PATH"))
	if err != nil {
		log.Fatalf("surf-server: load config: %v", err)
	}

	logger := logging.New()

	shutdownTracing := tracing.Init()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Warn("surf-server: tracer shutdown: %v", err)
		}
	}()

	c, err := core.Build(cfg, core.BuildOptions{Interactive: false})
	if err != nil {
		log.Fatalf("surf-server: build core: %v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("surf-server: close core: %v", err)
		}
	}()

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()
	c.RunBackground(bgCtx)

	router := httpapi.NewRouter(c)
	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // goal execution can run long
		IdleTimeout:  120 * time.Second,
	}

	if err := serveUntilSignal(server, logger); err != nil {
		log.Fatalf("surf-server: %v", err)
	}
}

func serveUntilSignal(server *http.Server, logger logging.Logger) error {
	errCh := make(chan error, 1)
	async.Go(logger, "server.listen", func() {
		logger.Info("surf-server: listening on %s", server.Addr)
		errCh <- server.ListenAndServe()
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err == nil || err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-quit:
		logger.Info("surf-server: shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		shutdownErr := server.Shutdown(ctx)

		serveErr := <-errCh
		if serveErr == http.ErrServerClosed {
			serveErr = nil
		}
		if shutdownErr != nil {
			return fmt.Errorf("shutdown: %w", shutdownErr)
		}
		if serveErr != nil {
			return fmt.Errorf("server error: %w", serveErr)
		}
		logger.Info("surf-server: stopped")
		return nil
	}
}
