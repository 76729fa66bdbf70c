// Package serve implements the long-running scheduler daemon with its
// admin HTTP API.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonesrussell/godocscan/cmd/common"
	"github.com/jonesrussell/godocscan/internal/api"
)

const (
	shutdownTimeout         = 30 * time.Second
	errorChannelBufferSize  = 1
	signalChannelBufferSize = 1
)

// Command returns the serve command.
func Command(debug *bool) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the scan scheduler and admin API",
		Long: `Run the scheduler daemon. Each enabled instance is scanned on its
cron schedule, new documents are queued for analysis, and the queue is
drained as scans complete. The admin API exposes scheduler status and
manual triggers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), *debug)
		},
	}
}

func run(ctx context.Context, debug bool) error {
	deps, err := common.BuildDeps(ctx, viper.GetViper(), debug)
	if err != nil {
		return err
	}
	defer deps.Close()

	services := common.BuildServices(deps)

	if err := services.Scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	router, _ := api.SetupRouter(deps.Logger, &deps.Config.Server, api.RouterDeps{
		SchedulerHandler: api.NewSchedulerHandler(services.Scheduler, services.Instances),
		QueueHandler:     api.NewQueueHandler(services.Processor, services.Queue, services.Scheduler),
	})
	server := api.NewHTTPServer(&deps.Config.Server, router)

	deps.Logger.Info("Starting admin API server", "addr", deps.Config.Server.Address)
	errChan := make(chan error, errorChannelBufferSize)
	go func() {
		if serveErr := server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	return runUntilInterrupt(deps, services, server, errChan)
}

// runUntilInterrupt blocks until a shutdown signal or server error.
func runUntilInterrupt(
	deps *common.CommandDeps,
	services *common.Services,
	server *http.Server,
	errChan chan error,
) error {
	sigChan := make(chan os.Signal, signalChannelBufferSize)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case serverErr := <-errChan:
		deps.Logger.Error("Server error", "error", serverErr)
		services.Scheduler.Stop()
		return fmt.Errorf("server error: %w", serverErr)
	case sig := <-sigChan:
		return shutdown(deps, services, server, sig)
	}
}

// shutdown stops the scheduler first so no new scans start, then drains
// the HTTP server.
func shutdown(
	deps *common.CommandDeps,
	services *common.Services,
	server *http.Server,
	sig os.Signal,
) error {
	deps.Logger.Info("Shutdown signal received", "signal", sig.String())

	deps.Logger.Info("Stopping scheduler")
	services.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	deps.Logger.Info("Stopping admin API server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		deps.Logger.Error("Failed to stop server", "error", err)
		return fmt.Errorf("failed to stop server: %w", err)
	}

	deps.Logger.Info("Server stopped successfully")
	return nil
}
