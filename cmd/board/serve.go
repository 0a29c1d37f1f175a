package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"election_board/pkg/board"
	"election_board/pkg/config"
	"election_board/pkg/metrics"
	"election_board/pkg/server"
)

const shutdownTimeout = 30 * time.Second

// App is the headless board process
type App struct {
	cfg    *config.Config
	board  *board.Service
	server *server.Server
	logger *zap.Logger
}

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Poll the results endpoint and serve the board over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}

			logger, err := initLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}

	cmd.Flags().Duration("interval", 0, "poll interval (at least 1s)")
	cmd.Flags().Duration("timeout", 0, "per-request timeout")
	cmd.Flags().String("addr", "", "HTTP listen address")
	cmd.Flags().String("static-dir", "", "directory served under /static/")
	cmd.Flags().String("log-file", "", "rotating JSON log file")
	cmd.Flags().Int("max-concurrent", 0, "scheduler worker pool size")

	return cmd
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	app, err := initializeApp(cfg, logger)
	if err != nil {
		return err
	}

	if err := app.start(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-app.server.Done():
		if err != nil {
			logger.Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return app.stop(shutdownCtx)
}

func initializeApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	m := metrics.New()

	svc, err := board.NewService(cfg, logger, m)
	if err != nil {
		return nil, fmt.Errorf("initializing board: %w", err)
	}

	return &App{
		cfg:    cfg,
		board:  svc,
		server: server.New(&cfg.Server, svc, logger, m),
		logger: logger,
	}, nil
}

func (a *App) start() error {
	if err := a.board.Start(); err != nil {
		return fmt.Errorf("starting board: %w", err)
	}

	addr, err := a.server.Start()
	if err != nil {
		// cleanup started services on failure
		if serr := a.board.Stop(); serr != nil {
			a.logger.Error("Stopping board after failed start", zap.Error(serr))
		}
		return fmt.Errorf("starting server: %w", err)
	}

	a.logger.Info("All services started",
		zap.String("addr", addr.String()),
		zap.String("endpoint", a.board.Endpoint()))
	return nil
}

func (a *App) stop(ctx context.Context) error {
	// stop services in reverse order
	err := multierr.Combine(
		a.server.Shutdown(ctx),
		a.board.Stop(),
	)
	if err != nil {
		a.logger.Error("Shutdown error", zap.Error(err))
		return err
	}

	a.logger.Info("All services stopped")
	return nil
}
