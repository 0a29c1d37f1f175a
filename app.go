// app.go
package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"
	"go.uber.org/zap"

	"election_board/pkg/board"
	"election_board/pkg/config"
	"election_board/pkg/display"
	"election_board/pkg/metrics"
	"election_board/pkg/utils"
)

// UpdateEvent carries a new frame to the front-end
const UpdateEvent = "dashboard:update"

type emitFunc func(ctx context.Context, name string, data ...interface{})

// App represents the main application structure
type App struct {
	ctx    context.Context
	logger *zap.Logger
	config *config.Config

	// Core services
	board   *board.Service
	metrics *metrics.Metrics
	emit    emitFunc

	// State
	mu      sync.RWMutex
	running bool
	cleanup []func() error
}

// BoardStatus represents the status of the application's core services
type BoardStatus struct {
	Running  bool   `json:"running"`
	Poller   string `json:"poller"`
	Endpoint string `json:"endpoint"`
	Frame    string `json:"fingerprint"`
}

// NewApp creates a new application instance from config.yaml, falling back
// to the defaults when it cannot be read.
func NewApp() *App {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		cfg = config.Default()
	}

	logger, lerr := utils.NewLogger(utils.LogConfigFrom(cfg))
	if lerr != nil {
		logger, _ = zap.NewProduction()
	}
	if err != nil {
		logger.Warn("Using default configuration", zap.Error(err))
	}

	return newApp(cfg, logger, runtime.EventsEmit)
}

func newApp(cfg *config.Config, logger *zap.Logger, emit emitFunc) *App {
	return &App{
		logger:  logger,
		config:  cfg,
		metrics: metrics.New(),
		emit:    emit,
		cleanup: make([]func() error, 0),
	}
}

func (a *App) startup(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return
	}
	a.ctx = ctx

	if err := a.initServices(ctx); err != nil {
		a.logger.Error("Failed to initialize services", zap.Error(err))
		return
	}

	a.running = true
	a.logger.Info("Application started successfully")
}

func (a *App) initServices(ctx context.Context) error {
	svc, err := board.NewService(a.config, a.logger, a.metrics)
	if err != nil {
		return fmt.Errorf("initializing board: %w", err)
	}

	unsubscribe := svc.Subscribe(func(f board.Frame) {
		a.emit(ctx, UpdateEvent, board.NewFrameDTO(f))
	})
	a.cleanup = append(a.cleanup, func() error {
		unsubscribe()
		return nil
	})

	if err := svc.Start(); err != nil {
		unsubscribe()
		return fmt.Errorf("starting board: %w", err)
	}

	a.board = svc
	return nil
}

func (a *App) shutdown(ctx context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}

	if err := a.board.Stop(); err != nil {
		a.logger.Error("Error stopping board", zap.Error(err))
	}

	// Run cleanup functions
	for _, cleanup := range a.cleanup {
		if err := cleanup(); err != nil {
			a.logger.Error("Cleanup error", zap.Error(err))
		}
	}
	a.cleanup = nil

	a.board = nil
	a.running = false
	_ = a.logger.Sync()
}

func (a *App) domReady(ctx context.Context) {
	a.logger.Info("DOM Ready")

	a.mu.RLock()
	svc := a.board
	a.mu.RUnlock()

	// the page may have missed frames emitted before it loaded
	if svc != nil {
		a.emit(ctx, UpdateEvent, board.NewFrameDTO(svc.Frame()))
	}
}

func (a *App) beforeClose(ctx context.Context) bool {
	// Return true to prevent closing, false to allow
	return false
}

func (a *App) service() (*board.Service, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.board == nil {
		return nil, fmt.Errorf("board not running")
	}
	return a.board, nil
}

// Board methods

// GetDashboard returns the current board fragment
func (a *App) GetDashboard() string {
	svc, err := a.service()
	if err != nil {
		return ""
	}
	return svc.Frame().HTML
}

// GetStyles returns the board stylesheet
func (a *App) GetStyles() (string, error) {
	return display.Styles()
}

// GetState returns the poller state
func (a *App) GetState() (board.StateDTO, error) {
	svc, err := a.service()
	if err != nil {
		return board.StateDTO{}, err
	}
	return board.NewStateDTO(svc.State()), nil
}

// GetEndpoint returns the endpoint being polled
func (a *App) GetEndpoint() (string, error) {
	svc, err := a.service()
	if err != nil {
		return "", err
	}
	return svc.Endpoint(), nil
}

// SetEndpoint stores an endpoint override
func (a *App) SetEndpoint(url string) error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.SetEndpoint(url)
}

// ResetEndpoint returns to the configured endpoint
func (a *App) ResetEndpoint() error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.ResetEndpoint()
}

// Refresh polls immediately
func (a *App) Refresh() error {
	svc, err := a.service()
	if err != nil {
		return err
	}
	return svc.Refresh()
}

// GetBoardStatus returns the status of the application's services
func (a *App) GetBoardStatus() BoardStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()

	status := BoardStatus{Running: a.running}
	if a.board != nil {
		status.Poller = a.board.State().Status.String()
		status.Endpoint = a.board.Endpoint()
		status.Frame = a.board.Frame().Fingerprint
	}
	return status
}
