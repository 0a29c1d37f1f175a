package board

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"election_board/pkg/config"
	"election_board/pkg/display"
	"election_board/pkg/election"
	"election_board/pkg/metrics"
	"election_board/pkg/poller"
	"election_board/pkg/scheduler"
	"election_board/pkg/settings"
)

// ErrEndpointPinned is returned when an override is set while a flag or
// environment variable fixes the endpoint
var ErrEndpointPinned = errors.New("endpoint is pinned by configuration")

// ClockTaskID identifies the on-screen clock refresh in the scheduler
const ClockTaskID = "clock"

// Frame is one rendered state of the board
type Frame struct {
	View        display.View
	HTML        string
	Fingerprint string
	State       poller.State
}

// Mode is the transition key of the frame
func (f Frame) Mode() election.DisplayMode {
	return f.View.Mode
}

// Service runs the board: it polls the results endpoint, keeps the clock
// ticking and renders a new Frame whenever what is on screen would change.
type Service struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	clock   clock.Clock
	opts    display.Options

	sched  *scheduler.Scheduler
	store  *settings.Store
	poller *poller.Poller

	mu      sync.RWMutex
	frame   Frame
	subs    map[string]func(Frame)
	running bool
	stopped bool

	unsubscribe func()

	// serialises render and notify so subscribers see frames in order
	renderMu sync.Mutex
}

// Option customises a Service
type Option func(*serviceOptions)

type serviceOptions struct {
	fetcher poller.Fetcher
	clock   clock.Clock
}

// WithFetcher replaces the HTTP fetcher
func WithFetcher(f poller.Fetcher) Option {
	return func(o *serviceOptions) { o.fetcher = f }
}

// WithClock replaces the wall clock
func WithClock(c clock.Clock) Option {
	return func(o *serviceOptions) { o.clock = c }
}

// NewService wires the board components and loads the persisted settings
func NewService(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics, opts ...Option) (*Service, error) {
	o := serviceOptions{clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.fetcher == nil {
		o.fetcher = poller.NewHTTPFetcher(&cfg.Poller)
	}

	store := settings.NewStore(&cfg.Settings, logger)
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	s := &Service{
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "board")),
		metrics: m,
		clock:   o.clock,
		opts:    display.NewOptions(cfg),
		sched:   scheduler.NewScheduler(&cfg.Scheduler, logger, m),
		store:   store,
		subs:    make(map[string]func(Frame)),
	}
	s.poller = poller.New(&cfg.Poller, o.fetcher, s.Endpoint, logger, m, poller.WithClock(o.clock))

	if _, err := s.render(); err != nil {
		return nil, err
	}

	return s, nil
}

// ErrServiceStopped is returned by Start once the service has been stopped.
// A Service runs once; build a new one to restart the board.
var ErrServiceStopped = errors.New("board service stopped")

// Start begins polling and the clock
func (s *Service) Start() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return ErrServiceStopped
	}
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("board already running")
	}
	s.running = true
	s.mu.Unlock()

	if err := s.sched.Start(); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	unsubscribe := s.poller.Subscribe(func(poller.State) { s.update() })
	s.mu.Lock()
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	err := s.sched.ScheduleTask(&scheduler.Task{
		ID:          ClockTaskID,
		Name:        "Clock refresh",
		Schedule:    scheduler.Every(s.cfg.Display.ClockInterval),
		ExecutionFn: s.tick,
	})
	if err != nil {
		return fmt.Errorf("scheduling clock: %w", err)
	}

	if err := s.poller.Start(s.sched); err != nil {
		return fmt.Errorf("starting poller: %w", err)
	}

	s.logger.Info("Board started",
		zap.String("endpoint", s.Endpoint()),
		zap.Duration("interval", s.cfg.Poller.Interval))

	return nil
}

// Stop halts polling and waits for running tasks. No frame is published
// after Stop returns.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.stopped = true
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()

	s.poller.Stop()
	if unsubscribe != nil {
		unsubscribe()
	}

	var err error
	if uerr := s.sched.UnscheduleTask(ClockTaskID); uerr != nil {
		err = multierr.Append(err, fmt.Errorf("removing clock task: %w", uerr))
	}
	if serr := s.sched.Stop(); serr != nil {
		err = multierr.Append(err, fmt.Errorf("stopping scheduler: %w", serr))
	}

	// wait out a render already in progress
	s.renderMu.Lock()
	s.renderMu.Unlock()

	s.logger.Info("Board stopped")
	return err
}

// Frame returns the latest rendered frame
func (s *Service) Frame() Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// State returns the poller state behind the latest frame
func (s *Service) State() poller.State {
	return s.poller.Current()
}

// Subscribe registers fn for every new frame
func (s *Service) Subscribe(fn func(Frame)) (cancel func()) {
	id := uuid.NewString()

	s.mu.Lock()
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Endpoint is the URL the next poll will use. A pinned configured endpoint
// wins; otherwise the stored override, else the configured endpoint.
func (s *Service) Endpoint() string {
	if s.cfg.Poller.PinEndpoint {
		return s.cfg.Poller.Endpoint
	}
	return s.store.Endpoint(s.cfg.Poller.Endpoint)
}

// SetEndpoint stores an endpoint override and polls it right away. It fails
// with ErrEndpointPinned when the configuration pins the endpoint.
func (s *Service) SetEndpoint(raw string) error {
	if s.cfg.Poller.PinEndpoint {
		return ErrEndpointPinned
	}
	if err := s.store.SetEndpoint(raw); err != nil {
		return err
	}
	s.refreshIfRunning()
	return nil
}

// ResetEndpoint drops the override and polls the configured endpoint
func (s *Service) ResetEndpoint() error {
	if err := s.store.Clear(); err != nil {
		return err
	}
	s.refreshIfRunning()
	return nil
}

// Refresh polls now, outside the schedule
func (s *Service) Refresh() error {
	return s.poller.Refresh()
}

// Tasks returns the scheduler's view of the board tasks
func (s *Service) Tasks() []scheduler.Task {
	return s.sched.ListTasks()
}

// Stats returns scheduler counters
func (s *Service) Stats() scheduler.SchedulerStats {
	return s.sched.GetSchedulerStats()
}

func (s *Service) refreshIfRunning() {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if !running {
		return
	}
	if err := s.poller.Refresh(); err != nil {
		s.logger.Warn("Immediate poll failed to start", zap.Error(err))
	}
}

func (s *Service) tick(ctx context.Context) error {
	s.update()
	return nil
}

func (s *Service) update() {
	if _, err := s.render(); err != nil {
		s.logger.Error("Rendering frame failed", zap.Error(err))
	}
}

// render builds the frame for the current state and publishes it when it
// differs from the last one.
func (s *Service) render() (bool, error) {
	s.renderMu.Lock()
	defer s.renderMu.Unlock()

	state := s.poller.Current()
	view := display.Route(state, s.opts, s.clock.Now())
	fingerprint := view.Fingerprint()

	s.mu.RLock()
	same := s.frame.Fingerprint == fingerprint
	s.mu.RUnlock()
	if same {
		return false, nil
	}

	html, err := display.RenderString(view)
	if err != nil {
		return false, err
	}

	frame := Frame{
		View:        view,
		HTML:        html,
		Fingerprint: fingerprint,
		State:       state,
	}

	s.mu.Lock()
	s.frame = frame
	subs := make([]func(Frame), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.metrics.IncrementFrames()
	for _, fn := range subs {
		fn(frame)
	}

	return true, nil
}
