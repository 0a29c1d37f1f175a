package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"election_board/pkg/config"
	"election_board/pkg/metrics"
	"election_board/pkg/scheduler"
)

// TaskID identifies the poll task in the scheduler
const TaskID = "poll"

// Poller periodically fetches the results endpoint and publishes the outcome
// of every applied poll to its subscribers.
type Poller struct {
	cfg      *config.PollerConfig
	fetcher  Fetcher
	endpoint func() string
	logger   *zap.Logger
	metrics  *metrics.Metrics
	clock    clock.Clock
	sched    *scheduler.Scheduler

	ctx      context.Context
	cancel   context.CancelFunc
	inFlight chan struct{}
	seq      atomic.Uint64

	mu      sync.RWMutex
	state   State
	applied uint64
	subs    map[string]func(State)
	stopped bool

	// serialises apply and notify so subscribers observe states in order
	notifyMu sync.Mutex
}

// Option customises a Poller
type Option func(*Poller)

// WithClock replaces the wall clock, for tests
func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// New creates a poller. endpoint is consulted on every poll so a changed
// setting takes effect on the next tick.
func New(cfg *config.PollerConfig, fetcher Fetcher, endpoint func() string, logger *zap.Logger, m *metrics.Metrics, opts ...Option) *Poller {
	ctx, cancel := context.WithCancel(context.Background())

	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 1
	}

	p := &Poller{
		cfg:      cfg,
		fetcher:  fetcher,
		endpoint: endpoint,
		logger:   logger.With(zap.String("component", "poller")),
		metrics:  m,
		clock:    clock.New(),
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(chan struct{}, maxInFlight),
		subs:     make(map[string]func(State)),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.state = State{
		Status:    StatusLoading,
		Endpoint:  endpoint(),
		UpdatedAt: p.clock.Now(),
	}

	return p
}

// Start registers the poll task with the scheduler and fires the first poll
// right away instead of waiting a full interval.
func (p *Poller) Start(s *scheduler.Scheduler) error {
	task := &scheduler.Task{
		ID:          TaskID,
		Name:        "Results endpoint poll",
		Schedule:    scheduler.Every(p.cfg.Interval),
		ExecutionFn: p.Poll,
	}
	if err := s.ScheduleTask(task); err != nil {
		return fmt.Errorf("scheduling poll task: %w", err)
	}

	p.mu.Lock()
	p.sched = s
	p.mu.Unlock()

	p.logger.Info("Poller started",
		zap.String("endpoint", p.endpoint()),
		zap.Duration("interval", p.cfg.Interval))

	return p.Refresh()
}

// Refresh runs a poll now, outside the schedule
func (p *Poller) Refresh() error {
	p.mu.RLock()
	s := p.sched
	p.mu.RUnlock()

	if s == nil {
		return fmt.Errorf("poller not started")
	}
	return s.RunNow(TaskID)
}

// Stop unschedules the poll task and cancels in-flight requests. No state is
// published once Stop returns. It must not be called from a subscriber.
func (p *Poller) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	s := p.sched
	p.mu.Unlock()

	p.cancel()
	if s != nil {
		if err := s.UnscheduleTask(TaskID); err != nil {
			p.logger.Debug("Poll task already gone", zap.Error(err))
		}
	}

	// wait out a notify already in progress
	p.notifyMu.Lock()
	p.notifyMu.Unlock()

	p.logger.Info("Poller stopped")
}

// Current returns the latest applied state
func (p *Poller) Current() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// Subscribe registers fn for every applied state. The returned func removes
// the subscription.
func (p *Poller) Subscribe(fn func(State)) (cancel func()) {
	id := uuid.NewString()

	p.mu.Lock()
	p.subs[id] = fn
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		delete(p.subs, id)
		p.mu.Unlock()
	}
}

// Poll performs a single fetch and applies its result unless a newer poll
// has already been applied.
func (p *Poller) Poll(ctx context.Context) error {
	if p.ctx.Err() != nil {
		return ErrStopped
	}

	select {
	case p.inFlight <- struct{}{}:
		defer func() { <-p.inFlight }()
	default:
		p.logger.Debug("Too many polls in flight, skipping")
		return nil
	}

	seq := p.seq.Add(1)
	endpoint := p.endpoint()

	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	start := p.clock.Now()
	data, err := p.fetcher.Fetch(reqCtx, endpoint)
	elapsed := p.clock.Since(start)

	if p.ctx.Err() != nil {
		return ErrStopped
	}
	if err != nil && ctx.Err() != nil {
		// the caller went away; this is not an endpoint failure
		return err
	}

	next := State{
		Endpoint:  endpoint,
		Seq:       seq,
		UpdatedAt: p.clock.Now(),
	}
	if err != nil {
		if !errors.Is(err, ErrFetchFailed) {
			err = fmt.Errorf("%w: %w", ErrFetchFailed, err)
		}
		next.Status = StatusFailed
		next.Err = err
	} else {
		next.Status = StatusReady
		next.Data = data
	}

	prev, applied := p.apply(next)
	if !applied {
		p.metrics.ObservePoll(metrics.OutcomeStale, elapsed)
		p.logger.Debug("Discarding stale poll result", zap.Uint64("seq", seq))
		return err
	}

	if err != nil {
		p.metrics.ObservePoll(metrics.OutcomeFailure, elapsed)
		if prev.Status != StatusFailed {
			p.logger.Warn("Results endpoint unavailable",
				zap.String("endpoint", endpoint),
				zap.Error(err))
		} else {
			p.logger.Debug("Results endpoint still unavailable",
				zap.String("endpoint", endpoint),
				zap.Error(err))
		}
		return err
	}

	p.metrics.ObservePoll(metrics.OutcomeSuccess, elapsed)
	p.metrics.MarkSuccess(next.UpdatedAt)
	if prev.Status != StatusReady {
		p.logger.Info("Results endpoint available",
			zap.String("endpoint", endpoint),
			zap.String("displayMode", string(data.DisplayMode)))
	}

	return nil
}

func (p *Poller) apply(next State) (State, bool) {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	prev := p.state
	if p.stopped || next.Seq <= p.applied {
		p.mu.Unlock()
		return prev, false
	}
	p.applied = next.Seq
	p.state = next
	subs := make([]func(State), 0, len(p.subs))
	for _, fn := range p.subs {
		subs = append(subs, fn)
	}
	p.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}

	return prev, true
}
