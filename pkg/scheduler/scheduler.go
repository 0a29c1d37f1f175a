package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"election_board/pkg/config"
	"election_board/pkg/metrics"
)

// TaskStatus represents the current state of a scheduled task
type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "pending"
	TaskStatusRunning  TaskStatus = "running"
	TaskStatusComplete TaskStatus = "complete"
	TaskStatusFailed   TaskStatus = "failed"
)

// Schedules accept an optional seconds field and descriptors such as
// "@every 2s".
var scheduleParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Every returns the schedule spec firing once per d
func Every(d time.Duration) string {
	return "@every " + d.String()
}

// Task represents a scheduled task
type Task struct {
	ID          string
	Name        string
	Schedule    string
	LastRun     time.Time
	NextRun     time.Time
	Status      TaskStatus
	Error       error
	Runs        int64
	Skipped     int64
	CronID      cron.EntryID
	ExecutionFn func(context.Context) error
}

// Scheduler manages task scheduling and execution
type Scheduler struct {
	cron       *cron.Cron
	tasks      map[string]*Task
	config     *config.SchedConfig
	logger     *zap.Logger
	metrics    *SchedulerMetrics
	prom       *metrics.Metrics
	workerPool chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	running    sync.WaitGroup
	mu         sync.RWMutex
}

// SchedulerMetrics tracks scheduler performance
type SchedulerMetrics struct {
	TasksScheduled  int64
	TasksCompleted  int64
	TasksFailed     int64
	TasksSkipped    int64
	AverageLatency  time.Duration
	ConcurrentTasks int
	LastUpdate      time.Time
	mu              sync.RWMutex
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config *config.SchedConfig, logger *zap.Logger, prom *metrics.Metrics) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		cron: cron.New(
			cron.WithParser(scheduleParser),
			cron.WithChain(cron.Recover(newCronLogger(logger))),
		),
		tasks:      make(map[string]*Task),
		config:     config,
		logger:     logger,
		metrics:    &SchedulerMetrics{},
		prom:       prom,
		workerPool: make(chan struct{}, config.MaxConcurrent),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler",
		zap.Int("maxConcurrent", s.config.MaxConcurrent))

	s.cron.Start()
	return nil
}

// Stop cancels running tasks and waits for them to return
func (s *Scheduler) Stop() error {
	s.logger.Info("Stopping scheduler")

	// Cancel context to stop background operations
	s.cancel()

	// Stop accepting new tasks
	ctx := s.cron.Stop()

	// Wait for running tasks to complete
	<-ctx.Done()
	s.running.Wait()

	return nil
}

// ScheduleTask adds a new task to the scheduler
func (s *Scheduler) ScheduleTask(task *Task) error {
	if err := s.validateTask(task); err != nil {
		return fmt.Errorf("invalid task: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check for duplicate task
	if _, exists := s.tasks[task.ID]; exists {
		return fmt.Errorf("task with ID %s already exists", task.ID)
	}

	// Create cron schedule
	cronID, err := s.cron.AddFunc(task.Schedule, func() {
		s.executeTask(task)
	})
	if err != nil {
		return fmt.Errorf("scheduling task: %w", err)
	}

	// Update task
	task.CronID = cronID
	task.Status = TaskStatusPending
	task.NextRun = s.cron.Entry(cronID).Next
	s.tasks[task.ID] = task

	// Update metrics
	s.metrics.mu.Lock()
	s.metrics.TasksScheduled++
	s.metrics.LastUpdate = time.Now()
	s.metrics.mu.Unlock()

	s.logger.Info("Task scheduled",
		zap.String("taskID", task.ID),
		zap.String("schedule", task.Schedule),
		zap.Time("nextRun", task.NextRun))

	return nil
}

// RunNow executes a scheduled task immediately, outside its schedule
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.RLock()
	task, exists := s.tasks[taskID]
	s.mu.RUnlock()
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}

	if s.ctx.Err() != nil {
		return fmt.Errorf("scheduler stopped")
	}

	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.executeTask(task)
	}()
	return nil
}

// UnscheduleTask removes a task from the scheduler
func (s *Scheduler) UnscheduleTask(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}

	s.cron.Remove(task.CronID)
	delete(s.tasks, taskID)

	s.logger.Info("Task unscheduled",
		zap.String("taskID", taskID))

	return nil
}

// GetTask returns a snapshot of the task with the given ID
func (s *Scheduler) GetTask(taskID string) (Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return Task{}, fmt.Errorf("task %s not found", taskID)
	}

	return *task, nil
}

// ListTasks returns snapshots of all scheduled tasks
func (s *Scheduler) ListTasks() []Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		tasks = append(tasks, *task)
	}

	return tasks
}

// Private methods

func (s *Scheduler) executeTask(task *Task) {
	// A full pool means earlier runs are still going; the next tick retries.
	select {
	case s.workerPool <- struct{}{}:
		defer func() { <-s.workerPool }()
	default:
		s.mu.Lock()
		task.Skipped++
		s.mu.Unlock()
		s.metrics.mu.Lock()
		s.metrics.TasksSkipped++
		s.metrics.mu.Unlock()
		s.prom.IncrementSkipped(task.ID)
		s.logger.Debug("Worker pool full, skipping run",
			zap.String("taskID", task.ID))
		return
	}

	if s.ctx.Err() != nil {
		return
	}

	start := time.Now()

	s.mu.Lock()
	task.Status = TaskStatusRunning
	task.LastRun = start
	task.Runs++
	s.mu.Unlock()
	s.updateConcurrency(1)

	err := task.ExecutionFn(s.ctx)

	s.updateConcurrency(-1)
	s.mu.Lock()
	if err != nil {
		task.Status = TaskStatusFailed
		task.Error = err
	} else {
		task.Status = TaskStatusComplete
		task.Error = nil
	}
	task.NextRun = s.cron.Entry(task.CronID).Next
	s.mu.Unlock()

	// Update metrics
	s.metrics.mu.Lock()
	if err != nil {
		s.metrics.TasksFailed++
	} else {
		s.metrics.TasksCompleted++
	}
	s.metrics.AverageLatency = (s.metrics.AverageLatency*9 + time.Since(start)) / 10
	s.metrics.LastUpdate = time.Now()
	s.metrics.mu.Unlock()

	if err != nil {
		s.logger.Debug("Task execution failed",
			zap.String("taskID", task.ID),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
	}
}

func (s *Scheduler) updateConcurrency(delta int) {
	s.metrics.mu.Lock()
	defer s.metrics.mu.Unlock()
	s.metrics.ConcurrentTasks += delta
	s.metrics.LastUpdate = time.Now()
}

func (s *Scheduler) validateTask(task *Task) error {
	if task.ID == "" {
		return fmt.Errorf("task ID cannot be empty")
	}
	if task.Schedule == "" {
		return fmt.Errorf("task schedule cannot be empty")
	}
	if task.ExecutionFn == nil {
		return fmt.Errorf("task execution function cannot be nil")
	}

	// Validate cron schedule
	if _, err := scheduleParser.Parse(task.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule: %w", err)
	}

	return nil
}

// UpdateTaskSchedule updates the schedule of an existing task
func (s *Scheduler) UpdateTaskSchedule(taskID string, schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, exists := s.tasks[taskID]
	if !exists {
		return fmt.Errorf("task %s not found", taskID)
	}

	// Validate new schedule
	if _, err := scheduleParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule: %w", err)
	}

	// Remove old schedule
	s.cron.Remove(task.CronID)

	// Add new schedule
	cronID, err := s.cron.AddFunc(schedule, func() {
		s.executeTask(task)
	})
	if err != nil {
		return fmt.Errorf("updating task schedule: %w", err)
	}

	task.Schedule = schedule
	task.CronID = cronID
	task.NextRun = s.cron.Entry(cronID).Next

	s.logger.Info("Task schedule updated",
		zap.String("taskID", taskID),
		zap.String("schedule", schedule),
		zap.Time("nextRun", task.NextRun))

	return nil
}

// GetSchedulerStats returns current scheduler statistics
func (s *Scheduler) GetSchedulerStats() SchedulerStats {
	s.metrics.mu.RLock()
	defer s.metrics.mu.RUnlock()

	return SchedulerStats{
		TasksScheduled:  s.metrics.TasksScheduled,
		TasksCompleted:  s.metrics.TasksCompleted,
		TasksFailed:     s.metrics.TasksFailed,
		TasksSkipped:    s.metrics.TasksSkipped,
		AverageLatency:  s.metrics.AverageLatency,
		ConcurrentTasks: s.metrics.ConcurrentTasks,
		LastUpdate:      s.metrics.LastUpdate,
	}
}

// SchedulerStats represents scheduler statistics
type SchedulerStats struct {
	TasksScheduled  int64
	TasksCompleted  int64
	TasksFailed     int64
	TasksSkipped    int64
	AverageLatency  time.Duration
	ConcurrentTasks int
	LastUpdate      time.Time
}
