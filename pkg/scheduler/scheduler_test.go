package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"election_board/pkg/config"
	"election_board/pkg/metrics"
)

func setupTestScheduler(t *testing.T, maxConcurrent int) *Scheduler {
	logger := zaptest.NewLogger(t)
	cfg := &config.SchedConfig{
		MaxConcurrent: maxConcurrent,
	}

	scheduler := NewScheduler(cfg, logger, metrics.New())
	require.NoError(t, scheduler.Start())

	return scheduler
}

func noop(ctx context.Context) error { return nil }

func TestEvery(t *testing.T) {
	assert.Equal(t, "@every 1s", Every(time.Second))
	assert.Equal(t, "@every 2m30s", Every(150*time.Second))
}

func TestScheduleTask(t *testing.T) {
	scheduler := setupTestScheduler(t, 2)
	defer scheduler.Stop()

	t.Run("ValidTask", func(t *testing.T) {
		task := &Task{
			ID:          "poll",
			Name:        "Results poll",
			Schedule:    Every(5 * time.Second),
			ExecutionFn: noop,
		}

		err := scheduler.ScheduleTask(task)
		require.NoError(t, err)

		// Verify task was scheduled
		scheduledTask, err := scheduler.GetTask(task.ID)
		require.NoError(t, err)
		assert.Equal(t, task.ID, scheduledTask.ID)
		assert.Equal(t, TaskStatusPending, scheduledTask.Status)
	})

	t.Run("SecondsField", func(t *testing.T) {
		task := &Task{ID: "seconds", Schedule: "*/5 * * * * *", ExecutionFn: noop}
		assert.NoError(t, scheduler.ScheduleTask(task))
	})

	t.Run("InvalidSchedule", func(t *testing.T) {
		task := &Task{ID: "bad", Schedule: "invalid", ExecutionFn: noop}
		assert.Error(t, scheduler.ScheduleTask(task))
	})

	t.Run("MissingFunction", func(t *testing.T) {
		task := &Task{ID: "nofn", Schedule: Every(time.Second)}
		assert.Error(t, scheduler.ScheduleTask(task))
	})

	t.Run("DuplicateTask", func(t *testing.T) {
		task := &Task{ID: "dup", Schedule: Every(time.Minute), ExecutionFn: noop}
		require.NoError(t, scheduler.ScheduleTask(task))
		assert.Error(t, scheduler.ScheduleTask(&Task{ID: "dup", Schedule: Every(time.Minute), ExecutionFn: noop}))
	})

	assert.Len(t, scheduler.ListTasks(), 3)
}

func TestTaskExecution(t *testing.T) {
	scheduler := setupTestScheduler(t, 2)
	defer scheduler.Stop()

	t.Run("SuccessfulExecution", func(t *testing.T) {
		executed := make(chan bool, 4)
		task := &Task{
			ID:       "ok",
			Schedule: Every(time.Second),
			ExecutionFn: func(ctx context.Context) error {
				executed <- true
				return nil
			},
		}
		require.NoError(t, scheduler.ScheduleTask(task))

		select {
		case <-executed:
		case <-time.After(3 * time.Second):
			t.Fatal("Task execution timeout")
		}

		require.Eventually(t, func() bool {
			got, err := scheduler.GetTask(task.ID)
			return err == nil && got.Status == TaskStatusComplete
		}, 2*time.Second, 10*time.Millisecond)
	})

	t.Run("FailedExecutionIsNotRetried", func(t *testing.T) {
		expectedErr := errors.New("endpoint down")
		var calls atomic.Int32
		task := &Task{
			ID:       "fail",
			Schedule: Every(time.Hour),
			ExecutionFn: func(ctx context.Context) error {
				calls.Add(1)
				return expectedErr
			},
		}
		require.NoError(t, scheduler.ScheduleTask(task))
		require.NoError(t, scheduler.RunNow(task.ID))

		require.Eventually(t, func() bool {
			got, _ := scheduler.GetTask(task.ID)
			return got.Status == TaskStatusFailed
		}, 2*time.Second, 10*time.Millisecond)

		got, err := scheduler.GetTask(task.ID)
		require.NoError(t, err)
		assert.ErrorIs(t, got.Error, expectedErr)
		assert.Equal(t, int32(1), calls.Load())
	})
}

func TestRunNow(t *testing.T) {
	scheduler := setupTestScheduler(t, 1)
	defer scheduler.Stop()

	ran := make(chan struct{}, 1)
	task := &Task{
		ID:       "now",
		Schedule: Every(time.Hour),
		ExecutionFn: func(ctx context.Context) error {
			ran <- struct{}{}
			return nil
		},
	}
	require.NoError(t, scheduler.ScheduleTask(task))
	require.NoError(t, scheduler.RunNow(task.ID))

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("RunNow did not execute the task")
	}

	assert.Error(t, scheduler.RunNow("missing"))
}

func TestWorkerPoolSkipsWhenFull(t *testing.T) {
	scheduler := setupTestScheduler(t, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	task := &Task{
		ID:       "slow",
		Schedule: Every(time.Hour),
		ExecutionFn: func(ctx context.Context) error {
			started <- struct{}{}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}
	require.NoError(t, scheduler.ScheduleTask(task))
	require.NoError(t, scheduler.RunNow(task.ID))
	<-started

	require.NoError(t, scheduler.RunNow(task.ID))
	require.Eventually(t, func() bool {
		return scheduler.GetSchedulerStats().TasksSkipped == 1
	}, time.Second, 5*time.Millisecond)

	close(release)
	require.NoError(t, scheduler.Stop())

	got, err := scheduler.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Runs)
	assert.Equal(t, int64(1), got.Skipped)
}

func TestTaskCancellation(t *testing.T) {
	scheduler := setupTestScheduler(t, 1)

	started := make(chan bool, 1)
	completed := make(chan bool, 1)

	task := &Task{
		ID:       "cancel",
		Schedule: Every(time.Hour),
		ExecutionFn: func(ctx context.Context) error {
			started <- true
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				completed <- true
				return nil
			}
		},
	}

	require.NoError(t, scheduler.ScheduleTask(task))
	require.NoError(t, scheduler.RunNow(task.ID))

	// Wait for task to start
	<-started

	stopped := make(chan struct{})
	go func() {
		assert.NoError(t, scheduler.Stop())
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Scheduler shutdown timeout")
	}

	select {
	case <-completed:
		t.Fatal("Task should have been cancelled")
	default:
	}

	assert.Error(t, scheduler.RunNow(task.ID))
}

func TestUnscheduleTask(t *testing.T) {
	scheduler := setupTestScheduler(t, 1)
	defer scheduler.Stop()

	require.NoError(t, scheduler.ScheduleTask(&Task{ID: "clock", Schedule: Every(time.Second), ExecutionFn: noop}))
	require.NoError(t, scheduler.UnscheduleTask("clock"))

	_, err := scheduler.GetTask("clock")
	assert.Error(t, err)
	assert.Error(t, scheduler.UnscheduleTask("clock"))
}

func TestScheduleUpdate(t *testing.T) {
	scheduler := setupTestScheduler(t, 2)
	defer scheduler.Stop()

	executed := make(chan struct{}, 4)
	task := &Task{
		ID:       "update-schedule-task",
		Schedule: Every(time.Hour),
		ExecutionFn: func(ctx context.Context) error {
			executed <- struct{}{}
			return nil
		},
	}
	require.NoError(t, scheduler.ScheduleTask(task))

	err := scheduler.UpdateTaskSchedule(task.ID, Every(time.Second))
	require.NoError(t, err)

	select {
	case <-executed:
	case <-time.After(3 * time.Second):
		t.Fatal("updated schedule never fired")
	}

	got, err := scheduler.GetTask(task.ID)
	require.NoError(t, err)
	assert.Equal(t, Every(time.Second), got.Schedule)

	assert.Error(t, scheduler.UpdateTaskSchedule(task.ID, "nope"))
	assert.Error(t, scheduler.UpdateTaskSchedule("missing", Every(time.Second)))
}

func TestSchedulerRecovery(t *testing.T) {
	scheduler := setupTestScheduler(t, 1)
	defer scheduler.Stop()

	var calls atomic.Int32
	task := &Task{
		ID:       "recovery-task",
		Schedule: Every(time.Second),
		ExecutionFn: func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				panic("unexpected panic")
			}
			return nil
		},
	}

	require.NoError(t, scheduler.ScheduleTask(task))

	require.Eventually(t, func() bool {
		got, _ := scheduler.GetTask(task.ID)
		return got.Status == TaskStatusComplete
	}, 4*time.Second, 20*time.Millisecond)
}
