package tasks

import (
	"fmt"

	"cms0/internal/config"
	"cms0/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// Scheduler handles periodic task scheduling
type Scheduler struct {
	scheduler *asynq.Scheduler
	logger    *logger.Logger
	cfg       config.WorkerConfig
}

// NewScheduler creates a new task scheduler
func NewScheduler(cfg *config.Config, logger *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: asynq.NewScheduler(RedisOpt(cfg.Redis), &asynq.SchedulerOpts{}),
		logger:    logger,
		cfg:       cfg.Worker,
	}
}

// Start registers the periodic tasks and runs the scheduler in the background.
func (s *Scheduler) Start() error {
	if err := s.registerTasks(); err != nil {
		return fmt.Errorf("failed to register tasks: %w", err)
	}

	s.logger.Info("starting task scheduler")
	return s.scheduler.Start()
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.scheduler.Shutdown()
	s.logger.Info("task scheduler stopped")
}

func (s *Scheduler) registerTasks() error {
	return s.Register(s.cfg.SessionPurgeCron, TaskTypePurgeSessions, nil, asynq.Queue(QueueLow), asynq.Timeout(TimeoutMedium))
}

// Register adds a periodic task after validating its cron expression.
func (s *Scheduler) Register(spec string, taskType string, payload []byte, opts ...asynq.Option) error {
	if err := ValidateCronSpec(spec); err != nil {
		return err
	}
	entryID, err := s.scheduler.Register(spec, asynq.NewTask(taskType, payload, opts...))
	if err != nil {
		return fmt.Errorf("failed to register task %s: %w", taskType, err)
	}

	s.logger.Info("registered periodic task %s %s %s", taskType, spec, entryID)
	return nil
}
