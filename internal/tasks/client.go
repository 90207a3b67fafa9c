package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"cms0/internal/config"
	"cms0/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// TaskClient enqueues background work.
type TaskClient struct {
	client *asynq.Client
	logger *logger.Logger
}

// RedisOpt converts the redis config into asynq connection options.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr(),
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewTaskClient creates a new TaskClient with the given Redis configuration
func NewTaskClient(cfg config.RedisConfig) *TaskClient {
	return &TaskClient{
		client: asynq.NewClient(RedisOpt(cfg)),
		logger: logger.New("TASKS"),
	}
}

// NewInvalidateRoleTask builds the follow-up invalidation task for roleIDs.
func NewInvalidateRoleTask(roleIDs []string) (*asynq.Task, error) {
	payload, err := json.Marshal(InvalidateRolePayload{RoleIDs: roleIDs})
	if err != nil {
		return nil, fmt.Errorf("encode invalidate payload: %w", err)
	}
	return asynq.NewTask(TaskTypeInvalidateRole, payload,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(RetryDefault),
		asynq.Timeout(TimeoutShort),
	), nil
}

// EnqueueRoleInvalidation schedules a second invalidation of roleIDs after
// InvalidationDelay. It drops any entry a concurrent cache fill wrote from pre-change data.
func (c *TaskClient) EnqueueRoleInvalidation(ctx context.Context, roleIDs []string) error {
	if len(roleIDs) == 0 {
		return nil
	}
	task, err := NewInvalidateRoleTask(roleIDs)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task, asynq.ProcessIn(InvalidationDelay))
	if err != nil {
		return c.logger.Error("Failed to enqueue %s", err, TaskTypeInvalidateRole)
	}
	c.logger.Debug("Enqueued %s %s for roles %v", info.Type, info.ID, roleIDs)
	return nil
}

// EnqueuePurgeSessions asks a worker to purge expired sessions now.
func (c *TaskClient) EnqueuePurgeSessions(ctx context.Context) error {
	task := asynq.NewTask(TaskTypePurgeSessions, nil, asynq.Queue(QueueLow), asynq.Timeout(TimeoutMedium))
	if _, err := c.client.EnqueueContext(ctx, task); err != nil {
		return c.logger.Error("Failed to enqueue %s", err, TaskTypePurgeSessions)
	}
	return nil
}

// Close closes the underlying asynq client
func (c *TaskClient) Close() error {
	return c.client.Close()
}
