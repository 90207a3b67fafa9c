package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cms0/internal/metrics"
	"cms0/internal/utils/logger"

	"github.com/hibiken/asynq"
)

// SessionPurger deletes expired or revoked sessions.
type SessionPurger interface {
	PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// RoleInvalidator drops cached permission sets.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, roleIDs ...string) error
}

// TaskHandler processes the tasks registered by Server.
type TaskHandler struct {
	sessions SessionPurger
	roles    RoleInvalidator
	metrics  *metrics.Metrics
	logger   *logger.Logger
	now      func() time.Time
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(sessions SessionPurger, roles RoleInvalidator, m *metrics.Metrics) *TaskHandler {
	return &TaskHandler{
		sessions: sessions,
		roles:    roles,
		metrics:  m,
		logger:   logger.New("TASK_HANDLER"),
		now:      time.Now,
	}
}

func (h *TaskHandler) HandlePurgeSessions(ctx context.Context, t *asynq.Task) error {
	n, err := h.sessions.PurgeExpiredSessions(ctx, h.now())
	if err != nil {
		return h.logger.Error("Failed to purge sessions", err)
	}
	h.metrics.SessionsPurged(n)
	if n > 0 {
		h.logger.Info("Purged %d expired sessions", n)
	}
	return nil
}

func (h *TaskHandler) HandleInvalidateRole(ctx context.Context, t *asynq.Task) error {
	var p InvalidateRolePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("decode %s payload: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if len(p.RoleIDs) == 0 {
		return nil
	}
	return h.roles.Invalidate(ctx, p.RoleIDs...)
}
