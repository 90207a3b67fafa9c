package tasks

import "time"

// Task Types
const (
	TaskTypePurgeSessions  = "auth:purge_sessions"
	TaskTypeInvalidateRole = "authz:invalidate_role"
)

// Task Queues
const (
	QueueCritical = "critical" // Cache invalidation
	QueueDefault  = "default"  // For regular tasks
	QueueLow      = "low"      // For background tasks like cleanup
)

// Task Timeouts
const (
	TimeoutShort  = 1 * time.Minute
	TimeoutMedium = 5 * time.Minute
)

// Task Retry Settings
const (
	RetryMax     = 5
	RetryDefault = 3
)

// InvalidationDelay is how long after a role change the follow-up invalidation runs.
const InvalidationDelay = 5 * time.Second

// InvalidateRolePayload names the roles whose cached permission sets must be dropped.
type InvalidateRolePayload struct {
	RoleIDs []string `json:"roleIds"`
}
