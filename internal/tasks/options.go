package tasks

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidateCronSpec checks expr the way the scheduler will parse it, so a bad value in
// the environment fails at startup instead of silently never firing.
func ValidateCronSpec(expr string) error {
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextRun returns the first activation of expr after from.
func NextRun(expr string, from time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return schedule.Next(from), nil
}
