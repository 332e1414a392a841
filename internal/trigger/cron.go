package trigger

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Schedule registers the periodic fallback trigger on c and returns the
// entry ID so a settings update can replace it.
func Schedule(c *cron.Cron, expr string, fire Func) (cron.EntryID, error) {
	id, err := c.AddFunc(expr, func() {
		fire(context.Background())
	})
	if err != nil {
		return 0, fmt.Errorf("schedule sync timer: %w", err)
	}
	return id, nil
}

// Reschedule swaps the timer trigger for a new cron expression.
func Reschedule(c *cron.Cron, old cron.EntryID, expr string, fire Func) (cron.EntryID, error) {
	id, err := Schedule(c, expr, fire)
	if err != nil {
		return old, err
	}
	c.Remove(old)
	return id, nil
}
