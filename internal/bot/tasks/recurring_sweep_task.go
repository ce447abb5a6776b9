package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newRecurringSweepTask creates the task that spawns due recurring instances
// and announces them in their channels.
func newRecurringSweepTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		log := deps.Logger.With("task", "recurring_sweep", "run_id", uuid.NewString())
		startTime := time.Now()

		// Each materialized instance commits with its anchor; a cancelled
		// caller must not cut the sweep between definitions.
		res, err := deps.Sweeper.Run(context.WithoutCancel(ctx), deps.now().UTC())
		if err != nil {
			log.ErrorContext(ctx, "Recurring sweep could not start", "error", err)
			return fmt.Errorf("recurring sweep failed: %w", err)
		}

		var announceErr error
		if len(res.Created) > 0 {
			report, err := deps.Notifier.AnnounceInstances(ctx, res.Created)
			if err != nil {
				log.WarnContext(ctx, "Some instance announcements failed", "error", err, "failed", report.Failed)
				announceErr = fmt.Errorf("failed to announce instances: %w", err)
			}
		}

		log.InfoContext(ctx, "Recurring sweep finished",
			"evaluated", res.Evaluated,
			"created", len(res.Created),
			"failed", len(res.Failures),
			"duration", time.Since(startTime))

		return errors.Join(res.Err(), announceErr)
	}
}
