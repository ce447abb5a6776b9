package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newSQLMaintenanceTask creates the task that compacts the database and
// reports how much space it reclaimed.
func newSQLMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	return func(ctx context.Context) error {
		log := deps.Logger.With("task", "sql_maintenance", "run_id", uuid.NewString())
		startTime := time.Now()

		before, err := deps.Store.DatabaseSize(ctx)
		if err != nil {
			log.WarnContext(ctx, "Could not read database size before maintenance", "error", err)
		}

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.ErrorContext(ctx, "SQL maintenance failed", "error", err, "duration", time.Since(startTime))
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		after, err := deps.Store.DatabaseSize(ctx)
		if err != nil {
			log.WarnContext(ctx, "Could not read database size after maintenance", "error", err)
			return nil
		}

		log.InfoContext(ctx, "SQL maintenance finished",
			"size_before_bytes", before,
			"size_after_bytes", after,
			"reclaimed_bytes", max(before-after, 0),
			"duration", time.Since(startTime))
		return nil
	}
}
