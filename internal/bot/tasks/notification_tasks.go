package tasks

import (
	"context"
	"fmt"

	"github.com/edgard/taskbot/internal/notify"
)

func newMorningSummaryTask(deps TaskDeps) ScheduledTaskFunc {
	return newNotificationTask(deps, "morning_summary", deps.Notifier.SendMorningSummary)
}

func newEveningSummaryTask(deps TaskDeps) ScheduledTaskFunc {
	return newNotificationTask(deps, "evening_summary", deps.Notifier.SendEveningPreview)
}

func newOverdueAlertsTask(deps TaskDeps) ScheduledTaskFunc {
	return newNotificationTask(deps, "overdue_alerts", deps.Notifier.SendOverdueAlerts)
}

// newNotificationTask wraps one notifier run with the task's logging.
func newNotificationTask(deps TaskDeps, name string, send func(context.Context) (notify.Report, error)) ScheduledTaskFunc {
	log := deps.Logger.With("task", name)

	return func(ctx context.Context) error {
		report, err := send(ctx)
		if err != nil {
			log.ErrorContext(ctx, "Notification run failed", "error", err,
				"sent", report.Sent, "failed", report.Failed)
			return fmt.Errorf("%s failed: %w", name, err)
		}
		log.InfoContext(ctx, "Notification run finished",
			"tasks", report.Tasks, "channels", report.Channels, "sent", report.Sent)
		return nil
	}
}
