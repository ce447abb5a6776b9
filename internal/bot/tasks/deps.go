// Package tasks implements the scheduled jobs of the bot: the recurring task
// sweep, deadline digests, overdue alerts and database maintenance.
package tasks

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/notify"
	"github.com/edgard/taskbot/internal/recurrence"
)

// Sweeper materializes due recurring instances.
type Sweeper interface {
	Run(ctx context.Context, now time.Time) (recurrence.Result, error)
}

// Notifier posts channel notifications.
type Notifier interface {
	SendMorningSummary(ctx context.Context) (notify.Report, error)
	SendEveningPreview(ctx context.Context) (notify.Report, error)
	SendOverdueAlerts(ctx context.Context) (notify.Report, error)
	AnnounceInstances(ctx context.Context, instances []recurrence.Instance) (notify.Report, error)
}

// TaskDeps contains all dependencies required by scheduled tasks.
type TaskDeps struct {
	Logger   *slog.Logger
	Config   *config.Config
	Store    database.Store
	Sweeper  Sweeper
	Notifier Notifier
	// Now defaults to time.Now.
	Now func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
