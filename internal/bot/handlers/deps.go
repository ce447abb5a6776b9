package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/gemini"
	"github.com/edgard/taskbot/internal/timetrack"
)

// NameResolver resolves Discord user ids to display names.
type NameResolver interface {
	DisplayName(ctx context.Context, guildID, userID string) string
}

// TaskRunner runs a scheduled task on demand.
type TaskRunner interface {
	RunNow(ctx context.Context, name string) error
}

// HandlerDeps provides dependencies for Discord command handlers.
type HandlerDeps struct {
	Logger  *slog.Logger
	Config  *config.Config
	Store   database.Store
	Tracker *timetrack.Tracker
	Names   NameResolver
	// Gemini is nil when natural language capture is disabled.
	Gemini gemini.Client
	// Runner is nil until the scheduler is built.
	Runner TaskRunner
	// Now defaults to time.Now.
	Now func() time.Time
}

// displayName falls back to the raw id when no resolver is configured.
func (d HandlerDeps) displayName(ctx context.Context, guildID, userID string) string {
	if d.Names == nil {
		return userID
	}
	return d.Names.DisplayName(ctx, guildID, userID)
}

func (d HandlerDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
