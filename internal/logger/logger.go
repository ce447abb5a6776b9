// Package logger provides structured logging built on log/slog.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/bot/handlers"
)

// NewLogger creates a slog Logger with the given level, as JSON or text on
// stdout, and sets it as the default logger.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Middleware logs every interaction before and after it is handled.
func Middleware(log *slog.Logger) handlers.Middleware {
	return func(next handlers.HandlerFunc) handlers.HandlerFunc {
		return func(ctx context.Context, s handlers.Session, i *discordgo.InteractionCreate) {
			startTime := time.Now()

			logEntry := log.With(
				"interaction_id", i.ID,
				"interaction_type", i.Type.String(),
				"guild_id", i.GuildID,
				"channel_id", i.ChannelID,
				"user_id", handlers.InvokerID(i),
			)
			if i.Type == discordgo.InteractionApplicationCommand {
				data := i.ApplicationCommandData()
				logEntry = logEntry.With(
					"command", data.Name,
					"options_preview", truncateString(optionSummary(data.Options), 80),
				)
			}

			logEntry.InfoContext(ctx, "Processing interaction")

			next(ctx, s, i)

			logEntry.InfoContext(ctx, "Finished processing interaction", "duration", time.Since(startTime))
		}
	}
}

func optionSummary(opts []*discordgo.ApplicationCommandInteractionDataOption) string {
	names := make([]string, 0, len(opts))
	for _, o := range opts {
		names = append(names, o.Name)
	}
	return strings.Join(names, ",")
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
