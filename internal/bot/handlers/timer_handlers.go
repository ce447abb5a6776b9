package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/notify"
	"github.com/edgard/taskbot/internal/timetrack"
)

const defaultReportDays = 7

// NewStartTimerHandler returns a handler for the /start-timer command.
func NewStartTimerHandler(deps HandlerDeps) HandlerFunc {
	return startTimerHandler{deps}.Handle
}

type startTimerHandler struct {
	deps HandlerDeps
}

func (h startTimerHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "start_timer")
	userID := InvokerID(i)

	task, ok := h.deps.loadTask(ctx, log, s, i)
	if !ok {
		return
	}
	if task.Status.Closed() {
		reply(ctx, log, s, i, h.deps.invalidInput("task #%d is %s", task.ID, task.Status.Label()))
		return
	}

	timer, err := h.deps.Tracker.Start(userID, task.ID)
	if errors.Is(err, timetrack.ErrTimerRunning) {
		reply(ctx, log, s, i, fmt.Sprintf("⏱️ A timer for task #%d is already running.", task.ID))
		return
	}
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "start timer", err)
		return
	}
	log.InfoContext(ctx, "Timer started", "task_id", task.ID, "user_id", userID)
	reply(ctx, log, s, i, fmt.Sprintf("⏱️ Timer started for task #%d **%s** <t:%d:R>.", task.ID, task.Title, timer.Started.Unix()))
}

// NewStopTimerHandler returns a handler for the /stop-timer command.
func NewStopTimerHandler(deps HandlerDeps) HandlerFunc {
	return stopTimerHandler{deps}.Handle
}

type stopTimerHandler struct {
	deps HandlerDeps
}

func (h stopTimerHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "stop_timer")
	opts := optionsOf(i)
	userID := InvokerID(i)

	taskID, ok := opts.integer("id")
	if !ok {
		reply(ctx, log, s, i, h.deps.invalidInput("a task id is required"))
		return
	}
	description, _ := opts.str("description")

	entry, err := h.deps.Tracker.Stop(ctx, userID, taskID, description)
	if errors.Is(err, timetrack.ErrNoTimer) {
		reply(ctx, log, s, i, fmt.Sprintf("No timer is running for task #%d.", taskID))
		return
	}
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "stop timer", err)
		return
	}
	log.InfoContext(ctx, "Timer stopped", "task_id", taskID, "user_id", userID, "hours", entry.DurationHours)

	logged := time.Duration(entry.DurationHours * float64(time.Hour))
	reply(ctx, log, s, i, fmt.Sprintf("✅ Logged %s on task #%d.", timetrack.FormatDuration(logged), taskID))
}

// NewActiveTimersHandler returns a handler for the /active-timers command.
func NewActiveTimersHandler(deps HandlerDeps) HandlerFunc {
	return activeTimersHandler{deps}.Handle
}

type activeTimersHandler struct {
	deps HandlerDeps
}

func (h activeTimersHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "active_timers")

	timers := h.deps.Tracker.Active(InvokerID(i))
	if len(timers) == 0 {
		reply(ctx, log, s, i, "No timer is running. Start one with `/start-timer`.")
		return
	}

	now := h.deps.now()
	lines := make([]string, 0, len(timers))
	for _, t := range timers {
		lines = append(lines, fmt.Sprintf("`#%d` running for %s (since <t:%d:t>)", t.TaskID, timetrack.FormatDuration(t.Elapsed(now)), t.Started.Unix()))
	}
	replyEmbed(ctx, log, s, i, true, &discordgo.MessageEmbed{
		Title:       "⏱️ Running timers",
		Description: strings.Join(lines, "\n"),
		Color:       notify.ColorInfo,
	})
}

// NewTimeReportHandler returns a handler for the /time-report command.
func NewTimeReportHandler(deps HandlerDeps) HandlerFunc {
	return timeReportHandler{deps}.Handle
}

type timeReportHandler struct {
	deps HandlerDeps
}

func (h timeReportHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "time_report")

	days := defaultReportDays
	if d, ok := optionsOf(i).integer("days"); ok && d > 0 {
		days = int(d)
	}

	report, err := h.deps.Tracker.Report(ctx, InvokerID(i), days)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "time report", err)
		return
	}

	embed := &discordgo.MessageEmbed{
		Author:      &discordgo.MessageEmbedAuthor{Name: h.deps.displayName(ctx, i.GuildID, InvokerID(i))},
		Title:       fmt.Sprintf("📊 Time logged in the last %d day(s)", days),
		Description: fmt.Sprintf("Total: **%.2fh**", report.TotalHours),
		Color:       notify.ColorInfo,
	}
	if len(report.Tasks) == 0 {
		embed.Description = "No time logged."
	}
	lines := make([]string, 0, len(report.Tasks))
	for _, t := range report.Tasks {
		lines = append(lines, fmt.Sprintf("`#%d` %.2fh in %d entr%s", t.TaskID, t.Hours, t.Entries, plural(t.Entries, "y", "ies")))
	}
	if len(lines) > 0 {
		embed.Fields = []*discordgo.MessageEmbedField{{Name: "Per task", Value: truncate(strings.Join(lines, "\n"), 1024)}}
	}
	replyEmbed(ctx, log, s, i, true, embed)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	end := limit - len("\n…")
	cut := strings.LastIndexByte(s[:end], '\n')
	if cut <= 0 {
		cut = end
	}
	return s[:cut] + "\n…"
}
