package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/notify"
)

// NewAdminStatsHandler returns a handler for the /admin-stats command.
func NewAdminStatsHandler(deps HandlerDeps) HandlerFunc {
	return adminStatsHandler{deps}.Handle
}

type adminStatsHandler struct {
	deps HandlerDeps
}

func (h adminStatsHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "admin_stats")

	stats, err := h.deps.Store.Stats(ctx, h.deps.now())
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "gather stats", err)
		return
	}

	total := 0
	lines := make([]string, 0, len(model.Statuses))
	for _, st := range model.Statuses {
		n := stats.ByStatus[st]
		total += n
		lines = append(lines, fmt.Sprintf("%s: **%d**", st.Label(), n))
	}

	replyEmbed(ctx, log, s, i, true, &discordgo.MessageEmbed{
		Title: "📊 Bot statistics",
		Color: notify.ColorInfo,
		Fields: []*discordgo.MessageEmbedField{
			{Name: fmt.Sprintf("Tasks (%d)", total), Value: strings.Join(lines, "\n"), Inline: true},
			{Name: "Recurring", Value: fmt.Sprint(stats.Recurring), Inline: true},
			{Name: "Overdue", Value: fmt.Sprint(stats.Overdue), Inline: true},
			{Name: "Users", Value: fmt.Sprint(stats.Users), Inline: true},
			{Name: "Active projects", Value: fmt.Sprint(stats.Projects), Inline: true},
		},
	})
}

// NewAdminRunTaskHandler returns a handler for the /admin-run-task command.
func NewAdminRunTaskHandler(deps HandlerDeps) HandlerFunc {
	return adminRunTaskHandler{deps}.Handle
}

type adminRunTaskHandler struct {
	deps HandlerDeps
}

func (h adminRunTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "admin_run_task")

	name, ok := optionsOf(i).str("task")
	if !ok {
		reply(ctx, log, s, i, h.deps.invalidInput("a task name is required"))
		return
	}
	if h.deps.Runner == nil {
		log.ErrorContext(ctx, "No task runner configured")
		reply(ctx, log, s, i, h.deps.Config.Messages.GeneralError)
		return
	}

	if err := deferResponse(ctx, s, i, true); err != nil {
		log.ErrorContext(ctx, "Failed to defer run task response", "error", err)
		return
	}

	log.InfoContext(ctx, "Admin triggered scheduled task", "task", name, "user_id", InvokerID(i))
	content := fmt.Sprintf("✅ `%s` finished.", name)
	if err := h.deps.Runner.RunNow(ctx, name); err != nil {
		log.ErrorContext(ctx, "Scheduled task failed on demand", "task", name, "error", err)
		content = fmt.Sprintf("❌ `%s` failed: %s", name, truncate(err.Error(), 1800))
	}
	if err := editResponse(ctx, s, i, content); err != nil {
		log.ErrorContext(ctx, "Failed to edit run task response", "error", err)
	}
}
