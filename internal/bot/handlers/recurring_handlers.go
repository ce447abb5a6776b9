package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/recurrence"
)

// NewCreateRecurringTaskHandler returns a handler for the
// /create-recurring-task command.
func NewCreateRecurringTaskHandler(deps HandlerDeps) HandlerFunc {
	return createRecurringTaskHandler{deps}.Handle
}

type createRecurringTaskHandler struct {
	deps HandlerDeps
}

func (h createRecurringTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "create_recurring_task")
	opts := optionsOf(i)
	userID := InvokerID(i)
	now := h.deps.now()

	title, ok := opts.str("title")
	if !ok || len(title) > maxTitleSize {
		reply(ctx, log, s, i, h.deps.invalidInput("a title of at most %d characters is required", maxTitleSize))
		return
	}
	rawPattern, _ := opts.str("pattern")
	pattern, err := recurrence.ParsePattern(rawPattern)
	if err != nil {
		reply(ctx, log, s, i, h.deps.invalidInput("pattern must be daily, weekly or monthly"))
		return
	}
	frequency := 1
	if f, ok := opts.integer("frequency"); ok {
		if f < 1 {
			reply(ctx, log, s, i, h.deps.invalidInput("frequency must be at least 1"))
			return
		}
		frequency = int(f)
	}

	task := &model.Task{
		Title:               title,
		CreatorID:           userID,
		ChannelID:           i.ChannelID,
		Status:              model.StatusTodo,
		Priority:            model.PriorityMedium,
		RecurrencePattern:   sql.NullString{String: string(pattern), Valid: true},
		RecurrenceFrequency: frequency,
	}
	if err := h.deps.applyTaskOptions(ctx, task, opts, userID); err != nil {
		reply(ctx, log, s, i, h.deps.invalidInput("%v", err))
		return
	}
	if v, ok := opts.str("end_date"); ok {
		end, err := model.ParseDueDate(v, h.deps.userLocation(ctx, userID))
		if err != nil {
			reply(ctx, log, s, i, h.deps.invalidInput("%v", err))
			return
		}
		if !end.After(now) {
			reply(ctx, log, s, i, h.deps.invalidInput("end date is in the past"))
			return
		}
		task.RecurrenceEndDate = sql.NullTime{Time: end, Valid: true}
	}
	if assignee, ok := opts.user("assignee"); ok {
		task.Assignees = []string{assignee}
	}
	project, err := h.deps.resolveProject(ctx, opts, i.ChannelID)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "resolve project", err)
		return
	}
	task.ProjectID = project

	if err := h.deps.Store.CreateRecurringTask(ctx, task); err != nil {
		h.deps.replyError(ctx, log, s, i, "create recurring task", err)
		return
	}
	log.InfoContext(ctx, "Recurring task created", "task_id", task.ID, "pattern", pattern, "frequency", frequency, "user_id", userID)

	content := "🔁 Recurring task created"
	if next, err := recurrence.NextOccurrence(task.CreatedAt, pattern, frequency); err == nil {
		content += fmt.Sprintf(", first instance <t:%d:R>", next.Unix())
	}
	if err := respond(ctx, s, i, &discordgo.InteractionResponseData{
		Content: content,
		Embeds:  []*discordgo.MessageEmbed{taskEmbed(task, 0)},
	}); err != nil {
		log.ErrorContext(ctx, "Failed to send recurring task confirmation", "error", err, "task_id", task.ID)
	}
}

// NewRecurringSettingsHandler returns a handler for the /recurring-settings
// command.
func NewRecurringSettingsHandler(deps HandlerDeps) HandlerFunc {
	return recurringSettingsHandler{deps}.Handle
}

type recurringSettingsHandler struct {
	deps HandlerDeps
}

func (h recurringSettingsHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "recurring_settings")
	opts := optionsOf(i)
	userID := InvokerID(i)

	task, ok := h.deps.loadTask(ctx, log, s, i)
	if !ok {
		return
	}
	if task.OriginTaskID.Valid {
		reply(ctx, log, s, i, h.deps.invalidInput("task #%d is an instance, change recurring task #%d instead", task.ID, task.OriginTaskID.Int64))
		return
	}
	if !h.deps.canModify(i, task) {
		reply(ctx, log, s, i, h.deps.Config.Messages.NotAuthorized)
		return
	}

	settings, changed, err := h.settingsFromOptions(ctx, task, opts, userID)
	if err != nil {
		reply(ctx, log, s, i, h.deps.invalidInput("%v", err))
		return
	}
	if !changed {
		replyEmbed(ctx, log, s, i, true, taskEmbed(task, 0))
		return
	}

	if err := h.deps.Store.UpdateRecurrenceSettings(ctx, task.ID, settings); err != nil {
		h.deps.replyError(ctx, log, s, i, "update recurrence settings", err)
		return
	}
	log.InfoContext(ctx, "Recurrence settings changed", "task_id", task.ID, "enabled", settings.Enabled,
		"pattern", settings.Pattern, "frequency", settings.Frequency, "user_id", userID)

	updated, err := h.deps.Store.GetTask(ctx, task.ID)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "reload task", err)
		return
	}
	replyEmbed(ctx, log, s, i, false, taskEmbed(updated, 0))
}

// settingsFromOptions merges the command options into the current
// recurrence settings of task.
func (h recurringSettingsHandler) settingsFromOptions(ctx context.Context, task *model.Task, opts commandOptions, userID string) (database.RecurrenceSettings, bool, error) {
	settings := database.RecurrenceSettings{
		Pattern:   recurrence.Pattern(task.RecurrencePattern.String),
		Frequency: task.RecurrenceFrequency,
		Enabled:   task.IsRecurring,
	}
	if task.RecurrenceEndDate.Valid {
		end := task.RecurrenceEndDate.Time
		settings.EndDate = &end
	}

	changed := false
	if v, ok := opts.str("pattern"); ok {
		p, err := recurrence.ParsePattern(v)
		if err != nil {
			return settings, false, fmt.Errorf("pattern must be daily, weekly or monthly")
		}
		settings.Pattern = p
		changed = true
	}
	if f, ok := opts.integer("frequency"); ok {
		if f < 1 {
			return settings, false, fmt.Errorf("frequency must be at least 1")
		}
		settings.Frequency = int(f)
		changed = true
	}
	if v, ok := opts.str("end_date"); ok {
		if strings.EqualFold(v, clearValue) {
			settings.EndDate = nil
		} else {
			end, err := model.ParseDueDate(v, h.deps.userLocation(ctx, userID))
			if err != nil {
				return settings, false, err
			}
			settings.EndDate = &end
		}
		changed = true
	}
	if enabled, ok := opts.boolean("enabled"); ok {
		settings.Enabled = enabled
		changed = true
	}

	if settings.Enabled && settings.Pattern == "" {
		return settings, false, fmt.Errorf("pick a pattern to make task #%d recurring", task.ID)
	}
	if settings.Frequency < 1 {
		settings.Frequency = 1
	}
	if settings.EndDate != nil && settings.Enabled && settings.EndDate.Before(h.deps.now()) {
		return settings, false, fmt.Errorf("end date is in the past")
	}
	return settings, changed, nil
}
