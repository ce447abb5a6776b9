package handlers

import (
	"context"
	"database/sql"
	"errors"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/gemini"
	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/resilience"
)

// NewQuickTaskHandler returns a handler for the /quick-task command, which
// turns free text into a task through Gemini.
func NewQuickTaskHandler(deps HandlerDeps) HandlerFunc {
	return quickTaskHandler{deps}.Handle
}

type quickTaskHandler struct {
	deps HandlerDeps
}

func (h quickTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "quick_task")
	userID := InvokerID(i)

	if h.deps.Gemini == nil {
		reply(ctx, log, s, i, h.deps.Config.Messages.NLPDisabled)
		return
	}
	text, ok := optionsOf(i).str("text")
	if !ok {
		reply(ctx, log, s, i, h.deps.invalidInput("describe the task"))
		return
	}

	if err := deferResponse(ctx, s, i, false); err != nil {
		log.ErrorContext(ctx, "Failed to defer quick task response", "error", err)
		return
	}
	edit := func(content string, embeds ...*discordgo.MessageEmbed) {
		if err := editResponse(ctx, s, i, content, embeds...); err != nil {
			log.ErrorContext(ctx, "Failed to edit quick task response", "error", err)
		}
	}

	loc := h.deps.userLocation(ctx, userID)
	draft, err := h.deps.Gemini.ParseTask(ctx, text, h.deps.now().In(loc))
	if errors.Is(err, gemini.ErrEmptyDraft) {
		edit("🤔 I could not find a task in that text. Try `/create-task` instead.")
		return
	}
	if errors.Is(err, resilience.ErrCircuitOpen) {
		edit("🤖 Natural language capture is paused after repeated failures. Try again in a minute or use `/create-task`.")
		return
	}
	if err != nil {
		log.ErrorContext(ctx, "Failed to parse quick task", "error", err, "user_id", userID)
		edit(h.deps.Config.Messages.GeneralError)
		return
	}

	task := &model.Task{
		Title:       draft.Title,
		Description: draft.Description,
		Status:      model.StatusTodo,
		Priority:    draft.Priority,
		Tags:        draft.Tags,
		CreatorID:   userID,
		ChannelID:   i.ChannelID,
		Assignees:   []string{userID},
	}
	if draft.DueDate != nil {
		task.DueDate = sql.NullTime{Time: *draft.DueDate, Valid: true}
	}
	if draft.EstimatedHours != nil {
		task.EstimatedHours = sql.NullFloat64{Float64: *draft.EstimatedHours, Valid: true}
	}
	if project, err := h.deps.resolveProject(ctx, commandOptions{}, i.ChannelID); err == nil {
		task.ProjectID = project
	} else {
		log.WarnContext(ctx, "Failed to look up channel project", "error", err, "channel_id", i.ChannelID)
	}

	if err := h.deps.Store.CreateTask(ctx, task); err != nil {
		log.ErrorContext(ctx, "Failed to store quick task", "error", err, "user_id", userID)
		edit(h.deps.Config.Messages.GeneralError)
		return
	}
	log.InfoContext(ctx, "Quick task created", "task_id", task.ID, "user_id", userID)
	edit("✨ Task captured. Adjust it with `/update-task` if needed.", taskEmbed(task, 0))
}
