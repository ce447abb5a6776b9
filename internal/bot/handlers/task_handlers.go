package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/notify"
)

const (
	clearValue   = "none"
	searchLimit  = 25
	maxTitleSize = 200
)

// NewCreateTaskHandler returns a handler for the /create-task command.
func NewCreateTaskHandler(deps HandlerDeps) HandlerFunc {
	return createTaskHandler{deps}.Handle
}

type createTaskHandler struct {
	deps HandlerDeps
}

func (h createTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "create_task")
	opts := optionsOf(i)
	userID := InvokerID(i)

	title, ok := opts.str("title")
	if !ok || len(title) > maxTitleSize {
		reply(ctx, log, s, i, h.deps.invalidInput("a title of at most %d characters is required", maxTitleSize))
		return
	}

	task := &model.Task{
		Title:     title,
		CreatorID: userID,
		ChannelID: i.ChannelID,
		Status:    model.StatusTodo,
		Priority:  model.PriorityMedium,
	}
	if err := h.deps.applyTaskOptions(ctx, task, opts, userID); err != nil {
		reply(ctx, log, s, i, h.deps.invalidInput("%v", err))
		return
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

	if err := h.deps.Store.CreateTask(ctx, task); err != nil {
		h.deps.replyError(ctx, log, s, i, "create task", err)
		return
	}
	log.InfoContext(ctx, "Task created", "task_id", task.ID, "user_id", userID)

	err = respond(ctx, s, i, &discordgo.InteractionResponseData{
		Content:         strings.TrimSpace("✅ Task created " + notify.Mentions(task.Assignees)),
		Embeds:          []*discordgo.MessageEmbed{taskEmbed(task, 0)},
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: task.Assignees},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send task confirmation", "error", err, "task_id", task.ID)
	}
}

// NewTaskHandler returns a handler for the /task command.
func NewTaskHandler(deps HandlerDeps) HandlerFunc {
	return taskHandler{deps}.Handle
}

type taskHandler struct {
	deps HandlerDeps
}

func (h taskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "task")

	task, ok := h.deps.loadTask(ctx, log, s, i)
	if !ok {
		return
	}
	hours, err := h.deps.Store.TotalHoursForTask(ctx, task.ID)
	if err != nil {
		log.WarnContext(ctx, "Failed to sum logged hours", "task_id", task.ID, "error", err)
	}
	replyEmbed(ctx, log, s, i, false, taskEmbed(task, hours))
}

// NewUpdateTaskHandler returns a handler for the /update-task command.
func NewUpdateTaskHandler(deps HandlerDeps) HandlerFunc {
	return updateTaskHandler{deps}.Handle
}

type updateTaskHandler struct {
	deps HandlerDeps
}

var editableTaskOptions = []string{"title", "description", "priority", "due", "tags", "estimated_hours"}

func (h updateTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "update_task")
	opts := optionsOf(i)
	userID := InvokerID(i)

	task, ok := h.deps.loadTask(ctx, log, s, i)
	if !ok {
		return
	}
	if !h.deps.canModify(i, task) {
		reply(ctx, log, s, i, h.deps.Config.Messages.NotAuthorized)
		return
	}

	edit := false
	for _, name := range editableTaskOptions {
		if _, present := opts[name]; present {
			edit = true
		}
	}
	status, statusSet := opts.str("status")
	if !edit && !statusSet {
		reply(ctx, log, s, i, h.deps.invalidInput("nothing to change"))
		return
	}

	if edit {
		if title, ok := opts.str("title"); ok {
			if len(title) > maxTitleSize {
				reply(ctx, log, s, i, h.deps.invalidInput("title is longer than %d characters", maxTitleSize))
				return
			}
			task.Title = title
		}
		if err := h.deps.applyTaskOptions(ctx, task, opts, userID); err != nil {
			reply(ctx, log, s, i, h.deps.invalidInput("%v", err))
			return
		}
		if err := h.deps.Store.UpdateTask(ctx, task); err != nil {
			h.deps.replyError(ctx, log, s, i, "update task", err)
			return
		}
	}

	if statusSet {
		st := model.TaskStatus(status)
		if !st.Valid() {
			reply(ctx, log, s, i, h.deps.invalidInput("unknown status %q", status))
			return
		}
		if err := h.deps.Store.UpdateTaskStatus(ctx, task.ID, st, h.deps.now()); err != nil {
			h.deps.replyError(ctx, log, s, i, "update task status", err)
			return
		}
	}

	updated, err := h.deps.Store.GetTask(ctx, task.ID)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "reload task", err)
		return
	}
	log.InfoContext(ctx, "Task updated", "task_id", task.ID, "user_id", userID, "status", updated.Status)
	replyEmbed(ctx, log, s, i, false, taskEmbed(updated, 0))
}

// NewAssignTaskHandler returns a handler for the /assign-task command.
func NewAssignTaskHandler(deps HandlerDeps) HandlerFunc {
	return assignTaskHandler{deps}.Handle
}

type assignTaskHandler struct {
	deps HandlerDeps
}

func (h assignTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "assign_task")
	opts := optionsOf(i)

	task, ok := h.deps.loadTask(ctx, log, s, i)
	if !ok {
		return
	}
	if !h.deps.canModify(i, task) {
		reply(ctx, log, s, i, h.deps.Config.Messages.NotAuthorized)
		return
	}
	target, ok := opts.user("user")
	if !ok {
		reply(ctx, log, s, i, h.deps.invalidInput("a user is required"))
		return
	}
	remove, _ := opts.boolean("remove")

	assignees := make([]string, 0, len(task.Assignees)+1)
	for _, a := range task.Assignees {
		if a != target {
			assignees = append(assignees, a)
		}
	}
	if !remove {
		assignees = append(assignees, target)
	}

	if err := h.deps.Store.AssignUsers(ctx, task.ID, assignees); err != nil {
		h.deps.replyError(ctx, log, s, i, "assign users", err)
		return
	}
	log.InfoContext(ctx, "Task assignees changed", "task_id", task.ID, "target_user_id", target, "removed", remove)

	content := fmt.Sprintf("👤 <@%s> assigned to task #%d **%s**", target, task.ID, task.Title)
	mentions := []string{target}
	if remove {
		content = fmt.Sprintf("👤 <@%s> removed from task #%d **%s**", target, task.ID, task.Title)
		mentions = nil
	}
	err := respond(ctx, s, i, &discordgo.InteractionResponseData{
		Content:         content,
		AllowedMentions: &discordgo.MessageAllowedMentions{Users: mentions},
	})
	if err != nil {
		log.ErrorContext(ctx, "Failed to send assignment confirmation", "error", err)
	}
}

// NewDeleteTaskHandler returns a handler for the /delete-task command.
func NewDeleteTaskHandler(deps HandlerDeps) HandlerFunc {
	return deleteTaskHandler{deps}.Handle
}

type deleteTaskHandler struct {
	deps HandlerDeps
}

func (h deleteTaskHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "delete_task")

	task, ok := h.deps.loadTask(ctx, log, s, i)
	if !ok {
		return
	}
	if task.CreatorID != InvokerID(i) && !isAdmin(h.deps, i) {
		reply(ctx, log, s, i, h.deps.Config.Messages.NotAuthorized)
		return
	}
	if err := h.deps.Store.DeleteTask(ctx, task.ID); err != nil {
		h.deps.replyError(ctx, log, s, i, "delete task", err)
		return
	}
	log.InfoContext(ctx, "Task deleted", "task_id", task.ID, "user_id", InvokerID(i))

	if err := respond(ctx, s, i, &discordgo.InteractionResponseData{
		Content: fmt.Sprintf("🗑️ Task #%d **%s** deleted", task.ID, task.Title),
	}); err != nil {
		log.ErrorContext(ctx, "Failed to send delete confirmation", "error", err)
	}
}

// NewMyTasksHandler returns a handler for the /my-tasks command.
func NewMyTasksHandler(deps HandlerDeps) HandlerFunc {
	return myTasksHandler{deps}.Handle
}

type myTasksHandler struct {
	deps HandlerDeps
}

func (h myTasksHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "my_tasks")
	opts := optionsOf(i)

	var status model.TaskStatus
	title := "📋 Your open tasks"
	if v, ok := opts.str("status"); ok {
		status = model.TaskStatus(v)
		if !status.Valid() {
			reply(ctx, log, s, i, h.deps.invalidInput("unknown status %q", v))
			return
		}
		title = "📋 Your tasks: " + status.Label()
	}

	tasks, err := h.deps.Store.ListTasksForUser(ctx, InvokerID(i), status)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "list user tasks", err)
		return
	}
	replyEmbed(ctx, log, s, i, true, taskListEmbed(title, tasks, "Nothing here. 🎉"))
}

// NewSearchTasksHandler returns a handler for the /search-tasks command.
func NewSearchTasksHandler(deps HandlerDeps) HandlerFunc {
	return searchTasksHandler{deps}.Handle
}

type searchTasksHandler struct {
	deps HandlerDeps
}

func (h searchTasksHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "search_tasks")

	query, ok := optionsOf(i).str("query")
	if !ok {
		reply(ctx, log, s, i, h.deps.invalidInput("a search text is required"))
		return
	}
	tasks, err := h.deps.Store.SearchTasks(ctx, query, searchLimit)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "search tasks", err)
		return
	}
	replyEmbed(ctx, log, s, i, true, taskListEmbed(fmt.Sprintf("🔍 Tasks matching %q", query), tasks, "No task matches."))
}

// loadTask reads the task named by the "id" option, answering the
// interaction itself when that fails.
func (d HandlerDeps) loadTask(ctx context.Context, log *slog.Logger, s Session, i *discordgo.InteractionCreate) (*model.Task, bool) {
	id, ok := optionsOf(i).integer("id")
	if !ok || id < 1 {
		reply(ctx, log, s, i, d.invalidInput("a task id is required"))
		return nil, false
	}
	task, err := d.Store.GetTask(ctx, id)
	if err != nil {
		d.replyError(ctx, log, s, i, "get task", err)
		return nil, false
	}
	return task, true
}

// canModify reports whether the invoker may change t: its creator, an
// assignee or an admin.
func (d HandlerDeps) canModify(i *discordgo.InteractionCreate, t *model.Task) bool {
	userID := InvokerID(i)
	if t.CreatorID == userID || isAdmin(d, i) {
		return true
	}
	for _, a := range t.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

// applyTaskOptions copies the optional task fields of a command onto t.
// Dates are read in the invoker's timezone and "none" clears the due date.
func (d HandlerDeps) applyTaskOptions(ctx context.Context, t *model.Task, opts commandOptions, userID string) error {
	if v, ok := opts.str("description"); ok {
		t.Description = v
	}
	if v, ok := opts.str("priority"); ok {
		p := model.TaskPriority(v)
		if !p.Valid() {
			return fmt.Errorf("unknown priority %q", v)
		}
		t.Priority = p
	}
	if v, ok := opts.str("due"); ok {
		if strings.EqualFold(v, clearValue) {
			t.DueDate = sql.NullTime{}
		} else {
			due, err := model.ParseDueDate(v, d.userLocation(ctx, userID))
			if err != nil {
				return err
			}
			t.DueDate = sql.NullTime{Time: due, Valid: true}
		}
	}
	if v, ok := opts.str("tags"); ok {
		t.Tags = model.ParseTags(v)
	}
	if v, ok := opts.number("estimated_hours"); ok {
		if v < 0 {
			return errors.New("estimated hours cannot be negative")
		}
		t.EstimatedHours = sql.NullFloat64{Float64: v, Valid: v > 0}
	}
	return nil
}

// resolveProject returns the project chosen with the "project" option or,
// without one, the project bound to channelID if any.
func (d HandlerDeps) resolveProject(ctx context.Context, opts commandOptions, channelID string) (sql.NullInt64, error) {
	if id, ok := opts.integer("project"); ok {
		p, err := d.Store.GetProject(ctx, id)
		if err != nil {
			return sql.NullInt64{}, err
		}
		if !p.IsActive {
			return sql.NullInt64{}, fmt.Errorf("project %d is inactive: %w", id, database.ErrNotFound)
		}
		return sql.NullInt64{Int64: p.ID, Valid: true}, nil
	}
	if channelID == "" {
		return sql.NullInt64{}, nil
	}
	p, err := d.Store.GetProjectByChannel(ctx, channelID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return sql.NullInt64{}, nil
	case err != nil:
		return sql.NullInt64{}, err
	}
	return sql.NullInt64{Int64: p.ID, Valid: true}, nil
}
