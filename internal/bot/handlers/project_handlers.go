package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/notify"
)

const maxProjectName = 100

// NewCreateProjectHandler returns a handler for the /create-project command.
func NewCreateProjectHandler(deps HandlerDeps) HandlerFunc {
	return createProjectHandler{deps}.Handle
}

type createProjectHandler struct {
	deps HandlerDeps
}

func (h createProjectHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "create_project")
	opts := optionsOf(i)
	userID := InvokerID(i)

	name, ok := opts.str("name")
	if !ok || len(name) > maxProjectName {
		reply(ctx, log, s, i, h.deps.invalidInput("a name of at most %d characters is required", maxProjectName))
		return
	}
	project := &model.Project{Name: name, Members: []string{userID}}
	project.Description, _ = opts.str("description")
	project.ChannelID, _ = opts.channel("channel")
	if color, ok := opts.str("color"); ok {
		if !strings.HasPrefix(color, "#") {
			color = "#" + color
		}
		if !model.ValidColor(color) {
			reply(ctx, log, s, i, h.deps.invalidInput("color must look like #3498db"))
			return
		}
		project.Color = strings.ToLower(color)
	}

	if err := h.deps.Store.CreateProject(ctx, project); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			reply(ctx, log, s, i, h.deps.invalidInput("a project named %q already exists", name))
			return
		}
		h.deps.replyError(ctx, log, s, i, "create project", err)
		return
	}
	log.InfoContext(ctx, "Project created", "project_id", project.ID, "user_id", userID)

	if err := respond(ctx, s, i, &discordgo.InteractionResponseData{
		Content: "📁 Project created",
		Embeds:  []*discordgo.MessageEmbed{projectEmbed(project, nil)},
	}); err != nil {
		log.ErrorContext(ctx, "Failed to send project confirmation", "error", err, "project_id", project.ID)
	}
}

// NewProjectHandler returns a handler for the /project command.
func NewProjectHandler(deps HandlerDeps) HandlerFunc {
	return projectHandler{deps}.Handle
}

type projectHandler struct {
	deps HandlerDeps
}

func (h projectHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "project")

	id, ok := optionsOf(i).integer("project")
	if !ok {
		reply(ctx, log, s, i, h.deps.invalidInput("a project id is required"))
		return
	}
	project, err := h.deps.Store.GetProject(ctx, id)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "get project", err)
		return
	}
	tasks, err := h.deps.Store.ListTasksForProject(ctx, id)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "list project tasks", err)
		return
	}

	embed := projectEmbed(project, tasks)
	var open []model.Task
	for _, t := range tasks {
		if !t.Status.Closed() {
			open = append(open, t)
		}
	}
	if len(open) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Open tasks", Value: notify.TaskLines(open)})
	}
	replyEmbed(ctx, log, s, i, false, embed)
}

// NewProjectsHandler returns a handler for the /projects command.
func NewProjectsHandler(deps HandlerDeps) HandlerFunc {
	return projectsHandler{deps}.Handle
}

type projectsHandler struct {
	deps HandlerDeps
}

func (h projectsHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "projects")

	includeInactive, _ := optionsOf(i).boolean("include_inactive")
	projects, err := h.deps.Store.ListProjects(ctx, includeInactive)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "list projects", err)
		return
	}
	h.deps.replyProjects(ctx, log, s, i, "📁 Projects", projects, "No projects yet. Create one with `/create-project`.")
}

// NewMyProjectsHandler returns a handler for the /my-projects command.
func NewMyProjectsHandler(deps HandlerDeps) HandlerFunc {
	return myProjectsHandler{deps}.Handle
}

type myProjectsHandler struct {
	deps HandlerDeps
}

func (h myProjectsHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "my_projects")

	projects, err := h.deps.Store.ListProjectsForUser(ctx, InvokerID(i))
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "list user projects", err)
		return
	}
	h.deps.replyProjects(ctx, log, s, i, "📁 Your projects", projects, "You are not in any project. Join one with `/join-project`.")
}

func (d HandlerDeps) replyProjects(ctx context.Context, log *slog.Logger, s Session, i *discordgo.InteractionCreate, title string, projects []model.Project, empty string) {
	embed := &discordgo.MessageEmbed{Title: title, Color: notify.ColorInfo, Description: empty}
	if len(projects) > 0 {
		embed.Description = projectLines(projects)
		embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d project(s)", len(projects))}
	}
	replyEmbed(ctx, log, s, i, true, embed)
}

// NewJoinProjectHandler returns a handler for the /join-project command.
func NewJoinProjectHandler(deps HandlerDeps) HandlerFunc {
	return joinProjectHandler{deps}.Handle
}

type joinProjectHandler struct {
	deps HandlerDeps
}

func (h joinProjectHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "join_project")
	userID := InvokerID(i)

	id, ok := optionsOf(i).integer("project")
	if !ok {
		reply(ctx, log, s, i, h.deps.invalidInput("a project id is required"))
		return
	}
	err := h.deps.Store.AddProjectMember(ctx, id, userID)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		reply(ctx, log, s, i, fmt.Sprintf("You are already a member of project #%d.", id))
		return
	case err != nil:
		h.deps.replyError(ctx, log, s, i, "join project", err)
		return
	}
	log.InfoContext(ctx, "User joined project", "project_id", id, "user_id", userID)
	reply(ctx, log, s, i, fmt.Sprintf("✅ You joined project #%d.", id))
}

// NewLeaveProjectHandler returns a handler for the /leave-project command.
func NewLeaveProjectHandler(deps HandlerDeps) HandlerFunc {
	return leaveProjectHandler{deps}.Handle
}

type leaveProjectHandler struct {
	deps HandlerDeps
}

func (h leaveProjectHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "leave_project")
	userID := InvokerID(i)

	id, ok := optionsOf(i).integer("project")
	if !ok {
		reply(ctx, log, s, i, h.deps.invalidInput("a project id is required"))
		return
	}
	err := h.deps.Store.RemoveProjectMember(ctx, id, userID)
	switch {
	case errors.Is(err, database.ErrNotFound):
		reply(ctx, log, s, i, fmt.Sprintf("You are not a member of project #%d.", id))
		return
	case err != nil:
		h.deps.replyError(ctx, log, s, i, "leave project", err)
		return
	}
	log.InfoContext(ctx, "User left project", "project_id", id, "user_id", userID)
	reply(ctx, log, s, i, fmt.Sprintf("👋 You left project #%d.", id))
}
