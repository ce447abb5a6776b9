package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Session is the part of the Discord session handlers use to answer
// interactions.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// HandlerFunc handles one slash command interaction.
type HandlerFunc func(ctx context.Context, s Session, i *discordgo.InteractionCreate)

// Middleware wraps a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// RegisteredHandler pairs a slash command definition with its handler and
// middleware.
type RegisteredHandler struct {
	Command    *discordgo.ApplicationCommand
	Handler    HandlerFunc
	Middleware []Middleware
}

// RegisterAllCommands initializes and returns a map of all available slash
// commands keyed by command name.
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	adminMiddleware := []Middleware{AdminOnly(deps)}

	entries := []RegisteredHandler{
		{Command: helpCommand, Handler: NewHelpHandler(deps)},

		{Command: createTaskCommand, Handler: NewCreateTaskHandler(deps)},
		{Command: taskCommand, Handler: NewTaskHandler(deps)},
		{Command: updateTaskCommand, Handler: NewUpdateTaskHandler(deps)},
		{Command: assignTaskCommand, Handler: NewAssignTaskHandler(deps)},
		{Command: deleteTaskCommand, Handler: NewDeleteTaskHandler(deps)},
		{Command: myTasksCommand, Handler: NewMyTasksHandler(deps)},
		{Command: searchTasksCommand, Handler: NewSearchTasksHandler(deps)},

		{Command: createRecurringTaskCommand, Handler: NewCreateRecurringTaskHandler(deps)},
		{Command: recurringSettingsCommand, Handler: NewRecurringSettingsHandler(deps)},

		{Command: createProjectCommand, Handler: NewCreateProjectHandler(deps)},
		{Command: projectCommand, Handler: NewProjectHandler(deps)},
		{Command: projectsCommand, Handler: NewProjectsHandler(deps)},
		{Command: myProjectsCommand, Handler: NewMyProjectsHandler(deps)},
		{Command: joinProjectCommand, Handler: NewJoinProjectHandler(deps)},
		{Command: leaveProjectCommand, Handler: NewLeaveProjectHandler(deps)},

		{Command: startTimerCommand, Handler: NewStartTimerHandler(deps)},
		{Command: stopTimerCommand, Handler: NewStopTimerHandler(deps)},
		{Command: activeTimersCommand, Handler: NewActiveTimersHandler(deps)},
		{Command: timeReportCommand, Handler: NewTimeReportHandler(deps)},

		{Command: upcomingDeadlinesCommand, Handler: NewUpcomingDeadlinesHandler(deps)},
		{Command: overdueTasksCommand, Handler: NewOverdueTasksHandler(deps)},
		{Command: calendarCommand, Handler: NewCalendarHandler(deps)},
		{Command: setTimezoneCommand, Handler: NewSetTimezoneHandler(deps)},

		{Command: quickTaskCommand, Handler: NewQuickTaskHandler(deps)},

		{Command: adminStatsCommand, Handler: NewAdminStatsHandler(deps), Middleware: adminMiddleware},
		{Command: adminRunTaskCommand, Handler: NewAdminRunTaskHandler(deps), Middleware: adminMiddleware},
	}

	handlers := make(map[string]RegisteredHandler, len(entries))
	for _, e := range entries {
		handlers[e.Command.Name] = e
	}
	return handlers
}

// ApplyMiddleware wraps h so the first middleware in the list runs first.
func ApplyMiddleware(h HandlerFunc, middleware ...Middleware) HandlerFunc {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
