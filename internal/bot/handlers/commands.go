package handlers

import (
	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/recurrence"
)

func statusChoices() []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(model.Statuses))
	for _, s := range model.Statuses {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: s.Label(), Value: string(s)})
	}
	return out
}

func priorityChoices() []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(model.Priorities))
	for _, p := range model.Priorities {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: p.Emoji() + " " + string(p), Value: string(p)})
	}
	return out
}

func patternChoices() []*discordgo.ApplicationCommandOptionChoice {
	return []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Daily", Value: string(recurrence.Daily)},
		{Name: "Weekly", Value: string(recurrence.Weekly)},
		{Name: "Monthly", Value: string(recurrence.Monthly)},
	}
}

func taskNameChoices() []*discordgo.ApplicationCommandOptionChoice {
	names := []string{
		config.TaskRecurringSweep,
		config.TaskMorningSummary,
		config.TaskEveningSummary,
		config.TaskOverdueAlerts,
		config.TaskSQLMaintenance,
	}
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(names))
	for _, n := range names {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: n, Value: n})
	}
	return out
}

var minOne = 1.0

func taskIDOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionInteger, Name: "id", Description: description, Required: true, MinValue: &minOne,
	}
}

func projectIDOption(description string, required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type: discordgo.ApplicationCommandOptionInteger, Name: "project", Description: description, Required: required, MinValue: &minOne,
	}
}

var (
	helpCommand = &discordgo.ApplicationCommand{
		Name:        "help",
		Description: "Show what the bot can do",
	}

	createTaskCommand = &discordgo.ApplicationCommand{
		Name:        "create-task",
		Description: "Create a new task",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Task title", Required: true, MaxLength: 200},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Details", MaxLength: 2000},
			{Type: discordgo.ApplicationCommandOptionString, Name: "priority", Description: "Priority", Choices: priorityChoices()},
			{Type: discordgo.ApplicationCommandOptionString, Name: "due", Description: "Due date, YYYY-MM-DD or YYYY-MM-DD HH:MM in your timezone"},
			{Type: discordgo.ApplicationCommandOptionUser, Name: "assignee", Description: "Who should do it"},
			projectIDOption("Project id, defaults to the project bound to this channel", false),
			{Type: discordgo.ApplicationCommandOptionString, Name: "tags", Description: "Comma separated tags"},
			{Type: discordgo.ApplicationCommandOptionNumber, Name: "estimated_hours", Description: "Estimated effort in hours", MinValue: new(float64)},
		},
	}

	taskCommand = &discordgo.ApplicationCommand{
		Name:        "task",
		Description: "Show a task",
		Options:     []*discordgo.ApplicationCommandOption{taskIDOption("Task id")},
	}

	updateTaskCommand = &discordgo.ApplicationCommand{
		Name:        "update-task",
		Description: "Change a task",
		Options: []*discordgo.ApplicationCommandOption{
			taskIDOption("Task id"),
			{Type: discordgo.ApplicationCommandOptionString, Name: "status", Description: "New status", Choices: statusChoices()},
			{Type: discordgo.ApplicationCommandOptionString, Name: "priority", Description: "New priority", Choices: priorityChoices()},
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "New title", MaxLength: 200},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "New details", MaxLength: 2000},
			{Type: discordgo.ApplicationCommandOptionString, Name: "due", Description: "New due date, or \"none\" to clear it"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "tags", Description: "Replace tags, comma separated"},
			{Type: discordgo.ApplicationCommandOptionNumber, Name: "estimated_hours", Description: "Estimated effort in hours", MinValue: new(float64)},
		},
	}

	assignTaskCommand = &discordgo.ApplicationCommand{
		Name:        "assign-task",
		Description: "Assign or unassign a user",
		Options: []*discordgo.ApplicationCommandOption{
			taskIDOption("Task id"),
			{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "User", Required: true},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "remove", Description: "Unassign instead of assign"},
		},
	}

	deleteTaskCommand = &discordgo.ApplicationCommand{
		Name:        "delete-task",
		Description: "Delete a task you created",
		Options:     []*discordgo.ApplicationCommandOption{taskIDOption("Task id")},
	}

	myTasksCommand = &discordgo.ApplicationCommand{
		Name:        "my-tasks",
		Description: "List tasks assigned to you",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "status", Description: "Only this status, open tasks by default", Choices: statusChoices()},
		},
	}

	searchTasksCommand = &discordgo.ApplicationCommand{
		Name:        "search-tasks",
		Description: "Search tasks by title, description or tag",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "query", Description: "Text to look for", Required: true, MinLength: &searchMinLength},
		},
	}

	createRecurringTaskCommand = &discordgo.ApplicationCommand{
		Name:        "create-recurring-task",
		Description: "Create a task that repeats",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "title", Description: "Task title", Required: true, MaxLength: 200},
			{Type: discordgo.ApplicationCommandOptionString, Name: "pattern", Description: "How often", Required: true, Choices: patternChoices()},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "frequency", Description: "Every N periods, 1 by default", MinValue: &minOne, MaxValue: 365},
			{Type: discordgo.ApplicationCommandOptionString, Name: "due", Description: "First due date; later ones move by one period"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "end_date", Description: "Last day an instance may be created"},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "Details", MaxLength: 2000},
			{Type: discordgo.ApplicationCommandOptionString, Name: "priority", Description: "Priority", Choices: priorityChoices()},
			{Type: discordgo.ApplicationCommandOptionUser, Name: "assignee", Description: "Who should do it"},
			projectIDOption("Project id", false),
			{Type: discordgo.ApplicationCommandOptionString, Name: "tags", Description: "Comma separated tags"},
		},
	}

	recurringSettingsCommand = &discordgo.ApplicationCommand{
		Name:        "recurring-settings",
		Description: "Change or stop the recurrence of a task",
		Options: []*discordgo.ApplicationCommandOption{
			taskIDOption("Recurring task id"),
			{Type: discordgo.ApplicationCommandOptionString, Name: "pattern", Description: "How often", Choices: patternChoices()},
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "frequency", Description: "Every N periods", MinValue: &minOne, MaxValue: 365},
			{Type: discordgo.ApplicationCommandOptionString, Name: "end_date", Description: "Last day an instance may be created, or \"none\""},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Turn recurrence on or off"},
		},
	}

	createProjectCommand = &discordgo.ApplicationCommand{
		Name:        "create-project",
		Description: "Create a project",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Project name", Required: true, MaxLength: 100},
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "What it is about", MaxLength: 1000},
			{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel for project tasks and notices", ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText}},
			{Type: discordgo.ApplicationCommandOptionString, Name: "color", Description: "Embed color as #rrggbb"},
		},
	}

	projectCommand = &discordgo.ApplicationCommand{
		Name:        "project",
		Description: "Show a project",
		Options:     []*discordgo.ApplicationCommandOption{projectIDOption("Project id", true)},
	}

	projectsCommand = &discordgo.ApplicationCommand{
		Name:        "projects",
		Description: "List projects",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "include_inactive", Description: "Also list closed projects"},
		},
	}

	myProjectsCommand = &discordgo.ApplicationCommand{
		Name:        "my-projects",
		Description: "List projects you belong to",
	}

	joinProjectCommand = &discordgo.ApplicationCommand{
		Name:        "join-project",
		Description: "Join a project",
		Options:     []*discordgo.ApplicationCommandOption{projectIDOption("Project id", true)},
	}

	leaveProjectCommand = &discordgo.ApplicationCommand{
		Name:        "leave-project",
		Description: "Leave a project",
		Options:     []*discordgo.ApplicationCommandOption{projectIDOption("Project id", true)},
	}

	startTimerCommand = &discordgo.ApplicationCommand{
		Name:        "start-timer",
		Description: "Start tracking time on a task",
		Options:     []*discordgo.ApplicationCommandOption{taskIDOption("Task id")},
	}

	stopTimerCommand = &discordgo.ApplicationCommand{
		Name:        "stop-timer",
		Description: "Stop tracking time on a task and log it",
		Options: []*discordgo.ApplicationCommandOption{
			taskIDOption("Task id"),
			{Type: discordgo.ApplicationCommandOptionString, Name: "description", Description: "What you worked on", MaxLength: 500},
		},
	}

	activeTimersCommand = &discordgo.ApplicationCommand{
		Name:        "active-timers",
		Description: "Show your running timers",
	}

	timeReportCommand = &discordgo.ApplicationCommand{
		Name:        "time-report",
		Description: "Summarize the time you logged",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "How many days back, 7 by default", MinValue: &minOne, MaxValue: 365},
		},
	}

	upcomingDeadlinesCommand = &discordgo.ApplicationCommand{
		Name:        "upcoming-deadlines",
		Description: "List open tasks due soon",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionInteger, Name: "days", Description: "How many days ahead, 7 by default", MinValue: &minOne, MaxValue: 90},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "mine", Description: "Only tasks assigned to you"},
		},
	}

	overdueTasksCommand = &discordgo.ApplicationCommand{
		Name:        "overdue-tasks",
		Description: "List open tasks past their due date",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "mine", Description: "Only tasks assigned to you"},
		},
	}

	calendarCommand = &discordgo.ApplicationCommand{
		Name:        "calendar",
		Description: "Show the tasks due in a month",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "month", Description: "Month as YYYY-MM, the current one by default"},
			{Type: discordgo.ApplicationCommandOptionBoolean, Name: "mine", Description: "Only tasks assigned to you"},
		},
	}

	setTimezoneCommand = &discordgo.ApplicationCommand{
		Name:        "set-timezone",
		Description: "Set the timezone your dates are read in",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "timezone", Description: "IANA name such as Europe/Berlin", Required: true},
		},
	}

	quickTaskCommand = &discordgo.ApplicationCommand{
		Name:        "quick-task",
		Description: "Describe a task in your own words",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "text", Description: "e.g. review the budget with finance by friday, high priority", Required: true, MaxLength: 1000},
		},
	}

	adminStatsCommand = &discordgo.ApplicationCommand{
		Name:        "admin-stats",
		Description: "Show bot statistics (admins only)",
	}

	adminRunTaskCommand = &discordgo.ApplicationCommand{
		Name:        "admin-run-task",
		Description: "Run a scheduled task now (admins only)",
		Options: []*discordgo.ApplicationCommandOption{
			{Type: discordgo.ApplicationCommandOptionString, Name: "task", Description: "Task to run", Required: true, Choices: taskNameChoices()},
		},
	}
)

var searchMinLength = 2
