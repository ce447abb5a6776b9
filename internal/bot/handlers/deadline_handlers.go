package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/notify"
)

const (
	defaultUpcomingDays = 7
	maxCalendarFields   = 25
)

// NewUpcomingDeadlinesHandler returns a handler for the /upcoming-deadlines
// command.
func NewUpcomingDeadlinesHandler(deps HandlerDeps) HandlerFunc {
	return upcomingDeadlinesHandler{deps}.Handle
}

type upcomingDeadlinesHandler struct {
	deps HandlerDeps
}

func (h upcomingDeadlinesHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "upcoming_deadlines")
	opts := optionsOf(i)

	days := defaultUpcomingDays
	if d, ok := opts.integer("days"); ok && d > 0 {
		days = int(d)
	}
	now := h.deps.now()

	tasks, err := h.deps.Store.ListTasksDueBetween(ctx, now, now.AddDate(0, 0, days))
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "list upcoming tasks", err)
		return
	}
	if mine, _ := opts.boolean("mine"); mine {
		tasks = filterAssigned(tasks, InvokerID(i))
	}
	replyEmbed(ctx, log, s, i, true, taskListEmbed(fmt.Sprintf("⏳ Due in the next %d day(s)", days), tasks, "Nothing due. 🎉"))
}

// NewOverdueTasksHandler returns a handler for the /overdue-tasks command.
func NewOverdueTasksHandler(deps HandlerDeps) HandlerFunc {
	return overdueTasksHandler{deps}.Handle
}

type overdueTasksHandler struct {
	deps HandlerDeps
}

func (h overdueTasksHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "overdue_tasks")

	tasks, err := h.deps.Store.ListOverdueTasks(ctx, h.deps.now())
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "list overdue tasks", err)
		return
	}
	if mine, _ := optionsOf(i).boolean("mine"); mine {
		tasks = filterAssigned(tasks, InvokerID(i))
	}
	embed := taskListEmbed("⏰ Overdue tasks", tasks, "Nothing is overdue. 🎉")
	if len(tasks) > 0 {
		embed.Color = notify.ColorDanger
	}
	replyEmbed(ctx, log, s, i, true, embed)
}

// NewCalendarHandler returns a handler for the /calendar command.
func NewCalendarHandler(deps HandlerDeps) HandlerFunc {
	return calendarHandler{deps}.Handle
}

type calendarHandler struct {
	deps HandlerDeps
}

func (h calendarHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "calendar")
	opts := optionsOf(i)
	userID := InvokerID(i)
	loc := h.deps.userLocation(ctx, userID)

	start, err := monthStart(opts, h.deps.now(), loc)
	if err != nil {
		reply(ctx, log, s, i, h.deps.invalidInput("month must look like 2025-03"))
		return
	}
	end := start.AddDate(0, 1, 0)

	tasks, err := h.deps.Store.ListTasksDueBetween(ctx, start, end)
	if err != nil {
		h.deps.replyError(ctx, log, s, i, "list month tasks", err)
		return
	}
	if mine, _ := opts.boolean("mine"); mine {
		tasks = filterAssigned(tasks, userID)
	}
	replyEmbed(ctx, log, s, i, true, calendarEmbed(start, tasks, loc))
}

func monthStart(opts commandOptions, now time.Time, loc *time.Location) (time.Time, error) {
	if v, ok := opts.str("month"); ok {
		return time.ParseInLocation("2006-01", v, loc)
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc), nil
}

// calendarEmbed lists tasks per local day of the month starting at start.
// tasks must be sorted by due date.
func calendarEmbed(start time.Time, tasks []model.Task, loc *time.Location) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  "📅 " + start.Format("January 2006"),
		Color:  notify.ColorInfo,
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d task(s), days in %s", len(tasks), loc)},
	}
	if len(tasks) == 0 {
		embed.Description = "Nothing due this month."
		return embed
	}

	var days []int
	byDay := make(map[int][]model.Task)
	for _, t := range tasks {
		if !t.DueDate.Valid {
			continue
		}
		day := t.DueDate.Time.In(loc).Day()
		if _, ok := byDay[day]; !ok {
			days = append(days, day)
		}
		byDay[day] = append(byDay[day], t)
	}

	for n, day := range days {
		if n == maxCalendarFields {
			embed.Description = fmt.Sprintf("Showing the first %d days with tasks.", maxCalendarFields)
			break
		}
		date := time.Date(start.Year(), start.Month(), day, 0, 0, 0, 0, loc)
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  date.Format("Mon 02"),
			Value: notify.TaskLines(byDay[day]),
		})
	}
	return embed
}

// NewSetTimezoneHandler returns a handler for the /set-timezone command.
func NewSetTimezoneHandler(deps HandlerDeps) HandlerFunc {
	return setTimezoneHandler{deps}.Handle
}

type setTimezoneHandler struct {
	deps HandlerDeps
}

func (h setTimezoneHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "set_timezone")
	userID := InvokerID(i)

	name, _ := optionsOf(i).str("timezone")
	loc, err := time.LoadLocation(name)
	if name == "" || name == "Local" || err != nil {
		reply(ctx, log, s, i, h.deps.invalidInput("unknown timezone %q, use a name like Europe/Berlin", name))
		return
	}
	if err := h.deps.Store.SetUserTimezone(ctx, userID, loc.String()); err != nil {
		h.deps.replyError(ctx, log, s, i, "set timezone", err)
		return
	}
	log.InfoContext(ctx, "User timezone set", "user_id", userID, "timezone", loc.String())
	reply(ctx, log, s, i, fmt.Sprintf("🌍 Timezone set to **%s**. It is now %s there.", loc, h.deps.now().In(loc).Format(model.DateLayout)))
}
