package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/notify"
)

const maxListedTasks = 50

func priorityColor(p model.TaskPriority) int {
	switch p {
	case model.PriorityUrgent:
		return notify.ColorDanger
	case model.PriorityHigh:
		return notify.ColorWarning
	case model.PriorityLow:
		return notify.ColorSuccess
	default:
		return notify.ColorInfo
	}
}

func discordTime(t time.Time) string {
	return fmt.Sprintf("<t:%d:f> (<t:%d:R>)", t.Unix(), t.Unix())
}

func mentionsOrNone(ids []string) string {
	if len(ids) == 0 {
		return "Nobody"
	}
	return notify.Mentions(ids)
}

func taskEmbed(t *model.Task, loggedHours float64) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s #%d %s", t.Priority.Emoji(), t.ID, t.Title),
		Description: t.Description,
		Color:       priorityColor(t.Priority),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Status", Value: t.Status.Label(), Inline: true},
			{Name: "Priority", Value: string(t.Priority), Inline: true},
			{Name: "Assignees", Value: mentionsOrNone(t.Assignees), Inline: true},
		},
		Timestamp: t.CreatedAt.UTC().Format(time.RFC3339),
	}

	add := func(name, value string, inline bool) {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline})
	}
	if t.DueDate.Valid {
		due := discordTime(t.DueDate.Time)
		if t.IsRecurring {
			due += "\nfirst occurrence, instances move it by one period"
		}
		add("Due", due, false)
	}
	if t.CompletedAt.Valid {
		add("Completed", discordTime(t.CompletedAt.Time), false)
	}
	if t.ProjectID.Valid {
		add("Project", "#"+strconv.FormatInt(t.ProjectID.Int64, 10), true)
	}
	if len(t.Tags) > 0 {
		add("Tags", strings.Join(t.Tags, ", "), true)
	}
	if t.EstimatedHours.Valid || loggedHours > 0 {
		hours := fmt.Sprintf("%.1fh logged", loggedHours)
		if t.EstimatedHours.Valid {
			hours += fmt.Sprintf(" of %.1fh estimated", t.EstimatedHours.Float64)
		}
		add("Time", hours, true)
	}
	if t.IsRecurring {
		add("Recurrence", recurrenceSummary(t), false)
	}
	if t.OriginTaskID.Valid {
		add("Recurring", fmt.Sprintf("Instance of #%d", t.OriginTaskID.Int64), true)
	}
	if t.CreatorID != "" {
		add("Created by", "<@"+t.CreatorID+">", true)
	}
	return embed
}

func recurrenceSummary(t *model.Task) string {
	var b strings.Builder
	if t.RecurrenceFrequency > 1 {
		fmt.Fprintf(&b, "Every %d %s periods", t.RecurrenceFrequency, t.RecurrencePattern.String)
	} else {
		fmt.Fprintf(&b, "Every %s period", t.RecurrencePattern.String)
	}
	if t.RecurrenceEndDate.Valid {
		fmt.Fprintf(&b, " until <t:%d:D>", t.RecurrenceEndDate.Time.Unix())
	}
	if t.Status == model.StatusCancelled {
		b.WriteString(" (stopped)")
	}
	if t.LastRecurrenceDate.Valid {
		fmt.Fprintf(&b, "\nLast instance <t:%d:R>", t.LastRecurrenceDate.Time.Unix())
	}
	return b.String()
}

func taskListEmbed(title string, tasks []model.Task, empty string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: title, Color: notify.ColorInfo}
	if len(tasks) == 0 {
		embed.Description = empty
		return embed
	}
	shown := tasks
	if len(shown) > maxListedTasks {
		shown = shown[:maxListedTasks]
	}
	embed.Description = notify.TaskLines(shown)
	embed.Footer = &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%d task(s)", len(tasks))}
	return embed
}

func projectColor(p *model.Project) int {
	c, err := strconv.ParseInt(strings.TrimPrefix(p.Color, "#"), 16, 32)
	if err != nil {
		return notify.ColorInfo
	}
	return int(c)
}

func projectEmbed(p *model.Project, tasks []model.Task) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("📁 #%d %s", p.ID, p.Name),
		Description: p.Description,
		Color:       projectColor(p),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Members", Value: mentionsOrNone(p.Members), Inline: false},
		},
	}
	if p.ChannelID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Channel", Value: "<#" + p.ChannelID + ">", Inline: true})
	}
	if !p.IsActive {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "State", Value: "Inactive", Inline: true})
	}

	counts := make(map[model.TaskStatus]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	var parts []string
	for _, st := range model.Statuses {
		if counts[st] > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d", st.Label(), counts[st]))
		}
	}
	if len(parts) > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Tasks", Value: strings.Join(parts, "\n"), Inline: true})
	}
	return embed
}

func projectLines(projects []model.Project) string {
	lines := make([]string, 0, len(projects))
	for _, p := range projects {
		line := fmt.Sprintf("`#%d` **%s** · %d member(s)", p.ID, p.Name, len(p.Members))
		if !p.IsActive {
			line += " · inactive"
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// userLocation returns the timezone dates typed by userID are read in. Users
// who never set one get the scheduler timezone.
func (d HandlerDeps) userLocation(ctx context.Context, userID string) *time.Location {
	fallback := d.Config.Scheduler.Location()
	user, err := d.Store.GetUser(ctx, userID)
	if err != nil || user.Timezone == "" {
		return fallback
	}
	loc, err := time.LoadLocation(user.Timezone)
	if err != nil {
		return fallback
	}
	return loc
}

// filterAssigned keeps the tasks assigned to userID.
func filterAssigned(tasks []model.Task, userID string) []model.Task {
	var out []model.Task
	for _, t := range tasks {
		for _, a := range t.Assignees {
			if a == userID {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
