package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/notify"
)

var helpSections = []struct {
	name  string
	lines string
}{
	{"📋 Tasks", "`/create-task` `/task` `/update-task` `/assign-task` `/delete-task`\n`/my-tasks` `/search-tasks` `/quick-task`"},
	{"🔁 Recurring", "`/create-recurring-task` `/recurring-settings`\nNew instances are created automatically when a period has passed."},
	{"📁 Projects", "`/create-project` `/project` `/projects` `/my-projects` `/join-project` `/leave-project`"},
	{"⏱️ Time", "`/start-timer` `/stop-timer` `/active-timers` `/time-report`"},
	{"📅 Deadlines", "`/upcoming-deadlines` `/overdue-tasks` `/calendar` `/set-timezone`"},
	{"🛠️ Admin", "`/admin-stats` `/admin-run-task`"},
}

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
	log := h.deps.Logger.With("handler", "help")

	embed := &discordgo.MessageEmbed{
		Title:       "Task bot",
		Description: "Dates are read in your timezone, set it with `/set-timezone`. Times are shown in your Discord locale.",
		Color:       notify.ColorInfo,
	}
	for _, sec := range helpSections {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: sec.name, Value: sec.lines})
	}
	if h.deps.Gemini == nil {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Natural language capture is disabled."}
	}

	replyEmbed(ctx, log, s, i, true, embed)
}
