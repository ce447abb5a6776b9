// Package notify posts deadline digests, overdue alerts and recurring task
// announcements to Discord channels.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/recurrence"
)

// Sender posts messages to a channel.
type Sender interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// TaskSource lists the tasks notifications are built from.
type TaskSource interface {
	ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]model.Task, error)
	ListOverdueTasks(ctx context.Context, now time.Time) ([]model.Task, error)
}

// NameResolver turns user ids into display names for places where Discord
// does not render mentions.
type NameResolver interface {
	DisplayName(ctx context.Context, guildID, userID string) string
}

// Report counts what one notification run did.
type Report struct {
	Tasks    int
	Channels int
	Sent     int
	Failed   int
}

// Service builds and sends notifications.
type Service struct {
	sender  Sender
	tasks   TaskSource
	names   NameResolver
	limiter *rate.Limiter
	loc     *time.Location
	cfg     config.NotificationsConfig
	msgs    config.MessagesConfig
	guildID string
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a notification Service.
func NewService(
	sender Sender,
	tasks TaskSource,
	names NameResolver,
	cfg *config.Config,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Service{
		sender:  sender,
		tasks:   tasks,
		names:   names,
		limiter: rate.NewLimiter(rate.Limit(cfg.Notifications.RatePerSecond), cfg.Notifications.Burst),
		loc:     cfg.Scheduler.Location(),
		cfg:     cfg.Notifications,
		msgs:    cfg.Messages,
		guildID: cfg.Discord.GuildID,
		logger:  logger.With("component", "notifier"),
		now:     time.Now,
	}
}

// SendMorningSummary posts, per channel, the open tasks due today grouped by
// assignee.
func (s *Service) SendMorningSummary(ctx context.Context) (Report, error) {
	start, end := DayBounds(s.now(), s.loc)
	return s.sendDigest(ctx, "morning_summary", s.msgs.MorningHeader, ColorInfo, start, end)
}

// SendEveningPreview posts, per channel, the open tasks due tomorrow grouped
// by assignee.
func (s *Service) SendEveningPreview(ctx context.Context) (Report, error) {
	_, tomorrow := DayBounds(s.now(), s.loc)
	return s.sendDigest(ctx, "evening_summary", s.msgs.EveningHeader, ColorWarning, tomorrow, tomorrow.AddDate(0, 0, 1))
}

func (s *Service) sendDigest(ctx context.Context, kind, header string, color int, from, to time.Time) (Report, error) {
	tasks, err := s.tasks.ListTasksDueBetween(ctx, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load tasks for %s: %w", kind, err)
	}

	channels, byChannel := GroupByChannel(tasks, s.cfg.FallbackChannelID)
	report := Report{Tasks: len(tasks), Channels: len(channels)}
	var errs []error

	for _, ch := range channels {
		chTasks := byChannel[ch]
		embed := &discordgo.MessageEmbed{
			Title:       header,
			Description: fmt.Sprintf("%d task(s) due <t:%d:D>", len(chTasks), from.Unix()),
			Color:       color,
			Timestamp:   s.now().UTC().Format(time.RFC3339),
		}

		assignees, byAssignee := GroupByAssignee(chTasks)
		for _, a := range assignees {
			if len(embed.Fields) == maxEmbedFields {
				break
			}
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  s.assigneeLabel(ctx, a),
				Value: TaskLines(byAssignee[a]),
			})
		}

		users := UniqueIDs(assignees)
		msg := &discordgo.MessageSend{
			Content:         Mentions(users),
			Embeds:          []*discordgo.MessageEmbed{embed},
			AllowedMentions: &discordgo.MessageAllowedMentions{Users: users},
		}
		if err := s.send(ctx, kind, ch, msg); err != nil {
			report.Failed++
			errs = append(errs, err)
			continue
		}
		report.Sent++
	}

	s.logger.InfoContext(ctx, "Digest sent", "kind", kind, "tasks", report.Tasks, "channels", report.Channels, "failed", report.Failed)
	return report, errors.Join(errs...)
}

// SendOverdueAlerts posts open tasks that just became overdue, or crossed
// another full day overdue, within the configured window.
func (s *Service) SendOverdueAlerts(ctx context.Context) (Report, error) {
	now := s.now()
	overdue, err := s.tasks.ListOverdueTasks(ctx, now)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load overdue tasks: %w", err)
	}

	var due []model.Task
	for _, t := range overdue {
		if t.DueDate.Valid && ShouldAlertOverdue(t.DueDate.Time, now, s.cfg.OverdueWindow) {
			due = append(due, t)
		}
	}

	channels, byChannel := GroupByChannel(due, s.cfg.FallbackChannelID)
	report := Report{Tasks: len(due), Channels: len(channels)}
	var errs []error

	for _, ch := range channels {
		chTasks := byChannel[ch]
		embed := &discordgo.MessageEmbed{
			Title:     s.msgs.OverdueHeader,
			Color:     ColorDanger,
			Timestamp: now.UTC().Format(time.RFC3339),
		}
		var ids []string
		for _, t := range chTasks {
			if len(embed.Fields) == maxEmbedFields {
				break
			}
			value := fmt.Sprintf("Overdue by %s", HoursOverdue(t.DueDate.Time, now))
			if len(t.Assignees) > 0 {
				value += "\n" + Mentions(t.Assignees)
			}
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name:  fmt.Sprintf("%s #%d %s", t.Priority.Emoji(), t.ID, t.Title),
				Value: value,
			})
			ids = append(ids, t.Assignees...)
		}

		ids = UniqueIDs(ids)
		msg := &discordgo.MessageSend{
			Content:         Mentions(ids),
			Embeds:          []*discordgo.MessageEmbed{embed},
			AllowedMentions: &discordgo.MessageAllowedMentions{Users: ids},
		}
		if err := s.send(ctx, "overdue_alerts", ch, msg); err != nil {
			report.Failed++
			errs = append(errs, err)
			continue
		}
		report.Sent++
	}

	s.logger.InfoContext(ctx, "Overdue alerts sent", "overdue", len(overdue), "alerted", report.Tasks, "failed", report.Failed)
	return report, errors.Join(errs...)
}

// AnnounceInstances posts one message per freshly materialized recurring
// instance to its channel.
func (s *Service) AnnounceInstances(ctx context.Context, instances []recurrence.Instance) (Report, error) {
	report := Report{Tasks: len(instances)}
	var errs []error
	seen := make(map[string]bool)

	for _, inst := range instances {
		ch := inst.ChannelID
		if ch == "" {
			ch = s.cfg.FallbackChannelID
		}
		if ch == "" {
			continue
		}
		if !seen[ch] {
			seen[ch] = true
			report.Channels++
		}

		embed := &discordgo.MessageEmbed{
			Title:       s.msgs.RecurringHeader,
			Description: fmt.Sprintf("`#%d` **%s**", inst.ID, inst.Title),
			Color:       ColorSuccess,
			Footer:      &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Spawned from recurring task #%d", inst.OriginID)},
		}
		if inst.DueDate != nil {
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name: "Due", Value: fmt.Sprintf("<t:%d:F>", inst.DueDate.Unix()), Inline: true,
			})
		}
		if inst.Priority != "" {
			p := model.TaskPriority(inst.Priority)
			embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
				Name: "Priority", Value: p.Emoji() + " " + inst.Priority, Inline: true,
			})
		}

		users := UniqueIDs(inst.Assignees)
		msg := &discordgo.MessageSend{
			Content:         Mentions(users),
			Embeds:          []*discordgo.MessageEmbed{embed},
			AllowedMentions: &discordgo.MessageAllowedMentions{Users: users},
		}
		if err := s.send(ctx, "recurring_announcement", ch, msg); err != nil {
			report.Failed++
			errs = append(errs, err)
			continue
		}
		report.Sent++
	}
	return report, errors.Join(errs...)
}

func (s *Service) send(ctx context.Context, kind, channelID string, msg *discordgo.MessageSend) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%s to channel %s: %w", kind, channelID, err)
	}
	if _, err := s.sender.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send notification", "kind", kind, "channel_id", channelID, "error", err)
		return fmt.Errorf("%s to channel %s: %w", kind, channelID, err)
	}
	s.logger.DebugContext(ctx, "Notification sent", "kind", kind, "channel_id", channelID)
	return nil
}

func (s *Service) assigneeLabel(ctx context.Context, userID string) string {
	if userID == unassigned {
		return "Unassigned"
	}
	if s.names == nil {
		return userID
	}
	return "👤 " + s.names.DisplayName(ctx, s.guildID, userID)
}
