package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/database"
)

func respond(ctx context.Context, s Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) error {
	if data.AllowedMentions == nil {
		data.AllowedMentions = &discordgo.MessageAllowedMentions{}
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
}

func respondEphemeral(ctx context.Context, s Session, i *discordgo.InteractionCreate, content string) error {
	return respond(ctx, s, i, &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func respondEmbed(ctx context.Context, s Session, i *discordgo.InteractionCreate, ephemeral bool, embed *discordgo.MessageEmbed) error {
	data := &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return respond(ctx, s, i, data)
}

// deferResponse acknowledges the interaction so the handler can take longer
// than Discord's three second limit, then answer with editResponse.
func deferResponse(ctx context.Context, s Session, i *discordgo.InteractionCreate, ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
}

func editResponse(ctx context.Context, s Session, i *discordgo.InteractionCreate, content string, embeds ...*discordgo.MessageEmbed) error {
	edit := &discordgo.WebhookEdit{Content: &content}
	if len(embeds) > 0 {
		edit.Embeds = &embeds
	}
	_, err := s.InteractionResponseEdit(i.Interaction, edit, discordgo.WithContext(ctx))
	return err
}

// reply sends an ephemeral message and logs when that fails.
func reply(ctx context.Context, log *slog.Logger, s Session, i *discordgo.InteractionCreate, content string) {
	if err := respondEphemeral(ctx, s, i, content); err != nil {
		log.ErrorContext(ctx, "Failed to send reply", "error", err)
	}
}

// replyEmbed sends an embed and logs when that fails.
func replyEmbed(ctx context.Context, log *slog.Logger, s Session, i *discordgo.InteractionCreate, ephemeral bool, embed *discordgo.MessageEmbed) {
	if err := respondEmbed(ctx, s, i, ephemeral, embed); err != nil {
		log.ErrorContext(ctx, "Failed to send embed reply", "error", err)
	}
}

func (d HandlerDeps) invalidInput(format string, args ...any) string {
	return fmt.Sprintf(d.Config.Messages.InvalidInput, fmt.Sprintf(format, args...))
}

// replyError maps a store error to a user facing message. Unexpected errors
// are logged and answered with the generic error message.
func (d HandlerDeps) replyError(ctx context.Context, log *slog.Logger, s Session, i *discordgo.InteractionCreate, op string, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		reply(ctx, log, s, i, d.Config.Messages.NotFound)
	case errors.Is(err, database.ErrDuplicate):
		reply(ctx, log, s, i, d.invalidInput("it already exists"))
	default:
		log.ErrorContext(ctx, "Command failed", "operation", op, "error", err)
		reply(ctx, log, s, i, d.Config.Messages.GeneralError)
	}
}
