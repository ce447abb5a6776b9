// Package handlers contains the Discord slash command handlers, their
// registration table and middleware.
package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// InvokerID returns the id of the user who triggered the interaction, both in
// guilds and in direct messages.
func InvokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func invokerRoles(i *discordgo.InteractionCreate) []string {
	if i.Member != nil {
		return i.Member.Roles
	}
	return nil
}

func isAdmin(deps HandlerDeps, i *discordgo.InteractionCreate) bool {
	return deps.Config.Discord.IsAdmin(InvokerID(i), invokerRoles(i))
}

// AdminOnly creates a middleware that lets only configured admin users or
// roles through. Others get an ephemeral "not authorized" reply.
func AdminOnly(deps HandlerDeps) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
			if isAdmin(deps, i) {
				next(ctx, s, i)
				return
			}

			log := deps.Logger.With("middleware", "AdminOnly")
			log.WarnContext(ctx, "Unauthorized access attempt", "user_id", InvokerID(i), "guild_id", i.GuildID)
			if err := respondEphemeral(ctx, s, i, deps.Config.Messages.NotAuthorized); err != nil {
				log.ErrorContext(ctx, "Failed to send unauthorized message", "error", err)
			}
		}
	}
}

// TrackUser records the invoker as a known user before the handler runs. A
// failure is logged and the command still runs.
func TrackUser(deps HandlerDeps) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, s Session, i *discordgo.InteractionCreate) {
			if userID := InvokerID(i); userID != "" {
				if err := deps.Store.EnsureUser(ctx, userID); err != nil {
					deps.Logger.WarnContext(ctx, "Failed to record user", "user_id", userID, "error", err)
				}
			}
			next(ctx, s, i)
		}
	}
}
