package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

// Gateway owns the websocket connection of a session.
type Gateway struct {
	session  *discordgo.Session
	guildID  string
	commands []*discordgo.ApplicationCommand
	logger   *slog.Logger
}

// NewGateway creates a Gateway that registers commands on start, in guildID
// only when it is set and globally otherwise.
func NewGateway(session *discordgo.Session, guildID string, commands []*discordgo.ApplicationCommand, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		session:  session,
		guildID:  guildID,
		commands: commands,
		logger:   logger.With("component", "discord_gateway"),
	}
}

// Start connects, registers the slash commands and blocks until ctx is done,
// then disconnects.
func (g *Gateway) Start(ctx context.Context) error {
	if err := g.session.Open(); err != nil {
		g.logger.Error("Failed to open Discord connection", "error", err)
		return fmt.Errorf("failed to open discord connection: %w", err)
	}
	defer func() {
		if err := g.session.Close(); err != nil {
			g.logger.Error("Error closing Discord connection", "error", err)
		}
		g.logger.Info("Discord connection closed")
	}()

	appID := g.session.State.User.ID
	registered, err := g.session.ApplicationCommandBulkOverwrite(appID, g.guildID, g.commands, discordgo.WithContext(ctx))
	if err != nil {
		g.logger.Error("Failed to register slash commands", "error", err, "guild_id", g.guildID)
		return fmt.Errorf("failed to register slash commands: %w", err)
	}
	g.logger.Info("Discord connection ready",
		"bot_id", appID,
		"bot_username", g.session.State.User.Username,
		"commands", len(registered),
		"guild_id", g.guildID)

	<-ctx.Done()
	return nil
}
