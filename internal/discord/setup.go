// Package discord sets up the Discord gateway session, registers the slash
// commands and routes interactions to their handlers.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/edgard/taskbot/internal/bot/handlers"
)

// NewSession creates a Discord session for a bot token. The session is not
// connected until Open is called.
func NewSession(token string, logger *slog.Logger) (*discordgo.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("discord bot token cannot be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "discord_session")

	s, err := discordgo.New("Bot " + token)
	if err != nil {
		log.Error("Failed to create Discord session", "error", err)
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	s.ShouldReconnectOnError = true

	log.Info("Discord session created")
	return s, nil
}

// Router dispatches application command interactions by command name.
type Router struct {
	handlers map[string]handlers.HandlerFunc
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRouter wraps each registered handler in its own middleware, then in
// the shared middleware, first one outermost.
func NewRouter(logger *slog.Logger, registered map[string]handlers.RegisteredHandler, timeout time.Duration, shared ...handlers.Middleware) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	log := logger.With("component", "handler_registry")

	routes := make(map[string]handlers.HandlerFunc, len(registered))
	for name, reg := range registered {
		if reg.Handler == nil || reg.Command == nil {
			log.Warn("Skipping registration for incomplete handler", "command", name)
			continue
		}
		h := handlers.ApplyMiddleware(reg.Handler, reg.Middleware...)
		routes[name] = handlers.ApplyMiddleware(h, shared...)
		log.Debug("Registered handler", "command", name, "middleware_count", len(reg.Middleware)+len(shared))
	}

	log.Info("Registered Discord handlers", "count", len(routes))
	return &Router{handlers: routes, timeout: timeout, logger: log}
}

// Dispatch runs the handler for an interaction. Other interaction types and
// unknown commands are logged and dropped.
func (r *Router) Dispatch(s handlers.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		r.logger.Debug("Ignoring interaction", "interaction_type", i.Type.String())
		return
	}
	name := i.ApplicationCommandData().Name
	h, ok := r.handlers[name]
	if !ok {
		r.logger.Warn("No handler for command", "command", name)
		return
	}

	ctx := context.Background()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	h(ctx, s, i)
}

// Attach routes the interactions received by session through r.
func (r *Router) Attach(session *discordgo.Session) {
	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		r.Dispatch(s, i)
	})
}

// Commands returns the command definitions sorted by name.
func Commands(registered map[string]handlers.RegisteredHandler) []*discordgo.ApplicationCommand {
	cmds := make([]*discordgo.ApplicationCommand, 0, len(registered))
	for _, reg := range registered {
		if reg.Command != nil {
			cmds = append(cmds, reg.Command)
		}
	}
	sort.Slice(cmds, func(a, b int) bool { return cmds[a].Name < cmds[b].Name })
	return cmds
}
