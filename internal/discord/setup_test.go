package discord

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/taskbot/internal/bot/handlers"
)

type nopSession struct{}

func (nopSession) InteractionRespond(*discordgo.Interaction, *discordgo.InteractionResponse, ...discordgo.RequestOption) error {
	return nil
}

func (nopSession) InteractionResponseEdit(*discordgo.Interaction, *discordgo.WebhookEdit, ...discordgo.RequestOption) (*discordgo.Message, error) {
	return nil, nil
}

func interaction(typ discordgo.InteractionType, name string) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: typ,
		Data: discordgo.ApplicationCommandInteractionData{Name: name},
	}}
}

func tag(calls *[]string, name string) handlers.Middleware {
	return func(next handlers.HandlerFunc) handlers.HandlerFunc {
		return func(ctx context.Context, s handlers.Session, i *discordgo.InteractionCreate) {
			*calls = append(*calls, name)
			next(ctx, s, i)
		}
	}
}

func TestRouter_Dispatch(t *testing.T) {
	t.Parallel()

	var calls []string
	var deadline bool
	registered := map[string]handlers.RegisteredHandler{
		"ping": {
			Command: &discordgo.ApplicationCommand{Name: "ping"},
			Handler: func(ctx context.Context, _ handlers.Session, _ *discordgo.InteractionCreate) {
				_, deadline = ctx.Deadline()
				calls = append(calls, "ping")
			},
			Middleware: []handlers.Middleware{tag(&calls, "own")},
		},
		"broken": {Command: &discordgo.ApplicationCommand{Name: "broken"}},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewRouter(logger, registered, time.Minute, tag(&calls, "shared"))

	r.Dispatch(nopSession{}, interaction(discordgo.InteractionApplicationCommand, "ping"))
	assert.Equal(t, []string{"shared", "own", "ping"}, calls)
	assert.True(t, deadline)

	calls = nil
	r.Dispatch(nopSession{}, interaction(discordgo.InteractionApplicationCommand, "broken"))
	r.Dispatch(nopSession{}, interaction(discordgo.InteractionApplicationCommand, "missing"))
	r.Dispatch(nopSession{}, &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{Type: discordgo.InteractionMessageComponent}})
	assert.Empty(t, calls)
}

func TestCommands_SortedAndComplete(t *testing.T) {
	t.Parallel()

	cmds := Commands(map[string]handlers.RegisteredHandler{
		"b": {Command: &discordgo.ApplicationCommand{Name: "b"}},
		"a": {Command: &discordgo.ApplicationCommand{Name: "a"}},
		"x": {},
	})
	require.Len(t, cmds, 2)
	assert.Equal(t, "a", cmds[0].Name)
	assert.Equal(t, "b", cmds[1].Name)
}

func TestNewSession(t *testing.T) {
	t.Parallel()

	_, err := NewSession("", nil)
	require.Error(t, err)

	s, err := NewSession("abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bot abc", s.Token)
	assert.Equal(t, discordgo.IntentsGuilds, s.Identify.Intents)
}
