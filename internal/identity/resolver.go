// Package identity resolves Discord user ids to display names on demand.
// Names are cached for a while and never stored; when a lookup fails the raw
// id is shown instead of an invented name.
package identity

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemberFetcher is the part of the Discord session the resolver needs.
type MemberFetcher interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
}

// Resolver looks up display names through Discord with an expiring cache.
type Resolver struct {
	fetcher MemberFetcher
	cache   *expirable.LRU[string, string]
	logger  *slog.Logger
}

// NewResolver creates a Resolver caching up to size names for ttl.
func NewResolver(fetcher MemberFetcher, size int, ttl time.Duration, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Resolver{
		fetcher: fetcher,
		cache:   expirable.NewLRU[string, string](size, nil, ttl),
		logger:  logger.With("component", "identity_resolver"),
	}
}

// DisplayName returns the name userID shows in guildID, falling back to the
// global name, then the username, then the raw id. guildID may be empty.
func (r *Resolver) DisplayName(ctx context.Context, guildID, userID string) string {
	if userID == "" {
		return ""
	}
	key := guildID + "/" + userID
	if name, ok := r.cache.Get(key); ok {
		return name
	}

	name, ok := r.lookup(ctx, guildID, userID)
	if !ok {
		return userID
	}
	r.cache.Add(key, name)
	return name
}

// DisplayNames resolves every id in ids.
func (r *Resolver) DisplayNames(ctx context.Context, guildID string, ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	for _, id := range ids {
		out[id] = r.DisplayName(ctx, guildID, id)
	}
	return out
}

// Forget drops cached names of userID.
func (r *Resolver) Forget(guildID, userID string) {
	r.cache.Remove(guildID + "/" + userID)
}

func (r *Resolver) lookup(ctx context.Context, guildID, userID string) (string, bool) {
	opt := discordgo.WithContext(ctx)

	if guildID != "" {
		member, err := r.fetcher.GuildMember(guildID, userID, opt)
		if err == nil && member != nil {
			if name := memberName(member); name != "" {
				return name, true
			}
		} else {
			r.logger.DebugContext(ctx, "Guild member lookup failed", "guild_id", guildID, "user_id", userID, "error", err)
		}
	}

	user, err := r.fetcher.User(userID, opt)
	if err != nil || user == nil {
		r.logger.WarnContext(ctx, "User lookup failed, showing raw id", "user_id", userID, "error", err)
		return "", false
	}
	if name := userName(user); name != "" {
		return name, true
	}
	return "", false
}

func memberName(m *discordgo.Member) string {
	if m.Nick != "" {
		return m.Nick
	}
	if m.User != nil {
		return userName(m.User)
	}
	return ""
}

func userName(u *discordgo.User) string {
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}
