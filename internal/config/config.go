// Package config loads and validates the bot configuration from defaults, an
// optional YAML file and TASKBOT_* environment variables.
package config

import (
	"time"
)

// Config is the root configuration of the bot.
type Config struct {
	Discord       DiscordConfig       `mapstructure:"discord"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Logger        LoggerConfig        `mapstructure:"logger"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Identity      IdentityConfig      `mapstructure:"identity"`
	Gemini        GeminiConfig        `mapstructure:"gemini"`
	Messages      MessagesConfig      `mapstructure:"messages"`
}

// DiscordConfig holds the gateway credentials and access rules.
type DiscordConfig struct {
	Token string `mapstructure:"token" validate:"required"`
	// GuildID scopes command registration to one guild when set; commands are
	// registered globally otherwise.
	GuildID        string        `mapstructure:"guild_id"`
	AdminUserIDs   []string      `mapstructure:"admin_user_ids"`
	AdminRoleIDs   []string      `mapstructure:"admin_role_ids"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=5m"`
}

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// LoggerConfig controls log level and format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// SchedulerConfig holds the timezone of cron expressions and the named tasks.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"required,timezone"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`
}

// TaskConfig enables and schedules one named task. Schedule is a six field
// cron expression (with seconds).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// NotificationsConfig tunes outbound channel messages.
type NotificationsConfig struct {
	// RatePerSecond and Burst limit channel sends across the whole bot.
	RatePerSecond float64 `mapstructure:"rate_per_second" validate:"gt=0"`
	Burst         int     `mapstructure:"burst" validate:"min=1"`
	// OverdueWindow is how long after a due date, and after each full day
	// overdue, a task is reported. It should match the overdue_alerts interval.
	OverdueWindow time.Duration `mapstructure:"overdue_window" validate:"min=1m,max=24h"`
	// FallbackChannelID receives notices for tasks created outside a channel.
	FallbackChannelID string `mapstructure:"fallback_channel_id"`
}

// IdentityConfig sizes the display name cache.
type IdentityConfig struct {
	CacheSize int           `mapstructure:"cache_size" validate:"min=1"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" validate:"min=1s"`
}

// GeminiConfig configures the optional natural language task capture.
type GeminiConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	APIKey      string        `mapstructure:"api_key" validate:"required_if=Enabled true"`
	ModelName   string        `mapstructure:"model_name" validate:"required_if=Enabled true"`
	Temperature float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout     time.Duration `mapstructure:"timeout" validate:"min=1s,max=5m"`
}

// MessagesConfig holds user facing strings.
type MessagesConfig struct {
	GeneralError    string `mapstructure:"general_error" validate:"required"`
	NotAuthorized   string `mapstructure:"not_authorized" validate:"required"`
	NotFound        string `mapstructure:"not_found" validate:"required"`
	InvalidInput    string `mapstructure:"invalid_input" validate:"required"`
	NLPDisabled     string `mapstructure:"nlp_disabled" validate:"required"`
	MorningHeader   string `mapstructure:"morning_header" validate:"required"`
	EveningHeader   string `mapstructure:"evening_header" validate:"required"`
	OverdueHeader   string `mapstructure:"overdue_header" validate:"required"`
	RecurringHeader string `mapstructure:"recurring_header" validate:"required"`
}

// Location returns the scheduler timezone. Validation guarantees it loads.
func (c *SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// IsAdmin reports whether a user, given its guild role ids, may run admin
// commands.
func (c *DiscordConfig) IsAdmin(userID string, roleIDs []string) bool {
	for _, id := range c.AdminUserIDs {
		if id == userID {
			return true
		}
	}
	for _, want := range c.AdminRoleIDs {
		for _, have := range roleIDs {
			if want == have {
				return true
			}
		}
	}
	return false
}
