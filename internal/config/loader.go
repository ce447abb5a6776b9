package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrValidation wraps every configuration validation failure.
var ErrValidation = errors.New("invalid configuration")

// Task names known to the scheduler.
const (
	TaskRecurringSweep = "recurring_sweep"
	TaskMorningSummary = "morning_summary"
	TaskEveningSummary = "evening_summary"
	TaskOverdueAlerts  = "overdue_alerts"
	TaskSQLMaintenance = "sql_maintenance"
)

var defaults = map[string]any{
	"discord.token":           "",
	"discord.guild_id":        "",
	"discord.admin_user_ids":  []string{},
	"discord.admin_role_ids":  []string{},
	"discord.request_timeout": 15 * time.Second,

	"database.path": "taskbot.db",

	"logger.level": "info",
	"logger.json":  false,

	"scheduler.timezone": "UTC",

	"scheduler.tasks." + TaskRecurringSweep + ".enabled":  true,
	"scheduler.tasks." + TaskRecurringSweep + ".schedule": "0 */15 * * * *",
	"scheduler.tasks." + TaskMorningSummary + ".enabled":  true,
	"scheduler.tasks." + TaskMorningSummary + ".schedule": "0 0 8 * * *",
	"scheduler.tasks." + TaskEveningSummary + ".enabled":  true,
	"scheduler.tasks." + TaskEveningSummary + ".schedule": "0 0 20 * * *",
	"scheduler.tasks." + TaskOverdueAlerts + ".enabled":   true,
	"scheduler.tasks." + TaskOverdueAlerts + ".schedule":  "0 0 * * * *",
	"scheduler.tasks." + TaskSQLMaintenance + ".enabled":  true,
	"scheduler.tasks." + TaskSQLMaintenance + ".schedule": "0 0 4 * * 0",

	"notifications.rate_per_second":     1.0,
	"notifications.burst":               5,
	"notifications.overdue_window":      time.Hour,
	"notifications.fallback_channel_id": "",

	"identity.cache_size": 512,
	"identity.cache_ttl":  30 * time.Minute,

	"gemini.enabled":     false,
	"gemini.api_key":     "",
	"gemini.model_name":  "gemini-2.0-flash",
	"gemini.temperature": 0.2,
	"gemini.timeout":     30 * time.Second,

	"messages.general_error":    "❌ Something went wrong. Please try again later.",
	"messages.not_authorized":   "🚫 You are not allowed to use this command.",
	"messages.not_found":        "🔍 Nothing found with that id.",
	"messages.invalid_input":    "⚠️ Invalid input: %s",
	"messages.nlp_disabled":     "🤖 Natural language task capture is not enabled on this bot.",
	"messages.morning_header":   "🌅 Good morning! Here is what is due today",
	"messages.evening_header":   "🌙 Heads up! These tasks are due tomorrow",
	"messages.overdue_header":   "⏰ Overdue tasks",
	"messages.recurring_header": "🔁 New recurring task instance",
}

// LoadConfig reads configuration from defaults, the YAML file at path (if it
// exists) and TASKBOT_* environment variables, in increasing precedence, then
// validates it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("TASKBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	} else {
		slog.Debug("Configuration file loaded", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	slog.Info("Configuration loaded",
		"database_path", cfg.Database.Path,
		"log_level", cfg.Logger.Level,
		"timezone", cfg.Scheduler.Timezone,
		"guild_scoped", cfg.Discord.GuildID != "",
		"gemini_enabled", cfg.Gemini.Enabled)
	return &cfg, nil
}

// Validate checks struct tags of cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}
