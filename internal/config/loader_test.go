package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, "discord:\n  token: abc\n"))
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.Discord.Token)
	assert.Equal(t, "taskbot.db", cfg.Database.Path)
	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, time.UTC.String(), cfg.Scheduler.Location().String())
	assert.Equal(t, time.Hour, cfg.Notifications.OverdueWindow)
	assert.Equal(t, 30*time.Minute, cfg.Identity.CacheTTL)
	assert.False(t, cfg.Gemini.Enabled)

	require.Contains(t, cfg.Scheduler.Tasks, TaskRecurringSweep)
	assert.True(t, cfg.Scheduler.Tasks[TaskRecurringSweep].Enabled)
	assert.Equal(t, "0 */15 * * * *", cfg.Scheduler.Tasks[TaskRecurringSweep].Schedule)
	assert.Len(t, cfg.Scheduler.Tasks, 5)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, `
discord:
  token: abc
  guild_id: "123"
  admin_user_ids: ["1", "2"]
scheduler:
  timezone: America/Sao_Paulo
  tasks:
    recurring_sweep:
      schedule: "0 * * * * *"
    sql_maintenance:
      enabled: false
notifications:
  overdue_window: 30m
logger:
  level: debug
  json: true
`))
	require.NoError(t, err)

	assert.Equal(t, "123", cfg.Discord.GuildID)
	assert.Equal(t, []string{"1", "2"}, cfg.Discord.AdminUserIDs)
	assert.Equal(t, "America/Sao_Paulo", cfg.Scheduler.Location().String())
	assert.Equal(t, "0 * * * * *", cfg.Scheduler.Tasks[TaskRecurringSweep].Schedule)
	assert.True(t, cfg.Scheduler.Tasks[TaskRecurringSweep].Enabled)
	assert.False(t, cfg.Scheduler.Tasks[TaskSQLMaintenance].Enabled)
	assert.Equal(t, 30*time.Minute, cfg.Notifications.OverdueWindow)
	assert.True(t, cfg.Logger.JSON)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "missing token", body: "logger:\n  level: info\n"},
		{name: "bad level", body: "discord:\n  token: a\nlogger:\n  level: loud\n"},
		{name: "bad timezone", body: "discord:\n  token: a\nscheduler:\n  timezone: Mars/Olympus\n"},
		{name: "gemini without key", body: "discord:\n  token: a\ngemini:\n  enabled: true\n"},
		{name: "enabled task without schedule", body: "discord:\n  token: a\nscheduler:\n  tasks:\n    custom:\n      enabled: true\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(writeConfig(t, "discord: [unclosed"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrValidation)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("TASKBOT_DISCORD_TOKEN", "from-env")
	t.Setenv("TASKBOT_DATABASE_PATH", "/tmp/env.db")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Discord.Token)
	assert.Equal(t, "/tmp/env.db", cfg.Database.Path)
}

func TestDiscordConfig_IsAdmin(t *testing.T) {
	t.Parallel()

	c := DiscordConfig{AdminUserIDs: []string{"1"}, AdminRoleIDs: []string{"mods"}}
	assert.True(t, c.IsAdmin("1", nil))
	assert.True(t, c.IsAdmin("2", []string{"everyone", "mods"}))
	assert.False(t, c.IsAdmin("2", []string{"everyone"}))
}
