package model

import (
	"regexp"
	"time"
)

// DefaultProjectColor is used when a project is created without a color.
const DefaultProjectColor = "#3498db"

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// ValidColor reports whether c is a #rrggbb color.
func ValidColor(c string) bool {
	return hexColor.MatchString(c)
}

// Project groups tasks and members, optionally bound to a Discord channel.
type Project struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Name        string `db:"name"`
	Description string `db:"description"`
	ChannelID   string `db:"channel_id"`
	Color       string `db:"color"`
	IsActive    bool   `db:"is_active"`

	Members []string `db:"-"`
}

// User is an external Discord identity plus local preferences. Display data is
// resolved on demand and never stored.
type User struct {
	DiscordID string    `db:"discord_id"`
	// Timezone is an IANA name, empty until the user picks one.
	Timezone  string    `db:"timezone"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TimeEntry records time spent by a user on a task.
type TimeEntry struct {
	ID            int64     `db:"id"`
	CreatedAt     time.Time `db:"created_at"`
	TaskID        int64     `db:"task_id"`
	UserID        string    `db:"user_id"`
	DurationHours float64   `db:"duration_hours"`
	Description   string    `db:"description"`
	StartTime     time.Time `db:"start_time"`
	EndTime       time.Time `db:"end_time"`
}
