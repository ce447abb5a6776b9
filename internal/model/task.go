// Package model defines the domain records shared by the store, the recurrence
// engine and the Discord handlers.
package model

import (
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the workflow state of a task.
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusReview     TaskStatus = "review"
	StatusDone       TaskStatus = "done"
	StatusCancelled  TaskStatus = "cancelled"
)

// Statuses lists every status in workflow order.
var Statuses = []TaskStatus{StatusTodo, StatusInProgress, StatusReview, StatusDone, StatusCancelled}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// Closed reports whether the status no longer needs attention.
func (s TaskStatus) Closed() bool {
	return s == StatusDone || s == StatusCancelled
}

// Label returns a human readable form, e.g. "In Progress".
func (s TaskStatus) Label() string {
	words := strings.Split(string(s), "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}

// TaskPriority ranks how urgent a task is.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
	PriorityUrgent TaskPriority = "urgent"
)

// Priorities lists every priority from least to most urgent.
var Priorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// Valid reports whether p is a known priority.
func (p TaskPriority) Valid() bool {
	for _, v := range Priorities {
		if p == v {
			return true
		}
	}
	return false
}

// Emoji returns the marker used in embeds for the priority.
func (p TaskPriority) Emoji() string {
	switch p {
	case PriorityLow:
		return "🟢"
	case PriorityMedium:
		return "🟡"
	case PriorityHigh:
		return "🟠"
	case PriorityUrgent:
		return "🔴"
	default:
		return "⚪"
	}
}

// Tags is a list of labels persisted as a JSON array.
type Tags []string

// Value implements driver.Valuer.
func (t Tags) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(t))
	if err != nil {
		return nil, fmt.Errorf("failed to encode tags: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (t *Tags) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*t = Tags{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported tags column type %T", src)
	}
	if len(raw) == 0 {
		*t = Tags{}
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("failed to decode tags: %w", err)
	}
	*t = out
	return nil
}

// ParseTags splits a comma separated list, trimming blanks and duplicates.
func ParseTags(s string) Tags {
	seen := make(map[string]bool)
	tags := Tags{}
	for _, part := range strings.Split(s, ",") {
		tag := strings.ToLower(strings.TrimSpace(part))
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
	}
	return tags
}

// Task is a unit of work. A task with IsRecurring set is a recurring definition
// and spawns instances that point back to it through OriginTaskID.
type Task struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	Title          string          `db:"title"`
	Description    string          `db:"description"`
	Status         TaskStatus      `db:"status"`
	Priority       TaskPriority    `db:"priority"`
	Tags           Tags            `db:"tags"`
	EstimatedHours sql.NullFloat64 `db:"estimated_hours"`

	ProjectID sql.NullInt64 `db:"project_id"`
	CreatorID string        `db:"creator_id"`
	ChannelID string        `db:"channel_id"`
	MessageID string        `db:"message_id"`

	DueDate     sql.NullTime `db:"due_date"`
	CompletedAt sql.NullTime `db:"completed_at"`

	IsRecurring         bool           `db:"is_recurring"`
	RecurrencePattern   sql.NullString `db:"recurrence_pattern"`
	RecurrenceFrequency int            `db:"recurrence_frequency"`
	RecurrenceEndDate   sql.NullTime   `db:"recurrence_end_date"`
	LastRecurrenceDate  sql.NullTime   `db:"last_recurrence_date"`
	OriginTaskID        sql.NullInt64  `db:"origin_task_id"`

	// Assignees holds Discord user ids; loaded separately from task_assignees.
	Assignees []string `db:"-"`
}

// IsOverdue reports whether the task is open and past its due date at now.
func (t *Task) IsOverdue(now time.Time) bool {
	return t.DueDate.Valid && !t.Status.Closed() && t.DueDate.Time.Before(now)
}
