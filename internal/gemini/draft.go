package gemini

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/edgard/taskbot/internal/model"
)

// ErrEmptyDraft is returned when no task could be extracted.
var ErrEmptyDraft = errors.New("no task found in text")

const maxTitleLength = 100

// TaskDraft is a task proposed from free text, not yet stored.
type TaskDraft struct {
	Title          string
	Description    string
	Priority       model.TaskPriority
	DueDate        *time.Time
	Tags           model.Tags
	EstimatedHours *float64
}

type draftJSON struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Priority       string   `json:"priority"`
	DueDate        string   `json:"due_date"`
	Tags           []string `json:"tags"`
	EstimatedHours float64  `json:"estimated_hours"`
}

// parseDraft decodes the model's JSON answer. Dates are read in now's
// location; a bare day is due at the end of that day.
func parseDraft(jsonText string, now time.Time) (*TaskDraft, error) {
	var raw draftJSON
	if err := json.Unmarshal([]byte(jsonText), &raw); err != nil {
		return nil, fmt.Errorf("invalid task draft JSON: %w", err)
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		return nil, ErrEmptyDraft
	}
	if r := []rune(title); len(r) > maxTitleLength {
		title = string(r[:maxTitleLength])
	}

	draft := &TaskDraft{
		Title:       title,
		Description: strings.TrimSpace(raw.Description),
		Priority:    model.TaskPriority(strings.ToLower(strings.TrimSpace(raw.Priority))),
		Tags:        model.ParseTags(strings.Join(raw.Tags, ",")),
	}
	if !draft.Priority.Valid() {
		draft.Priority = model.PriorityMedium
	}
	if raw.EstimatedHours > 0 {
		h := raw.EstimatedHours
		draft.EstimatedHours = &h
	}

	if due := strings.TrimSpace(raw.DueDate); due != "" {
		t, err := model.ParseDueDate(due, now.Location())
		if err != nil {
			return nil, err
		}
		draft.DueDate = &t
	}
	return draft, nil
}
