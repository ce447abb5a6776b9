package notify

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/edgard/taskbot/internal/model"
)

// Discord embed limits.
const (
	maxEmbedFields     = 25
	maxFieldValueChars = 1024
)

// Colors used by the notification embeds.
const (
	ColorInfo    = 0x3498db
	ColorWarning = 0xf39c12
	ColorDanger  = 0xe74c3c
	ColorSuccess = 0x2ecc71
)

const unassigned = ""

// DayBounds returns the start of the day containing now in loc and the start
// of the following day.
func DayBounds(now time.Time, loc *time.Location) (time.Time, time.Time) {
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}

// ShouldAlertOverdue reports whether a task due at due is reported at now. A
// task is reported during the first window after its due date and again
// during the first window after every full day overdue, so an hourly check
// with a one hour window reports it once a day.
func ShouldAlertOverdue(due, now time.Time, window time.Duration) bool {
	overdue := now.Sub(due)
	if overdue <= 0 {
		return false
	}
	if overdue < window {
		return true
	}
	return overdue >= 24*time.Hour && overdue%(24*time.Hour) < window
}

// GroupByChannel buckets tasks by channel, sending channel-less tasks to
// fallback. Tasks with neither are dropped. Channel ids are returned sorted.
func GroupByChannel(tasks []model.Task, fallback string) ([]string, map[string][]model.Task) {
	groups := make(map[string][]model.Task)
	for _, t := range tasks {
		ch := t.ChannelID
		if ch == "" {
			ch = fallback
		}
		if ch == "" {
			continue
		}
		groups[ch] = append(groups[ch], t)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}

// GroupByAssignee buckets tasks by assignee; a task with several assignees
// appears in each bucket and unassigned tasks share the empty key, listed last.
func GroupByAssignee(tasks []model.Task) ([]string, map[string][]model.Task) {
	groups := make(map[string][]model.Task)
	for _, t := range tasks {
		if len(t.Assignees) == 0 {
			groups[unassigned] = append(groups[unassigned], t)
			continue
		}
		for _, a := range t.Assignees {
			groups[a] = append(groups[a], t)
		}
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		if k != unassigned {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if _, ok := groups[unassigned]; ok {
		keys = append(keys, unassigned)
	}
	return keys, groups
}

// UniqueIDs drops empty and repeated ids, keeping the first occurrence.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Mentions renders user mentions for ids, deduplicated in order.
func Mentions(ids []string) string {
	ids = UniqueIDs(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "<@" + id + ">"
	}
	return strings.Join(parts, " ")
}

// TaskLine renders one task as a single embed line. Due dates use Discord
// timestamps so every reader sees them in their own timezone.
func TaskLine(t model.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s `#%d` **%s**", t.Priority.Emoji(), t.ID, t.Title)
	if t.DueDate.Valid {
		fmt.Fprintf(&b, " · due <t:%d:R>", t.DueDate.Time.Unix())
	}
	if t.Status != model.StatusTodo && t.Status != "" {
		fmt.Fprintf(&b, " · %s", t.Status.Label())
	}
	return b.String()
}

// TaskLines joins TaskLine for tasks, cutting the list to fit an embed field.
func TaskLines(tasks []model.Task) string {
	var b strings.Builder
	for i, t := range tasks {
		line := TaskLine(t)
		more := fmt.Sprintf("… and %d more", len(tasks)-i)
		if b.Len()+len(line)+1 > maxFieldValueChars-len(more)-1 {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(more)
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
	}
	return b.String()
}

// HoursOverdue renders how long ago due was, rounded down to whole hours.
func HoursOverdue(due, now time.Time) string {
	h := int(now.Sub(due).Hours())
	if h < 1 {
		return "less than an hour"
	}
	if h < 48 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dd %dh", h/24, h%24)
}
