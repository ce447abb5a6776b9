package notify

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/taskbot/internal/model"
)

func TestDayBounds(t *testing.T) {
	t.Parallel()

	saoPaulo, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	// 01:30 UTC is still the previous evening in Sao Paulo.
	now := time.Date(2025, 6, 10, 1, 30, 0, 0, time.UTC)

	start, end := DayBounds(now, time.UTC)
	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC), end)

	start, end = DayBounds(now, saoPaulo)
	assert.Equal(t, time.Date(2025, 6, 9, 0, 0, 0, 0, saoPaulo), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestShouldAlertOverdue(t *testing.T) {
	t.Parallel()

	due := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		overdue time.Duration
		want    bool
	}{
		{"not yet due", -time.Minute, false},
		{"exactly due", 0, false},
		{"just overdue", 30 * time.Minute, true},
		{"past first window", 2 * time.Hour, false},
		{"one day overdue", 24*time.Hour + 30*time.Minute, true},
		{"later on day two", 30 * time.Hour, false},
		{"three days overdue", 72*time.Hour + 59*time.Minute, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, ShouldAlertOverdue(due, due.Add(tt.overdue), time.Hour))
		})
	}
}

func TestGroupByChannel(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		{ID: 1, ChannelID: "c2"},
		{ID: 2},
		{ID: 3, ChannelID: "c1"},
		{ID: 4, ChannelID: "c2"},
	}

	keys, groups := GroupByChannel(tasks, "fallback")
	assert.Equal(t, []string{"c1", "c2", "fallback"}, keys)
	assert.Len(t, groups["c2"], 2)
	assert.Equal(t, int64(2), groups["fallback"][0].ID)

	keys, groups = GroupByChannel(tasks, "")
	assert.Equal(t, []string{"c1", "c2"}, keys)
	assert.NotContains(t, groups, "")
}

func TestGroupByAssignee(t *testing.T) {
	t.Parallel()

	tasks := []model.Task{
		{ID: 1, Assignees: []string{"b", "a"}},
		{ID: 2},
		{ID: 3, Assignees: []string{"b"}},
	}

	keys, groups := GroupByAssignee(tasks)
	assert.Equal(t, []string{"a", "b", ""}, keys)
	assert.Len(t, groups["b"], 2)
	assert.Len(t, groups["a"], 1)
	assert.Equal(t, int64(2), groups[""][0].ID)
}

func TestMentions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "<@1> <@2>", Mentions([]string{"1", "", "2", "1"}))
	assert.Empty(t, Mentions(nil))
	assert.Equal(t, []string{"x", "y"}, UniqueIDs([]string{"x", "y", "x"}))
}

func TestTaskLine(t *testing.T) {
	t.Parallel()

	due := time.Unix(1750000000, 0)
	line := TaskLine(model.Task{
		ID:       7,
		Title:    "Ship release",
		Priority: model.PriorityHigh,
		Status:   model.StatusInProgress,
		DueDate:  sql.NullTime{Time: due, Valid: true},
	})
	assert.Equal(t, "🟠 `#7` **Ship release** · due <t:1750000000:R> · In Progress", line)

	line = TaskLine(model.Task{ID: 8, Title: "Plain", Status: model.StatusTodo})
	assert.Equal(t, "⚪ `#8` **Plain**", line)
}

func TestTaskLines_Truncates(t *testing.T) {
	t.Parallel()

	var tasks []model.Task
	for i := range 60 {
		tasks = append(tasks, model.Task{ID: int64(i + 1), Title: strings.Repeat("x", 40)})
	}

	out := TaskLines(tasks)
	assert.LessOrEqual(t, len(out), maxFieldValueChars)
	assert.Contains(t, out, "more")
	assert.True(t, strings.HasPrefix(out, "⚪ `#1`"))

	assert.NotContains(t, TaskLines(tasks[:2]), "more")
}

func TestHoursOverdue(t *testing.T) {
	t.Parallel()

	due := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "less than an hour", HoursOverdue(due, due.Add(20*time.Minute)))
	assert.Equal(t, "5h", HoursOverdue(due, due.Add(5*time.Hour+10*time.Minute)))
	assert.Equal(t, "3d 2h", HoursOverdue(due, due.Add(74*time.Hour)))
}
