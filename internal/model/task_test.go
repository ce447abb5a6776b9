package model_test

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/taskbot/internal/model"
)

func TestTags_ScanValue(t *testing.T) {
	t.Parallel()

	v, err := model.Tags{"ops", "weekly"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["ops","weekly"]`, v)

	var nilTags model.Tags
	v, err = nilTags.Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	var scanned model.Tags
	require.NoError(t, scanned.Scan([]byte(`["a","b"]`)))
	assert.Equal(t, model.Tags{"a", "b"}, scanned)

	require.NoError(t, scanned.Scan(nil))
	assert.Empty(t, scanned)

	assert.Error(t, scanned.Scan(42))
	assert.Error(t, scanned.Scan("not json"))
}

func TestParseTags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  model.Tags
	}{
		{name: "empty", input: "", want: model.Tags{}},
		{name: "trims and lowercases", input: " Ops , Infra", want: model.Tags{"ops", "infra"}},
		{name: "drops duplicates and blanks", input: "a,,A, b ,a", want: model.Tags{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, model.ParseTags(tt.input))
		})
	}
}

func TestTaskStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, model.StatusReview.Valid())
	assert.False(t, model.TaskStatus("blocked").Valid())
	assert.True(t, model.StatusDone.Closed())
	assert.True(t, model.StatusCancelled.Closed())
	assert.False(t, model.StatusInProgress.Closed())
	assert.Equal(t, "In Progress", model.StatusInProgress.Label())
}

func TestTaskPriority(t *testing.T) {
	t.Parallel()

	assert.True(t, model.PriorityUrgent.Valid())
	assert.False(t, model.TaskPriority("critical").Valid())
	assert.Equal(t, "🔴", model.PriorityUrgent.Emoji())
	assert.Equal(t, "⚪", model.TaskPriority("").Emoji())
}

func TestTask_IsOverdue(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := sql.NullTime{Time: now.Add(-time.Hour), Valid: true}
	future := sql.NullTime{Time: now.Add(time.Hour), Valid: true}

	assert.True(t, (&model.Task{Status: model.StatusTodo, DueDate: past}).IsOverdue(now))
	assert.False(t, (&model.Task{Status: model.StatusDone, DueDate: past}).IsOverdue(now))
	assert.False(t, (&model.Task{Status: model.StatusTodo, DueDate: future}).IsOverdue(now))
	assert.False(t, (&model.Task{Status: model.StatusTodo}).IsOverdue(now))
}

func TestValidColor(t *testing.T) {
	t.Parallel()

	assert.True(t, model.ValidColor("#3498db"))
	assert.True(t, model.ValidColor("#ABCDEF"))
	assert.False(t, model.ValidColor("3498db"))
	assert.False(t, model.ValidColor("#123"))
}

func TestParseDueDate(t *testing.T) {
	t.Parallel()

	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2025-03-10 14:30", time.Date(2025, 3, 10, 14, 30, 0, 0, loc), false},
		{"2025-03-10T14:30", time.Date(2025, 3, 10, 14, 30, 0, 0, loc), false},
		{" 2025-03-10 ", time.Date(2025, 3, 10, 23, 59, 59, 999999999, loc), false},
		{"2025-03-30", time.Date(2025, 3, 30, 23, 59, 59, 999999999, loc), false},
		{"2025-03-10T14:30:00Z", time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC), false},
		{"next tuesday", time.Time{}, true},
		{"2025-02-30", time.Time{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := model.ParseDueDate(tt.in, loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}
