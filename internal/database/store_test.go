package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/recurrence"
)

var testNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *sqlxStore {
	t.Helper()

	db, err := NewDB(filepath.Join(t.TempDir(), "taskbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { CloseDB(db) })

	s := NewStore(db, nil).(*sqlxStore)
	s.now = func() time.Time { return testNow }
	return s
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"data/taskbot.db", "data/taskbot.db"},
		{"file:data/taskbot.db?cache=shared", "data/taskbot.db"},
		{"file:my%20db.sqlite", "my db.sqlite"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtractDBNameFromPath(tt.in))
	}

	assert.Equal(t, "a.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite", buildDSN("a.db"))
	assert.Contains(t, buildDSN("file:a.db?cache=shared"), "cache=shared&_pragma")
}

func TestStore_TaskLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.Ping(ctx))

	task := &model.Task{
		Title:     "Write release notes",
		CreatorID: "100",
		ChannelID: "chan",
		Tags:      model.Tags{"docs"},
		DueDate:   sql.NullTime{Time: testNow.Add(48 * time.Hour), Valid: true},
		Assignees: []string{"200", "300"},
	}
	require.NoError(t, s.CreateTask(ctx, task))
	require.NotZero(t, task.ID)
	assert.Equal(t, model.StatusTodo, task.Status)
	assert.Equal(t, model.PriorityMedium, task.Priority)

	got, err := s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Write release notes", got.Title)
	assert.Equal(t, model.Tags{"docs"}, got.Tags)
	assert.ElementsMatch(t, []string{"200", "300"}, got.Assignees)
	assert.True(t, task.DueDate.Time.Equal(got.DueDate.Time))

	got.Title = "Write changelog"
	got.Priority = model.PriorityHigh
	require.NoError(t, s.UpdateTask(ctx, got))

	require.NoError(t, s.AssignUsers(ctx, task.ID, []string{"300", "400"}))
	mine, err := s.ListTasksForUser(ctx, "400", "")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Write changelog", mine[0].Title)
	assert.Equal(t, model.PriorityHigh, mine[0].Priority)

	none, err := s.ListTasksForUser(ctx, "200", "")
	require.NoError(t, err)
	assert.Empty(t, none)

	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, model.StatusDone, testNow))
	got, err = s.GetTask(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, got.CompletedAt.Valid)

	open, err := s.ListTasksForUser(ctx, "400", "")
	require.NoError(t, err)
	assert.Empty(t, open)
	done, err := s.ListTasksForUser(ctx, "400", model.StatusDone)
	require.NoError(t, err)
	assert.Len(t, done, 1)

	found, err := s.SearchTasks(ctx, "changelog", 10)
	require.NoError(t, err)
	assert.Len(t, found, 1)

	require.NoError(t, s.DeleteTask(ctx, task.ID))
	_, err = s.GetTask(ctx, task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteTask(ctx, task.ID), ErrNotFound)
	assert.ErrorIs(t, s.AssignUsers(ctx, task.ID, []string{"1"}), ErrNotFound)
}

func TestStore_CreateTaskValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	assert.Error(t, s.CreateTask(ctx, nil))
	assert.Error(t, s.CreateTask(ctx, &model.Task{CreatorID: "1"}))
	assert.Error(t, s.CreateTask(ctx, &model.Task{Title: "x"}))
	assert.Error(t, s.CreateTask(ctx, &model.Task{Title: "x", CreatorID: "1", Priority: "critical"}))
}

func TestStore_DeadlineQueries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	mk := func(title string, due time.Time, status model.TaskStatus) {
		task := &model.Task{Title: title, CreatorID: "1", Status: status, DueDate: sql.NullTime{Time: due, Valid: true}}
		require.NoError(t, s.CreateTask(ctx, task))
	}
	mk("late", testNow.Add(-3*time.Hour), model.StatusTodo)
	mk("late but done", testNow.Add(-3*time.Hour), model.StatusDone)
	mk("today", testNow.Add(5*time.Hour), model.StatusInProgress)
	mk("next week", testNow.AddDate(0, 0, 7), model.StatusTodo)

	def := &model.Task{
		Title:               "recurring template",
		CreatorID:           "1",
		DueDate:             sql.NullTime{Time: testNow.Add(-48 * time.Hour), Valid: true},
		RecurrencePattern:   sql.NullString{String: "daily", Valid: true},
		RecurrenceFrequency: 1,
	}
	require.NoError(t, s.CreateRecurringTask(ctx, def))

	overdue, err := s.ListOverdueTasks(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, "late", overdue[0].Title)

	due, err := s.ListTasksDueBetween(ctx, testNow, testNow.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "today", due[0].Title)

	stats, err := s.Stats(ctx, testNow)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.ByStatus[model.StatusTodo])
	assert.Equal(t, 1, stats.ByStatus[model.StatusDone])
	assert.Equal(t, 1, stats.Recurring)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.Users)
}

func TestStore_RecurringMaterialize(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	def := &model.Task{
		Title:               "Weekly report",
		CreatorID:           "1",
		ChannelID:           "chan",
		Priority:            model.PriorityHigh,
		Tags:                model.Tags{"report"},
		EstimatedHours:      sql.NullFloat64{Float64: 2, Valid: true},
		Assignees:           []string{"2"},
		RecurrencePattern:   sql.NullString{String: "Weekly", Valid: true},
		RecurrenceFrequency: 1,
	}
	require.NoError(t, s.CreateRecurringTask(ctx, def))
	assert.True(t, def.IsRecurring)
	assert.True(t, testNow.Equal(def.LastRecurrenceDate.Time))

	now := testNow.AddDate(0, 0, 7)
	defs, err := s.ListActiveRecurring(ctx, now)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, recurrence.Weekly, defs[0].Pattern)
	assert.Equal(t, []string{"2"}, defs[0].Assignees)
	require.NotNil(t, defs[0].LastRecurrence)

	res, err := recurrence.NewSweeper(s, nil).Run(ctx, now)
	require.NoError(t, err)
	require.NoError(t, res.Err())
	require.Len(t, res.Created, 1)

	inst, err := s.GetTask(ctx, res.Created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "Weekly report", inst.Title)
	assert.False(t, inst.IsRecurring)
	assert.Equal(t, def.ID, inst.OriginTaskID.Int64)
	assert.Equal(t, model.StatusTodo, inst.Status)
	assert.Equal(t, []string{"2"}, inst.Assignees)
	assert.Equal(t, model.Tags{"report"}, inst.Tags)
	assert.InDelta(t, 2.0, inst.EstimatedHours.Float64, 0.001)

	stored, err := s.GetTask(ctx, def.ID)
	require.NoError(t, err)
	assert.True(t, now.Equal(stored.LastRecurrenceDate.Time))

	// The definitions read before the sweep still carry the old anchor.
	_, err = s.Materialize(ctx, defs[0], recurrence.NewInstance(defs[0], recurrence.Decision{Fire: true}), now)
	assert.ErrorIs(t, err, ErrStaleAnchor)

	again, err := recurrence.NewSweeper(s, nil).Run(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, again.Created)

	mine, err := s.ListTasksForUser(ctx, "2", "")
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func TestStore_RecurrenceSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	task := &model.Task{Title: "Backup check", CreatorID: "1"}
	require.NoError(t, s.CreateTask(ctx, task))

	end := testNow.AddDate(0, 1, 0)
	require.NoError(t, s.UpdateRecurrenceSettings(ctx, task.ID, RecurrenceSettings{
		Pattern: recurrence.Daily, Frequency: 2, EndDate: &end, Enabled: true,
	}))

	defs, err := s.ListActiveRecurring(ctx, testNow)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, 2, defs[0].Frequency)
	assert.True(t, end.Equal(*defs[0].EndDate))
	assert.True(t, testNow.Equal(*defs[0].LastRecurrence))

	defs, err = s.ListActiveRecurring(ctx, end.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, defs)

	require.NoError(t, s.UpdateRecurrenceSettings(ctx, task.ID, RecurrenceSettings{Frequency: 1}))
	defs, err = s.ListActiveRecurring(ctx, testNow)
	require.NoError(t, err)
	assert.Empty(t, defs)

	err = s.UpdateRecurrenceSettings(ctx, task.ID, RecurrenceSettings{Pattern: "yearly", Frequency: 1, Enabled: true})
	assert.ErrorIs(t, err, recurrence.ErrInvalidPattern)
	assert.ErrorIs(t, s.UpdateRecurrenceSettings(ctx, 999, RecurrenceSettings{}), ErrNotFound)

	require.NoError(t, s.UpdateTaskStatus(ctx, task.ID, model.StatusCancelled, testNow))
}

func TestStore_Projects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	p := &model.Project{Name: "Website", ChannelID: "web", Members: []string{"1"}}
	require.NoError(t, s.CreateProject(ctx, p))
	assert.Equal(t, model.DefaultProjectColor, p.Color)

	dup := &model.Project{Name: "Website"}
	assert.ErrorIs(t, s.CreateProject(ctx, dup), ErrDuplicate)
	assert.Error(t, s.CreateProject(ctx, &model.Project{Name: "Bad", Color: "red"}))

	byChan, err := s.GetProjectByChannel(ctx, "web")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byChan.ID)
	assert.Equal(t, []string{"1"}, byChan.Members)

	require.NoError(t, s.AddProjectMember(ctx, p.ID, "2"))
	assert.ErrorIs(t, s.AddProjectMember(ctx, p.ID, "2"), ErrDuplicate)
	assert.ErrorIs(t, s.AddProjectMember(ctx, 999, "2"), ErrNotFound)

	mine, err := s.ListProjectsForUser(ctx, "2")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.ElementsMatch(t, []string{"1", "2"}, mine[0].Members)

	require.NoError(t, s.RemoveProjectMember(ctx, p.ID, "2"))
	assert.ErrorIs(t, s.RemoveProjectMember(ctx, p.ID, "2"), ErrNotFound)

	p.Description = "Marketing site"
	p.Color = "#ff0000"
	require.NoError(t, s.UpdateProject(ctx, p))

	found, err := s.SearchProjects(ctx, "marketing", 5)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "#ff0000", found[0].Color)

	task := &model.Task{Title: "Landing page", CreatorID: "1", ProjectID: sql.NullInt64{Int64: p.ID, Valid: true}}
	require.NoError(t, s.CreateTask(ctx, task))
	tasks, err := s.ListTasksForProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 1)

	require.NoError(t, s.DeactivateProject(ctx, p.ID))
	active, err := s.ListProjects(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, active)
	all, err := s.ListProjects(ctx, true)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = s.GetProjectByChannel(ctx, "web")
	assert.ErrorIs(t, err, ErrNotFound)

	// A deactivated name can be reused.
	require.NoError(t, s.CreateProject(ctx, &model.Project{Name: "Website"}))
}

func TestStore_UsersAndTimeEntries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.GetUser(ctx, "42")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.EnsureUser(ctx, "42"))
	require.NoError(t, s.EnsureUser(ctx, "42"))
	u, err := s.GetUser(ctx, "42")
	require.NoError(t, err)
	assert.Empty(t, u.Timezone)
	assert.True(t, u.IsActive)

	require.NoError(t, s.SetUserTimezone(ctx, "42", "America/Sao_Paulo"))
	u, err = s.GetUser(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, "America/Sao_Paulo", u.Timezone)

	require.NoError(t, s.SetUserTimezone(ctx, "43", "Europe/Berlin"))
	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	task := &model.Task{Title: "Profiling", CreatorID: "42"}
	require.NoError(t, s.CreateTask(ctx, task))

	for i, hours := range []float64{1.5, 0.25} {
		start := testNow.Add(time.Duration(i) * 3 * time.Hour)
		entry := &model.TimeEntry{
			TaskID:        task.ID,
			UserID:        "42",
			DurationHours: hours,
			StartTime:     start,
			EndTime:       start.Add(time.Duration(hours * float64(time.Hour))),
		}
		require.NoError(t, s.CreateTimeEntry(ctx, entry))
		assert.NotZero(t, entry.ID)
	}

	total, err := s.TotalHoursForTask(ctx, task.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1.75, total, 0.0001)

	entries, err := s.ListTimeEntriesForUser(ctx, "42", testNow.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.InDelta(t, 0.25, entries[0].DurationHours, 0.0001)

	byTask, err := s.ListTimeEntriesForTask(ctx, task.ID)
	require.NoError(t, err)
	assert.Len(t, byTask, 2)

	assert.Error(t, s.CreateTimeEntry(ctx, &model.TimeEntry{TaskID: task.ID, UserID: "42", StartTime: testNow, EndTime: testNow.Add(-time.Minute)}))

	before, err := s.DatabaseSize(ctx)
	require.NoError(t, err)
	assert.Positive(t, before)
	require.NoError(t, s.RunSQLMaintenance(ctx))
	after, err := s.DatabaseSize(ctx)
	require.NoError(t, err)
	assert.LessOrEqual(t, after, before)
}
