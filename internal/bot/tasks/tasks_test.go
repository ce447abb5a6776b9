package tasks

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/taskbot/internal/config"
	"github.com/edgard/taskbot/internal/database"
	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/notify"
	"github.com/edgard/taskbot/internal/recurrence"
)

type fakeSweeper struct {
	res    recurrence.Result
	err    error
	gotNow time.Time
}

func (f *fakeSweeper) Run(_ context.Context, now time.Time) (recurrence.Result, error) {
	f.gotNow = now
	return f.res, f.err
}

type fakeNotifier struct {
	calls     []string
	announced []recurrence.Instance
	err       error
}

func (f *fakeNotifier) record(name string) (notify.Report, error) {
	f.calls = append(f.calls, name)
	return notify.Report{Sent: 1}, f.err
}

func (f *fakeNotifier) SendMorningSummary(context.Context) (notify.Report, error) {
	return f.record("morning")
}

func (f *fakeNotifier) SendEveningPreview(context.Context) (notify.Report, error) {
	return f.record("evening")
}

func (f *fakeNotifier) SendOverdueAlerts(context.Context) (notify.Report, error) {
	return f.record("overdue")
}

func (f *fakeNotifier) AnnounceInstances(_ context.Context, instances []recurrence.Instance) (notify.Report, error) {
	f.announced = append(f.announced, instances...)
	return f.record("announce")
}

var taskNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func testDeps(t *testing.T, sweeper Sweeper, notifier Notifier) TaskDeps {
	t.Helper()
	return TaskDeps{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:   &config.Config{},
		Sweeper:  sweeper,
		Notifier: notifier,
		Now:      func() time.Time { return taskNow },
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	tasks := RegisterAllTasks(testDeps(t, &fakeSweeper{}, &fakeNotifier{}))
	for _, name := range []string{
		config.TaskRecurringSweep,
		config.TaskMorningSummary,
		config.TaskEveningSummary,
		config.TaskOverdueAlerts,
		config.TaskSQLMaintenance,
	} {
		assert.NotNil(t, tasks[name], name)
	}
	assert.Len(t, tasks, 5)
}

func TestRecurringSweepTask(t *testing.T) {
	t.Parallel()

	t.Run("announces created instances", func(t *testing.T) {
		t.Parallel()
		sweeper := &fakeSweeper{res: recurrence.Result{Evaluated: 2, Created: []recurrence.Instance{{ID: 5, OriginID: 1}}}}
		notifier := &fakeNotifier{}

		err := newRecurringSweepTask(testDeps(t, sweeper, notifier))(context.Background())
		require.NoError(t, err)
		assert.Equal(t, taskNow, sweeper.gotNow)
		require.Len(t, notifier.announced, 1)
		assert.Equal(t, int64(5), notifier.announced[0].ID)
	})

	t.Run("nothing due sends nothing", func(t *testing.T) {
		t.Parallel()
		notifier := &fakeNotifier{}
		err := newRecurringSweepTask(testDeps(t, &fakeSweeper{}, notifier))(context.Background())
		require.NoError(t, err)
		assert.Empty(t, notifier.calls)
	})

	t.Run("definition failures are reported after the rest succeed", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		sweeper := &fakeSweeper{res: recurrence.Result{
			Created:  []recurrence.Instance{{ID: 6, OriginID: 2}},
			Failures: []recurrence.Failure{{DefinitionID: 3, Err: boom}},
		}}
		notifier := &fakeNotifier{}

		err := newRecurringSweepTask(testDeps(t, sweeper, notifier))(context.Background())
		require.ErrorIs(t, err, boom)
		assert.Len(t, notifier.announced, 1)
	})

	t.Run("load failure", func(t *testing.T) {
		t.Parallel()
		notifier := &fakeNotifier{}
		err := newRecurringSweepTask(testDeps(t, &fakeSweeper{err: errors.New("db locked")}, notifier))(context.Background())
		require.Error(t, err)
		assert.Empty(t, notifier.calls)
	})

	t.Run("announcement failure", func(t *testing.T) {
		t.Parallel()
		sweeper := &fakeSweeper{res: recurrence.Result{Created: []recurrence.Instance{{ID: 7}}}}
		notifier := &fakeNotifier{err: errors.New("missing access")}
		err := newRecurringSweepTask(testDeps(t, sweeper, notifier))(context.Background())
		assert.ErrorContains(t, err, "missing access")
	})
}

func TestNotificationTasks(t *testing.T) {
	t.Parallel()

	notifier := &fakeNotifier{}
	deps := testDeps(t, &fakeSweeper{}, notifier)

	require.NoError(t, newMorningSummaryTask(deps)(context.Background()))
	require.NoError(t, newEveningSummaryTask(deps)(context.Background()))
	require.NoError(t, newOverdueAlertsTask(deps)(context.Background()))
	assert.Equal(t, []string{"morning", "evening", "overdue"}, notifier.calls)

	notifier.err = errors.New("rate limited")
	err := newOverdueAlertsTask(deps)(context.Background())
	assert.ErrorContains(t, err, "overdue_alerts")
}

func TestSQLMaintenanceTask(t *testing.T) {
	t.Parallel()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "taskbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })

	var buf bytes.Buffer
	deps := testDeps(t, &fakeSweeper{}, &fakeNotifier{})
	deps.Logger = slog.New(slog.NewTextHandler(&buf, nil))
	deps.Store = database.NewStore(db, nil)

	require.NoError(t, newSQLMaintenanceTask(deps)(context.Background()))
	assert.Contains(t, buf.String(), "size_before_bytes=")
	assert.Contains(t, buf.String(), "reclaimed_bytes=")
	assert.Contains(t, buf.String(), "run_id=")

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, newSQLMaintenanceTask(deps)(cancelled))
}

func TestRecurringSweepTask_FinishesWhenCallerIsCancelled(t *testing.T) {
	t.Parallel()

	db, err := database.NewDB(filepath.Join(t.TempDir(), "taskbot.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.CloseDB(db) })
	store := database.NewStore(db, nil)

	ctx := context.Background()
	for _, title := range []string{"Water plants", "Send invoices", "Rotate keys"} {
		def := &model.Task{
			Title:               title,
			CreatorID:           "1",
			RecurrencePattern:   sql.NullString{String: "daily", Valid: true},
			RecurrenceFrequency: 1,
		}
		require.NoError(t, store.CreateRecurringTask(ctx, def))
	}

	notifier := &fakeNotifier{}
	deps := testDeps(t, recurrence.NewSweeper(store, nil), notifier)
	deps.Store = store
	deps.Now = func() time.Time { return time.Now().AddDate(0, 0, 2) }

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	require.NoError(t, newRecurringSweepTask(deps)(cancelled))
	assert.Len(t, notifier.announced, 3)

	defs, err := store.ListActiveRecurring(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, defs, 3)
	for _, def := range defs {
		assert.True(t, def.LastRecurrence.After(time.Now()), "anchor of %q advanced", def.Title)
	}
}
