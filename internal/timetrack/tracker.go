// Package timetrack keeps the in-memory timers users start on tasks and turns
// stopped timers into persisted time entries. Running timers are lost when the
// process restarts.
package timetrack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/edgard/taskbot/internal/model"
)

var (
	// ErrTimerRunning is returned when a timer already runs for the user and task.
	ErrTimerRunning = errors.New("timer already running")
	// ErrNoTimer is returned when no timer runs for the user and task.
	ErrNoTimer = errors.New("no timer running")
)

// EntryStore persists and lists time entries.
type EntryStore interface {
	CreateTimeEntry(ctx context.Context, entry *model.TimeEntry) error
	ListTimeEntriesForUser(ctx context.Context, userID string, since time.Time) ([]model.TimeEntry, error)
}

// Timer is one running timer.
type Timer struct {
	UserID  string
	TaskID  int64
	Started time.Time
}

// Elapsed returns how long the timer has been running at now.
func (t Timer) Elapsed(now time.Time) time.Duration {
	return now.Sub(t.Started)
}

// TaskTotal is the time a user logged on one task.
type TaskTotal struct {
	TaskID  int64
	Hours   float64
	Entries int
}

// Report summarizes the time a user logged since a date.
type Report struct {
	UserID     string
	Since      time.Time
	TotalHours float64
	Tasks      []TaskTotal
}

// Tracker owns the running timers.
type Tracker struct {
	store  EntryStore
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	timers map[string]map[int64]time.Time
}

// NewTracker creates a Tracker persisting entries to store.
func NewTracker(store EntryStore, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Tracker{
		store:  store,
		logger: logger.With("component", "time_tracker"),
		now:    time.Now,
		timers: make(map[string]map[int64]time.Time),
	}
}

// Start begins timing taskID for userID.
func (t *Tracker) Start(userID string, taskID int64) (Timer, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.timers[userID][taskID]; ok {
		return Timer{}, fmt.Errorf("task %d: %w", taskID, ErrTimerRunning)
	}
	if t.timers[userID] == nil {
		t.timers[userID] = make(map[int64]time.Time)
	}
	started := t.now().UTC()
	t.timers[userID][taskID] = started

	t.logger.Debug("Timer started", "user_id", userID, "task_id", taskID)
	return Timer{UserID: userID, TaskID: taskID, Started: started}, nil
}

// Stop ends the timer of userID on taskID and records the elapsed time. The
// timer is claimed before the entry is saved, so concurrent stops record it
// once. It is put back when the entry cannot be saved.
func (t *Tracker) Stop(ctx context.Context, userID string, taskID int64, description string) (*model.TimeEntry, error) {
	t.mu.Lock()
	started, ok := t.timers[userID][taskID]
	if ok {
		t.remove(userID, taskID)
	}
	t.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("task %d: %w", taskID, ErrNoTimer)
	}

	end := t.now().UTC()
	entry := &model.TimeEntry{
		TaskID:        taskID,
		UserID:        userID,
		DurationHours: end.Sub(started).Hours(),
		Description:   description,
		StartTime:     started,
		EndTime:       end,
	}
	if err := t.store.CreateTimeEntry(ctx, entry); err != nil {
		t.mu.Lock()
		if _, running := t.timers[userID][taskID]; !running {
			if t.timers[userID] == nil {
				t.timers[userID] = make(map[int64]time.Time)
			}
			t.timers[userID][taskID] = started
		}
		t.mu.Unlock()
		t.logger.ErrorContext(ctx, "Failed to save time entry, timer kept running", "user_id", userID, "task_id", taskID, "error", err)
		return nil, fmt.Errorf("failed to save time entry: %w", err)
	}

	t.logger.InfoContext(ctx, "Timer stopped", "user_id", userID, "task_id", taskID, "hours", entry.DurationHours)
	return entry, nil
}

// remove deletes a timer. The caller holds t.mu.
func (t *Tracker) remove(userID string, taskID int64) {
	delete(t.timers[userID], taskID)
	if len(t.timers[userID]) == 0 {
		delete(t.timers, userID)
	}
}

// Active lists the running timers of userID, oldest first.
func (t *Tracker) Active(userID string) []Timer {
	t.mu.Lock()
	defer t.mu.Unlock()

	timers := make([]Timer, 0, len(t.timers[userID]))
	for taskID, started := range t.timers[userID] {
		timers = append(timers, Timer{UserID: userID, TaskID: taskID, Started: started})
	}
	sort.Slice(timers, func(i, j int) bool {
		if timers[i].Started.Equal(timers[j].Started) {
			return timers[i].TaskID < timers[j].TaskID
		}
		return timers[i].Started.Before(timers[j].Started)
	})
	return timers
}

// Report totals the hours userID logged per task over the last days days.
func (t *Tracker) Report(ctx context.Context, userID string, days int) (*Report, error) {
	if days < 1 {
		days = 1
	}
	since := t.now().UTC().AddDate(0, 0, -days)

	entries, err := t.store.ListTimeEntriesForUser(ctx, userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load time entries: %w", err)
	}

	report := &Report{UserID: userID, Since: since}
	byTask := make(map[int64]*TaskTotal)
	for _, e := range entries {
		tt, ok := byTask[e.TaskID]
		if !ok {
			tt = &TaskTotal{TaskID: e.TaskID}
			byTask[e.TaskID] = tt
		}
		tt.Hours += e.DurationHours
		tt.Entries++
		report.TotalHours += e.DurationHours
	}
	for _, tt := range byTask {
		report.Tasks = append(report.Tasks, *tt)
	}
	sort.Slice(report.Tasks, func(i, j int) bool {
		if report.Tasks[i].Hours == report.Tasks[j].Hours {
			return report.Tasks[i].TaskID < report.Tasks[j].TaskID
		}
		return report.Tasks[i].Hours > report.Tasks[j].Hours
	})
	return report, nil
}

// FormatDuration renders d as "1h 05m" or "12m".
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	if h == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dh %02dm", h, m)
}
