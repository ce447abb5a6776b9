package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/taskbot/internal/model"
)

const timeEntryColumns = `id, created_at, task_id, user_id, duration_hours, description, start_time, end_time`

// CreateTimeEntry records time spent on a task.
func (s *sqlxStore) CreateTimeEntry(ctx context.Context, entry *model.TimeEntry) error {
	if entry == nil {
		return errors.New("cannot save nil time entry")
	}
	if entry.UserID == "" || entry.TaskID == 0 {
		return errors.New("time entry must reference a user and a task")
	}
	if entry.EndTime.Before(entry.StartTime) {
		return errors.New("time entry ends before it starts")
	}
	entry.CreatedAt = s.now().UTC()
	entry.StartTime = entry.StartTime.UTC()
	entry.EndTime = entry.EndTime.UTC()

	return s.inTx(ctx, "create time entry", func(tx *sqlx.Tx) error {
		if err := s.ensureUsers(ctx, tx, entry.UserID); err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx, `
            INSERT INTO time_entries (created_at, task_id, user_id, duration_hours, description, start_time, end_time)
            VALUES (:created_at, :task_id, :user_id, :duration_hours, :description, :start_time, :end_time);
        `, entry)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error saving time entry", "task_id", entry.TaskID, "user_id", entry.UserID, "error", err)
			return fmt.Errorf("failed to save time entry for task %d: %w", entry.TaskID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read id of time entry: %w", err)
		}
		entry.ID = id
		return nil
	})
}

// ListTimeEntriesForUser lists entries of userID that started at or after since.
func (s *sqlxStore) ListTimeEntriesForUser(ctx context.Context, userID string, since time.Time) ([]model.TimeEntry, error) {
	var entries []model.TimeEntry
	err := s.db.SelectContext(ctx, &entries, `
        SELECT `+timeEntryColumns+` FROM time_entries
        WHERE user_id = ? AND start_time >= ?
        ORDER BY start_time;
    `, userID, since.UTC())
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing time entries", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to list time entries for user %s: %w", userID, err)
	}
	return entries, nil
}

// ListTimeEntriesForTask lists every entry of a task.
func (s *sqlxStore) ListTimeEntriesForTask(ctx context.Context, taskID int64) ([]model.TimeEntry, error) {
	var entries []model.TimeEntry
	err := s.db.SelectContext(ctx, &entries, `
        SELECT `+timeEntryColumns+` FROM time_entries
        WHERE task_id = ?
        ORDER BY start_time;
    `, taskID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing time entries", "task_id", taskID, "error", err)
		return nil, fmt.Errorf("failed to list time entries for task %d: %w", taskID, err)
	}
	return entries, nil
}

// TotalHoursForTask sums the hours logged on a task.
func (s *sqlxStore) TotalHoursForTask(ctx context.Context, taskID int64) (float64, error) {
	var total float64
	err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(duration_hours), 0.0) FROM time_entries WHERE task_id = ?;`, taskID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum hours for task %d: %w", taskID, err)
	}
	return total, nil
}
