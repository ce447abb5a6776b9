package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/recurrence"
)

// CreateRecurringTask stores task as a recurring definition. Its anchor is the
// creation time, so the first instance appears one period later.
func (s *sqlxStore) CreateRecurringTask(ctx context.Context, task *model.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	pattern, err := recurrence.ParsePattern(task.RecurrencePattern.String)
	if err != nil {
		return err
	}
	if task.RecurrenceFrequency < 1 {
		return fmt.Errorf("%w: %d", recurrence.ErrInvalidFrequency, task.RecurrenceFrequency)
	}

	task.IsRecurring = true
	task.RecurrencePattern = sql.NullString{String: string(pattern), Valid: true}
	task.OriginTaskID = sql.NullInt64{}

	return s.inTx(ctx, "create recurring task", func(tx *sqlx.Tx) error {
		if err := s.insertTask(ctx, tx, task); err != nil {
			return err
		}
		task.LastRecurrenceDate = sql.NullTime{Time: task.CreatedAt, Valid: true}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET last_recurrence_date = ? WHERE id = ?;`,
			task.LastRecurrenceDate.Time, task.ID)
		if err != nil {
			return fmt.Errorf("failed to anchor recurring task %d: %w", task.ID, err)
		}
		return nil
	})
}

// UpdateRecurrenceSettings changes how a task recurs. Enabling recurrence on a
// task that was never anchored anchors it now.
func (s *sqlxStore) UpdateRecurrenceSettings(ctx context.Context, id int64, settings RecurrenceSettings) error {
	var pattern sql.NullString
	if settings.Enabled {
		p, err := recurrence.ParsePattern(string(settings.Pattern))
		if err != nil {
			return err
		}
		if settings.Frequency < 1 {
			return fmt.Errorf("%w: %d", recurrence.ErrInvalidFrequency, settings.Frequency)
		}
		pattern = sql.NullString{String: string(p), Valid: true}
	}
	frequency := settings.Frequency
	if frequency < 1 {
		frequency = 1
	}

	now := s.now().UTC()
	res, err := s.db.ExecContext(ctx, `
        UPDATE tasks SET
            is_recurring = ?,
            recurrence_pattern = COALESCE(?, recurrence_pattern),
            recurrence_frequency = ?,
            recurrence_end_date = ?,
            last_recurrence_date = COALESCE(last_recurrence_date, ?),
            updated_at = ?
        WHERE id = ? AND origin_task_id IS NULL;
    `, settings.Enabled, pattern, frequency, nullTime(settings.EndDate), now, now, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating recurrence settings", "task_id", id, "error", err)
		return fmt.Errorf("failed to update recurrence of task %d: %w", id, err)
	}
	return expectOneRow(res, "recurring task", id)
}

// ListActiveRecurring returns recurring definitions that are not cancelled and
// have not ended before now.
func (s *sqlxStore) ListActiveRecurring(ctx context.Context, now time.Time) ([]recurrence.Definition, error) {
	tasks, err := s.selectTasks(ctx, "active recurring tasks", `
        SELECT `+taskColumns+` FROM tasks
        WHERE is_recurring = 1
          AND status != 'cancelled'
          AND (recurrence_end_date IS NULL OR recurrence_end_date >= ?)
        ORDER BY id;
    `, now.UTC())
	if err != nil {
		return nil, err
	}

	defs := make([]recurrence.Definition, 0, len(tasks))
	for i := range tasks {
		defs = append(defs, toDefinition(&tasks[i]))
	}
	return defs, nil
}

// Materialize inserts inst and moves the definition's anchor in one
// transaction. The anchor moves only if it still holds the value def was read
// with; otherwise ErrStaleAnchor is returned and nothing is written.
func (s *sqlxStore) Materialize(ctx context.Context, def recurrence.Definition, inst recurrence.Instance, anchor time.Time) (recurrence.Instance, error) {
	if def.LastRecurrence == nil {
		return recurrence.Instance{}, fmt.Errorf("definition %d has no anchor", def.ID)
	}

	task := fromInstance(inst)
	err := s.inTx(ctx, "materialize recurring instance", func(tx *sqlx.Tx) error {
		if err := s.insertTask(ctx, tx, task); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
            UPDATE tasks SET last_recurrence_date = ?, updated_at = ?
            WHERE id = ? AND is_recurring = 1 AND last_recurrence_date = ?;
        `, anchor.UTC(), s.now().UTC(), def.ID, def.LastRecurrence.UTC())
		if err != nil {
			return fmt.Errorf("failed to advance anchor of definition %d: %w", def.ID, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows for definition %d: %w", def.ID, err)
		}
		if affected != 1 {
			return fmt.Errorf("definition %d: %w", def.ID, ErrStaleAnchor)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrStaleAnchor) {
			s.logger.WarnContext(ctx, "Recurring definition was already advanced, instance discarded", "definition_id", def.ID)
		}
		return recurrence.Instance{}, err
	}

	inst.ID = task.ID
	return inst, nil
}

func toDefinition(t *model.Task) recurrence.Definition {
	def := recurrence.Definition{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Priority:       string(t.Priority),
		Tags:           append([]string(nil), t.Tags...),
		ChannelID:      t.ChannelID,
		CreatorID:      t.CreatorID,
		Assignees:      append([]string(nil), t.Assignees...),
		BaseDueDate:    timePtr(t.DueDate),
		Pattern:        recurrence.Pattern(t.RecurrencePattern.String),
		Frequency:      t.RecurrenceFrequency,
		EndDate:        timePtr(t.RecurrenceEndDate),
		LastRecurrence: timePtr(t.LastRecurrenceDate),
		IsRecurring:    t.IsRecurring,
		IsCancelled:    t.Status == model.StatusCancelled,
	}
	if t.EstimatedHours.Valid {
		h := t.EstimatedHours.Float64
		def.EstimatedHours = &h
	}
	if t.ProjectID.Valid {
		id := t.ProjectID.Int64
		def.ProjectID = &id
	}
	return def
}

func fromInstance(inst recurrence.Instance) *model.Task {
	task := &model.Task{
		Title:        inst.Title,
		Description:  inst.Description,
		Status:       model.TaskStatus(inst.Status),
		Priority:     model.TaskPriority(inst.Priority),
		Tags:         model.Tags(append([]string(nil), inst.Tags...)),
		CreatorID:    inst.CreatorID,
		ChannelID:    inst.ChannelID,
		DueDate:      nullTime(inst.DueDate),
		OriginTaskID: sql.NullInt64{Int64: inst.OriginID, Valid: true},
		Assignees:    append([]string(nil), inst.Assignees...),
	}
	if inst.EstimatedHours != nil {
		task.EstimatedHours = sql.NullFloat64{Float64: *inst.EstimatedHours, Valid: true}
	}
	if inst.ProjectID != nil {
		task.ProjectID = sql.NullInt64{Int64: *inst.ProjectID, Valid: true}
	}
	return task
}
