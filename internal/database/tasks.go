package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/taskbot/internal/model"
)

const taskColumns = `id, created_at, updated_at, title, description, status, priority, tags,
        estimated_hours, project_id, creator_id, channel_id, message_id, due_date, completed_at,
        is_recurring, recurrence_pattern, recurrence_frequency, recurrence_end_date,
        last_recurrence_date, origin_task_id`

const insertTaskQuery = `
        INSERT INTO tasks (created_at, updated_at, title, description, status, priority, tags,
            estimated_hours, project_id, creator_id, channel_id, message_id, due_date, completed_at,
            is_recurring, recurrence_pattern, recurrence_frequency, recurrence_end_date,
            last_recurrence_date, origin_task_id)
        VALUES (:created_at, :updated_at, :title, :description, :status, :priority, :tags,
            :estimated_hours, :project_id, :creator_id, :channel_id, :message_id, :due_date, :completed_at,
            :is_recurring, :recurrence_pattern, :recurrence_frequency, :recurrence_end_date,
            :last_recurrence_date, :origin_task_id);
    `

// CreateTask inserts task with its assignees and sets its ID and timestamps.
func (s *sqlxStore) CreateTask(ctx context.Context, task *model.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	return s.inTx(ctx, "create task", func(tx *sqlx.Tx) error {
		return s.insertTask(ctx, tx, task)
	})
}

// insertTask writes task and its assignees using tx.
func (s *sqlxStore) insertTask(ctx context.Context, tx *sqlx.Tx, task *model.Task) error {
	now := s.now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	normalizeTask(task)

	if err := s.ensureUsers(ctx, tx, append([]string{task.CreatorID}, task.Assignees...)...); err != nil {
		return err
	}

	res, err := tx.NamedExecContext(ctx, insertTaskQuery, task)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error inserting task", "title", task.Title, "error", err)
		return fmt.Errorf("failed to insert task %q: %w", task.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read id of task %q: %w", task.Title, err)
	}
	task.ID = id

	if err := s.replaceAssignees(ctx, tx, id, task.Assignees); err != nil {
		return err
	}

	s.logger.DebugContext(ctx, "Task saved", "task_id", id, "recurring", task.IsRecurring, "origin_task_id", task.OriginTaskID.Int64)
	return nil
}

// GetTask retrieves a task with its assignees.
func (s *sqlxStore) GetTask(ctx context.Context, id int64) (*model.Task, error) {
	var task model.Task
	err := s.db.GetContext(ctx, &task, `SELECT `+taskColumns+` FROM tasks WHERE id = ?;`, id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting task", "task_id", id, "error", err)
		return nil, fmt.Errorf("failed to get task %d: %w", id, err)
	}

	tasks := []model.Task{task}
	if err := s.loadAssignees(ctx, s.db, tasks); err != nil {
		return nil, err
	}
	return &tasks[0], nil
}

// UpdateTask saves the editable fields of task. Status, assignees and
// recurrence have their own operations.
func (s *sqlxStore) UpdateTask(ctx context.Context, task *model.Task) error {
	if err := validateTask(task); err != nil {
		return err
	}
	task.UpdatedAt = s.now().UTC()
	normalizeTask(task)

	res, err := s.db.NamedExecContext(ctx, `
        UPDATE tasks SET
            title = :title,
            description = :description,
            priority = :priority,
            tags = :tags,
            estimated_hours = :estimated_hours,
            project_id = :project_id,
            message_id = :message_id,
            due_date = :due_date,
            updated_at = :updated_at
        WHERE id = :id;
    `, task)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating task", "task_id", task.ID, "error", err)
		return fmt.Errorf("failed to update task %d: %w", task.ID, err)
	}
	return expectOneRow(res, "task", task.ID)
}

// UpdateTaskStatus moves a task to status.
func (s *sqlxStore) UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus, now time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("invalid task status %q", status)
	}
	var completedAt sql.NullTime
	if status == model.StatusDone {
		completedAt = sql.NullTime{Time: now.UTC(), Valid: true}
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, completed_at = ?, updated_at = ? WHERE id = ?;`,
		status, completedAt, now.UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error updating task status", "task_id", id, "status", status, "error", err)
		return fmt.Errorf("failed to update status of task %d: %w", id, err)
	}
	return expectOneRow(res, "task", id)
}

// AssignUsers replaces the assignees of a task.
func (s *sqlxStore) AssignUsers(ctx context.Context, taskID int64, userIDs []string) error {
	return s.inTx(ctx, "assign users", func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT COUNT(*) FROM tasks WHERE id = ?;`, taskID); err != nil {
			return fmt.Errorf("failed to check task %d: %w", taskID, err)
		}
		if exists == 0 {
			return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		if err := s.ensureUsers(ctx, tx, userIDs...); err != nil {
			return err
		}
		if err := s.replaceAssignees(ctx, tx, taskID, userIDs); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `UPDATE tasks SET updated_at = ? WHERE id = ?;`, s.now().UTC(), taskID)
		if err != nil {
			return fmt.Errorf("failed to touch task %d: %w", taskID, err)
		}
		return nil
	})
}

// DeleteTask removes a task. Assignees and time entries go with it; instances
// spawned from it keep existing without an origin.
func (s *sqlxStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?;`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deleting task", "task_id", id, "error", err)
		return fmt.Errorf("failed to delete task %d: %w", id, err)
	}
	return expectOneRow(res, "task", id)
}

// ListTasksForUser lists tasks assigned to userID, most urgent due date first.
func (s *sqlxStore) ListTasksForUser(ctx context.Context, userID string, status model.TaskStatus) ([]model.Task, error) {
	query := `SELECT ` + prefixed("t", taskColumns) + `
        FROM tasks t
        JOIN task_assignees a ON a.task_id = t.id
        WHERE a.user_id = ?`
	args := []any{userID}
	if status == "" {
		query += ` AND t.status NOT IN ('done', 'cancelled')`
	} else {
		query += ` AND t.status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY t.due_date IS NULL, t.due_date, t.id;`

	return s.selectTasks(ctx, "tasks for user", query, args...)
}

// ListTasksForProject lists every task of a project.
func (s *sqlxStore) ListTasksForProject(ctx context.Context, projectID int64) ([]model.Task, error) {
	return s.selectTasks(ctx, "tasks for project", `
        SELECT `+taskColumns+` FROM tasks
        WHERE project_id = ?
        ORDER BY status IN ('done', 'cancelled'), due_date IS NULL, due_date, id;
    `, projectID)
}

// SearchTasks matches query against titles and descriptions.
func (s *sqlxStore) SearchTasks(ctx context.Context, query string, limit int) ([]model.Task, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}
	if limit <= 0 || limit > 50 {
		limit = 25
	}
	return s.selectTasks(ctx, "search tasks", `
        SELECT `+taskColumns+` FROM tasks
        WHERE title LIKE ? OR description LIKE ?
        ORDER BY updated_at DESC
        LIMIT ?;
    `, likePattern(query), likePattern(query), limit)
}

// ListOverdueTasks lists open, non-recurring tasks whose due date is before now.
func (s *sqlxStore) ListOverdueTasks(ctx context.Context, now time.Time) ([]model.Task, error) {
	return s.selectTasks(ctx, "overdue tasks", `
        SELECT `+taskColumns+` FROM tasks
        WHERE due_date IS NOT NULL AND due_date < ?
          AND status NOT IN ('done', 'cancelled')
          AND is_recurring = 0
        ORDER BY due_date, id;
    `, now.UTC())
}

// ListTasksDueBetween lists open, non-recurring tasks due in [from, to).
func (s *sqlxStore) ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]model.Task, error) {
	return s.selectTasks(ctx, "tasks due between", `
        SELECT `+taskColumns+` FROM tasks
        WHERE due_date IS NOT NULL AND due_date >= ? AND due_date < ?
          AND status NOT IN ('done', 'cancelled')
          AND is_recurring = 0
        ORDER BY due_date, id;
    `, from.UTC(), to.UTC())
}

// Stats gathers the counters shown in the admin report.
func (s *sqlxStore) Stats(ctx context.Context, now time.Time) (*TaskStats, error) {
	var rows []struct {
		Status model.TaskStatus `db:"status"`
		N      int              `db:"n"`
	}
	if err := s.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS n FROM tasks GROUP BY status;`); err != nil {
		return nil, fmt.Errorf("failed to count tasks by status: %w", err)
	}

	stats := &TaskStats{ByStatus: make(map[model.TaskStatus]int, len(rows))}
	for _, r := range rows {
		stats.ByStatus[r.Status] = r.N
	}

	counters := []struct {
		dst   *int
		query string
		args  []any
	}{
		{&stats.Recurring, `SELECT COUNT(*) FROM tasks WHERE is_recurring = 1 AND status != 'cancelled';`, nil},
		{&stats.Overdue, `SELECT COUNT(*) FROM tasks WHERE due_date IS NOT NULL AND due_date < ? AND status NOT IN ('done', 'cancelled') AND is_recurring = 0;`, []any{now.UTC()}},
		{&stats.Users, `SELECT COUNT(*) FROM users;`, nil},
		{&stats.Projects, `SELECT COUNT(*) FROM projects WHERE is_active = 1;`, nil},
	}
	for _, c := range counters {
		if err := s.db.GetContext(ctx, c.dst, c.query, c.args...); err != nil {
			return nil, fmt.Errorf("failed to gather stats: %w", err)
		}
	}
	return stats, nil
}

func (s *sqlxStore) selectTasks(ctx context.Context, what, query string, args ...any) ([]model.Task, error) {
	var tasks []model.Task
	err := s.db.SelectContext(ctx, &tasks, query, args...)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.logger.WarnContext(ctx, "Context timeout or cancellation while listing tasks", "query", what, "error", err)
		return nil, err
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing tasks", "query", what, "error", err)
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	if err := s.loadAssignees(ctx, s.db, tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// loadAssignees fills the Assignees of every task in place.
func (s *sqlxStore) loadAssignees(ctx context.Context, q sqlx.QueryerContext, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ids := make([]int64, len(tasks))
	for i := range tasks {
		ids[i] = tasks[i].ID
	}

	query, args, err := sqlx.In(`
        SELECT task_id, user_id FROM task_assignees
        WHERE task_id IN (?)
        ORDER BY assigned_at, user_id;
    `, ids)
	if err != nil {
		return fmt.Errorf("failed to build assignee query: %w", err)
	}

	var rows []struct {
		TaskID int64  `db:"task_id"`
		UserID string `db:"user_id"`
	}
	if err := sqlx.SelectContext(ctx, q, &rows, s.db.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Error loading task assignees", "task_count", len(tasks), "error", err)
		return fmt.Errorf("failed to load task assignees: %w", err)
	}

	byTask := make(map[int64][]string, len(tasks))
	for _, r := range rows {
		byTask[r.TaskID] = append(byTask[r.TaskID], r.UserID)
	}
	for i := range tasks {
		tasks[i].Assignees = byTask[tasks[i].ID]
	}
	return nil
}

func (s *sqlxStore) replaceAssignees(ctx context.Context, tx *sqlx.Tx, taskID int64, userIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_assignees WHERE task_id = ?;`, taskID); err != nil {
		return fmt.Errorf("failed to clear assignees of task %d: %w", taskID, err)
	}
	now := s.now().UTC()
	for _, uid := range userIDs {
		if uid == "" {
			continue
		}
		_, err := tx.ExecContext(ctx, `
            INSERT INTO task_assignees (task_id, user_id, assigned_at) VALUES (?, ?, ?)
            ON CONFLICT (task_id, user_id) DO NOTHING;
        `, taskID, uid, now)
		if err != nil {
			return fmt.Errorf("failed to assign user %s to task %d: %w", uid, taskID, err)
		}
	}
	return nil
}

func validateTask(task *model.Task) error {
	if task == nil {
		return errors.New("cannot save nil task")
	}
	if strings.TrimSpace(task.Title) == "" {
		return errors.New("task must have a title")
	}
	if task.CreatorID == "" {
		return errors.New("task must have a creator")
	}
	if task.Status != "" && !task.Status.Valid() {
		return fmt.Errorf("invalid task status %q", task.Status)
	}
	if task.Priority != "" && !task.Priority.Valid() {
		return fmt.Errorf("invalid task priority %q", task.Priority)
	}
	return nil
}

// normalizeTask fills defaults and moves every timestamp to UTC.
func normalizeTask(task *model.Task) {
	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.Priority == "" {
		task.Priority = model.PriorityMedium
	}
	if task.Tags == nil {
		task.Tags = model.Tags{}
	}
	if task.RecurrenceFrequency <= 0 {
		task.RecurrenceFrequency = 1
	}
	for _, nt := range []*sql.NullTime{&task.DueDate, &task.CompletedAt, &task.RecurrenceEndDate, &task.LastRecurrenceDate} {
		if nt.Valid {
			nt.Time = nt.Time.UTC()
		}
	}
}

// prefixed qualifies a comma separated column list with alias.
func prefixed(alias, columns string) string {
	parts := strings.Split(columns, ",")
	for i, p := range parts {
		parts[i] = alias + "." + strings.TrimSpace(p)
	}
	return strings.Join(parts, ", ")
}
