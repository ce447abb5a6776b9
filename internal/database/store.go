package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/taskbot/internal/model"
	"github.com/edgard/taskbot/internal/recurrence"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStaleAnchor is returned by Materialize when the definition's anchor
	// changed since it was read, meaning another writer already fired it.
	ErrStaleAnchor = errors.New("recurrence anchor changed concurrently")
)

// RecurrenceSettings are the user editable recurrence fields of a definition.
type RecurrenceSettings struct {
	Pattern   recurrence.Pattern
	Frequency int
	EndDate   *time.Time
	Enabled   bool
}

// TaskStats summarizes task and user counts for the admin report.
type TaskStats struct {
	ByStatus  map[model.TaskStatus]int
	Recurring int
	Overdue   int
	Users     int
	Projects  int
}

// Store defines the interface for database operations.
type Store interface {
	recurrence.Repository

	// Ping checks the database connection.
	Ping(ctx context.Context) error
	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
	// DatabaseSize returns the size of the database file in bytes.
	DatabaseSize(ctx context.Context) (int64, error)

	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, id int64) (*model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	// UpdateTaskStatus sets completed_at when the task closes and clears it otherwise.
	UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus, now time.Time) error
	// AssignUsers replaces the assignee set of a task.
	AssignUsers(ctx context.Context, taskID int64, userIDs []string) error
	DeleteTask(ctx context.Context, id int64) error
	// ListTasksForUser lists tasks assigned to userID. An empty status lists
	// every open task.
	ListTasksForUser(ctx context.Context, userID string, status model.TaskStatus) ([]model.Task, error)
	ListTasksForProject(ctx context.Context, projectID int64) ([]model.Task, error)
	SearchTasks(ctx context.Context, query string, limit int) ([]model.Task, error)
	ListOverdueTasks(ctx context.Context, now time.Time) ([]model.Task, error)
	// ListTasksDueBetween lists open tasks due in [from, to).
	ListTasksDueBetween(ctx context.Context, from, to time.Time) ([]model.Task, error)
	Stats(ctx context.Context, now time.Time) (*TaskStats, error)

	// CreateRecurringTask stores a recurring definition anchored at its creation time.
	CreateRecurringTask(ctx context.Context, task *model.Task) error
	UpdateRecurrenceSettings(ctx context.Context, id int64, settings RecurrenceSettings) error

	CreateProject(ctx context.Context, project *model.Project) error
	GetProject(ctx context.Context, id int64) (*model.Project, error)
	GetProjectByChannel(ctx context.Context, channelID string) (*model.Project, error)
	ListProjects(ctx context.Context, includeInactive bool) ([]model.Project, error)
	UpdateProject(ctx context.Context, project *model.Project) error
	AddProjectMember(ctx context.Context, projectID int64, userID string) error
	RemoveProjectMember(ctx context.Context, projectID int64, userID string) error
	ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error)
	DeactivateProject(ctx context.Context, id int64) error
	SearchProjects(ctx context.Context, query string, limit int) ([]model.Project, error)

	// EnsureUser records a Discord identity reference if it is not known yet.
	EnsureUser(ctx context.Context, discordID string) error
	GetUser(ctx context.Context, discordID string) (*model.User, error)
	SetUserTimezone(ctx context.Context, discordID, timezone string) error
	CountUsers(ctx context.Context) (int, error)

	CreateTimeEntry(ctx context.Context, entry *model.TimeEntry) error
	ListTimeEntriesForUser(ctx context.Context, userID string, since time.Time) ([]model.TimeEntry, error)
	ListTimeEntriesForTask(ctx context.Context, taskID int64) ([]model.TimeEntry, error)
	TotalHoursForTask(ctx context.Context, taskID int64) (float64, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a new Store backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
		now:    time.Now,
	}
}

// Ping checks the database connection.
func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// DatabaseSize returns the number of bytes held by the database pages.
func (s *sqlxStore) DatabaseSize(ctx context.Context) (int64, error) {
	var size int64
	err := s.db.GetContext(ctx, &size, `SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size();`)
	if err != nil {
		return 0, fmt.Errorf("failed to read database size: %w", err)
	}
	return size, nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM cannot run inside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)

	default:
		s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	}

	return nil
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *sqlxStore) inTx(ctx context.Context, op string, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction", "op", op, "error", err)
		return fmt.Errorf("failed to begin transaction for %s: %w", op, err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "op", op, "error", rollbackErr)
				}
			}
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "op", op, "error", err)
		return fmt.Errorf("failed to commit transaction for %s: %w", op, err)
	}
	tx = nil
	return nil
}

// ensureUsers inserts identity references for ids that are not stored yet.
func (s *sqlxStore) ensureUsers(ctx context.Context, ex sqlx.ExecerContext, ids ...string) error {
	now := s.now().UTC()
	for _, id := range ids {
		if id == "" {
			continue
		}
		_, err := ex.ExecContext(ctx, `
            INSERT INTO users (discord_id, timezone, is_active, created_at, updated_at)
            VALUES (?, '', 1, ?, ?)
            ON CONFLICT (discord_id) DO NOTHING;
        `, id, now, now)
		if err != nil {
			return fmt.Errorf("failed to ensure user %s: %w", id, err)
		}
	}
	return nil
}

// expectOneRow maps zero affected rows to ErrNotFound.
func expectOneRow(res sql.Result, what string, id any) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for %s %v: %w", what, id, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func likePattern(q string) string {
	return "%" + q + "%"
}
