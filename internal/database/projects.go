package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	sqlitedrv "modernc.org/sqlite"
	sqlitelib "modernc.org/sqlite/lib"

	"github.com/edgard/taskbot/internal/model"
)

// ErrDuplicate is returned when a unique name or membership already exists.
var ErrDuplicate = errors.New("already exists")

const projectColumns = `id, created_at, updated_at, name, description, channel_id, color, is_active`

// CreateProject inserts an active project and sets its ID and timestamps.
func (s *sqlxStore) CreateProject(ctx context.Context, project *model.Project) error {
	if err := validateProject(project); err != nil {
		return err
	}
	now := s.now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	project.IsActive = true
	if project.Color == "" {
		project.Color = model.DefaultProjectColor
	}

	return s.inTx(ctx, "create project", func(tx *sqlx.Tx) error {
		res, err := tx.NamedExecContext(ctx, `
            INSERT INTO projects (created_at, updated_at, name, description, channel_id, color, is_active)
            VALUES (:created_at, :updated_at, :name, :description, :channel_id, :color, :is_active);
        `, project)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("project %q: %w", project.Name, ErrDuplicate)
			}
			s.logger.ErrorContext(ctx, "Error inserting project", "name", project.Name, "error", err)
			return fmt.Errorf("failed to insert project %q: %w", project.Name, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read id of project %q: %w", project.Name, err)
		}
		project.ID = id

		for _, uid := range project.Members {
			if err := s.addMember(ctx, tx, id, uid); err != nil && !errors.Is(err, ErrDuplicate) {
				return err
			}
		}
		return nil
	})
}

// GetProject retrieves a project with its members.
func (s *sqlxStore) GetProject(ctx context.Context, id int64) (*model.Project, error) {
	return s.getProject(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?;`, id)
}

// GetProjectByChannel retrieves the active project bound to channelID.
func (s *sqlxStore) GetProjectByChannel(ctx context.Context, channelID string) (*model.Project, error) {
	if channelID == "" {
		return nil, fmt.Errorf("project for empty channel: %w", ErrNotFound)
	}
	return s.getProject(ctx, `
        SELECT `+projectColumns+` FROM projects
        WHERE channel_id = ? AND is_active = 1
        ORDER BY id LIMIT 1;
    `, channelID)
}

func (s *sqlxStore) getProject(ctx context.Context, query string, arg any) (*model.Project, error) {
	var project model.Project
	err := s.db.GetContext(ctx, &project, query, arg)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("project %v: %w", arg, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting project", "key", arg, "error", err)
		return nil, fmt.Errorf("failed to get project %v: %w", arg, err)
	}

	projects := []model.Project{project}
	if err := s.loadMembers(ctx, projects); err != nil {
		return nil, err
	}
	return &projects[0], nil
}

// ListProjects lists projects by name.
func (s *sqlxStore) ListProjects(ctx context.Context, includeInactive bool) ([]model.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	if !includeInactive {
		query += ` WHERE is_active = 1`
	}
	query += ` ORDER BY name COLLATE NOCASE;`
	return s.selectProjects(ctx, "projects", query)
}

// UpdateProject saves name, description, channel and color.
func (s *sqlxStore) UpdateProject(ctx context.Context, project *model.Project) error {
	if err := validateProject(project); err != nil {
		return err
	}
	project.UpdatedAt = s.now().UTC()

	res, err := s.db.NamedExecContext(ctx, `
        UPDATE projects SET
            name = :name,
            description = :description,
            channel_id = :channel_id,
            color = :color,
            updated_at = :updated_at
        WHERE id = :id;
    `, project)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("project %q: %w", project.Name, ErrDuplicate)
		}
		s.logger.ErrorContext(ctx, "Error updating project", "project_id", project.ID, "error", err)
		return fmt.Errorf("failed to update project %d: %w", project.ID, err)
	}
	return expectOneRow(res, "project", project.ID)
}

// AddProjectMember adds userID to a project. ErrDuplicate is returned when the
// user is already a member.
func (s *sqlxStore) AddProjectMember(ctx context.Context, projectID int64, userID string) error {
	return s.inTx(ctx, "add project member", func(tx *sqlx.Tx) error {
		var active bool
		err := tx.GetContext(ctx, &active, `SELECT is_active FROM projects WHERE id = ?;`, projectID)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !active) {
			return fmt.Errorf("project %d: %w", projectID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("failed to check project %d: %w", projectID, err)
		}
		return s.addMember(ctx, tx, projectID, userID)
	})
}

func (s *sqlxStore) addMember(ctx context.Context, tx *sqlx.Tx, projectID int64, userID string) error {
	if err := s.ensureUsers(ctx, tx, userID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
        INSERT INTO project_members (project_id, user_id, joined_at) VALUES (?, ?, ?)
        ON CONFLICT (project_id, user_id) DO NOTHING;
    `, projectID, userID, s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to add user %s to project %d: %w", userID, projectID, err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("member %s of project %d: %w", userID, projectID, ErrDuplicate)
	}
	return nil
}

// RemoveProjectMember removes userID from a project.
func (s *sqlxStore) RemoveProjectMember(ctx context.Context, projectID int64, userID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id = ? AND user_id = ?;`, projectID, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error removing project member", "project_id", projectID, "user_id", userID, "error", err)
		return fmt.Errorf("failed to remove user %s from project %d: %w", userID, projectID, err)
	}
	return expectOneRow(res, "project member", userID)
}

// ListProjectsForUser lists the active projects userID belongs to.
func (s *sqlxStore) ListProjectsForUser(ctx context.Context, userID string) ([]model.Project, error) {
	return s.selectProjects(ctx, "projects for user", `
        SELECT `+prefixed("p", projectColumns)+`
        FROM projects p
        JOIN project_members m ON m.project_id = p.id
        WHERE m.user_id = ? AND p.is_active = 1
        ORDER BY p.name COLLATE NOCASE;
    `, userID)
}

// DeactivateProject hides a project from listings. Its tasks are kept.
func (s *sqlxStore) DeactivateProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE projects SET is_active = 0, updated_at = ? WHERE id = ? AND is_active = 1;`, s.now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deactivating project", "project_id", id, "error", err)
		return fmt.Errorf("failed to deactivate project %d: %w", id, err)
	}
	return expectOneRow(res, "project", id)
}

// SearchProjects matches query against active project names and descriptions.
func (s *sqlxStore) SearchProjects(ctx context.Context, query string, limit int) ([]model.Project, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("search query cannot be empty")
	}
	if limit <= 0 || limit > 50 {
		limit = 25
	}
	return s.selectProjects(ctx, "search projects", `
        SELECT `+projectColumns+` FROM projects
        WHERE is_active = 1 AND (name LIKE ? OR description LIKE ?)
        ORDER BY name COLLATE NOCASE
        LIMIT ?;
    `, likePattern(query), likePattern(query), limit)
}

func (s *sqlxStore) selectProjects(ctx context.Context, what, query string, args ...any) ([]model.Project, error) {
	var projects []model.Project
	if err := s.db.SelectContext(ctx, &projects, query, args...); err != nil {
		s.logger.ErrorContext(ctx, "Error listing projects", "query", what, "error", err)
		return nil, fmt.Errorf("failed to list %s: %w", what, err)
	}
	if err := s.loadMembers(ctx, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (s *sqlxStore) loadMembers(ctx context.Context, projects []model.Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]int64, len(projects))
	for i := range projects {
		ids[i] = projects[i].ID
	}

	query, args, err := sqlx.In(`
        SELECT project_id, user_id FROM project_members
        WHERE project_id IN (?)
        ORDER BY joined_at, user_id;
    `, ids)
	if err != nil {
		return fmt.Errorf("failed to build member query: %w", err)
	}

	var rows []struct {
		ProjectID int64  `db:"project_id"`
		UserID    string `db:"user_id"`
	}
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("failed to load project members: %w", err)
	}

	byProject := make(map[int64][]string, len(projects))
	for _, r := range rows {
		byProject[r.ProjectID] = append(byProject[r.ProjectID], r.UserID)
	}
	for i := range projects {
		projects[i].Members = byProject[projects[i].ID]
	}
	return nil
}

func validateProject(project *model.Project) error {
	if project == nil {
		return errors.New("cannot save nil project")
	}
	if strings.TrimSpace(project.Name) == "" {
		return errors.New("project must have a name")
	}
	if project.Color != "" && !model.ValidColor(project.Color) {
		return fmt.Errorf("invalid project color %q", project.Color)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlitedrv.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlitelib.SQLITE_CONSTRAINT_UNIQUE:
		return true
	case sqlitelib.SQLITE_CONSTRAINT:
		return strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
