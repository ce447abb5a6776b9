package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/taskbot/internal/model"
)

// EnsureUser records discordID if it is not known yet.
func (s *sqlxStore) EnsureUser(ctx context.Context, discordID string) error {
	if discordID == "" {
		return errors.New("discord id cannot be empty")
	}
	if err := s.ensureUsers(ctx, s.db, discordID); err != nil {
		s.logger.ErrorContext(ctx, "Error ensuring user", "user_id", discordID, "error", err)
		return err
	}
	return nil
}

// GetUser retrieves a user by Discord id.
func (s *sqlxStore) GetUser(ctx context.Context, discordID string) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user, `
        SELECT discord_id, timezone, is_active, created_at, updated_at
        FROM users WHERE discord_id = ?;
    `, discordID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("user %s: %w", discordID, ErrNotFound)
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user", "user_id", discordID, "error", err)
		return nil, fmt.Errorf("failed to get user %s: %w", discordID, err)
	}
	return &user, nil
}

// SetUserTimezone stores the preferred IANA timezone of a user, creating the
// user record when needed.
func (s *sqlxStore) SetUserTimezone(ctx context.Context, discordID, timezone string) error {
	return s.inTx(ctx, "set user timezone", func(tx *sqlx.Tx) error {
		if err := s.ensureUsers(ctx, tx, discordID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE users SET timezone = ?, updated_at = ? WHERE discord_id = ?;`,
			timezone, s.now().UTC(), discordID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Error setting user timezone", "user_id", discordID, "error", err)
			return fmt.Errorf("failed to set timezone for user %s: %w", discordID, err)
		}
		return nil
	})
}

// CountUsers returns the number of known users.
func (s *sqlxStore) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM users;`); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}
