// ABOUTME: Account persistence: create, look up and re-address users
// ABOUTME: Operates on whichever tenant is in scope, normally the default one

package store

import (
	"context"
	"fmt"
	"time"
)

// CreateUser inserts a user. Returns ErrDuplicateUser if the email is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO users (id, email, password_hash, created_at)
		VALUES (?, ?, ?, ?)
	`,
		user.ID,
		user.Email,
		user.PasswordHash,
		user.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID)
	return nil
}

// GetUserByEmail retrieves a user by email.
// Returns ErrNotFound if no user has that email.
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	db, err := s.db(ctx)
	if err != nil {
		return nil, err
	}

	var (
		user         User
		createdAtStr string
	)
	err = db.QueryRowContext(ctx, `
		SELECT id, email, password_hash, created_at
		FROM users
		WHERE email = ?
	`, email).Scan(&user.ID, &user.Email, &user.PasswordHash, &createdAtStr)
	if err != nil {
		return nil, notFound(err)
	}

	user.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &user, nil
}

// UserExists reports whether a user with email exists.
func (s *SQLiteStore) UserExists(ctx context.Context, email string) (bool, error) {
	db, err := s.db(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	err = db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE email = ?)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking user: %w", err)
	}
	return exists, nil
}

// UpdateUserEmail changes a user's email. Returns ErrNotFound if oldEmail is
// unknown and ErrDuplicateUser if newEmail is taken.
func (s *SQLiteStore) UpdateUserEmail(ctx context.Context, oldEmail, newEmail string) error {
	db, err := s.db(ctx)
	if err != nil {
		return err
	}

	res, err := db.ExecContext(ctx, `UPDATE users SET email = ? WHERE email = ?`, newEmail, oldEmail)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicateUser
		}
		return fmt.Errorf("updating user email: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
