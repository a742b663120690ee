package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/workstation-scheduler/internal/persistence"
	"github.com/example/workstation-scheduler/internal/scheduler"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool *Pool
}

func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

const userColumns = `id, name, email, role, pin_hash, created_at, updated_at`

// CreateUser inserts a new user into the database
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if err := persistence.ValidateUser(user); err != nil {
		return err
	}

	const query = `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.pool.DB().ExecContext(ctx, query,
		user.ID,
		user.Name,
		normalizeEmail(user.Email),
		string(user.Role),
		user.PINHash,
		formatTimestamp(user.CreatedAt),
		formatTimestamp(user.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create user %s: %w", user.ID, mapError(err))
	}
	return nil
}

// UpdateUser updates an existing user in the database
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if err := persistence.ValidateUser(user); err != nil {
		return err
	}

	const query = `
		UPDATE users
		SET name = ?, email = ?, role = ?, pin_hash = ?, updated_at = ?
		WHERE id = ?`
	result, err := r.pool.DB().ExecContext(ctx, query,
		user.Name,
		normalizeEmail(user.Email),
		string(user.Role),
		user.PINHash,
		formatTimestamp(user.UpdatedAt),
		user.ID,
	)
	if err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, mapError(err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetUser retrieves a user by ID from the database
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}

	const query = `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	user, err := scanUser(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.User{}, persistence.ErrNotFound
		}
		return persistence.User{}, mapError(err)
	}
	return user, nil
}

// ListUsers retrieves all users ordered by name
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users ORDER BY name ASC, id ASC`

	rows, err := r.pool.DB().QueryContext(ctx, query)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var users []persistence.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (persistence.User, error) {
	var (
		user                 persistence.User
		role                 string
		createdAt, updatedAt string
	)
	if err := row.Scan(&user.ID, &user.Name, &user.Email, &role, &user.PINHash, &createdAt, &updatedAt); err != nil {
		return persistence.User{}, err
	}
	user.Role = scheduler.Role(role)

	var err error
	if user.CreatedAt, err = parseTimestamp(createdAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if user.UpdatedAt, err = parseTimestamp(updatedAt); err != nil {
		return persistence.User{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return user, nil
}

// normalizeEmail normalizes email addresses for consistent storage
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
