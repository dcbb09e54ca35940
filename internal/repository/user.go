package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const userColumns = `id, email, first_name, last_name, password_hash, roles, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var roles []string
	err := row.Scan(&user.ID, &user.Email, &user.FirstName, &user.LastName, &user.PasswordHash,
		pq.Array(&roles), &user.CreatedAt)
	if err != nil {
		return nil, err
	}
	user.Roles = make([]models.Role, 0, len(roles))
	for _, r := range roles {
		user.Roles = append(user.Roles, models.Role(r))
	}
	return user, nil
}

func roleStrings(roles []models.Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		out = append(out, string(r))
	}
	return out
}

// CreateUser creates a new user in the database
func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, email, first_name, last_name, password_hash, roles, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP)
		RETURNING created_at`
	err := r.db.QueryRowContext(ctx, query, user.ID, user.Email, user.FirstName, user.LastName,
		user.PasswordHash, pq.Array(roleStrings(user.Roles))).Scan(&user.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", translatePQError(err, ErrEmailExists))
	}
	return nil
}

// FindUserByID retrieves a user by id
func (r *Repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// FindUserByEmail retrieves a user by email, ignoring case
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// ListUsers returns one page of users ordered by email
func (r *Repository) ListUsers(ctx context.Context, page models.PageRequest) (models.Page[models.User], error) {
	page = page.Normalize()
	result := models.Page[models.User]{Items: []models.User{}, Page: page.Page, Size: page.Size}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("failed to count users: %w", err)
	}

	query := `SELECT ` + userColumns + ` FROM users ORDER BY email LIMIT $1 OFFSET $2`
	rows, err := r.db.QueryContext(ctx, query, page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return result, fmt.Errorf("failed to scan user: %w", err)
		}
		result.Items = append(result.Items, *user)
	}
	if err := rows.Err(); err != nil {
		return result, fmt.Errorf("failed to list users: %w", err)
	}
	return result, nil
}

// UpdateUserRoles replaces the roles of a user
func (r *Repository) UpdateUserRoles(ctx context.Context, id uuid.UUID, roles []models.Role) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET roles = $2 WHERE id = $1`, id, pq.Array(roleStrings(roles)))
	if err != nil {
		return fmt.Errorf("failed to update user roles: %w", err)
	}
	return requireAffected(res, ErrUserNotFound)
}

// DeleteUser removes a user and, by cascade, their cards
func (r *Repository) DeleteUser(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return requireAffected(res, ErrUserNotFound)
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
