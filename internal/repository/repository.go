package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Repository provides PostgreSQL operations for users, cards and revoked tokens
type Repository struct {
	db  *sql.DB
	log *logrus.Logger
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB, log *logrus.Logger) *Repository {
	return &Repository{db: db, log: log}
}

// Migrate applies the embedded schema migrations
func Migrate(db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// runInTx executes fn inside a transaction, committing on nil and rolling back
// on error or panic.
func (r *Repository) runInTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.log.Errorf("Failed to roll back transaction after panic: %v", rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Errorf("Failed to roll back transaction: %v (original error: %v)", rbErr, err)
			return fmt.Errorf("error rolling back transaction: %v (original error: %w)", rbErr, err)
		}
		return translatePQError(err, nil)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", translatePQError(err, nil))
	}
	return nil
}
