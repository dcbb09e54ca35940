package repository

import (
	"context"
	"fmt"
	"time"
)

// IsRevoked reports whether tokenHash is in the revocation set
func (r *Repository) IsRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM revoked_tokens WHERE token_hash = $1)`, tokenHash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return exists, nil
}

// Revoke inserts tokenHash if absent. It reports whether a new record was written.
func (r *Repository) Revoke(ctx context.Context, tokenHash string, revokedAt time.Time) (bool, error) {
	query := `
		INSERT INTO revoked_tokens (token_hash, revoked_at)
		VALUES ($1, $2)
		ON CONFLICT (token_hash) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, tokenHash, revokedAt)
	if err != nil {
		return false, fmt.Errorf("failed to revoke token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}
