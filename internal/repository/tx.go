package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/google/uuid"
)

// CardTx is the unit of work used for balance mutation. Cards loaded through
// LockCard stay locked until the surrounding transaction ends.
type CardTx interface {
	LockCard(ctx context.Context, id, ownerID uuid.UUID) (*models.Card, error)
	SaveCard(ctx context.Context, card *models.Card) error
}

type pgCardTx struct {
	tx *sql.Tx
}

// LockCard loads a card owned by ownerID with a row lock (SELECT ... FOR UPDATE).
func (t *pgCardTx) LockCard(ctx context.Context, id, ownerID uuid.UUID) (*models.Card, error) {
	query := `SELECT ` + cardColumns + cardFrom + ` WHERE c.id = $1 AND c.owner_id = $2 FOR UPDATE OF c`
	card, err := scanCard(t.tx.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock card: %w", translatePQError(err, nil))
	}
	return card, nil
}

// SaveCard writes status, expiry and balance of a locked card.
func (t *pgCardTx) SaveCard(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE cards SET status = $2, expiry = $3, balance = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	res, err := t.tx.ExecContext(ctx, query, card.ID, string(card.Status), card.Expiry, card.Balance)
	if err != nil {
		return fmt.Errorf("failed to save card: %w", translatePQError(err, nil))
	}
	return requireAffected(res, ErrCardNotFound)
}

// WithinCardTx runs fn in one database transaction. All card changes made
// through the CardTx commit together or not at all.
func (r *Repository) WithinCardTx(ctx context.Context, fn func(ctx context.Context, tx CardTx) error) error {
	return r.runInTx(ctx, func(tx *sql.Tx) error {
		return fn(ctx, &pgCardTx{tx: tx})
	})
}
