package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const cardColumns = `c.id, c.owner_id, u.email, c.number_ciphertext, c.last4, c.expiry, c.status,
	c.balance, c.created_at, c.updated_at`

const cardFrom = ` FROM cards c JOIN users u ON u.id = c.owner_id`

func scanCard(row rowScanner) (*models.Card, error) {
	card := &models.Card{}
	var status string
	err := row.Scan(&card.ID, &card.OwnerID, &card.OwnerEmail, &card.NumberCiphertext, &card.Last4,
		&card.Expiry, &status, &card.Balance, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return nil, err
	}
	card.Status = models.CardStatus(status)
	card.Expiry = card.Expiry.UTC()
	return card, nil
}

func (r *Repository) queryCards(ctx context.Context, query string, args ...any) ([]models.Card, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []models.Card{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// CreateCard inserts a new card
func (r *Repository) CreateCard(ctx context.Context, card *models.Card) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	query := `
		INSERT INTO cards (id, owner_id, number_ciphertext, last4, expiry, status, balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query, card.ID, card.OwnerID, card.NumberCiphertext, card.Last4,
		card.Expiry, string(card.Status), card.Balance).Scan(&card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create card: %w", translatePQError(err, nil))
	}
	return nil
}

// FindCardByID retrieves a card by id regardless of owner
func (r *Repository) FindCardByID(ctx context.Context, id uuid.UUID) (*models.Card, error) {
	card, err := scanCard(r.db.QueryRowContext(ctx, `SELECT `+cardColumns+cardFrom+` WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// FindCardByIDAndOwner retrieves a card only if it belongs to ownerID
func (r *Repository) FindCardByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Card, error) {
	query := `SELECT ` + cardColumns + cardFrom + ` WHERE c.id = $1 AND c.owner_id = $2`
	card, err := scanCard(r.db.QueryRowContext(ctx, query, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find card: %w", err)
	}
	return card, nil
}

// ListCardsByOwner returns one page of an owner's cards, optionally filtered by status
func (r *Repository) ListCardsByOwner(ctx context.Context, ownerID uuid.UUID, status *models.CardStatus,
	page models.PageRequest) (models.Page[models.Card], error) {
	page = page.Normalize()
	result := models.Page[models.Card]{Items: []models.Card{}, Page: page.Page, Size: page.Size}
	statusArg := nullStatus(status)

	where := ` WHERE c.owner_id = $1 AND ($2::text IS NULL OR c.status = $2)`
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+cardFrom+where, ownerID, statusArg).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("failed to count cards: %w", err)
	}

	query := `SELECT ` + cardColumns + cardFrom + where + ` ORDER BY c.created_at, c.id LIMIT $3 OFFSET $4`
	cards, err := r.queryCards(ctx, query, ownerID, statusArg, page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("failed to list cards: %w", err)
	}
	result.Items = cards
	return result, nil
}

// SearchCards returns one page of cards matching filter; unset fields match everything
func (r *Repository) SearchCards(ctx context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[models.Card], error) {
	page = page.Normalize()
	result := models.Page[models.Card]{Items: []models.Card{}, Page: page.Page, Size: page.Size}

	email := sql.NullString{}
	if filter.OwnerEmail != nil {
		email = sql.NullString{String: *filter.OwnerEmail, Valid: true}
	}
	last4 := sql.NullString{}
	if filter.Last4 != nil {
		last4 = sql.NullString{String: *filter.Last4, Valid: true}
	}
	statusArg := nullStatus(filter.Status)

	where := ` WHERE ($1::text IS NULL OR lower(u.email) = lower($1))
		AND ($2::text IS NULL OR c.status = $2)
		AND ($3::text IS NULL OR c.last4 = $3)`
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*)`+cardFrom+where, email, statusArg, last4).Scan(&result.Total); err != nil {
		return result, fmt.Errorf("failed to count cards: %w", err)
	}

	query := `SELECT ` + cardColumns + cardFrom + where + ` ORDER BY c.created_at, c.id LIMIT $4 OFFSET $5`
	cards, err := r.queryCards(ctx, query, email, statusArg, last4, page.Size, page.Offset())
	if err != nil {
		return result, fmt.Errorf("failed to search cards: %w", err)
	}
	result.Items = cards
	return result, nil
}

// ListStaleActiveCards returns ACTIVE cards whose expiry lies before today
func (r *Repository) ListStaleActiveCards(ctx context.Context, today time.Time) ([]models.Card, error) {
	query := `SELECT ` + cardColumns + cardFrom + ` WHERE c.status = $1 AND c.expiry < $2 ORDER BY c.id`
	cards, err := r.queryCards(ctx, query, string(models.CardStatusActive), today)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale cards: %w", err)
	}
	return cards, nil
}

// UpdateCardState persists status and expiry. Balances only change inside
// WithinCardTx.
func (r *Repository) UpdateCardState(ctx context.Context, card *models.Card) error {
	query := `
		UPDATE cards SET status = $2, expiry = $3, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, card.ID, string(card.Status), card.Expiry)
	if err != nil {
		return fmt.Errorf("failed to update card: %w", translatePQError(err, nil))
	}
	return requireAffected(res, ErrCardNotFound)
}

// ExpireIfStale moves a card to EXPIRED only while it is still ACTIVE with an
// expiry before today. It reports whether the row changed.
func (r *Repository) ExpireIfStale(ctx context.Context, id uuid.UUID, today time.Time) (bool, error) {
	query := `
		UPDATE cards SET status = $2, updated_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = $3 AND expiry < $4`
	res, err := r.db.ExecContext(ctx, query, id, string(models.CardStatusExpired), string(models.CardStatusActive), today)
	if err != nil {
		return false, fmt.Errorf("failed to expire card: %w", translatePQError(err, nil))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n == 1, nil
}

// DeleteCard permanently removes a card
func (r *Repository) DeleteCard(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete card: %w", err)
	}
	return requireAffected(res, ErrCardNotFound)
}

// TotalBalance sums the balances of an owner's cards; zero when there are none
func (r *Repository) TotalBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(balance), 0) FROM cards WHERE owner_id = $1`, ownerID).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum balances: %w", err)
	}
	return total, nil
}

func nullStatus(status *models.CardStatus) sql.NullString {
	if status == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(*status), Valid: true}
}
