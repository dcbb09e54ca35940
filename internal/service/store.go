package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/card-service/internal/apperror"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
)

// UserStore looks up and manages account holders.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, page models.PageRequest) (models.Page[models.User], error)
	UpdateUserRoles(ctx context.Context, id uuid.UUID, roles []models.Role) error
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// CardStore persists cards. Balances are only written through WithinCardTx.
type CardStore interface {
	CreateCard(ctx context.Context, card *models.Card) error
	FindCardByID(ctx context.Context, id uuid.UUID) (*models.Card, error)
	FindCardByIDAndOwner(ctx context.Context, id, ownerID uuid.UUID) (*models.Card, error)
	ListCardsByOwner(ctx context.Context, ownerID uuid.UUID, status *models.CardStatus, page models.PageRequest) (models.Page[models.Card], error)
	SearchCards(ctx context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[models.Card], error)
	ListStaleActiveCards(ctx context.Context, today time.Time) ([]models.Card, error)
	UpdateCardState(ctx context.Context, card *models.Card) error
	// ExpireIfStale moves the card to EXPIRED only if it is still ACTIVE and
	// past expiry at write time, and reports whether it did.
	ExpireIfStale(ctx context.Context, id uuid.UUID, today time.Time) (bool, error)
	DeleteCard(ctx context.Context, id uuid.UUID) error
	TotalBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error)
	WithinCardTx(ctx context.Context, fn func(ctx context.Context, tx repository.CardTx) error) error
}

// PasswordHasher hashes passwords and verifies them against a stored hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// CardCipher encrypts and decrypts full card numbers.
type CardCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

// ExpiryNotifier is told about cards moved to EXPIRED by the sweep.
type ExpiryNotifier interface {
	CardExpired(card models.Card) error
}

// storeError translates store failures into application errors. Errors that
// already carry a kind pass through unchanged.
func storeError(err error, notFoundMessage string) error {
	var appErr *apperror.Error
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return apperror.Wrap(apperror.KindNotFound, notFoundMessage, err)
	case errors.Is(err, repository.ErrOutOfRange):
		return apperror.Wrap(apperror.KindBadRequest, "Amount is out of range", err)
	case errors.Is(err, repository.ErrConflict):
		return apperror.Wrap(apperror.KindConflict, "Concurrent modification, please retry", err)
	default:
		return apperror.Wrap(apperror.KindInternal, "storage failure", err)
	}
}
