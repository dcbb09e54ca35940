package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/card-service/internal/apperror"
	"github.com/Dan9191/card-service/internal/models"
)

// MaxBalance is the largest balance a card can hold, matching NUMERIC(19, 2).
var MaxBalance = decimal.RequireFromString("99999999999999999.99")

// EnsureDistinct rejects a transfer from a card to itself.
func EnsureDistinct(fromID, toID uuid.UUID) error {
	if fromID == toID {
		return apperror.New(apperror.KindBadRequest, "Cannot transfer to the same card")
	}
	return nil
}

// EnsureSourceUsable allows only ACTIVE cards to send funds.
func EnsureSourceUsable(card *models.Card) error {
	switch card.Status {
	case models.CardStatusBlocked:
		return apperror.New(apperror.KindConflict, "Cannot transfer from blocked card")
	case models.CardStatusExpired:
		return apperror.New(apperror.KindConflict, "Card is expired")
	}
	return nil
}

// EnsureDestinationUsable requires an ACTIVE card whose expiry has not passed.
// The date check covers cards whose status was not yet transitioned.
func EnsureDestinationUsable(card *models.Card, today time.Time) error {
	if card.Status != models.CardStatusActive {
		return apperror.New(apperror.KindConflict, "Destination card is not active")
	}
	if card.ExpiredOn(today) {
		return apperror.New(apperror.KindConflict, "Destination card is expired")
	}
	return nil
}

// EnsureFunds rejects amounts above balance. Draining to exactly zero is allowed.
func EnsureFunds(balance, amount decimal.Decimal) error {
	if balance.LessThan(amount) {
		return apperror.New(apperror.KindBadRequest, "Insufficient funds")
	}
	return nil
}

// ensureAmount requires a positive amount with at most two decimal places.
func ensureAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.New(apperror.KindBadRequest, "Amount must be positive")
	}
	return ensureCents(amount)
}

func ensureCents(amount decimal.Decimal) error {
	if amount.Abs().GreaterThan(MaxBalance) {
		return apperror.New(apperror.KindBadRequest, "Amount is out of range")
	}
	if !amount.Equal(amount.Round(2)) {
		return apperror.New(apperror.KindBadRequest, "Amount must have at most two decimal places")
	}
	return nil
}

func ensureWithinLimit(balance decimal.Decimal) error {
	if balance.GreaterThan(MaxBalance) {
		return apperror.New(apperror.KindBadRequest, "Balance limit exceeded")
	}
	return nil
}
