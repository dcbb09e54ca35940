package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardStatus is the lifecycle state of a card
type CardStatus string

const (
	CardStatusActive  CardStatus = "ACTIVE"
	CardStatusBlocked CardStatus = "BLOCKED"
	CardStatusExpired CardStatus = "EXPIRED"
)

// Valid reports whether s is a known status
func (s CardStatus) Valid() bool {
	switch s {
	case CardStatusActive, CardStatusBlocked, CardStatusExpired:
		return true
	}
	return false
}

// Card represents a bank card
type Card struct {
	ID               uuid.UUID       `json:"id"`
	OwnerID          uuid.UUID       `json:"owner_id"`
	OwnerEmail       string          `json:"owner_email"`
	NumberCiphertext string          `json:"-"` // Encrypted envelope, never serialized
	Last4            string          `json:"last4"`
	Expiry           time.Time       `json:"expiry"` // Last day of the expiry month, UTC midnight
	Status           CardStatus      `json:"status"`
	Balance          decimal.Decimal `json:"balance"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// ExpiredOn reports whether the card expiry lies strictly before the given day.
func (c *Card) ExpiredOn(today time.Time) bool {
	return c.Expiry.Before(today)
}

// IsStale reports whether the card is still ACTIVE although its expiry has passed.
func (c *Card) IsStale(today time.Time) bool {
	return c.Status == CardStatusActive && c.ExpiredOn(today)
}

// CardView is the external representation of a card
type CardView struct {
	ID           uuid.UUID       `json:"id"`
	MaskedNumber string          `json:"masked_number"`
	OwnerEmail   string          `json:"owner_email"`
	Expiry       string          `json:"expiry"` // Format: YYYY-MM-DD
	Status       CardStatus      `json:"status"`
	Balance      decimal.Decimal `json:"balance"`
}

// CardFilter holds optional admin search criteria; nil fields match everything
type CardFilter struct {
	OwnerEmail *string
	Status     *CardStatus
	Last4      *string
}
