package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/service"
)

type createCardRequest struct {
	OwnerEmail     string           `json:"owner_email" validate:"required,email"`
	CardNumber     string           `json:"card_number" validate:"required"`
	ExpiryMonth    int              `json:"expiry_month" validate:"required,min=1,max=12"`
	ExpiryYear     int              `json:"expiry_year" validate:"required"`
	InitialBalance *decimal.Decimal `json:"initial_balance"`
}

type transferRequest struct {
	FromCardID uuid.UUID       `json:"from_card_id" validate:"required"`
	ToCardID   uuid.UUID       `json:"to_card_id" validate:"required"`
	Amount     decimal.Decimal `json:"amount"`
}

type adjustBalanceRequest struct {
	Delta decimal.Decimal `json:"delta"`
}

type totalBalanceResponse struct {
	Total decimal.Decimal `json:"total"`
}

type cardNumberResponse struct {
	CardNumber string `json:"card_number"`
}

// CreateCard issues a card to an existing user
func (h *Handler) CreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	view, err := h.cards.Create(r.Context(), service.CreateCardParams{
		OwnerEmail:     req.OwnerEmail,
		CardNumber:     req.CardNumber,
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		InitialBalance: req.InitialBalance,
	})
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusCreated, view)
}

// ListOwnCards returns the caller's cards, optionally filtered by status
func (h *Handler) ListOwnCards(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	cards, err := h.cards.ListOwn(r.Context(), currentUser(r).ID, statusParam(r), page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, cards)
}

// Transfer moves funds between two of the caller's cards
func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.cards.Transfer(r.Context(), currentUser(r).ID, req.FromCardID, req.ToCardID, req.Amount); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// TotalBalance sums the caller's card balances
func (h *Handler) TotalBalance(w http.ResponseWriter, r *http.Request) {
	total, err := h.cards.TotalBalance(r.Context(), currentUser(r).ID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, totalBalanceResponse{Total: total})
}

// RequestBlock blocks one of the caller's cards
func (h *Handler) RequestBlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.cards.RequestBlock(r.Context(), currentUser(r).ID, id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// SearchCards lists all cards filtered by owner email, status and last four digits
func (h *Handler) SearchCards(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	filter := models.CardFilter{Status: statusParam(r)}
	q := r.URL.Query()
	if email := strings.TrimSpace(q.Get("email")); email != "" {
		filter.OwnerEmail = &email
	}
	if last4 := strings.TrimSpace(q.Get("last4")); last4 != "" {
		filter.Last4 = &last4
	}
	cards, err := h.cards.Search(r.Context(), filter, page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, cards)
}

// BlockCard blocks any card
func (h *Handler) BlockCard(w http.ResponseWriter, r *http.Request) {
	h.cardAction(w, r, h.cards.Block)
}

// ActivateCard activates any card
func (h *Handler) ActivateCard(w http.ResponseWriter, r *http.Request) {
	h.cardAction(w, r, h.cards.Activate)
}

// DeleteCard removes a card
func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	h.cardAction(w, r, h.cards.Delete)
}

func (h *Handler) cardAction(w http.ResponseWriter, r *http.Request, action func(context.Context, uuid.UUID) error) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := action(r.Context(), id); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusNoContent, nil)
}

// AdjustBalance credits or debits a card
func (h *Handler) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	var req adjustBalanceRequest
	if err := h.decode(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	view, err := h.cards.AdjustBalance(r.Context(), id, req.Delta)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, view)
}

// RevealNumber returns the decrypted card number
func (h *Handler) RevealNumber(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	number, err := h.cards.RevealNumber(r.Context(), id)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.respond(w, http.StatusOK, cardNumberResponse{CardNumber: number})
}
