package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Dan9191/card-service/internal/apperror"
	"github.com/Dan9191/card-service/internal/metrics"
	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/Dan9191/card-service/internal/utils"
)

const (
	// DefaultRenewYears is how far activation pushes a lapsed expiry.
	DefaultRenewYears = 3

	minExpiryYear = 2024
	maxExpiryYear = 9999

	expiryPathLazy  = "lazy"
	expiryPathSweep = "sweep"
)

// CardService owns the card ledger: issuance, lifecycle and transfers
type CardService struct {
	cards      CardStore
	users      UserStore
	cipher     CardCipher
	notifier   ExpiryNotifier
	log        *logrus.Logger
	renewYears int
	now        func() time.Time
}

// CardOption configures a CardService.
type CardOption func(*CardService)

// WithCardClock sets the time source.
func WithCardClock(now func() time.Time) CardOption {
	return func(s *CardService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRenewYears sets the number of years activation extends a lapsed expiry.
func WithRenewYears(years int) CardOption {
	return func(s *CardService) {
		if years > 0 {
			s.renewYears = years
		}
	}
}

// WithExpiryNotifier sets the notifier used by the expiry sweep.
func WithExpiryNotifier(n ExpiryNotifier) CardOption {
	return func(s *CardService) {
		s.notifier = n
	}
}

// NewCardService initializes the card ledger
func NewCardService(cards CardStore, users UserStore, cipher CardCipher, log *logrus.Logger, opts ...CardOption) *CardService {
	s := &CardService{
		cards:      cards,
		users:      users,
		cipher:     cipher,
		log:        log,
		renewYears: DefaultRenewYears,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CardService) today() time.Time {
	return utils.Today(s.now())
}

// CreateCardParams are the inputs of an administrative card issuance
type CreateCardParams struct {
	OwnerEmail     string
	CardNumber     string
	ExpiryMonth    int
	ExpiryYear     int
	InitialBalance *decimal.Decimal
}

// Create issues a card to an existing owner. The full number is stored only
// as an encrypted envelope.
func (s *CardService) Create(ctx context.Context, p CreateCardParams) (*models.CardView, error) {
	number, err := utils.NormalizeCardNumber(p.CardNumber)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindBadRequest, "Card number must contain exactly 16 digits", err)
	}
	if p.ExpiryMonth < 1 || p.ExpiryMonth > 12 {
		return nil, apperror.New(apperror.KindBadRequest, "Expiry month must be between 1 and 12")
	}
	if p.ExpiryYear < minExpiryYear || p.ExpiryYear > maxExpiryYear {
		return nil, apperror.New(apperror.KindBadRequest, fmt.Sprintf("Expiry year must be between %d and %d", minExpiryYear, maxExpiryYear))
	}
	balance := decimal.Zero
	if p.InitialBalance != nil {
		balance = *p.InitialBalance
	}
	if balance.IsNegative() {
		return nil, apperror.New(apperror.KindBadRequest, "Initial balance must not be negative")
	}
	if err := ensureCents(balance); err != nil {
		return nil, err
	}

	owner, err := s.users.FindUserByEmail(ctx, p.OwnerEmail)
	if err != nil {
		return nil, storeError(err, "Owner not found")
	}

	ciphertext, err := s.cipher.Encrypt(number)
	if err != nil {
		return nil, err
	}

	card := &models.Card{
		OwnerID:          owner.ID,
		OwnerEmail:       owner.Email,
		NumberCiphertext: ciphertext,
		Last4:            utils.Last4(number),
		Expiry:           utils.EndOfMonth(p.ExpiryYear, time.Month(p.ExpiryMonth)),
		Status:           models.CardStatusActive,
		Balance:          balance,
	}
	if err := s.cards.CreateCard(ctx, card); err != nil {
		return nil, storeError(err, "Owner not found")
	}

	s.log.Infof("Card created for owner=%s, cardId=%s, last4=%s", owner.Email, card.ID, card.Last4)
	view := toView(card)
	return &view, nil
}

// Block marks a card BLOCKED
func (s *CardService) Block(ctx context.Context, cardID uuid.UUID) error {
	card, err := s.cards.FindCardByID(ctx, cardID)
	if err != nil {
		return storeError(err, "Card not found")
	}
	card.Status = models.CardStatusBlocked
	if err := s.cards.UpdateCardState(ctx, card); err != nil {
		return storeError(err, "Card not found")
	}
	s.log.Infof("Card blocked: id=%s", cardID)
	return nil
}

// Activate marks a card ACTIVE. A card whose expiry already lapsed gets a new
// expiry renewYears from today, at the end of that month.
func (s *CardService) Activate(ctx context.Context, cardID uuid.UUID) error {
	card, err := s.cards.FindCardByID(ctx, cardID)
	if err != nil {
		return storeError(err, "Card not found")
	}

	today := s.today()
	if card.ExpiredOn(today) {
		card.Expiry = utils.RenewedExpiry(today, s.renewYears)
		s.log.Infof("Card %s expiry extended to %s", cardID, card.Expiry.Format("2006-01-02"))
	}
	card.Status = models.CardStatusActive
	if err := s.cards.UpdateCardState(ctx, card); err != nil {
		return storeError(err, "Card not found")
	}
	s.log.Infof("Card activated: id=%s, expiry=%s", cardID, card.Expiry.Format("2006-01-02"))
	return nil
}

// Delete permanently removes a card
func (s *CardService) Delete(ctx context.Context, cardID uuid.UUID) error {
	if err := s.cards.DeleteCard(ctx, cardID); err != nil {
		return storeError(err, "Card not found")
	}
	s.log.Infof("Card deleted: id=%s", cardID)
	return nil
}

// RequestBlock lets an owner block one of their own cards. Expired cards are
// left untouched.
func (s *CardService) RequestBlock(ctx context.Context, ownerID, cardID uuid.UUID) error {
	card, err := s.cards.FindCardByIDAndOwner(ctx, cardID, ownerID)
	if err != nil {
		return storeError(err, "Card not found")
	}
	if card.Status == models.CardStatusExpired {
		return nil
	}
	card.Status = models.CardStatusBlocked
	if err := s.cards.UpdateCardState(ctx, card); err != nil {
		return storeError(err, "Card not found")
	}
	s.log.Infof("User requested block: owner=%s, cardId=%s", ownerID, cardID)
	return nil
}

// ListOwn returns the owner's cards. Stale ACTIVE cards are persisted as
// EXPIRED before being returned.
func (s *CardService) ListOwn(ctx context.Context, ownerID uuid.UUID, status *models.CardStatus, page models.PageRequest) (models.Page[models.CardView], error) {
	if status != nil && !status.Valid() {
		return models.Page[models.CardView]{}, apperror.New(apperror.KindBadRequest, "Unknown card status")
	}
	cards, err := s.cards.ListCardsByOwner(ctx, ownerID, status, page)
	if err != nil {
		return models.Page[models.CardView]{}, storeError(err, "Card not found")
	}

	today := s.today()
	for i := range cards.Items {
		card := &cards.Items[i]
		expired, err := s.expireIfStale(ctx, s.conditionalExpiry(today), card, today, expiryPathLazy)
		if err != nil {
			return models.Page[models.CardView]{}, storeError(err, "Card not found")
		}
		if expired || !card.IsStale(today) {
			continue
		}
		// Changed concurrently; report what is stored now.
		current, err := s.cards.FindCardByIDAndOwner(ctx, card.ID, ownerID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return models.Page[models.CardView]{}, storeError(err, "Card not found")
		}
		*card = *current
	}
	return toViewPage(cards), nil
}

// Transfer moves amount between two cards of the same owner. The cards are
// locked, lazily expired, validated and updated in one transaction.
func (s *CardService) Transfer(ctx context.Context, ownerID, fromID, toID uuid.UUID, amount decimal.Decimal) (err error) {
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = string(apperror.KindOf(err))
		}
		metrics.Transfers.WithLabelValues(outcome).Inc()
	}()

	if err := EnsureDistinct(fromID, toID); err != nil {
		return err
	}
	if err := ensureAmount(amount); err != nil {
		return err
	}

	today := s.today()
	var rejected error
	err = s.cards.WithinCardTx(ctx, func(ctx context.Context, tx repository.CardTx) error {
		from, to, err := lockPair(ctx, tx, ownerID, fromID, toID)
		if err != nil {
			return err
		}

		fromExpired, err := s.expireIfStale(ctx, lockedExpiry(tx), from, today, expiryPathLazy)
		if err != nil {
			return err
		}
		if fromExpired {
			s.log.Infof("From-card %s expired during transfer", from.ID)
		}
		toExpired, err := s.expireIfStale(ctx, lockedExpiry(tx), to, today, expiryPathLazy)
		if err != nil {
			return err
		}
		if toExpired {
			s.log.Infof("To-card %s expired during transfer", to.ID)
		}

		// A rejected transfer still commits the expiry transitions above.
		if rejected = validateTransfer(from, to, amount, today); rejected != nil {
			return nil
		}

		from.Balance = from.Balance.Sub(amount)
		to.Balance = to.Balance.Add(amount)
		if err := tx.SaveCard(ctx, from); err != nil {
			return err
		}
		return tx.SaveCard(ctx, to)
	})
	if err != nil {
		return storeError(err, "Card not found")
	}
	if rejected != nil {
		return rejected
	}

	s.log.Infof("Transfer: owner=%s, fromCard=%s, toCard=%s, amount=%s", ownerID, fromID, toID, amount.StringFixed(2))
	return nil
}

func validateTransfer(from, to *models.Card, amount decimal.Decimal, today time.Time) error {
	if err := EnsureSourceUsable(from); err != nil {
		return err
	}
	if err := EnsureDestinationUsable(to, today); err != nil {
		return err
	}
	if err := EnsureFunds(from.Balance, amount); err != nil {
		return err
	}
	return ensureWithinLimit(to.Balance.Add(amount))
}

// lockPair locks both cards in id order so concurrent transfers sharing a card
// cannot deadlock. A missing source is reported before a missing destination.
func lockPair(ctx context.Context, tx repository.CardTx, ownerID, fromID, toID uuid.UUID) (*models.Card, *models.Card, error) {
	first, second := fromID, toID
	if bytes.Compare(toID[:], fromID[:]) < 0 {
		first, second = toID, fromID
	}

	locked := make(map[uuid.UUID]*models.Card, 2)
	missing := make(map[uuid.UUID]bool, 2)
	for _, id := range []uuid.UUID{first, second} {
		card, err := tx.LockCard(ctx, id, ownerID)
		if errors.Is(err, repository.ErrNotFound) {
			missing[id] = true
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		locked[id] = card
	}

	if missing[fromID] {
		return nil, nil, apperror.New(apperror.KindNotFound, "From card not found")
	}
	if missing[toID] {
		return nil, nil, apperror.New(apperror.KindNotFound, "To card not found")
	}
	return locked[fromID], locked[toID], nil
}

// AdjustBalance applies an administrative credit (positive delta) or debit
// (negative delta). The resulting balance may not be negative.
func (s *CardService) AdjustBalance(ctx context.Context, cardID uuid.UUID, delta decimal.Decimal) (*models.CardView, error) {
	if delta.IsZero() {
		return nil, apperror.New(apperror.KindBadRequest, "Adjustment must not be zero")
	}
	if err := ensureCents(delta); err != nil {
		return nil, err
	}
	card, err := s.cards.FindCardByID(ctx, cardID)
	if err != nil {
		return nil, storeError(err, "Card not found")
	}

	var adjusted *models.Card
	err = s.cards.WithinCardTx(ctx, func(ctx context.Context, tx repository.CardTx) error {
		locked, err := tx.LockCard(ctx, cardID, card.OwnerID)
		if err != nil {
			return err
		}
		next := locked.Balance.Add(delta)
		if next.IsNegative() {
			return apperror.New(apperror.KindBadRequest, "Insufficient funds")
		}
		if err := ensureWithinLimit(next); err != nil {
			return err
		}
		locked.Balance = next
		adjusted = locked
		return tx.SaveCard(ctx, locked)
	})
	if err != nil {
		return nil, storeError(err, "Card not found")
	}

	s.log.Infof("Balance adjusted: cardId=%s, delta=%s", cardID, delta.StringFixed(2))
	view := toView(adjusted)
	return &view, nil
}

// TotalBalance sums the owner's card balances; zero when there are no cards
func (s *CardService) TotalBalance(ctx context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	total, err := s.cards.TotalBalance(ctx, ownerID)
	if err != nil {
		return decimal.Zero, storeError(err, "Card not found")
	}
	return total, nil
}

// Search lists cards for administrators. Unset filter fields match all cards.
func (s *CardService) Search(ctx context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[models.CardView], error) {
	if filter.Status != nil && !filter.Status.Valid() {
		return models.Page[models.CardView]{}, apperror.New(apperror.KindBadRequest, "Unknown card status")
	}
	cards, err := s.cards.SearchCards(ctx, filter, page)
	if err != nil {
		return models.Page[models.CardView]{}, storeError(err, "Card not found")
	}
	return toViewPage(cards), nil
}

// RevealNumber decrypts the full number of a card for administrators.
func (s *CardService) RevealNumber(ctx context.Context, cardID uuid.UUID) (string, error) {
	card, err := s.cards.FindCardByID(ctx, cardID)
	if err != nil {
		return "", storeError(err, "Card not found")
	}
	number, err := s.cipher.Decrypt(card.NumberCiphertext)
	if err != nil {
		s.log.Errorf("Failed to decrypt number of card %s: %v", cardID, err)
		return "", err
	}
	s.log.Infof("Card number revealed: id=%s", cardID)
	return number, nil
}

// ExpireStaleCards moves every ACTIVE card past its expiry to EXPIRED and
// returns how many changed. Running it repeatedly is harmless.
func (s *CardService) ExpireStaleCards(ctx context.Context) (int, error) {
	today := s.today()
	stale, err := s.cards.ListStaleActiveCards(ctx, today)
	if err != nil {
		return 0, storeError(err, "Card not found")
	}

	count := 0
	for i := range stale {
		card := &stale[i]
		expired, err := s.expireIfStale(ctx, s.conditionalExpiry(today), card, today, expiryPathSweep)
		if err != nil {
			return count, storeError(err, "Card not found")
		}
		if !expired {
			continue
		}
		count++
		s.log.Infof("Marked card as expired: id=%s, expiry=%s", card.ID, card.Expiry.Format("2006-01-02"))
		if s.notifier != nil {
			if err := s.notifier.CardExpired(*card); err != nil {
				s.log.Warnf("Failed to notify owner of expired card %s: %v", card.ID, err)
			}
		}
	}
	return count, nil
}

// expireIfStale is the single ACTIVE to EXPIRED transition used by listing,
// transfers and the sweep. persist writes the transition and reports whether
// the stored card changed; card is updated only when it did.
func (s *CardService) expireIfStale(ctx context.Context, persist func(context.Context, *models.Card) (bool, error),
	card *models.Card, today time.Time, path string) (bool, error) {
	if !card.IsStale(today) {
		return false, nil
	}
	changed, err := persist(ctx, card)
	if err != nil || !changed {
		return false, err
	}
	card.Status = models.CardStatusExpired
	metrics.CardsExpired.WithLabelValues(path).Inc()
	s.log.Debugf("Card %s marked expired (owner=%s)", card.ID, card.OwnerID)
	return true, nil
}

// conditionalExpiry expires a card outside a transaction. The store re-checks
// staleness so a concurrent block or activation is never overwritten.
func (s *CardService) conditionalExpiry(today time.Time) func(context.Context, *models.Card) (bool, error) {
	return func(ctx context.Context, card *models.Card) (bool, error) {
		return s.cards.ExpireIfStale(ctx, card.ID, today)
	}
}

// lockedExpiry expires a card already locked by tx.
func lockedExpiry(tx repository.CardTx) func(context.Context, *models.Card) (bool, error) {
	return func(ctx context.Context, card *models.Card) (bool, error) {
		expired := *card
		expired.Status = models.CardStatusExpired
		if err := tx.SaveCard(ctx, &expired); err != nil {
			return false, err
		}
		return true, nil
	}
}

func toView(c *models.Card) models.CardView {
	return models.CardView{
		ID:           c.ID,
		MaskedNumber: utils.MaskLast4(c.Last4),
		OwnerEmail:   c.OwnerEmail,
		Expiry:       c.Expiry.Format("2006-01-02"),
		Status:       c.Status,
		Balance:      c.Balance,
	}
}

func toViewPage(p models.Page[models.Card]) models.Page[models.CardView] {
	out := models.Page[models.CardView]{
		Items: make([]models.CardView, 0, len(p.Items)),
		Page:  p.Page,
		Size:  p.Size,
		Total: p.Total,
	}
	for i := range p.Items {
		out.Items = append(out.Items, toView(&p.Items[i]))
	}
	return out
}
