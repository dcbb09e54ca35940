package service

import (
	"context"
	"encoding/base64"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository/memory"
	"github.com/Dan9191/card-service/internal/security"
)

var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

type recordingNotifier struct {
	mu    sync.Mutex
	cards []models.Card
}

func (n *recordingNotifier) CardExpired(card models.Card) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.cards = append(n.cards, card)
	return nil
}

type ledgerFixture struct {
	svc      *CardService
	store    *memory.Store
	engine   *security.CryptoEngine
	notifier *recordingNotifier
	owner    *models.User
	other    *models.User
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	store := memory.New()
	engine, err := security.NewCryptoEngine(base64.StdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef")))
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	svc := NewCardService(store, store, engine, testLogger(),
		WithCardClock(func() time.Time { return testNow }),
		WithExpiryNotifier(notifier),
	)

	f := &ledgerFixture{svc: svc, store: store, engine: engine, notifier: notifier}
	f.owner = f.addUser(t, "owner@bank.local")
	f.other = f.addUser(t, "other@bank.local")
	return f
}

func (f *ledgerFixture) addUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "x", Roles: []models.Role{models.RoleUser}}
	require.NoError(t, f.store.CreateUser(context.Background(), user))
	return user
}

// addCard issues a card through the service and then forces status and expiry.
func (f *ledgerFixture) addCard(t *testing.T, owner *models.User, number, balance string, status models.CardStatus, expiry time.Time) *models.Card {
	t.Helper()
	ctx := context.Background()
	bal := decimal.RequireFromString(balance)
	view, err := f.svc.Create(ctx, CreateCardParams{
		OwnerEmail:     owner.Email,
		CardNumber:     number,
		ExpiryMonth:    int(time.December),
		ExpiryYear:     2030,
		InitialBalance: &bal,
	})
	require.NoError(t, err)

	card, err := f.store.FindCardByID(ctx, view.ID)
	require.NoError(t, err)
	card.Status = status
	card.Expiry = expiry
	require.NoError(t, f.store.UpdateCardState(ctx, card))
	return card
}

func (f *ledgerFixture) card(t *testing.T, c *models.Card) *models.Card {
	t.Helper()
	got, err := f.store.FindCardByID(context.Background(), c.ID)
	require.NoError(t, err)
	return got
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var (
	futureExpiry = time.Date(2030, time.December, 31, 0, 0, 0, 0, time.UTC)
	pastExpiry   = time.Date(2026, time.September, 30, 0, 0, 0, 0, time.UTC)
)

// interleavingStore runs hooks right after the listing reads, between the
// service's snapshot and its write.
type interleavingStore struct {
	*memory.Store
	afterStaleList func()
	afterOwnerList func()
}

func (s *interleavingStore) ListStaleActiveCards(ctx context.Context, today time.Time) ([]models.Card, error) {
	cards, err := s.Store.ListStaleActiveCards(ctx, today)
	if s.afterStaleList != nil {
		s.afterStaleList()
	}
	return cards, err
}

func (s *interleavingStore) ListCardsByOwner(ctx context.Context, ownerID uuid.UUID, status *models.CardStatus,
	page models.PageRequest) (models.Page[models.Card], error) {
	cards, err := s.Store.ListCardsByOwner(ctx, ownerID, status, page)
	if s.afterOwnerList != nil {
		s.afterOwnerList()
	}
	return cards, err
}

func (f *ledgerFixture) interleavedService(store *interleavingStore, notifier ExpiryNotifier) *CardService {
	return NewCardService(store, f.store, f.engine, testLogger(),
		WithCardClock(func() time.Time { return testNow }),
		WithExpiryNotifier(notifier),
	)
}
