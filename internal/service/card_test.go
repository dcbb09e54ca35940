package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dan9191/card-service/internal/apperror"
	"github.com/Dan9191/card-service/internal/models"
)

func TestCreate(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, CreateCardParams{
		OwnerEmail:  f.owner.Email,
		CardNumber:  "4111111111111111",
		ExpiryMonth: 2,
		ExpiryYear:  2028,
	})
	require.NoError(t, err)
	assert.Equal(t, "**** **** **** 1111", view.MaskedNumber)
	assert.Equal(t, models.CardStatusActive, view.Status)
	assert.True(t, view.Balance.IsZero())
	assert.Equal(t, "2028-02-29", view.Expiry)
	assert.Equal(t, f.owner.Email, view.OwnerEmail)

	card, err := f.store.FindCardByID(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "1111", card.Last4)
	assert.NotContains(t, card.NumberCiphertext, "4111111111111111")
	plain, err := f.engine.Decrypt(card.NumberCiphertext)
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", plain)
}

func TestCreate_Validation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	negative := dec("-0.01")
	fractional := dec("1.001")

	cases := map[string]struct {
		params CreateCardParams
		kind   apperror.Kind
	}{
		"short number":     {CreateCardParams{OwnerEmail: f.owner.Email, CardNumber: "411111111111111", ExpiryMonth: 1, ExpiryYear: 2030}, apperror.KindBadRequest},
		"letters":          {CreateCardParams{OwnerEmail: f.owner.Email, CardNumber: "41111111111111ab", ExpiryMonth: 1, ExpiryYear: 2030}, apperror.KindBadRequest},
		"month 13":         {CreateCardParams{OwnerEmail: f.owner.Email, CardNumber: "4111111111111111", ExpiryMonth: 13, ExpiryYear: 2030}, apperror.KindBadRequest},
		"old year":         {CreateCardParams{OwnerEmail: f.owner.Email, CardNumber: "4111111111111111", ExpiryMonth: 1, ExpiryYear: 2001}, apperror.KindBadRequest},
		"negative balance": {CreateCardParams{OwnerEmail: f.owner.Email, CardNumber: "4111111111111111", ExpiryMonth: 1, ExpiryYear: 2030, InitialBalance: &negative}, apperror.KindBadRequest},
		"sub-cent balance": {CreateCardParams{OwnerEmail: f.owner.Email, CardNumber: "4111111111111111", ExpiryMonth: 1, ExpiryYear: 2030, InitialBalance: &fractional}, apperror.KindBadRequest},
		"unknown owner":    {CreateCardParams{OwnerEmail: "ghost@bank.local", CardNumber: "4111111111111111", ExpiryMonth: 1, ExpiryYear: 2030}, apperror.KindNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, tc.params)
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperror.KindOf(err))
		})
	}
}

func TestTransfer_MovesFunds(t *testing.T) {
	f := newLedgerFixture(t)
	from := f.addCard(t, f.owner, "4111111111111111", "100.00", models.CardStatusActive, futureExpiry)
	to := f.addCard(t, f.owner, "5500000000000004", "10.00", models.CardStatusActive, futureExpiry)

	require.NoError(t, f.svc.Transfer(context.Background(), f.owner.ID, from.ID, to.ID, dec("25.50")))

	assert.True(t, dec("74.50").Equal(f.card(t, from).Balance))
	assert.True(t, dec("35.50").Equal(f.card(t, to).Balance))
}

func TestTransfer_DrainToZero(t *testing.T) {
	f := newLedgerFixture(t)
	from := f.addCard(t, f.owner, "4111111111111111", "42.10", models.CardStatusActive, futureExpiry)
	to := f.addCard(t, f.owner, "5500000000000004", "0", models.CardStatusActive, futureExpiry)

	require.NoError(t, f.svc.Transfer(context.Background(), f.owner.ID, from.ID, to.ID, dec("42.10")))

	assert.True(t, f.card(t, from).Balance.IsZero())
	assert.True(t, dec("42.10").Equal(f.card(t, to).Balance))
}

func TestTransfer_SameCardAlwaysBadRequest(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	active := f.addCard(t, f.owner, "4111111111111111", "100", models.CardStatusActive, futureExpiry)
	blocked := f.addCard(t, f.owner, "5500000000000004", "0", models.CardStatusBlocked, futureExpiry)

	for _, id := range []uuid.UUID{active.ID, blocked.ID, uuid.New()} {
		err := f.svc.Transfer(ctx, f.owner.ID, id, id, dec("1"))
		assert.ErrorIs(t, err, apperror.New(apperror.KindBadRequest, "Cannot transfer to the same card"))
	}
}

func TestTransfer_OwnershipScoped(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	mine := f.addCard(t, f.owner, "4111111111111111", "100", models.CardStatusActive, futureExpiry)
	theirs := f.addCard(t, f.other, "5500000000000004", "100", models.CardStatusActive, futureExpiry)

	err := f.svc.Transfer(ctx, f.owner.ID, theirs.ID, mine.ID, dec("1"))
	assert.ErrorIs(t, err, apperror.New(apperror.KindNotFound, "From card not found"))

	err = f.svc.Transfer(ctx, f.owner.ID, mine.ID, theirs.ID, dec("1"))
	assert.ErrorIs(t, err, apperror.New(apperror.KindNotFound, "To card not found"))

	err = f.svc.Transfer(ctx, f.owner.ID, uuid.New(), uuid.New(), dec("1"))
	assert.ErrorIs(t, err, apperror.New(apperror.KindNotFound, "From card not found"))

	assert.True(t, dec("100").Equal(f.card(t, mine).Balance))
	assert.True(t, dec("100").Equal(f.card(t, theirs).Balance))
}

func TestTransfer_Rejections(t *testing.T) {
	cases := map[string]struct {
		fromStatus models.CardStatus
		fromExpiry time.Time
		toStatus   models.CardStatus
		toExpiry   time.Time
		amount     string
		want       *apperror.Error
	}{
		"blocked source": {models.CardStatusBlocked, futureExpiry, models.CardStatusActive, futureExpiry, "1",
			apperror.New(apperror.KindConflict, "Cannot transfer from blocked card")},
		"expired source": {models.CardStatusExpired, futureExpiry, models.CardStatusActive, futureExpiry, "1",
			apperror.New(apperror.KindConflict, "Card is expired")},
		"blocked destination": {models.CardStatusActive, futureExpiry, models.CardStatusBlocked, futureExpiry, "1",
			apperror.New(apperror.KindConflict, "Destination card is not active")},
		"insufficient funds": {models.CardStatusActive, futureExpiry, models.CardStatusActive, futureExpiry, "100.01",
			apperror.New(apperror.KindBadRequest, "Insufficient funds")},
		"non-positive amount": {models.CardStatusActive, futureExpiry, models.CardStatusActive, futureExpiry, "0",
			apperror.New(apperror.KindBadRequest, "")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newLedgerFixture(t)
			from := f.addCard(t, f.owner, "4111111111111111", "100.00", tc.fromStatus, tc.fromExpiry)
			to := f.addCard(t, f.owner, "5500000000000004", "10.00", tc.toStatus, tc.toExpiry)

			err := f.svc.Transfer(context.Background(), f.owner.ID, from.ID, to.ID, dec(tc.amount))
			require.ErrorIs(t, err, tc.want)

			assert.True(t, dec("100").Equal(f.card(t, from).Balance))
			assert.True(t, dec("10").Equal(f.card(t, to).Balance))
		})
	}
}

func TestTransfer_LazyExpiryPersistsBeforeRejecting(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	staleFrom := f.addCard(t, f.owner, "4111111111111111", "100", models.CardStatusActive, pastExpiry)
	to := f.addCard(t, f.owner, "5500000000000004", "0", models.CardStatusActive, futureExpiry)

	err := f.svc.Transfer(ctx, f.owner.ID, staleFrom.ID, to.ID, dec("1"))
	require.ErrorIs(t, err, apperror.New(apperror.KindConflict, "Card is expired"))
	assert.Equal(t, models.CardStatusExpired, f.card(t, staleFrom).Status)

	from := f.addCard(t, f.owner, "4000000000000002", "100", models.CardStatusActive, futureExpiry)
	staleTo := f.addCard(t, f.owner, "4000000000000010", "0", models.CardStatusActive, pastExpiry)

	err = f.svc.Transfer(ctx, f.owner.ID, from.ID, staleTo.ID, dec("1"))
	require.ErrorIs(t, err, apperror.New(apperror.KindConflict, "Destination card is not active"))
	assert.Equal(t, models.CardStatusExpired, f.card(t, staleTo).Status)
	assert.True(t, dec("100").Equal(f.card(t, from).Balance))
}

func TestTransfer_ConcurrentConservesFunds(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	numbers := []string{"4111111111111111", "5500000000000004", "4000000000000002", "4000000000000010"}
	cards := make([]*models.Card, 0, len(numbers))
	for _, n := range numbers {
		cards = append(cards, f.addCard(t, f.owner, n, "50.00", models.CardStatusActive, futureExpiry))
	}
	initial, err := f.svc.TotalBalance(ctx, f.owner.ID)
	require.NoError(t, err)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < perWorker; i++ {
				a, b := rng.Intn(len(cards)), rng.Intn(len(cards))
				amount := decimal.New(int64(rng.Intn(3000)+1), -2)
				err := f.svc.Transfer(ctx, f.owner.ID, cards[a].ID, cards[b].ID, amount)
				if err != nil && !apperror.Is(err, apperror.KindBadRequest) {
					t.Errorf("unexpected transfer error: %v", err)
				}
			}
		}(int64(w))
	}
	wg.Wait()

	total := decimal.Zero
	for _, c := range cards {
		bal := f.card(t, c).Balance
		assert.False(t, bal.IsNegative())
		total = total.Add(bal)
	}
	assert.True(t, initial.Equal(total), "want %s got %s", initial, total)
}

func TestListOwn_LazyExpiry(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	stale := f.addCard(t, f.owner, "4111111111111111", "5", models.CardStatusActive, pastExpiry)
	f.addCard(t, f.owner, "5500000000000004", "5", models.CardStatusBlocked, futureExpiry)
	f.addCard(t, f.other, "4000000000000002", "5", models.CardStatusActive, futureExpiry)

	page, err := f.svc.ListOwn(ctx, f.owner.ID, nil, models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, 2, page.Total)

	byID := map[uuid.UUID]models.CardView{}
	for _, v := range page.Items {
		byID[v.ID] = v
	}
	assert.Equal(t, models.CardStatusExpired, byID[stale.ID].Status)
	assert.Equal(t, models.CardStatusExpired, f.card(t, stale).Status)

	expired := models.CardStatusExpired
	again, err := f.svc.ListOwn(ctx, f.owner.ID, &expired, models.PageRequest{})
	require.NoError(t, err)
	require.Len(t, again.Items, 1)
	assert.Equal(t, stale.ID, again.Items[0].ID)

	bogus := models.CardStatus("LOST")
	_, err = f.svc.ListOwn(ctx, f.owner.ID, &bogus, models.PageRequest{})
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
}

func TestListOwn_Paging(t *testing.T) {
	f := newLedgerFixture(t)
	for _, n := range []string{"4111111111111111", "5500000000000004", "4000000000000002"} {
		f.addCard(t, f.owner, n, "1", models.CardStatusActive, futureExpiry)
	}
	page, err := f.svc.ListOwn(context.Background(), f.owner.ID, nil, models.PageRequest{Page: 1, Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 3, page.Total)
}

func TestRequestBlock(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	mine := f.addCard(t, f.owner, "4111111111111111", "1", models.CardStatusActive, futureExpiry)
	expired := f.addCard(t, f.owner, "5500000000000004", "1", models.CardStatusExpired, pastExpiry)
	theirs := f.addCard(t, f.other, "4000000000000002", "1", models.CardStatusActive, futureExpiry)

	require.NoError(t, f.svc.RequestBlock(ctx, f.owner.ID, mine.ID))
	assert.Equal(t, models.CardStatusBlocked, f.card(t, mine).Status)

	require.NoError(t, f.svc.RequestBlock(ctx, f.owner.ID, expired.ID))
	assert.Equal(t, models.CardStatusExpired, f.card(t, expired).Status)

	err := f.svc.RequestBlock(ctx, f.owner.ID, theirs.ID)
	assert.ErrorIs(t, err, apperror.New(apperror.KindNotFound, "Card not found"))
	assert.Equal(t, models.CardStatusActive, f.card(t, theirs).Status)
}

func TestBlockActivateDelete(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	card := f.addCard(t, f.owner, "4111111111111111", "1", models.CardStatusActive, futureExpiry)

	require.NoError(t, f.svc.Block(ctx, card.ID))
	assert.Equal(t, models.CardStatusBlocked, f.card(t, card).Status)

	require.NoError(t, f.svc.Activate(ctx, card.ID))
	got := f.card(t, card)
	assert.Equal(t, models.CardStatusActive, got.Status)
	assert.Equal(t, futureExpiry, got.Expiry)

	require.NoError(t, f.svc.Delete(ctx, card.ID))
	_, err := f.store.FindCardByID(ctx, card.ID)
	require.Error(t, err)

	missing := uuid.New()
	for _, op := range []func(context.Context, uuid.UUID) error{f.svc.Block, f.svc.Activate, f.svc.Delete} {
		assert.True(t, apperror.Is(op(ctx, missing), apperror.KindNotFound))
	}
}

func TestActivate_ExtendsLapsedExpiry(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	expired := f.addCard(t, f.owner, "4111111111111111", "1", models.CardStatusExpired, pastExpiry)
	blockedLapsed := f.addCard(t, f.owner, "5500000000000004", "1", models.CardStatusBlocked, pastExpiry)

	want := time.Date(2029, time.October, 31, 0, 0, 0, 0, time.UTC)
	for _, c := range []*models.Card{expired, blockedLapsed} {
		require.NoError(t, f.svc.Activate(ctx, c.ID))
		got := f.card(t, c)
		assert.Equal(t, models.CardStatusActive, got.Status)
		assert.Equal(t, want, got.Expiry)
	}
}

func TestTotalBalance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	total, err := f.svc.TotalBalance(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	f.addCard(t, f.owner, "4111111111111111", "10.25", models.CardStatusActive, futureExpiry)
	f.addCard(t, f.owner, "5500000000000004", "0.75", models.CardStatusBlocked, futureExpiry)
	f.addCard(t, f.other, "4000000000000002", "99", models.CardStatusActive, futureExpiry)

	total, err = f.svc.TotalBalance(ctx, f.owner.ID)
	require.NoError(t, err)
	assert.True(t, dec("11").Equal(total))
}

func TestSearch(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	f.addCard(t, f.owner, "4111111111111111", "1", models.CardStatusActive, futureExpiry)
	f.addCard(t, f.owner, "5500000000000004", "1", models.CardStatusBlocked, futureExpiry)
	f.addCard(t, f.other, "4000000000001111", "1", models.CardStatusActive, futureExpiry)

	all, err := f.svc.Search(ctx, models.CardFilter{}, models.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 3, all.Total)

	last4 := "1111"
	byLast4, err := f.svc.Search(ctx, models.CardFilter{Last4: &last4}, models.PageRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, byLast4.Total)

	email := f.owner.Email
	active := models.CardStatusActive
	combined, err := f.svc.Search(ctx, models.CardFilter{OwnerEmail: &email, Status: &active, Last4: &last4}, models.PageRequest{})
	require.NoError(t, err)
	require.Equal(t, 1, combined.Total)
	assert.Equal(t, "**** **** **** 1111", combined.Items[0].MaskedNumber)
	assert.Equal(t, f.owner.Email, combined.Items[0].OwnerEmail)
}

func TestRevealNumber(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	card := f.addCard(t, f.owner, "4111111111111111", "1", models.CardStatusActive, futureExpiry)

	number, err := f.svc.RevealNumber(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, "4111111111111111", number)

	// Simulate a corrupted envelope in storage.
	require.NoError(t, f.store.DeleteCard(ctx, card.ID))
	corrupted := *card
	corrupted.ID = uuid.Nil
	corrupted.NumberCiphertext = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
	require.NoError(t, f.store.CreateCard(ctx, &corrupted))

	number, err = f.svc.RevealNumber(ctx, corrupted.ID)
	require.ErrorIs(t, err, apperror.New(apperror.KindDecryption, ""))
	assert.Empty(t, number)
}

func TestAdjustBalance(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	card := f.addCard(t, f.owner, "4111111111111111", "10.00", models.CardStatusActive, futureExpiry)

	view, err := f.svc.AdjustBalance(ctx, card.ID, dec("5.50"))
	require.NoError(t, err)
	assert.True(t, dec("15.50").Equal(view.Balance))

	_, err = f.svc.AdjustBalance(ctx, card.ID, dec("-15.51"))
	require.ErrorIs(t, err, apperror.New(apperror.KindBadRequest, "Insufficient funds"))
	assert.True(t, dec("15.50").Equal(f.card(t, card).Balance))

	_, err = f.svc.AdjustBalance(ctx, card.ID, decimal.Zero)
	assert.True(t, apperror.Is(err, apperror.KindBadRequest))
	_, err = f.svc.AdjustBalance(ctx, uuid.New(), dec("1"))
	assert.True(t, apperror.Is(err, apperror.KindNotFound))
}

func TestExpireStaleCards(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	stale := f.addCard(t, f.owner, "4111111111111111", "1", models.CardStatusActive, pastExpiry)
	blockedPast := f.addCard(t, f.owner, "5500000000000004", "1", models.CardStatusBlocked, pastExpiry)
	fresh := f.addCard(t, f.other, "4000000000000002", "1", models.CardStatusActive, futureExpiry)

	n, err := f.svc.ExpireStaleCards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, models.CardStatusExpired, f.card(t, stale).Status)
	assert.Equal(t, models.CardStatusBlocked, f.card(t, blockedPast).Status)
	assert.Equal(t, models.CardStatusActive, f.card(t, fresh).Status)
	require.Len(t, f.notifier.cards, 1)
	assert.Equal(t, f.owner.Email, f.notifier.cards[0].OwnerEmail)

	n, err = f.svc.ExpireStaleCards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Len(t, f.notifier.cards, 1)
}

func TestExpireStaleCards_KeepsConcurrentActivation(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()
	card := f.addCard(t, f.owner, "4111111111111111", "1", models.CardStatusActive, pastExpiry)

	store := &interleavingStore{Store: f.store}
	notifier := &recordingNotifier{}
	svc := f.interleavedService(store, notifier)
	store.afterStaleList = func() { require.NoError(t, svc.Activate(ctx, card.ID)) }

	n, err := svc.ExpireStaleCards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, notifier.cards)

	got := f.card(t, card)
	assert.Equal(t, models.CardStatusActive, got.Status)
	assert.Equal(t, time.Date(2029, time.October, 31, 0, 0, 0, 0, time.UTC), got.Expiry)
}

func TestListOwn_KeepsConcurrentStateChange(t *testing.T) {
	renewed := time.Date(2029, time.October, 31, 0, 0, 0, 0, time.UTC)
	cases := map[string]struct {
		change     func(svc *CardService, id uuid.UUID) error
		wantStatus models.CardStatus
		wantExpiry time.Time
	}{
		"block": {
			change:     func(svc *CardService, id uuid.UUID) error { return svc.Block(context.Background(), id) },
			wantStatus: models.CardStatusBlocked,
			wantExpiry: pastExpiry,
		},
		"activate": {
			change:     func(svc *CardService, id uuid.UUID) error { return svc.Activate(context.Background(), id) },
			wantStatus: models.CardStatusActive,
			wantExpiry: renewed,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			f := newLedgerFixture(t)
			card := f.addCard(t, f.owner, "4111111111111111", "1", models.CardStatusActive, pastExpiry)

			store := &interleavingStore{Store: f.store}
			svc := f.interleavedService(store, nil)
			store.afterOwnerList = func() { require.NoError(t, tc.change(svc, card.ID)) }

			page, err := svc.ListOwn(context.Background(), f.owner.ID, nil, models.PageRequest{})
			require.NoError(t, err)
			require.Len(t, page.Items, 1)
			assert.Equal(t, tc.wantStatus, page.Items[0].Status)
			assert.Equal(t, tc.wantExpiry.Format("2006-01-02"), page.Items[0].Expiry)

			got := f.card(t, card)
			assert.Equal(t, tc.wantStatus, got.Status)
			assert.Equal(t, tc.wantExpiry, got.Expiry)
		})
	}
}

func TestBalanceLimit(t *testing.T) {
	f := newLedgerFixture(t)
	ctx := context.Background()

	tooLarge := dec("100000000000000000")
	_, err := f.svc.Create(ctx, CreateCardParams{
		OwnerEmail: f.owner.Email, CardNumber: "4000000000000002", ExpiryMonth: 1, ExpiryYear: 2030, InitialBalance: &tooLarge,
	})
	require.ErrorIs(t, err, apperror.New(apperror.KindBadRequest, "Amount is out of range"))

	full := f.addCard(t, f.owner, "4111111111111111", MaxBalance.String(), models.CardStatusActive, futureExpiry)
	from := f.addCard(t, f.owner, "5500000000000004", "1.00", models.CardStatusActive, futureExpiry)

	err = f.svc.Transfer(ctx, f.owner.ID, from.ID, full.ID, dec("0.01"))
	require.ErrorIs(t, err, apperror.New(apperror.KindBadRequest, "Balance limit exceeded"))
	assert.True(t, dec("1").Equal(f.card(t, from).Balance))
	assert.True(t, MaxBalance.Equal(f.card(t, full).Balance))

	_, err = f.svc.AdjustBalance(ctx, full.ID, dec("0.01"))
	require.ErrorIs(t, err, apperror.New(apperror.KindBadRequest, "Balance limit exceeded"))

	_, err = f.svc.AdjustBalance(ctx, from.ID, tooLarge)
	require.ErrorIs(t, err, apperror.New(apperror.KindBadRequest, "Amount is out of range"))
}
