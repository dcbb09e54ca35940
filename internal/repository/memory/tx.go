package memory

import (
	"context"
	"sync"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/google/uuid"
)

type cardTx struct {
	store  *Store
	held   []*sync.Mutex
	locked map[uuid.UUID]bool
	staged map[uuid.UUID]models.Card
}

func (s *Store) cardLock(id uuid.UUID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.cardLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.cardLocks[id] = l
	}
	return l
}

// LockCard takes the per-card lock and returns the owner-scoped card.
// Callers lock cards in a consistent order to avoid deadlocks.
func (t *cardTx) LockCard(ctx context.Context, id, ownerID uuid.UUID) (*models.Card, error) {
	if !t.locked[id] {
		l := t.store.cardLock(id)
		l.Lock()
		t.held = append(t.held, l)
		t.locked[id] = true
	}
	if staged, ok := t.staged[id]; ok {
		if staged.OwnerID != ownerID {
			return nil, repository.ErrCardNotFound
		}
		return &staged, nil
	}
	return t.store.FindCardByIDAndOwner(ctx, id, ownerID)
}

// SaveCard stages the change; staged cards are written on commit.
func (t *cardTx) SaveCard(_ context.Context, card *models.Card) error {
	if !t.locked[card.ID] {
		return repository.ErrCardNotFound
	}
	t.staged[card.ID] = *card
	return nil
}

func (t *cardTx) commit() error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for id := range t.staged {
		if _, ok := t.store.cards[id]; !ok {
			return repository.ErrCardNotFound
		}
	}
	for id := range t.staged {
		c := t.staged[id]
		if err := t.store.saveLocked(&c); err != nil {
			return err
		}
	}
	return nil
}

func (t *cardTx) release() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.held[i].Unlock()
	}
}

// WithinCardTx runs fn with staged writes that are applied atomically when fn
// returns nil and discarded otherwise.
func (s *Store) WithinCardTx(ctx context.Context, fn func(ctx context.Context, tx repository.CardTx) error) error {
	tx := &cardTx{
		store:  s,
		locked: make(map[uuid.UUID]bool),
		staged: make(map[uuid.UUID]models.Card),
	}
	defer tx.release()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}
