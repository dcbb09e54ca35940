// Package memory implements the user, card and revocation stores in process
// memory. It backs tests and STORAGE=memory local runs.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Dan9191/card-service/internal/models"
	"github.com/Dan9191/card-service/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store keeps users, cards and revoked token hashes in maps. Balance
// mutation goes through WithinCardTx, which holds per-card locks so
// transfers on disjoint cards proceed in parallel.
type Store struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]models.User
	cards   map[uuid.UUID]models.Card
	revoked map[string]time.Time

	locksMu   sync.Mutex
	cardLocks map[uuid.UUID]*sync.Mutex

	now func() time.Time
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		users:     make(map[uuid.UUID]models.User),
		cards:     make(map[uuid.UUID]models.Card),
		revoked:   make(map[string]time.Time),
		cardLocks: make(map[uuid.UUID]*sync.Mutex),
		now:       time.Now,
	}
}

func (s *Store) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) {
			return repository.ErrEmailExists
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = s.now()
	s.users[user.ID] = cloneUser(*user)
	return nil
}

func (s *Store) FindUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *Store) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *Store) ListUsers(_ context.Context, page models.PageRequest) (models.Page[models.User], error) {
	s.mu.RLock()
	all := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, cloneUser(u))
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Email < all[j].Email })
	return paginate(all, page), nil
}

func (s *Store) UpdateUserRoles(_ context.Context, id uuid.UUID, roles []models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.Roles = append([]models.Role(nil), roles...)
	s.users[id] = u
	return nil
}

func (s *Store) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return repository.ErrUserNotFound
	}
	delete(s.users, id)
	for cardID, c := range s.cards {
		if c.OwnerID == id {
			delete(s.cards, cardID)
		}
	}
	return nil
}

func (s *Store) CreateCard(_ context.Context, card *models.Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.users[card.OwnerID]
	if !ok {
		return repository.ErrUserNotFound
	}
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	now := s.now()
	card.OwnerEmail = owner.Email
	card.CreatedAt = now
	card.UpdatedAt = now
	s.cards[card.ID] = *card
	return nil
}

func (s *Store) FindCardByID(_ context.Context, id uuid.UUID) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[id]
	if !ok {
		return nil, repository.ErrCardNotFound
	}
	return s.withOwnerEmail(c), nil
}

func (s *Store) FindCardByIDAndOwner(_ context.Context, id, ownerID uuid.UUID) (*models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cards[id]
	if !ok || c.OwnerID != ownerID {
		return nil, repository.ErrCardNotFound
	}
	return s.withOwnerEmail(c), nil
}

func (s *Store) ListCardsByOwner(_ context.Context, ownerID uuid.UUID, status *models.CardStatus,
	page models.PageRequest) (models.Page[models.Card], error) {
	return s.filterCards(page, func(c models.Card) bool {
		return c.OwnerID == ownerID && (status == nil || c.Status == *status)
	}), nil
}

func (s *Store) SearchCards(_ context.Context, filter models.CardFilter, page models.PageRequest) (models.Page[models.Card], error) {
	return s.filterCards(page, func(c models.Card) bool {
		if filter.OwnerEmail != nil && !strings.EqualFold(c.OwnerEmail, *filter.OwnerEmail) {
			return false
		}
		if filter.Status != nil && c.Status != *filter.Status {
			return false
		}
		if filter.Last4 != nil && c.Last4 != *filter.Last4 {
			return false
		}
		return true
	}), nil
}

func (s *Store) ListStaleActiveCards(_ context.Context, today time.Time) ([]models.Card, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stale := []models.Card{}
	for _, c := range s.cards {
		if c.IsStale(today) {
			stale = append(stale, *s.withOwnerEmail(c))
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID.String() < stale[j].ID.String() })
	return stale, nil
}

// UpdateCardState writes status and expiry under the card's lock so it
// serializes with in-flight card transactions.
func (s *Store) UpdateCardState(_ context.Context, card *models.Card) error {
	l := s.cardLock(card.ID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.cards[card.ID]
	if !ok {
		return repository.ErrCardNotFound
	}
	existing.Status = card.Status
	existing.Expiry = card.Expiry
	existing.UpdatedAt = s.now()
	s.cards[card.ID] = existing
	card.UpdatedAt = existing.UpdatedAt
	return nil
}

// ExpireIfStale re-checks staleness under the card's lock before moving the
// card to EXPIRED.
func (s *Store) ExpireIfStale(_ context.Context, id uuid.UUID, today time.Time) (bool, error) {
	l := s.cardLock(id)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.cards[id]
	if !ok || !existing.IsStale(today) {
		return false, nil
	}
	existing.Status = models.CardStatusExpired
	existing.UpdatedAt = s.now()
	s.cards[id] = existing
	return true, nil
}

func (s *Store) DeleteCard(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cards[id]; !ok {
		return repository.ErrCardNotFound
	}
	delete(s.cards, id)
	return nil
}

func (s *Store) TotalBalance(_ context.Context, ownerID uuid.UUID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := decimal.Zero
	for _, c := range s.cards {
		if c.OwnerID == ownerID {
			total = total.Add(c.Balance)
		}
	}
	return total, nil
}

func (s *Store) IsRevoked(_ context.Context, tokenHash string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.revoked[tokenHash]
	return ok, nil
}

func (s *Store) Revoke(_ context.Context, tokenHash string, revokedAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.revoked[tokenHash]; ok {
		return false, nil
	}
	s.revoked[tokenHash] = revokedAt
	return true, nil
}

// RevokedCount returns the number of records in the revocation set.
func (s *Store) RevokedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.revoked)
}

func (s *Store) saveLocked(card *models.Card) error {
	existing, ok := s.cards[card.ID]
	if !ok {
		return repository.ErrCardNotFound
	}
	existing.Status = card.Status
	existing.Expiry = card.Expiry
	existing.Balance = card.Balance
	existing.UpdatedAt = s.now()
	s.cards[card.ID] = existing
	card.UpdatedAt = existing.UpdatedAt
	return nil
}

func (s *Store) filterCards(page models.PageRequest, keep func(models.Card) bool) models.Page[models.Card] {
	s.mu.RLock()
	matched := []models.Card{}
	for _, c := range s.cards {
		c = *s.withOwnerEmail(c)
		if keep(c) {
			matched = append(matched, c)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID.String() < matched[j].ID.String()
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return paginate(matched, page)
}

// withOwnerEmail must be called with s.mu held.
func (s *Store) withOwnerEmail(c models.Card) *models.Card {
	if u, ok := s.users[c.OwnerID]; ok {
		c.OwnerEmail = u.Email
	}
	return &c
}

func cloneUser(u models.User) models.User {
	u.Roles = append([]models.Role(nil), u.Roles...)
	return u
}

func paginate[T any](items []T, page models.PageRequest) models.Page[T] {
	page = page.Normalize()
	result := models.Page[T]{Items: []T{}, Page: page.Page, Size: page.Size, Total: len(items)}
	start := page.Offset()
	if start >= len(items) {
		return result
	}
	end := start + page.Size
	if end > len(items) {
		end = len(items)
	}
	result.Items = append(result.Items, items[start:end]...)
	return result
}
