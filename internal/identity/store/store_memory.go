package store

import (
	"context"
	"sync"
	"time"

	"proofid/internal/identity/models"
	id "proofid/pkg/domain"
	"proofid/pkg/platform/sentinel"
)

// InMemoryStore keeps identities in a map guarded by a RWMutex.
// Stored values are cloned on the way in and out.
type InMemoryStore struct {
	mu         sync.RWMutex
	identities map[id.Principal]*models.Identity
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{identities: make(map[id.Principal]*models.Identity)}
}

// CreateIfNotValid stores identity unless the principal currently holds a
// valid one, overwriting any expired or revoked credential.
func (s *InMemoryStore) CreateIfNotValid(_ context.Context, identity *models.Identity, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.identities[identity.Principal]; ok && existing.IsValid(now) {
		return sentinel.ErrAlreadyUsed
	}
	s.identities[identity.Principal] = identity.Clone()
	return nil
}

// Execute runs mutate on a copy of the stored identity under the write lock.
func (s *InMemoryStore) Execute(_ context.Context, principal id.Principal, mutate func(*models.Identity)) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.identities[principal]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	working := current.Clone()
	mutate(working)
	s.identities[principal] = working
	return working.Clone(), nil
}

func (s *InMemoryStore) FindByPrincipal(_ context.Context, principal id.Principal) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[principal]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return identity.Clone(), nil
}
