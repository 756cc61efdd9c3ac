package store

import (
	"context"
	"sync"

	"proofid/internal/records/models"
	id "proofid/pkg/domain"
	"proofid/pkg/platform/sentinel"
)

// InMemoryStore keeps records in a map guarded by a RWMutex.
// Stored values are cloned on the way in and out.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[id.RecordID]*models.Record
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[id.RecordID]*models.Record)}
}

// Create stores record, returning sentinel.ErrAlreadyUsed if the id is taken.
func (s *InMemoryStore) Create(_ context.Context, record *models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.records[record.ID] = record.Clone()
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, recordID id.RecordID) (*models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return record.Clone(), nil
}

func (s *InMemoryStore) AddGrant(_ context.Context, recordID id.RecordID, grantee id.Principal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return record.Grant(grantee), nil
}

func (s *InMemoryStore) RemoveGrant(_ context.Context, recordID id.RecordID, grantee id.Principal) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[recordID]
	if !ok {
		return false, sentinel.ErrNotFound
	}
	return record.Revoke(grantee), nil
}
