// Package storage provides session snapshot persistence implementations.
package storage

import (
	"context"
	"sync"

	"github.com/mirepoix/souschef/internal/domain"
	"github.com/mirepoix/souschef/internal/logger"
)

// Compile-time interface check.
var _ domain.SnapshotStore = (*MemoryStore)(nil)

// MemoryStore is an in-memory snapshot store. Safe for concurrent access.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]domain.SessionSnapshot
	log   *logger.Logger
}

// NewMemoryStore creates an empty in-memory snapshot store.
func NewMemoryStore(log *logger.Logger) *MemoryStore {
	return &MemoryStore{
		snaps: make(map[string]domain.SessionSnapshot),
		log:   log,
	}
}

// Save persists a snapshot. Overwrites any snapshot for the same key.
func (s *MemoryStore) Save(ctx context.Context, snap domain.SessionSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Debug("saving snapshot %s (recipe=%s, step=%d, phase=%s)",
		snap.SessionKey, snap.RecipeID, snap.StepIndex, snap.Phase)
	s.snaps[snap.SessionKey] = snap
	return nil
}

// Load retrieves a snapshot by session key.
func (s *MemoryStore) Load(ctx context.Context, sessionKey string) (*domain.SessionSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snaps[sessionKey]
	if !ok {
		s.log.Debug("snapshot not found: %s", sessionKey)
		return nil, domain.ErrNotFound
	}
	out := snap
	return &out, nil
}

// Delete removes a snapshot by session key.
func (s *MemoryStore) Delete(ctx context.Context, sessionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.snaps[sessionKey]; !ok {
		return domain.ErrNotFound
	}
	delete(s.snaps, sessionKey)
	s.log.Debug("deleted snapshot %s", sessionKey)
	return nil
}
