package credentials

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps credentials in process memory. Used in tests and for
// single-instance development setups.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]Credential
	now   func() time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]Credential), now: time.Now}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, userID string) (Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.items[userID]
	if !ok {
		return Credential{}, ErrNotFound
	}
	return cred, nil
}

// Save implements Store.
func (s *MemoryStore) Save(_ context.Context, userID string, patch Patch) (Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.items[userID]
	if !ok {
		cred = Credential{UserID: userID}
	}
	cred = patch.Apply(cred)
	cred.UpdatedAt = s.now().UTC()
	s.items[userID] = cred
	return cred, nil
}

// ListRefreshExpiring implements Store.
func (s *MemoryStore) ListRefreshExpiring(_ context.Context, before time.Time) ([]Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Credential
	for _, cred := range s.items {
		if cred.Connected && !cred.RefreshExpiresAt.IsZero() && cred.RefreshExpiresAt.Before(before) {
			out = append(out, cred)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RefreshExpiresAt.Before(out[j].RefreshExpiresAt)
	})
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
