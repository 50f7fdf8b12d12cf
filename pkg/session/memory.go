package session

import (
	"context"
	"sync"
	"time"
)

// defaultCleanupInterval is how often the background cleanup runs.
const defaultCleanupInterval = 5 * time.Minute

// entry wraps a credential with its expiry for TTL tracking.
type entry struct {
	credential string
	expiresAt  time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryStore implements Store with an in-memory map. It is safe for
// concurrent use; writes to different identities do not block each other
// beyond the map lock. Expired entries are reaped by a background
// goroutine and also filtered on read, so Get never returns a stale
// credential between cleanup runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewMemoryStore creates an in-memory session store and starts its
// cleanup goroutine. Call Close to stop it.
func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		sessions:    make(map[string]*entry),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
	go s.cleanupLoop(defaultCleanupInterval)
	return s
}

// Put stores the management credential for the given user identity.
// Last write wins.
func (s *MemoryStore) Put(_ context.Context, userID, credential string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = &entry{credential: credential, expiresAt: expiresAt}
	return nil
}

// Get returns the live credential for the given user identity.
func (s *MemoryStore) Get(_ context.Context, userID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[userID]
	if !ok || e.expired(time.Now()) {
		return "", false, nil
	}
	return e.credential, true, nil
}

// Remove deletes the session for the given user identity.
func (s *MemoryStore) Remove(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
	return nil
}

// Close stops the cleanup goroutine and waits for it to finish.
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	<-s.cleanupDone
	return nil
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer close(s.cleanupDone)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCleanup:
			return
		case now := <-ticker.C:
			s.removeExpired(now)
		}
	}
}

func (s *MemoryStore) removeExpired(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		if e.expired(now) {
			delete(s.sessions, id)
		}
	}
}
