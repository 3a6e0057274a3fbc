// Package store provides session persistence backends for the triage assistant.
//
// The session store is the only shared mutable resource across conversation
// tasks. Implementations must be safe for concurrent access by unrelated
// senders; per-sender ordering is the orchestrator's responsibility.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/MuthuYogesh/whatsapp-clinical-chatbot-ICMR-STW/internal/models"
)

// DefaultSessionTTL is how long an idle conversation survives before it is
// treated identically to "no session".
const DefaultSessionTTL = time.Hour

// SessionStore persists per-sender conversation state with TTL semantics.
type SessionStore interface {
	// Get returns the sender's session, or nil (with a nil error) when no
	// live session exists.
	Get(ctx context.Context, senderID string) (*models.Session, error)

	// Set saves the sender's session, resetting its expiry to ttl from now.
	Set(ctx context.Context, senderID string, session *models.Session, ttl time.Duration) error

	// Clear removes the sender's session. Clearing an absent session is not
	// an error.
	Clear(ctx context.Context, senderID string) error
}

type memoryEntry struct {
	session   *models.Session
	expiresAt time.Time
}

// InMemoryStore is a process-local session store with TTL expiry. It backs
// tests and single-instance deployments where Redis is not configured.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

// NewInMemoryStore creates an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]memoryEntry),
		now:      time.Now,
	}
}

// Get returns a deep copy of the sender's live session, or nil when absent or
// expired. Expired entries are removed lazily.
func (s *InMemoryStore) Get(ctx context.Context, senderID string) (*models.Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[senderID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if s.now().After(entry.expiresAt) {
		s.mu.Lock()
		// Re-check under the write lock: another goroutine may have replaced it.
		if cur, still := s.sessions[senderID]; still && s.now().After(cur.expiresAt) {
			delete(s.sessions, senderID)
		}
		s.mu.Unlock()
		return nil, nil
	}
	return copySession(entry.session), nil
}

// Set saves a deep copy of the session with the given TTL.
func (s *InMemoryStore) Set(ctx context.Context, senderID string, session *models.Session, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[senderID] = memoryEntry{
		session:   copySession(session),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

// Clear removes the sender's session.
func (s *InMemoryStore) Clear(ctx context.Context, senderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, senderID)
	return nil
}

// copySession deep-copies a session so callers never share the fact map or
// ranking slice with the stored value.
func copySession(in *models.Session) *models.Session {
	if in == nil {
		return nil
	}
	out := *in
	if in.ClinicalFacts != nil {
		out.ClinicalFacts = in.ClinicalFacts.Clone()
	}
	if in.Rankings != nil {
		out.Rankings = make([]models.Ranking, len(in.Rankings))
		copy(out.Rankings, in.Rankings)
	}
	return &out
}
