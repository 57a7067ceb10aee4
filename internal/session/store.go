// Package session holds per-user wallet-binding state in memory.
// State is lifetime-bound to the process; nothing is persisted.
package session

import (
	"sync"

	"solbot/internal/domain"
)

// Store is a concurrency-safe map from Telegram user ID to session state.
// Entries are created lazily on the first wallet binding and never evicted.
type Store struct {
	mu       sync.RWMutex
	sessions map[int64]domain.Session
}

func NewStore() *Store {
	return &Store{sessions: make(map[int64]domain.Session)}
}

// Get returns a copy of the user's session. The second return is false when
// the user has never bound a wallet; that is a normal state, not an error.
func (s *Store) Get(userID int64) (domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// SetWallet binds a wallet address to the user, replacing any previous
// binding wholesale. The cached balance is dropped since it belonged to the
// old address.
func (s *Store) SetWallet(userID int64, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = domain.Session{
		UserID:        userID,
		WalletAddress: address,
	}
}

// SetBalance caches the most recent successful balance read. A balance for
// a user with no binding is dropped: a session never exists without a
// wallet address.
func (s *Store) SetBalance(userID int64, sol float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	if !ok {
		return
	}
	sess.LastKnownBalance = &sol
	s.sessions[userID] = sess
}

// Len reports the number of bound sessions, used for status reporting.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
