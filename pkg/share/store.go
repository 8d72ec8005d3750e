// Package share issues and resolves opaque share tokens. A share token stands
// in for a real Xano credential so that a client which cannot safely hold the
// credential itself can still reach the proxy. The store is the only owner of
// the token -> credential mapping; records are never mutated in place.
package share

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/devfans/golang/log"
)

// ErrNotFound signals that a token is unknown, expired, or revoked. It is a
// normal outcome, distinct from a store transport failure: callers must not
// treat other errors as equivalent to a missing token.
var ErrNotFound = errors.New("share token not found")

// DefaultTTL is the lifetime of a freshly created share token.
const DefaultTTL = 24 * time.Hour

const tokenBytes = 32

// Record is the triple stored behind a share token.
type Record struct {
	Token      string
	Credential string
	UserID     string
	ExpiresAt  time.Time
}

// Store is the share-token store contract. Implementations must fail closed:
// once a token is expired or revoked it never resolves again.
type Store interface {
	// Create mints a random token for the credential/user pair.
	Create(credential, userID string) (string, error)

	// Resolve returns the record for a live token, or ErrNotFound.
	Resolve(token string) (*Record, error)

	// Revoke deletes the record. Revoking an unknown token is not an error.
	Revoke(token string) error
}

// MemoryStore keeps share records in a mutex-guarded map with lazy eviction
// on resolve and a periodic background sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record

	ttl           time.Duration
	sweepInterval time.Duration
	stopSweep     chan struct{}
	stopOnce      sync.Once

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewMemoryStore creates a store with the given token lifetime. A ttl of zero
// selects DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		records:       make(map[string]*Record),
		ttl:           ttl,
		sweepInterval: 5 * time.Minute,
		stopSweep:     make(chan struct{}),
		now:           time.Now,
	}
	go s.sweepLoop()
	return s
}

// Create mints a token for the credential/user pair with expiry = now + ttl.
func (s *MemoryStore) Create(credential, userID string) (string, error) {
	if strings.TrimSpace(credential) == "" {
		return "", fmt.Errorf("credential cannot be empty")
	}
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("user id cannot be empty")
	}

	token, err := generateToken()
	if err != nil {
		return "", fmt.Errorf("generate share token: %w", err)
	}

	rec := &Record{
		Token:      token,
		Credential: credential,
		UserID:     userID,
		ExpiresAt:  s.now().Add(s.ttl),
	}

	s.mu.Lock()
	s.records[token] = rec
	s.mu.Unlock()

	log.Info("Share token created", "user_id", userID, "expires_at", rec.ExpiresAt)
	return token, nil
}

// Resolve returns the stored record if present and unexpired. An expired
// entry is evicted on the way out and reported as ErrNotFound.
func (s *MemoryStore) Resolve(token string) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.records[token]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(rec.ExpiresAt) {
		s.mu.Lock()
		delete(s.records, token)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	// Return a copy so callers cannot mutate the stored record.
	out := *rec
	return &out, nil
}

// Revoke deletes the record unconditionally. Idempotent.
func (s *MemoryStore) Revoke(token string) error {
	s.mu.Lock()
	delete(s.records, token)
	s.mu.Unlock()
	return nil
}

// Len reports how many records are currently held, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Stop terminates the background sweep goroutine.
func (s *MemoryStore) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopSweep)
	})
}

func (s *MemoryStore) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopSweep:
			return
		}
	}
}

// sweep removes every expired record.
func (s *MemoryStore) sweep() {
	now := s.now()
	s.mu.Lock()
	removed := 0
	for token, rec := range s.records {
		if !now.Before(rec.ExpiresAt) {
			delete(s.records, token)
			removed++
		}
	}
	s.mu.Unlock()
	if removed > 0 {
		log.Info("Expired share tokens swept", "count", removed)
	}
}

// generateToken returns a cryptographically random url-safe token.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "shr_" + base64.RawURLEncoding.EncodeToString(b), nil
}
