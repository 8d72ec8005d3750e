package share

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, ttl time.Duration) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(ttl)
	t.Cleanup(s.Stop)
	return s
}

func TestCreateThenResolve(t *testing.T) {
	s := newTestStore(t, 0)

	before := time.Now()
	token, err := s.Create("xano-abc", "42")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	rec, err := s.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "xano-abc", rec.Credential)
	assert.Equal(t, "42", rec.UserID)

	// Expiry sits 24h out, within a small tolerance.
	want := before.Add(DefaultTTL)
	assert.WithinDuration(t, want, rec.ExpiresAt, 5*time.Second)
}

func TestCreateRejectsEmptyInputs(t *testing.T) {
	s := newTestStore(t, 0)

	_, err := s.Create("", "42")
	assert.Error(t, err)

	_, err = s.Create("xano-abc", "  ")
	assert.Error(t, err)
}

func TestTokensAreUnique(t *testing.T) {
	s := newTestStore(t, 0)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := s.Create("cred", "7")
		require.NoError(t, err)
		require.False(t, seen[token], "duplicate token issued")
		seen[token] = true
	}
}

func TestRevokeThenResolve(t *testing.T) {
	s := newTestStore(t, 0)

	token, err := s.Create("xano-abc", "42")
	require.NoError(t, err)

	require.NoError(t, s.Revoke(token))

	_, err = s.Resolve(token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeIsIdempotent(t *testing.T) {
	s := newTestStore(t, 0)

	assert.NoError(t, s.Revoke("never-issued"))

	token, err := s.Create("xano-abc", "42")
	require.NoError(t, err)
	assert.NoError(t, s.Revoke(token))
	assert.NoError(t, s.Revoke(token))
}

func TestExpiredTokenDoesNotResolve(t *testing.T) {
	s := newTestStore(t, time.Hour)

	token, err := s.Create("xano-abc", "42")
	require.NoError(t, err)

	// Move the clock past expiry.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = s.Resolve(token)
	assert.ErrorIs(t, err, ErrNotFound)

	// Lazy eviction removed the record.
	assert.Equal(t, 0, s.Len())

	// Still not-found after the clock keeps moving; no transition back to valid.
	_, err = s.Resolve(token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSweepEvictsExpired(t *testing.T) {
	s := newTestStore(t, time.Hour)

	_, err := s.Create("a", "1")
	require.NoError(t, err)
	_, err = s.Create("b", "2")
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	s.sweep()

	assert.Equal(t, 0, s.Len())
}

func TestResolveReturnsCopy(t *testing.T) {
	s := newTestStore(t, 0)

	token, err := s.Create("xano-abc", "42")
	require.NoError(t, err)

	rec, err := s.Resolve(token)
	require.NoError(t, err)
	rec.Credential = "tampered"

	again, err := s.Resolve(token)
	require.NoError(t, err)
	assert.Equal(t, "xano-abc", again.Credential)
}
