package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xano-mcp/pkg/share"
)

// failingStore simulates an unreachable share-store backend.
type failingStore struct{ err error }

func (f *failingStore) Create(string, string) (string, error) { return "", f.err }
func (f *failingStore) Resolve(string) (*share.Record, error) { return nil, f.err }
func (f *failingStore) Revoke(string) error                   { return f.err }

func newMemoryResolver(t *testing.T) (*Resolver, *share.MemoryStore) {
	t.Helper()
	store := share.NewMemoryStore(time.Hour)
	t.Cleanup(store.Stop)
	return NewResolver(store), store
}

func TestResolveShareToken(t *testing.T) {
	r, store := newMemoryResolver(t)

	token, err := store.Create("xano-abc", "42")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "xano-abc", id.Credential)
	assert.Equal(t, "42", id.UserID)
	assert.True(t, id.FromShare)
}

func TestResolveShareTokenFromQuery(t *testing.T) {
	r, store := newMemoryResolver(t)

	token, err := store.Create("xano-abc", "42")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/sse?token="+token, nil)

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "xano-abc", id.Credential)
	assert.True(t, id.FromShare)
}

func TestResolveDirectCredential(t *testing.T) {
	r, _ := newMemoryResolver(t)

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer xano-direct")
	req.Header.Set(HeaderUserID, "7")

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "xano-direct", id.Credential)
	assert.Equal(t, "7", id.UserID)
	assert.False(t, id.FromShare)
}

func TestResolveDirectCredentialUserFromQuery(t *testing.T) {
	r, _ := newMemoryResolver(t)

	req := httptest.NewRequest("POST", "/mcp?user_id=9", nil)
	req.Header.Set("Authorization", "Bearer xano-direct")

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "9", id.UserID)
}

func TestResolveDirectWithoutUserFails(t *testing.T) {
	r, _ := newMemoryResolver(t)

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer xano-direct")

	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestResolveNoBearerFails(t *testing.T) {
	r, _ := newMemoryResolver(t)

	req := httptest.NewRequest("POST", "/mcp", nil)

	_, err := r.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestRevokedShareTokenFallsThroughToDirect(t *testing.T) {
	r, store := newMemoryResolver(t)

	token, err := store.Create("xano-abc", "42")
	require.NoError(t, err)
	require.NoError(t, store.Revoke(token))

	// Without a user id the revoked token cannot be used as a direct
	// credential either.
	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	_, err = r.Resolve(req)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestStoreFailurePropagates(t *testing.T) {
	backendDown := errors.New("store unreachable")
	r := NewResolver(&failingStore{err: backendDown})

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer anything")
	req.Header.Set(HeaderUserID, "7")

	// The failure must surface, never silently degrade to direct mode.
	_, err := r.Resolve(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, backendDown)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

// fakeOAuth is a canned OAuthLookup.
type fakeOAuth struct {
	credential string
	userID     string
	err        error
	calls      int
}

func (f *fakeOAuth) LookupAccessToken(_ context.Context, _ string) (string, string, error) {
	f.calls++
	return f.credential, f.userID, f.err
}

func TestResolveOAuthAccessToken(t *testing.T) {
	r, _ := newMemoryResolver(t)
	r.OAuth = &fakeOAuth{credential: "xano-real", userID: "42"}

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer tok_issued")

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, "xano-real", id.Credential)
	assert.Equal(t, "42", id.UserID)
	assert.False(t, id.FromShare)
}

func TestResolveUnknownOAuthTokenFallsThroughToDirect(t *testing.T) {
	r, _ := newMemoryResolver(t)
	oauth := &fakeOAuth{err: ErrTokenUnknown}
	r.OAuth = oauth

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer raw-credential")
	req.Header.Set(HeaderUserID, "7")

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.Equal(t, 1, oauth.calls)
	assert.Equal(t, "raw-credential", id.Credential)
	assert.Equal(t, "7", id.UserID)
}

func TestResolveOAuthLookupFailurePropagates(t *testing.T) {
	backendDown := errors.New("registry unreachable")
	r, _ := newMemoryResolver(t)
	r.OAuth = &fakeOAuth{err: backendDown}

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer tok_issued")
	req.Header.Set(HeaderUserID, "7")

	_, err := r.Resolve(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, backendDown)
	assert.NotErrorIs(t, err, ErrUnauthenticated)
}

func TestShareTokenWinsOverOAuth(t *testing.T) {
	r, store := newMemoryResolver(t)
	oauth := &fakeOAuth{credential: "other", userID: "other"}
	r.OAuth = oauth

	token, err := store.Create("xano-abc", "42")
	require.NoError(t, err)

	req := httptest.NewRequest("POST", "/mcp", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	id, err := r.Resolve(req)
	require.NoError(t, err)
	assert.True(t, id.FromShare)
	assert.Equal(t, 0, oauth.calls)
}
