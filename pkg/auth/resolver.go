package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/devfans/golang/log"

	"xano-mcp/pkg/share"
)

// Headers and query parameters inspected during credential resolution.
const (
	HeaderUserID = "X-Xano-User"
	QueryToken   = "token"
	QueryUserID  = "user_id"
	bearerPrefix = "Bearer "
)

// ErrUnauthenticated reports that no usable credential could be established
// for a request.
var ErrUnauthenticated = errors.New("missing or invalid credentials")

// ErrTokenUnknown is returned by an OAuthLookup when the access token does
// not belong to any completed authorization. Like share.ErrNotFound it is a
// normal outcome; transport failures must be returned as themselves.
var ErrTokenUnknown = errors.New("access token unknown")

// OAuthLookup resolves a proxy-minted OAuth access token back to the real
// credential and user it was issued for.
type OAuthLookup interface {
	LookupAccessToken(ctx context.Context, accessToken string) (credential, userID string, err error)
}

// Identity is the outcome of credential resolution: the real upstream
// credential plus the user it belongs to.
type Identity struct {
	Credential string
	UserID     string
	// FromShare records whether a share token was substituted.
	FromShare bool
}

// Resolver turns an inbound request into an Identity: a share-token lookup
// first, then an OAuth access-token lookup when one is configured, finally
// treating the bearer value as the real credential.
type Resolver struct {
	Shares share.Store
	// OAuth is optional; when nil the OAuth step is skipped.
	OAuth OAuthLookup
}

// NewResolver builds a resolver over the given share store.
func NewResolver(shares share.Store) *Resolver {
	return &Resolver{Shares: shares}
}

// Resolve applies the resolution order: bearer header, then token query
// parameter; the value is tried as a share token, then as an OAuth access
// token, then as a direct credential with a separate user id. A store or
// lookup failure other than not-found is propagated as-is: an availability
// problem must not be reinterpreted as an authorization failure.
func (r *Resolver) Resolve(req *http.Request) (*Identity, error) {
	bearer := bearerValue(req)
	if bearer == "" {
		return nil, fmt.Errorf("%w: no bearer token", ErrUnauthenticated)
	}

	rec, err := r.Shares.Resolve(bearer)
	if err == nil {
		log.Info("Share token resolved", "user_id", rec.UserID)
		return &Identity{Credential: rec.Credential, UserID: rec.UserID, FromShare: true}, nil
	}
	if !errors.Is(err, share.ErrNotFound) {
		return nil, fmt.Errorf("share store lookup: %w", err)
	}

	if r.OAuth != nil {
		credential, userID, err := r.OAuth.LookupAccessToken(req.Context(), bearer)
		if err == nil {
			return &Identity{Credential: credential, UserID: userID}, nil
		}
		if !errors.Is(err, ErrTokenUnknown) {
			return nil, fmt.Errorf("oauth token lookup: %w", err)
		}
	}

	// Direct mode: the bearer value is the credential itself and the user id
	// must arrive separately.
	userID := strings.TrimSpace(req.Header.Get(HeaderUserID))
	if userID == "" {
		userID = strings.TrimSpace(req.URL.Query().Get(QueryUserID))
	}
	if userID == "" {
		return nil, fmt.Errorf("%w: direct credential requires a user id", ErrUnauthenticated)
	}

	return &Identity{Credential: bearer, UserID: userID}, nil
}

// bearerValue extracts the bearer token from the Authorization header, or
// falls back to the token query parameter.
func bearerValue(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if strings.HasPrefix(header, bearerPrefix) {
		if v := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix)); v != "" {
			return v
		}
	}
	return strings.TrimSpace(req.URL.Query().Get(QueryToken))
}
