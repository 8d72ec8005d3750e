package oauthsrv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"xano-mcp/pkg/auth"
	"xano-mcp/pkg/xano"
)

// TokenSource resolves proxy-minted access tokens against the registry. It
// satisfies auth.OAuthLookup so the request resolver can accept bearer tokens
// issued by the token endpoint.
type TokenSource struct {
	Registry *xano.Client

	now func() time.Time
}

// NewTokenSource builds a TokenSource over the registry client.
func NewTokenSource(registry *xano.Client) *TokenSource {
	return &TokenSource{Registry: registry, now: time.Now}
}

// LookupAccessToken maps an access token to its owning credential and user.
// A token the registry rejects, or one past its expiry, reports
// auth.ErrTokenUnknown. Transport failures and registry 5xx responses
// propagate unchanged: an unavailable registry is not an auth decision.
func (s *TokenSource) LookupAccessToken(ctx context.Context, accessToken string) (string, string, error) {
	tok, err := s.Registry.LookupOAuthToken(ctx, serviceCred, accessToken)
	if err != nil {
		var apiErr *xano.APIError
		if errors.As(err, &apiErr) && !apiErr.Unavailable() {
			return "", "", auth.ErrTokenUnknown
		}
		return "", "", fmt.Errorf("oauth token lookup: %w", err)
	}
	if !tok.ExpiresAt.IsZero() && s.now().After(tok.ExpiresAt) {
		return "", "", auth.ErrTokenUnknown
	}
	return tok.Credential, tok.UserID, nil
}
