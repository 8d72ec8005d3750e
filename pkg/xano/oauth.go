package xano

import (
	"context"
	"time"
)

// OAuthToken is a proxy-minted bearer token persisted in the registry.
type OAuthToken struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	UserID      string    `json:"user_id"`
	Credential  string    `json:"credential"`
	ClientID    string    `json:"client_id"`
	Scope       string    `json:"scope,omitempty"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// OAuthState is the pending state of an in-flight authorization: the minted
// code plus everything needed to finish the token exchange.
type OAuthState struct {
	Code        string    `json:"code"`
	ClientID    string    `json:"client_id"`
	RedirectURI string    `json:"redirect_uri"`
	State       string    `json:"state"`
	Credential  string    `json:"credential"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// OAuthClient is a dynamically registered OAuth client.
type OAuthClient struct {
	ClientID     string   `json:"client_id"`
	ClientSecret string   `json:"client_secret,omitempty"`
	ClientName   string   `json:"client_name,omitempty"`
	RedirectURIs []string `json:"redirect_uris"`
}

// StoreOAuthToken persists a minted access token in the registry.
func (c *Client) StoreOAuthToken(ctx context.Context, cred Credential, token OAuthToken) error {
	_, err := call[any](ctx, c, cred, "StoreOAuthToken", token)
	return err
}

// LookupOAuthToken resolves a proxy-minted access token back to its owner.
func (c *Client) LookupOAuthToken(ctx context.Context, cred Credential, accessToken string) (*OAuthToken, error) {
	return call[OAuthToken](ctx, c, cred, "LookupOAuthToken", struct {
		AccessToken string `json:"access_token"`
	}{AccessToken: accessToken})
}

// SaveOAuthState stores a pending authorization code.
func (c *Client) SaveOAuthState(ctx context.Context, cred Credential, state OAuthState) error {
	_, err := call[any](ctx, c, cred, "SaveOAuthState", state)
	return err
}

// TakeOAuthState consumes a pending authorization code. The registry deletes
// the state on read, making each code single-use.
func (c *Client) TakeOAuthState(ctx context.Context, cred Credential, code string) (*OAuthState, error) {
	return call[OAuthState](ctx, c, cred, "TakeOAuthState", struct {
		Code string `json:"code"`
	}{Code: code})
}

// RegisterOAuthClient registers a new OAuth client in the registry.
func (c *Client) RegisterOAuthClient(ctx context.Context, cred Credential, client OAuthClient) (*OAuthClient, error) {
	return call[OAuthClient](ctx, c, cred, "RegisterOAuthClient", client)
}
