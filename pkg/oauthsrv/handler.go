// Package oauthsrv implements the OAuth front-end the proxy presents to
// generic OAuth clients: authorize, approve, token and register endpoints.
// The proxy mints codes and bearer tokens; the registry persists all of it,
// so the front-end itself is stateless.
package oauthsrv

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/devfans/golang/log"

	"xano-mcp/pkg/xano"
)

// CodeTTL bounds how long an authorization code stays exchangeable.
const CodeTTL = 10 * time.Minute

// DefaultTokenTTL is the minted access-token lifetime.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Handler serves the OAuth endpoints.
type Handler struct {
	Registry *xano.Client
	TokenTTL time.Duration

	// now is injectable for expiry tests.
	now func() time.Time
}

// NewHandler builds the OAuth front-end over the registry client.
func NewHandler(registry *xano.Client, tokenTTL time.Duration) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Handler{Registry: registry, TokenTTL: tokenTTL, now: time.Now}
}

// serviceCred is the credential for registry calls made on the proxy's own
// behalf; request signing carries the actual authentication.
var serviceCred = xano.Credential{}

// HandleAuthorize renders the approval page for a pending authorization.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")
	scope := q.Get("scope")

	if clientID == "" || redirectURI == "" {
		http.Error(w, "client_id and redirect_uri are required", http.StatusBadRequest)
		return
	}
	if _, err := url.ParseRequestURI(redirectURI); err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	setSecurityHeaders(w)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, approvalPage,
		html.EscapeString(clientID),
		html.EscapeString(clientID),
		html.EscapeString(redirectURI),
		html.EscapeString(state),
		html.EscapeString(scope),
	)
}

// HandleApprove consumes the approval form, mints an authorization code and
// redirects back to the client.
func (h *Handler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	clientID := r.PostFormValue("client_id")
	redirectURI := r.PostFormValue("redirect_uri")
	state := r.PostFormValue("state")
	xanoToken := r.PostFormValue("xano_token")
	userID := r.PostFormValue("user_id")

	if clientID == "" || redirectURI == "" || xanoToken == "" || userID == "" {
		http.Error(w, "client_id, redirect_uri, xano_token and user_id are required", http.StatusBadRequest)
		return
	}
	target, err := url.ParseRequestURI(redirectURI)
	if err != nil {
		http.Error(w, "invalid redirect_uri", http.StatusBadRequest)
		return
	}

	code := randomToken("code_")
	if err := h.Registry.SaveOAuthState(r.Context(), serviceCred, xano.OAuthState{
		Code:        code,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		State:       state,
		Credential:  xanoToken,
		UserID:      userID,
		CreatedAt:   h.now(),
	}); err != nil {
		log.Error("Failed to persist authorization state", "client_id", clientID, "err", err)
		http.Error(w, "authorization storage failed", http.StatusBadGateway)
		return
	}

	values := target.Query()
	values.Set("code", code)
	if state != "" {
		values.Set("state", state)
	}
	target.RawQuery = values.Encode()

	log.Info("Authorization approved", "client_id", clientID, "user_id", userID)
	http.Redirect(w, r, target.String(), http.StatusFound)
}

// tokenResponse is the success shape of POST /token.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

// HandleToken exchanges an authorization code for a bearer token. Codes are
// single-use: the registry deletes the state when it is taken.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "invalid form body")
		return
	}

	if grant := r.PostFormValue("grant_type"); grant != "authorization_code" {
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "only authorization_code is supported")
		return
	}
	code := r.PostFormValue("code")
	if code == "" {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	state, err := h.Registry.TakeOAuthState(r.Context(), serviceCred, code)
	if err != nil {
		// Only a registry rejection burns the code. An unavailable registry
		// must not tell the client its code is invalid.
		var apiErr *xano.APIError
		if errors.As(err, &apiErr) && !apiErr.Unavailable() {
			writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "unknown or already used code")
			return
		}
		log.Error("Authorization state lookup failed", "err", err)
		writeOAuthError(w, http.StatusBadGateway, "server_error", "authorization storage unavailable")
		return
	}

	if clientID := r.PostFormValue("client_id"); clientID != "" && clientID != state.ClientID {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code was issued to a different client")
		return
	}
	if h.now().Sub(state.CreatedAt) > CodeTTL {
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "code expired")
		return
	}

	accessToken := randomToken("tok_")
	expiresAt := h.now().Add(h.TokenTTL)
	if err := h.Registry.StoreOAuthToken(r.Context(), serviceCred, xano.OAuthToken{
		AccessToken: accessToken,
		TokenType:   "bearer",
		UserID:      state.UserID,
		Credential:  state.Credential,
		ClientID:    state.ClientID,
		ExpiresAt:   expiresAt,
	}); err != nil {
		log.Error("Failed to persist access token", "client_id", state.ClientID, "err", err)
		writeOAuthError(w, http.StatusBadGateway, "server_error", "token storage failed")
		return
	}

	log.Info("Access token issued", "client_id", state.ClientID, "user_id", state.UserID)
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: accessToken,
		TokenType:   "bearer",
		ExpiresIn:   int64(h.TokenTTL.Seconds()),
	})
}

// registerRequest is the dynamic client registration body.
type registerRequest struct {
	ClientName   string   `json:"client_name"`
	RedirectURIs []string `json:"redirect_uris"`
}

// HandleRegister registers a new OAuth client and returns its credentials.
func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_client_metadata", "invalid JSON body")
		return
	}
	if len(req.RedirectURIs) == 0 {
		writeOAuthError(w, http.StatusBadRequest, "invalid_redirect_uri", "at least one redirect_uri is required")
		return
	}
	for _, uri := range req.RedirectURIs {
		if _, err := url.ParseRequestURI(uri); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_redirect_uri", "invalid redirect_uri: "+uri)
			return
		}
	}

	client, err := h.Registry.RegisterOAuthClient(r.Context(), serviceCred, xano.OAuthClient{
		ClientID:     randomToken("client_"),
		ClientSecret: randomToken("secret_"),
		ClientName:   strings.TrimSpace(req.ClientName),
		RedirectURIs: req.RedirectURIs,
	})
	if err != nil {
		log.Error("Client registration failed", "client_name", req.ClientName, "err", err)
		writeOAuthError(w, http.StatusBadGateway, "server_error", "client registration failed")
		return
	}

	log.Info("OAuth client registered", "client_id", client.ClientID, "client_name", client.ClientName)
	writeJSON(w, http.StatusCreated, client)
}

func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}

func setSecurityHeaders(w http.ResponseWriter) {
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; style-src 'unsafe-inline'")
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate")
}

// randomToken returns prefix + 32 random url-safe bytes.
func randomToken(prefix string) string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		log.Error("Failed to generate random token", "err", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(b)
}

const approvalPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<title>Authorize %s</title>
<style>
body { font-family: sans-serif; max-width: 28em; margin: 4em auto; }
label { display: block; margin-top: 1em; }
input { width: 100%%; padding: 0.4em; }
button { margin-top: 1.5em; padding: 0.5em 2em; }
</style>
</head>
<body>
<h1>Authorize access</h1>
<p>An application is requesting access to your Xano tools.</p>
<form method="post" action="/approve">
<input type="hidden" name="client_id" value="%s">
<input type="hidden" name="redirect_uri" value="%s">
<input type="hidden" name="state" value="%s">
<input type="hidden" name="scope" value="%s">
<label>Xano API token <input type="password" name="xano_token" required></label>
<label>User ID <input type="text" name="user_id" required></label>
<button type="submit">Approve</button>
</form>
</body>
</html>
`
