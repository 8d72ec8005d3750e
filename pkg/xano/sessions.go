package xano

import (
	"context"
	"time"
)

// Session mirrors the registry's session record. The registry owns the
// session; the proxy only reports what it sees.
type Session struct {
	ID           string    `json:"session_id"`
	UserID       string    `json:"user_id"`
	ClientName   string    `json:"client_name,omitempty"`
	ClientMeta   string    `json:"client_meta,omitempty"`
	LastActivity time.Time `json:"last_activity"`
	Status       string    `json:"status"`
}

// Usage is one tool-call bookkeeping entry.
type Usage struct {
	SessionID  string `json:"session_id"`
	UserID     string `json:"user_id"`
	Tool       string `json:"tool"`
	DurationMs int64  `json:"duration_ms"`
	Success    bool   `json:"success"`
}

// RegisterSession announces a new client connection to the registry.
func (c *Client) RegisterSession(ctx context.Context, cred Credential, s Session) error {
	_, err := call[any](ctx, c, cred, "RegisterSession", s)
	return err
}

// TouchSession bumps the session's last-activity timestamp.
func (c *Client) TouchSession(ctx context.Context, cred Credential, sessionID string) error {
	_, err := call[any](ctx, c, cred, "TouchSession", struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID})
	return err
}

// CloseSession marks the session as disconnected.
func (c *Client) CloseSession(ctx context.Context, cred Credential, sessionID string) error {
	_, err := call[any](ctx, c, cred, "CloseSession", struct {
		SessionID string `json:"session_id"`
	}{SessionID: sessionID})
	return err
}

// LogUsage records one tool execution for billing and audit.
func (c *Client) LogUsage(ctx context.Context, cred Credential, u Usage) error {
	_, err := call[any](ctx, c, cred, "LogUsage", u)
	return err
}
