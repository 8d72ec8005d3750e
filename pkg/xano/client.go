// Package xano is the thin client for the external Xano registry, the source
// of truth for tool definitions, sessions, credentials and usage logs. It
// translates proxy-level verbs into signed JSON-over-POST calls and decodes
// the registry's response envelope. There is deliberately no retry, backoff
// or caching here.
package xano

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devfans/golang/log"
	"github.com/google/uuid"

	"xano-mcp/pkg/auth"
)

// Version is sent with every registry call so the backend can gate clients.
const Version = "0.1.0"

// DefaultTimeout bounds every outbound registry call.
const DefaultTimeout = 10 * time.Second

// Credential carries the resolved real credential and user for one call.
type Credential struct {
	Token  string
	UserID string
}

// Config holds the client construction parameters.
type Config struct {
	// BaseURL is the registry API root, e.g. https://x8k.xano.io/api:mcp.
	BaseURL string
	// APIKey and APISecret enable request signing when both are set.
	APIKey    string
	APISecret string
	// Timeout bounds each call; zero selects DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client issues calls against the registry. Construct once and share; it is
// safe for concurrent use.
type Client struct {
	baseURL string
	signer  *auth.Signer
	http    *http.Client
}

// New builds a registry client from the config.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("registry base URL is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL: base,
		signer:  auth.NewSigner(cfg.APIKey, cfg.APISecret),
		http:    httpClient,
	}, nil
}

// requestBody is the general registry call payload.
type requestBody struct {
	Token     string `json:"token"`
	UserID    string `json:"user_id"`
	Version   string `json:"version"`
	Fn        string `json:"fn"`
	Params    any    `json:"params"`
	RequestID string `json:"request_id"`
}

// respBody is the registry response envelope. Code zero means success.
type respBody[T any] struct {
	Code       int    `json:"code"`
	Message    string `json:"message"`
	Result     T      `json:"result"`
	MsgDetails string `json:"msgDetails"`
}

// APIError reports a registry-level failure: a non-2xx status or a non-zero
// envelope code. It always identifies the failing fn.
type APIError struct {
	Fn         string
	StatusCode int
	Code       int
	Message    string
}

// Unavailable reports whether the failure reflects registry availability
// rather than a decision the registry made about the request. Callers must
// not turn an unavailable registry into an authorization outcome.
func (e *APIError) Unavailable() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 && e.StatusCode != http.StatusOK {
		return fmt.Sprintf("xano %s: http status %d: %s", e.Fn, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("xano %s: code %d: %s", e.Fn, e.Code, e.Message)
}

// call posts a registry function invocation and decodes the typed result.
// Errors are never collapsed into an empty success value.
func call[T any](ctx context.Context, c *Client, cred Credential, fn string, params any) (*T, error) {
	reqData := requestBody{
		Token:     cred.Token,
		UserID:    cred.UserID,
		Version:   Version,
		Fn:        fn,
		Params:    params,
		RequestID: strings.ReplaceAll(uuid.NewString(), "-", ""),
	}

	jsonData, err := json.Marshal(reqData)
	if err != nil {
		return nil, fmt.Errorf("xano %s: encode request: %w", fn, err)
	}

	url := c.baseURL + "/call"
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("xano %s: build request: %w", fn, err)
	}
	request.Header.Set("Content-Type", "application/json")
	c.signer.Attach(request, jsonData)

	resp, err := c.http.Do(request)
	if err != nil {
		return nil, fmt.Errorf("xano %s: %w", fn, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("xano %s: read response: %w", fn, err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error("Registry call failed", "fn", fn, "status_code", resp.StatusCode, "response", string(body))
		return nil, &APIError{Fn: fn, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var result respBody[T]
	if err := json.Unmarshal(body, &result); err != nil {
		log.Error("Registry response parsing failed", "fn", fn, "err", err, "response", string(body))
		return nil, fmt.Errorf("xano %s: decode response: %w", fn, err)
	}
	if result.Code != 0 {
		message := result.MsgDetails
		if message == "" {
			message = result.Message
		}
		log.Warn("Registry reported error", "fn", fn, "code", result.Code, "details", message)
		return nil, &APIError{Fn: fn, StatusCode: resp.StatusCode, Code: result.Code, Message: message}
	}

	return &result.Result, nil
}
