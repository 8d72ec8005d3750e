package xano

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"xano-mcp/pkg/tooling"
)

// ListTools fetches the tool descriptors the registry exposes for this user.
func (c *Client) ListTools(ctx context.Context, cred Credential) ([]tooling.Descriptor, error) {
	result, err := call[[]tooling.Descriptor](ctx, c, cred, "ListTools", nil)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// GetTool fetches a single tool descriptor by name.
func (c *Client) GetTool(ctx context.Context, cred Credential, name string) (*tooling.Descriptor, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("tool name cannot be empty")
	}
	return call[tooling.Descriptor](ctx, c, cred, "GetTool", struct {
		Name string `json:"name"`
	}{Name: strings.TrimSpace(name)})
}

// boundEndpoints pairs the client with a resolved credential so it can be
// handed to code that must never see credentials directly.
type boundEndpoints struct {
	client *Client
	cred   Credential
}

func (b boundEndpoints) CallEndpoint(ctx context.Context, endpoint string, args map[string]any) (json.RawMessage, error) {
	return b.client.CallEndpoint(ctx, b.cred, endpoint, args)
}

// Endpoints returns an endpoint caller with the credential bound, satisfying
// tooling.EndpointCaller.
func (c *Client) Endpoints(cred Credential) tooling.EndpointCaller {
	return boundEndpoints{client: c, cred: cred}
}

// CallEndpoint executes a registry-hosted endpoint with the given arguments
// and returns the raw result payload. This backs endpoint-directive tools.
func (c *Client) CallEndpoint(ctx context.Context, cred Credential, endpoint string, args map[string]any) (json.RawMessage, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}
	result, err := call[json.RawMessage](ctx, c, cred, "CallEndpoint", struct {
		Endpoint string         `json:"endpoint"`
		Args     map[string]any `json:"args"`
	}{Endpoint: endpoint, Args: args})
	if err != nil {
		return nil, err
	}
	return *result, nil
}
