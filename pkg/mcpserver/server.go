// Package mcpserver builds MCP servers whose tool set mirrors the Xano
// registry. Servers are constructed per connection so each caller sees the
// tools their credential grants; all execution is forwarded to the registry
// or the directive target.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devfans/golang/log"
	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"xano-mcp/pkg/tooling"
	"xano-mcp/pkg/xano"
)

// ServerName identifies the proxy in the MCP handshake.
const ServerName = "xano-mcp"

// Builder constructs per-connection MCP servers.
type Builder struct {
	Registry *xano.Client
	// HTTPClient executes direct HTTP tool directives.
	HTTPClient *http.Client
	Version    string
}

// NewBuilder wires a builder over the registry client.
func NewBuilder(registry *xano.Client, httpClient *http.Client, version string) *Builder {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: xano.DefaultTimeout}
	}
	return &Builder{Registry: registry, HTTPClient: httpClient, Version: version}
}

// Build fetches the tool list for the credential and assembles a server
// exposing it. Listing failures propagate: a client must never complete a
// handshake against a silently empty tool set. Session registration is best
// effort and cannot fail the build.
func (b *Builder) Build(ctx context.Context, cred xano.Credential) (*mcp.Server, error) {
	tools, err := b.Registry.ListTools(ctx, cred)
	if err != nil {
		return nil, fmt.Errorf("load tool list: %w", err)
	}

	sessionID := uuid.NewString()
	if err := b.Registry.RegisterSession(ctx, cred, xano.Session{
		ID:           sessionID,
		UserID:       cred.UserID,
		ClientName:   ServerName,
		LastActivity: time.Now(),
		Status:       "connected",
	}); err != nil {
		log.Warn("Session registration failed, continuing", "session_id", sessionID, "err", err)
	}

	server := mcp.NewServer(&mcp.Implementation{Name: ServerName, Version: b.Version}, nil)
	server.AddReceivingMiddleware(loggingMiddleware)

	executor := tooling.NewExecutor(b.Registry.Endpoints(cred), b.HTTPClient)
	for _, desc := range tools {
		desc := desc
		server.AddTool(&mcp.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema(),
		}, b.forwardHandler(executor, desc, cred, sessionID))
	}

	log.Info("MCP server built", "session_id", sessionID, "user_id", cred.UserID, "tools", len(tools))
	return server, nil
}

// forwardHandler adapts one descriptor into an MCP tool handler.
func (b *Builder) forwardHandler(executor *tooling.Executor, desc tooling.Descriptor, cred xano.Credential, sessionID string) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := decodeArgs(req.Params.Arguments)
		if err != nil {
			return nil, fmt.Errorf("tool %q: invalid arguments: %w", desc.Name, err)
		}

		start := time.Now()
		result, err := executor.Execute(ctx, desc, args)
		b.bookkeep(ctx, cred, sessionID, desc.Name, time.Since(start), err == nil)
		if err != nil {
			return nil, err
		}

		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: tooling.Render(result)}},
		}, nil
	}
}

// bookkeep touches the session and logs usage. Both are best effort: a
// bookkeeping failure must not fail the tool call that triggered it.
func (b *Builder) bookkeep(ctx context.Context, cred xano.Credential, sessionID, tool string, elapsed time.Duration, success bool) {
	if err := b.Registry.TouchSession(ctx, cred, sessionID); err != nil {
		log.Warn("Session touch failed", "session_id", sessionID, "err", err)
	}
	if err := b.Registry.LogUsage(ctx, cred, xano.Usage{
		SessionID:  sessionID,
		UserID:     cred.UserID,
		Tool:       tool,
		DurationMs: elapsed.Milliseconds(),
		Success:    success,
	}); err != nil {
		log.Warn("Usage logging failed", "session_id", sessionID, "tool", tool, "err", err)
	}
}

// decodeArgs normalizes the SDK's argument payload into a map.
func decodeArgs(v any) (map[string]any, error) {
	switch args := v.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return args, nil
	case json.RawMessage:
		out := map[string]any{}
		if len(args) == 0 {
			return out, nil
		}
		if err := json.Unmarshal(args, &out); err != nil {
			return nil, err
		}
		return out, nil
	default:
		encoded, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		if err := json.Unmarshal(encoded, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// loggingMiddleware logs every MCP method with its duration.
func loggingMiddleware(next mcp.MethodHandler) mcp.MethodHandler {
	return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
		if ctr, ok := req.(*mcp.CallToolRequest); ok {
			log.Info("Calling tool", "name", ctr.Params.Name, "args", ctr.Params.Arguments)
		}

		start := time.Now()
		result, err := next(ctx, method, req)
		duration := time.Since(start)
		if err != nil {
			log.Error("MCP method failed",
				"method", method,
				"duration_ms", duration.Milliseconds(),
				"err", err,
			)
		} else {
			log.Info("MCP method completed",
				"method", method,
				"duration_ms", duration.Milliseconds(),
				"has_result", result != nil,
			)
		}
		return result, err
	}
}
