package router

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/devfans/golang/log"

	"xano-mcp/pkg/mcpserver"
	"xano-mcp/pkg/tooling"
	"xano-mcp/pkg/xano"
)

// JSON-RPC error codes. The -32000 range is the server-defined taxonomy:
// upstream registry failures, authentication, and tool lookup misses.
const (
	codeParse          = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUpstream       = -32000
	codeUnauthorized   = -32001
	codeToolNotFound   = -32002
)

const protocolVersion = "2024-11-05"

type rpcRequest struct {
	Jsonrpc string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Jsonrpc string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// toolInfo is the wire shape of one tool in a tools/list result.
type toolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	InputSchema any    `json:"inputSchema"`
}

// contentItem is the MCP content envelope for tool results.
type contentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// handleRPC serves the plain JSON-RPC-over-POST wire shape.
func (rt *Router) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, codeParse, "failed to read request body")
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeRPCError(w, http.StatusBadRequest, nil, codeParse, "invalid JSON body")
		return
	}
	if req.Jsonrpc != "2.0" || strings.TrimSpace(req.Method) == "" {
		writeRPCError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "not a JSON-RPC 2.0 request")
		return
	}

	identity := rt.resolveIdentity(w, r, req.ID)
	if identity == nil {
		return
	}
	cred := xano.Credential{Token: identity.Credential, UserID: identity.UserID}

	switch req.Method {
	case "initialize":
		rt.rpcInitialize(w, req)
	case "tools/list", "getTools":
		rt.rpcListTools(w, r, cred, req)
	case "executeTool", "tools/call":
		rt.rpcExecuteTool(w, r, cred, req)
	default:
		writeRPCError(w, http.StatusOK, req.ID, codeMethodNotFound, "method not found: "+req.Method)
	}
}

func (rt *Router) rpcInitialize(w http.ResponseWriter, req rpcRequest) {
	writeRPCResult(w, req.ID, map[string]any{
		"protocolVersion": protocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo": map[string]any{
			"name":    mcpserver.ServerName,
			"version": rt.version,
		},
	})
}

func (rt *Router) rpcListTools(w http.ResponseWriter, r *http.Request, cred xano.Credential, req rpcRequest) {
	tools, err := rt.registry.ListTools(r.Context(), cred)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}
	writeRPCResult(w, req.ID, map[string]any{"tools": toolInfos(tools)})
}

// executeParams is the executeTool parameter shape.
type executeParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (rt *Router) rpcExecuteTool(w http.ResponseWriter, r *http.Request, cred xano.Credential, req rpcRequest) {
	var params executeParams
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			writeRPCError(w, http.StatusOK, req.ID, codeInvalidParams, "invalid executeTool params")
			return
		}
	}
	if strings.TrimSpace(params.Name) == "" {
		writeRPCError(w, http.StatusOK, req.ID, codeInvalidParams, "tool name is required")
		return
	}

	tools, err := rt.registry.ListTools(r.Context(), cred)
	if err != nil {
		writeRegistryError(w, req.ID, err)
		return
	}

	var desc *tooling.Descriptor
	for i := range tools {
		if tools[i].Name == params.Name {
			desc = &tools[i]
			break
		}
	}
	if desc == nil {
		writeRPCError(w, http.StatusOK, req.ID, codeToolNotFound, "tool not found: "+params.Name)
		return
	}

	executor := tooling.NewExecutor(rt.registry.Endpoints(cred), rt.builder.HTTPClient)

	start := time.Now()
	result, err := executor.Execute(r.Context(), *desc, params.Arguments)
	rt.logUsage(r, cred, params.Name, time.Since(start), err == nil)
	if err != nil {
		log.Error("Tool execution failed", "tool", params.Name, "err", err)
		writeRPCError(w, http.StatusOK, req.ID, codeUpstream, err.Error())
		return
	}

	writeRPCResult(w, req.ID, map[string]any{
		"content": []contentItem{{Type: "text", Text: tooling.Render(result)}},
	})
}

// logUsage records the call in the registry; bookkeeping failures never
// affect the response.
func (rt *Router) logUsage(r *http.Request, cred xano.Credential, tool string, elapsed time.Duration, success bool) {
	if err := rt.registry.LogUsage(r.Context(), cred, xano.Usage{
		UserID:     cred.UserID,
		Tool:       tool,
		DurationMs: elapsed.Milliseconds(),
		Success:    success,
	}); err != nil {
		log.Warn("Usage logging failed", "tool", tool, "err", err)
	}
}

func toolInfos(tools []tooling.Descriptor) []toolInfo {
	infos := make([]toolInfo, len(tools))
	for i, t := range tools {
		infos[i] = toolInfo{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema(),
		}
	}
	return infos
}

// writeRegistryError maps a registry client failure onto a JSON-RPC error
// that names the failing method, never an empty success.
func writeRegistryError(w http.ResponseWriter, id json.RawMessage, err error) {
	var apiErr *xano.APIError
	if errors.As(err, &apiErr) {
		writeRPCError(w, http.StatusOK, id, codeUpstream, apiErr.Error())
		return
	}
	writeRPCError(w, http.StatusOK, id, codeUpstream, err.Error())
}

func writeRPCResult(w http.ResponseWriter, id json.RawMessage, result any) {
	writeJSON(w, http.StatusOK, rpcResponse{Jsonrpc: "2.0", Result: result, ID: normalizeID(id)})
}

func writeRPCError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	writeJSON(w, status, rpcResponse{
		Jsonrpc: "2.0",
		Error:   &rpcError{Code: code, Message: message},
		ID:      normalizeID(id),
	})
}

// normalizeID keeps absent ids explicit as JSON null.
func normalizeID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}
