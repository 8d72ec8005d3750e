// Package router is the HTTP front door of the proxy. It resolves caller
// credentials, speaks the legacy MCP wire shapes (event stream and JSON-RPC
// over POST) directly, mounts the SDK transports for standard MCP clients,
// and hosts the share-management API.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/devfans/golang/log"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"xano-mcp/pkg/auth"
	"xano-mcp/pkg/config"
	"xano-mcp/pkg/mcpserver"
	"xano-mcp/pkg/share"
	"xano-mcp/pkg/xano"
)

// Router wires every HTTP surface of the proxy.
type Router struct {
	cfg      *config.Config
	resolver *auth.Resolver
	shares   share.Store
	registry *xano.Client
	builder  *mcpserver.Builder
	version  string

	// oauth optionally mounts the OAuth front-end endpoints.
	oauth OAuthFrontend
}

// OAuthFrontend is the slice of the OAuth handler the router mounts.
type OAuthFrontend interface {
	HandleAuthorize(w http.ResponseWriter, r *http.Request)
	HandleApprove(w http.ResponseWriter, r *http.Request)
	HandleToken(w http.ResponseWriter, r *http.Request)
	HandleRegister(w http.ResponseWriter, r *http.Request)
}

// New assembles the router.
func New(cfg *config.Config, resolver *auth.Resolver, shares share.Store, registry *xano.Client, builder *mcpserver.Builder, oauth OAuthFrontend, version string) *Router {
	return &Router{
		cfg:      cfg,
		resolver: resolver,
		shares:   shares,
		registry: registry,
		builder:  builder,
		oauth:    oauth,
		version:  version,
	}
}

// serverContextKey carries the per-request MCP server for SDK transports.
type serverContextKey struct{}

// Handler builds the route table.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", rt.handleHealth)

	// Share management API (called by the credential owner, not MCP clients).
	mux.HandleFunc("POST /api/create-share", rt.handleCreateShare)
	mux.HandleFunc("POST /api/revoke-share", rt.handleRevokeShare)

	// Legacy MCP surface: GET upgrades to an event stream, POST is JSON-RPC.
	for _, path := range []string{"/mcp", "/sse"} {
		mux.HandleFunc("GET "+path, rt.handleStream)
		mux.HandleFunc("POST "+path, rt.handleRPC)
	}

	// Standard MCP transports from the SDK, behind the same credential
	// resolution.
	streamable := mcp.NewStreamableHTTPHandler(serverFromRequest, nil)
	sse := mcp.NewSSEHandler(serverFromRequest)
	mux.Handle("/sdk/mcp", rt.withSession(streamable))
	mux.Handle("/sdk/sse", rt.withSession(sse))
	mux.Handle("/sdk/sse/", rt.withSession(sse))

	if rt.oauth != nil {
		mux.HandleFunc("GET /authorize", rt.oauth.HandleAuthorize)
		mux.HandleFunc("POST /approve", rt.oauth.HandleApprove)
		mux.HandleFunc("POST /token", rt.oauth.HandleToken)
		mux.HandleFunc("POST /register", rt.oauth.HandleRegister)
	}

	return mux
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": mcpserver.ServerName,
		"version": rt.version,
	})
}

// resolveIdentity authenticates the request, mapping failures onto the error
// taxonomy: 401 for missing/invalid credentials, 502 when the share store
// itself failed. Returns nil after writing the response on failure.
func (rt *Router) resolveIdentity(w http.ResponseWriter, r *http.Request, id json.RawMessage) *auth.Identity {
	identity, err := rt.resolver.Resolve(r)
	if err == nil {
		return identity
	}

	if errors.Is(err, auth.ErrUnauthenticated) {
		writeRPCError(w, http.StatusUnauthorized, id, codeUnauthorized, err.Error())
		return nil
	}

	// A store failure is an availability problem, not an auth decision.
	log.Error("Credential resolution failed", "path", r.URL.Path, "err", err)
	writeRPCError(w, http.StatusBadGateway, id, codeUpstream, "credential resolution unavailable")
	return nil
}

// withSession authenticates the request, builds the caller's MCP server and
// exposes it to the SDK transport via the request context.
func (rt *Router) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := rt.resolveIdentity(w, r, nil)
		if identity == nil {
			return
		}

		server, err := rt.builder.Build(r.Context(), xano.Credential{
			Token:  identity.Credential,
			UserID: identity.UserID,
		})
		if err != nil {
			log.Error("MCP server build failed", "path", r.URL.Path, "err", err)
			writeRPCError(w, http.StatusBadGateway, nil, codeUpstream, err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), serverContextKey{}, server)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func serverFromRequest(r *http.Request) *mcp.Server {
	server, _ := r.Context().Value(serverContextKey{}).(*mcp.Server)
	return server
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("Failed to encode response", "err", err)
	}
}
