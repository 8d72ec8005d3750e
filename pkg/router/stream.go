package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/devfans/golang/log"
	"github.com/google/uuid"

	"xano-mcp/pkg/mcpserver"
	"xano-mcp/pkg/xano"
)

// handleStream serves the legacy event-stream connection. The event order is
// fixed: server_info, tools_list, ready, then periodic pings until the peer
// disconnects or the maximum connection lifetime elapses.
func (rt *Router) handleStream(w http.ResponseWriter, r *http.Request) {
	identity := rt.resolveIdentity(w, r, nil)
	if identity == nil {
		return
	}
	cred := xano.Credential{Token: identity.Credential, UserID: identity.UserID}

	// Load the tool list before committing to the stream so a registry
	// failure is still reportable as a proper error response.
	tools, err := rt.registry.ListTools(r.Context(), cred)
	if err != nil {
		log.Error("Tool listing failed for stream", "err", err)
		writeRegistryError(w, nil, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sessionID := uuid.NewString()
	if err := rt.registry.RegisterSession(r.Context(), cred, xano.Session{
		ID:           sessionID,
		UserID:       cred.UserID,
		ClientName:   mcpserver.ServerName,
		ClientMeta:   r.UserAgent(),
		LastActivity: time.Now(),
		Status:       "connected",
	}); err != nil {
		log.Warn("Session registration failed, continuing", "session_id", sessionID, "err", err)
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	writeEvent(w, "server_info", map[string]any{
		"name":       mcpserver.ServerName,
		"version":    rt.version,
		"session_id": sessionID,
	})
	writeEvent(w, "tools_list", map[string]any{"tools": toolInfos(tools)})
	writeEvent(w, "ready", map[string]any{"session_id": sessionID})
	flusher.Flush()

	log.Info("Event stream opened", "session_id", sessionID, "user_id", cred.UserID)

	ticker := time.NewTicker(rt.cfg.StreamPingInterval)
	defer ticker.Stop()
	lifetime := time.NewTimer(rt.cfg.StreamMaxLifetime)
	defer lifetime.Stop()

	for {
		select {
		case <-r.Context().Done():
			log.Info("Event stream closed by peer", "session_id", sessionID)
			rt.closeSession(cred, sessionID)
			return
		case <-lifetime.C:
			log.Info("Event stream reached max lifetime", "session_id", sessionID)
			rt.closeSession(cred, sessionID)
			return
		case <-ticker.C:
			writeEvent(w, "ping", map[string]any{"ts": time.Now().Unix()})
			flusher.Flush()
		}
	}
}

// closeSession is best-effort bookkeeping on stream teardown. The request
// context is gone by now, so it gets its own deadline.
func (rt *Router) closeSession(cred xano.Credential, sessionID string) {
	ctx, cancel := newDetachedContext(rt.cfg.RequestTimeout)
	defer cancel()
	if err := rt.registry.CloseSession(ctx, cred, sessionID); err != nil {
		log.Warn("Session close failed", "session_id", sessionID, "err", err)
	}
}

func newDetachedContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = xano.DefaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error("Failed to encode stream event", "event", event, "err", err)
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
