package router

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/devfans/golang/log"
)

// createShareRequest is the body of POST /api/create-share.
type createShareRequest struct {
	XanoToken string `json:"xanoToken"`
	UserID    string `json:"userId"`
}

type createShareResponse struct {
	McpURL   string `json:"mcpUrl"`
	McpToken string `json:"mcpToken"`
}

type revokeShareRequest struct {
	McpToken string `json:"mcpToken"`
}

func (rt *Router) handleCreateShare(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.XanoToken) == "" || strings.TrimSpace(req.UserID) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "xanoToken and userId are required"})
		return
	}

	token, err := rt.shares.Create(req.XanoToken, req.UserID)
	if err != nil {
		log.Error("Share creation failed", "user_id", req.UserID, "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create share"})
		return
	}

	writeJSON(w, http.StatusOK, createShareResponse{
		McpURL:   rt.cfg.Public() + "/mcp",
		McpToken: token,
	})
}

func (rt *Router) handleRevokeShare(w http.ResponseWriter, r *http.Request) {
	var req revokeShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if strings.TrimSpace(req.McpToken) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mcpToken is required"})
		return
	}

	// Revoking an unknown or already-expired token is not an error.
	if err := rt.shares.Revoke(req.McpToken); err != nil {
		log.Error("Share revocation failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to revoke share"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}
