package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// TokenStore persists device push tokens.
type TokenStore interface {
	InsertToken(ctx context.Context, userID int64, token string) error
	DeleteToken(ctx context.Context, token string) error
}

// TokenHandler registers and removes device tokens for push delivery.
type TokenHandler struct {
	Store  TokenStore
	Logger *zap.Logger
}

type tokenRequest struct {
	UserID int64  `json:"user_id"`
	Token  string `json:"token"`
}

// CreateToken handles POST /notify/token.
func (h *TokenHandler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request payload", http.StatusBadRequest)
		return
	}
	if req.UserID == 0 || req.Token == "" {
		http.Error(w, "user_id and token are required", http.StatusBadRequest)
		return
	}
	if err := h.Store.InsertToken(r.Context(), req.UserID, req.Token); err != nil {
		h.Logger.Error("token insert failed", zap.Int64("user_id", req.UserID), zap.Error(err))
		http.Error(w, "failed to store token", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// DeleteToken handles DELETE /notify/token/:token.
func (h *TokenHandler) DeleteToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get(":token")
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}
	if err := h.Store.DeleteToken(r.Context(), token); err != nil {
		h.Logger.Error("token delete failed", zap.Error(err))
		http.Error(w, "failed to delete token", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
