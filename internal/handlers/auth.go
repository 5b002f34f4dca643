package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/pliu/chatroom/internal/apperr"
	"github.com/pliu/chatroom/internal/auth"
	"github.com/pliu/chatroom/internal/middleware"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/store"
)

// Notifier pushes events to a user's live connections.
type Notifier interface {
	SendToUser(userID, event string, data any)
	LogoutUser(userID string)
}

type AuthHandler struct {
	Store  store.Store
	Tokens *auth.Issuer
	Hub    Notifier
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Username = strings.TrimSpace(req.Username)

	if taken, err := h.exists(r.Context(), req.Email, req.Username); err != nil {
		writeError(w, r, err)
		return
	} else if taken {
		writeError(w, r, apperr.Conflict("User already exists"))
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}

	now := time.Now().UTC()
	user := &models.User{
		Username:  req.Username,
		Email:     req.Email,
		Password:  hashed,
		CreatedAt: now,
	}
	if err := h.Store.CreateUser(r.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			writeError(w, r, apperr.Conflict("User already exists"))
			return
		}
		writeError(w, r, apperr.Transient(err))
		return
	}

	writeJSON(w, http.StatusCreated, "User registered successfully", user)
}

func (h *AuthHandler) exists(ctx context.Context, email, username string) (bool, error) {
	if _, err := h.Store.GetUserByEmail(ctx, email); err == nil {
		return true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, apperr.Transient(err)
	}
	if _, err := h.Store.GetUserByUsername(ctx, username); err == nil {
		return true, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, apperr.Transient(err)
	}
	return false, nil
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}

	user, err := h.Store.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.Unauthorized("Invalid credentials"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	if !auth.CheckPassword(user.Password, req.Password) {
		writeError(w, r, apperr.Unauthorized("Invalid credentials"))
		return
	}

	token, err := h.Tokens.Issue(user.ID, user.Username)
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}

	now := time.Now().UTC()
	if err := h.Store.SetUserOnline(r.Context(), user.ID, true, now); err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	user.IsOnline = true
	user.LastSeen = &now

	auth.SetCookie(w, token, h.Tokens.TTL())
	writeJSON(w, http.StatusOK, "Login successful", LoginResponse{User: user, Token: token})
}

// Logout ends the caller's chat sessions and marks them offline.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	h.Hub.LogoutUser(userID)
	if err := h.Store.SetUserOnline(r.Context(), userID, false, time.Now().UTC()); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.Transient(err))
		return
	}

	auth.ClearCookie(w)
	writeJSON(w, http.StatusOK, "Logged out", nil)
}

// ListUsers returns everyone except the caller, optionally filtered by a
// case-insensitive ?search= on username or email.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Store.ListUsers(r.Context(), middleware.UserID(r))
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}

	if search := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("search"))); search != "" {
		filtered := users[:0]
		for _, u := range users {
			if strings.Contains(strings.ToLower(u.Username), search) || strings.Contains(strings.ToLower(u.Email), search) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	writeJSON(w, http.StatusOK, "", users)
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, err := h.Store.GetUserByID(r.Context(), middleware.UserID(r))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	writeJSON(w, http.StatusOK, "", user)
}
