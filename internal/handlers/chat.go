package handlers

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pliu/chatroom/internal/apperr"
	"github.com/pliu/chatroom/internal/delivery"
	"github.com/pliu/chatroom/internal/events"
	"github.com/pliu/chatroom/internal/middleware"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/room"
	"github.com/pliu/chatroom/internal/store"
)

type ChatHandler struct {
	Store      store.Store
	Hub        Notifier
	Dispatcher *delivery.Dispatcher
}

type CreateDirectChatRequest struct {
	UserID string `json:"userId" validate:"required"`
}

type CreateGroupChatRequest struct {
	Name    string   `json:"name" validate:"required,max=100"`
	UserIDs []string `json:"userIds" validate:"required,min=1,dive,required"`
}

// CreateDirectChat opens the one-to-one chat between the caller and another
// user, returning the existing one when the pair already has a chat.
func (h *ChatHandler) CreateDirectChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req CreateDirectChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID == userID {
		writeError(w, r, apperr.Validation("userId", "Cannot create chat with yourself"))
		return
	}

	if _, err := h.Store.GetUserByID(r.Context(), req.UserID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, apperr.NotFound("User not found"))
			return
		}
		writeError(w, r, apperr.Transient(err))
		return
	}

	chat, created, err := h.Store.CreateDirectChat(r.Context(), userID, req.UserID)
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	if !created {
		writeJSON(w, http.StatusOK, "Direct chat already exists", chat)
		return
	}

	h.announce(chat)
	writeJSON(w, http.StatusCreated, "Direct chat created", chat)
}

// CreateGroupChat creates a named chat with the caller and the listed users.
func (h *ChatHandler) CreateGroupChat(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)

	var req CreateGroupChatRequest
	if err := decodeJSON(r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, r, apperr.Validation("name", "Group name and users are required"))
		return
	}

	members := append([]string{userID}, req.UserIDs...)
	slices.Sort(members)
	members = slices.Compact(members)
	if len(members) < 2 {
		writeError(w, r, apperr.Validation("userIds", "Group name and users are required"))
		return
	}

	chat, err := h.Store.CreateGroupChat(r.Context(), name, members)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}

	h.announce(chat)
	writeJSON(w, http.StatusCreated, "Group chat created", chat)
}

// announce tells every member's open connections about a new chat.
func (h *ChatHandler) announce(chat *models.Chat) {
	payload := events.ChatPayload{ChatID: chat.ID, Room: room.ChatKey(chat.ID)}
	for _, m := range chat.Members {
		h.Hub.SendToUser(m.UserID, events.ChatCreated, payload)
	}
}

func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	chats, err := h.Store.GetUserChats(r.Context(), middleware.UserID(r))
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	writeJSON(w, http.StatusOK, "", chats)
}

func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatId"]

	chat, err := h.Store.GetChat(r.Context(), chatID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, apperr.AccessDenied("Access denied or chat not found"))
		return
	}
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	if !isMember(chat, middleware.UserID(r)) {
		writeError(w, r, apperr.AccessDenied("Access denied or chat not found"))
		return
	}
	writeJSON(w, http.StatusOK, "", chat)
}

// DeleteChat removes a chat and everything in it. Any member may delete.
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatId"]

	ok, err := h.Store.IsMember(r.Context(), chatID, middleware.UserID(r))
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	if !ok {
		writeError(w, r, apperr.AccessDenied("Chat not found or access denied"))
		return
	}

	if err := h.Store.DeleteChat(r.Context(), chatID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, r, apperr.NotFound("Chat not found"))
			return
		}
		writeError(w, r, apperr.Transient(err))
		return
	}

	h.Dispatcher.ChatDeleted(chatID)
	writeJSON(w, http.StatusOK, "Chat deleted successfully", nil)
}

func isMember(chat *models.Chat, userID string) bool {
	return slices.ContainsFunc(chat.Members, func(m models.ChatMember) bool {
		return m.UserID == userID
	})
}
