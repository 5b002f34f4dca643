package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pliu/chatroom/internal/middleware"
)

// RegisterRoutes mounts the REST API on r. Everything except register and
// login requires a valid token.
func RegisterRoutes(r *mux.Router, authH *AuthHandler, chatH *ChatHandler, msgH *MessageHandler, verifier middleware.TokenVerifier) {
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/users/register", authH.Register).Methods(http.MethodPost)
	api.HandleFunc("/users/login", authH.Login).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(verifier))

	protected.HandleFunc("/users/all", authH.ListUsers).Methods(http.MethodGet)
	protected.HandleFunc("/users/profile", authH.Profile).Methods(http.MethodGet)
	protected.HandleFunc("/users/logout", authH.Logout).Methods(http.MethodPost)

	protected.HandleFunc("/chats/direct", chatH.CreateDirectChat).Methods(http.MethodPost)
	protected.HandleFunc("/chats/group", chatH.CreateGroupChat).Methods(http.MethodPost)
	protected.HandleFunc("/chats", chatH.GetChats).Methods(http.MethodGet)
	protected.HandleFunc("/chats/{chatId}", chatH.GetChat).Methods(http.MethodGet)
	protected.HandleFunc("/chats/{chatId}", chatH.DeleteChat).Methods(http.MethodDelete)

	protected.HandleFunc("/messages/receipts/{messageId}", msgH.ReadReceipts).Methods(http.MethodGet)
	protected.HandleFunc("/messages/create/{chatId}", msgH.CreateMessage).Methods(http.MethodPost)
	protected.HandleFunc("/messages/upload/{chatId}", msgH.UploadMessage).Methods(http.MethodPost)
	protected.HandleFunc("/messages/{chatId}", msgH.GetMessages).Methods(http.MethodGet)
	protected.HandleFunc("/messages/{chatId}/unread-count", msgH.UnreadCount).Methods(http.MethodGet)
	protected.HandleFunc("/messages/{chatId}/delivered", msgH.MarkDelivered).Methods(http.MethodPost)
	protected.HandleFunc("/messages/{chatId}/read", msgH.MarkRead).Methods(http.MethodPost)
}
