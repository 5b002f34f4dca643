package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pliu/chatroom/internal/apperr"
	"github.com/pliu/chatroom/internal/blob"
	"github.com/pliu/chatroom/internal/delivery"
	"github.com/pliu/chatroom/internal/middleware"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/store"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 500
)

type MessageHandler struct {
	Store      store.Store
	Messages   *delivery.Service
	Dispatcher *delivery.Dispatcher
	Blobs      blob.Store
	// BaseURL prefixes the /files/ links handed out for uploads. Empty
	// means links are relative to this server.
	BaseURL        string
	MaxUploadBytes int64
}

type CreateMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type MarkReadRequest struct {
	MessageIDs []string `json:"messageIds"`
}

// GetMessages lists the latest messages of a chat, oldest first, each with
// its status as seen by the caller.
func (h *MessageHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	chatID := mux.Vars(r)["chatId"]

	limit := defaultMessageLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, r, apperr.Validation("limit", "limit must be a positive integer"))
			return
		}
		limit = min(n, maxMessageLimit)
	}

	if err := h.requireMember(r, chatID, userID); err != nil {
		writeError(w, r, err)
		return
	}

	messages, err := h.Store.GetChatMessages(r.Context(), chatID, limit)
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	reads, err := h.Store.FindViewerReads(r.Context(), chatID, userID)
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}
	for i := range messages {
		var row *models.MessageRead
		if read, ok := reads[messages[i].ID]; ok {
			row = &read
		}
		messages[i].Status = delivery.StatusOf(&messages[i], userID, row)
	}

	writeJSON(w, http.StatusOK, "", messages)
}

func (h *MessageHandler) CreateMessage(w http.ResponseWriter, r *http.Request) {
	chatID := mux.Vars(r)["chatId"]

	var req CreateMessageRequest
	if err := decodeJSON(r, &req, false); err != nil {
		if e := apperr.From(err); e.Field == "content" {
			err = apperr.Validation("content", "Message content is required")
		}
		writeError(w, r, err)
		return
	}

	msg, err := h.Messages.SubmitText(r.Context(), middleware.UserID(r), chatID, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.Dispatcher.Deliver(msg, "")
	msg.Status = models.StatusSent
	writeJSON(w, http.StatusCreated, "Message sent", msg)
}

// UploadMessage stores the multipart "file" field as an attachment and posts
// it to the chat.
func (h *MessageHandler) UploadMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	chatID := mux.Vars(r)["chatId"]

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.MaxUploadBytes)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, apperr.Validation("file", "File too large"))
			return
		}
		writeError(w, r, apperr.Validation("file", "No file uploaded"))
		return
	}
	defer file.Close()

	if err := h.requireMember(r, chatID, userID); err != nil {
		writeError(w, r, err)
		return
	}

	contentType := header.Header.Get("Content-Type")
	obj, err := h.Blobs.Put(r.Context(), blob.ObjectName(header.Filename), contentType, file)
	if err != nil {
		writeError(w, r, apperr.Transient(err))
		return
	}

	msg, err := h.Messages.SubmitAttachment(r.Context(), userID, chatID, delivery.BlobRef{
		URL:      h.fileURL(obj.Name),
		MIMEType: contentType,
		FileName: header.Filename,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.Dispatcher.Deliver(msg, "")
	msg.Status = models.StatusSent
	writeJSON(w, http.StatusCreated, "File uploaded successfully", msg)
}

func (h *MessageHandler) fileURL(name string) string {
	return strings.TrimSuffix(h.BaseURL, "/") + "/files/" + name
}

func (h *MessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Messages.UnreadCount(r.Context(), middleware.UserID(r), mux.Vars(r)["chatId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]int{"unreadCount": n})
}

func (h *MessageHandler) MarkDelivered(w http.ResponseWriter, r *http.Request) {
	n, err := h.Messages.MarkDelivered(r.Context(), middleware.UserID(r), mux.Vars(r)["chatId"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]int{"markedCount": n})
}

// MarkRead marks the listed messages, or every delivered message when the
// body is empty, as read by the caller.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	var req MarkReadRequest
	if err := decodeJSON(r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.Messages.MarkRead(r.Context(), middleware.UserID(r), mux.Vars(r)["chatId"], req.MessageIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "", map[string]int{"updatedCount": n})
}

func (h *MessageHandler) ReadReceipts(w http.ResponseWriter, r *http.Request) {
	receipts, err := h.Messages.ReadReceiptsFor(r.Context(), mux.Vars(r)["messageId"], middleware.UserID(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, "", receipts)
}

func (h *MessageHandler) requireMember(r *http.Request, chatID, userID string) error {
	ok, err := h.Store.IsMember(r.Context(), chatID, userID)
	if err != nil {
		return apperr.Transient(err)
	}
	if !ok {
		return apperr.AccessDenied("Access denied")
	}
	return nil
}
