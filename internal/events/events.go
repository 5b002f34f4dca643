// Package events defines the websocket wire protocol: event names and the
// payload shapes exchanged with clients.
package events

import (
	"encoding/json"
	"time"

	"github.com/pliu/chatroom/internal/session"
)

// Inbound, client to server.
const (
	JoinChat    = "join_chat"
	JoinRoom    = "join_room"
	LeaveRoom   = "leave_room"
	SendMessage = "send_message"
	Typing      = "typing"
)

// Outbound, server to client.
const (
	Welcome        = "welcome"
	UserJoined     = "user_joined"
	UserLeft       = "user_left"
	RoomJoined     = "room_joined"
	RoomLeft       = "room_left"
	ReceiveMessage = "receive_message"
	UserTyping     = "user_typing"
	ChatCreated    = "chat_created"
	ChatDeleted    = "chat_deleted"
	Error          = "error"
)

// Envelope frames every message on the socket in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an outbound event.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

type JoinChatRequest struct {
	Username string `json:"username"`
	UserID   string `json:"userId"`
}

type RoomRequest struct {
	RoomKey string `json:"roomKey"`
}

type SendMessageRequest struct {
	SenderID string `json:"senderId"`
	Text     string `json:"text"`
	FileURL  string `json:"fileUrl,omitempty"`
	FileType string `json:"fileType,omitempty"`
	FileName string `json:"fileName,omitempty"`
	Room     string `json:"room"`
}

type TypingRequest struct {
	Room     string `json:"room"`
	IsTyping bool   `json:"isTyping"`
}

type WelcomePayload struct {
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Presence is sent to every connection on user_joined and user_left.
type Presence struct {
	Username    string          `json:"username"`
	UserID      string          `json:"userId"`
	ActiveUsers []session.Entry `json:"activeUsers"`
}

type RoomAck struct {
	RoomKey string `json:"roomKey"`
}

type TypingPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

// MessagePayload is the receive_message body. Every recipient, the sender
// included, gets the persisted id and timestamp.
type MessagePayload struct {
	ID         string    `json:"id"`
	ChatID     string    `json:"chatId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Room       string    `json:"room"`
	FileURL    string    `json:"fileUrl,omitempty"`
	FileType   string    `json:"fileType,omitempty"`
	FileName   string    `json:"fileName,omitempty"`
}

type ChatPayload struct {
	ChatID string `json:"chatId"`
	Room   string `json:"room"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}
