package delivery

import (
	"github.com/pliu/chatroom/internal/events"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/room"
)

// Broadcaster fans an event out to the connections joined to a room.
type Broadcaster interface {
	Broadcast(roomKey, event string, data any, exceptConnID string)
}

// Dispatcher performs the fan-out half of a send, after the message has
// been persisted.
type Dispatcher struct {
	rooms Broadcaster
}

func NewDispatcher(rooms Broadcaster) *Dispatcher {
	return &Dispatcher{rooms: rooms}
}

// Deliver broadcasts msg to its room, the sending connection included, and
// then clears the sender's typing indicator for everybody else.
// originConnID is empty for sends that did not come from a socket.
func (d *Dispatcher) Deliver(msg *models.Message, originConnID string) events.MessagePayload {
	payload := MessagePayload(msg)
	d.rooms.Broadcast(payload.Room, events.ReceiveMessage, payload, "")
	d.rooms.Broadcast(payload.Room, events.UserTyping, events.TypingPayload{
		UserID:   msg.SenderID,
		Username: msg.SenderName,
		IsTyping: false,
	}, originConnID)
	return payload
}

// ChatDeleted tells everyone still in the room that the chat is gone.
func (d *Dispatcher) ChatDeleted(chatID string) {
	key := room.ChatKey(chatID)
	d.rooms.Broadcast(key, events.ChatDeleted, events.ChatPayload{ChatID: chatID, Room: key}, "")
}

// MessagePayload builds the receive_message body for msg.
func MessagePayload(msg *models.Message) events.MessagePayload {
	return events.MessagePayload{
		ID:         msg.ID,
		ChatID:     msg.ChatID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Text:       msg.Content,
		Timestamp:  msg.CreatedAt,
		Room:       room.ChatKey(msg.ChatID),
		FileURL:    msg.FileURL,
		FileType:   msg.FileType,
		FileName:   msg.FileName,
	}
}
