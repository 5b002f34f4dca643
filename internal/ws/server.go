package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pliu/chatroom/internal/apperr"
	"github.com/pliu/chatroom/internal/delivery"
	"github.com/pliu/chatroom/internal/events"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/room"
	"github.com/rs/zerolog/log"
)

const eventTimeout = 10 * time.Second

// Submitter persists inbound messages.
type Submitter interface {
	SubmitText(ctx context.Context, senderID, chatID, content string) (*models.Message, error)
	SubmitAttachment(ctx context.Context, senderID, chatID string, ref delivery.BlobRef) (*models.Message, error)
}

// MembershipChecker answers whether a user belongs to a chat.
type MembershipChecker interface {
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
}

type Options struct {
	// SendBuffer is the outbound queue length per connection.
	SendBuffer int
	// PermissiveRoomJoin lets a connection join any room key without a
	// membership check.
	PermissiveRoomJoin bool
}

// Server upgrades HTTP requests to websocket connections and turns inbound
// events into hub and delivery calls.
type Server struct {
	hub        *Hub
	messages   Submitter
	members    MembershipChecker
	dispatcher *delivery.Dispatcher
	opts       Options
	upgrader   websocket.Upgrader
}

func NewServer(hub *Hub, messages Submitter, members MembershipChecker, dispatcher *delivery.Dispatcher, opts Options) *Server {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 256
	}
	return &Server{
		hub:        hub,
		messages:   messages,
		members:    members,
		dispatcher: dispatcher,
		opts:       opts,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeWs upgrades the request for userID, who has already been
// authenticated by the caller.
func (s *Server) ServeWs(w http.ResponseWriter, r *http.Request, userID string) {
	if userID == "" {
		apperr.WriteJSON(w, apperr.Unauthorized("Not authorized, no token"))
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws: upgrade failed")
		return
	}

	client := newClient(conn, userID, s.opts.SendBuffer)
	s.hub.Attach(client)
	s.hub.SendTo(client, events.Welcome, events.WelcomePayload{
		Message: "Connected to chat server",
		ID:      client.id,
	})
	log.Debug().Str("connID", client.id).Str("userID", userID).Msg("ws: connection opened")

	go client.writePump()
	go client.readPump(s.hub, s.handle)
}

func (s *Server) handle(c *Client, data []byte) {
	var env events.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.fail(c, "", apperr.Validation("", "Malformed message"))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	var err error
	switch env.Event {
	case events.JoinChat:
		err = s.joinChat(c, env.Data)
	case events.JoinRoom:
		err = s.joinRoom(ctx, c, env.Data)
	case events.LeaveRoom:
		err = s.leaveRoom(c, env.Data)
	case events.SendMessage:
		err = s.sendMessage(ctx, c, env.Data)
	case events.Typing:
		err = s.typing(c, env.Data)
	default:
		err = apperr.Validation("event", "Unknown event "+env.Event)
	}
	if err != nil {
		s.fail(c, env.Event, err)
	}
}

// fail reports err to the originating connection only.
func (s *Server) fail(c *Client, event string, err error) {
	e := apperr.From(err)
	if e.Kind == apperr.KindTransient {
		log.Error().Err(err).Str("connID", c.id).Str("event", event).Msg("ws: event failed")
	}
	s.hub.SendTo(c, events.Error, events.ErrorPayload{
		Code:    e.Code(),
		Message: e.Message,
		Event:   event,
	})
}

func (s *Server) joinChat(c *Client, data json.RawMessage) error {
	var req events.JoinChatRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.UserID == "" {
		// Nothing to register; the connection stays anonymous.
		return nil
	}
	if req.UserID != c.userID {
		return apperr.AccessDenied("Cannot join as another user")
	}
	if !s.hub.Register(c, req.UserID, req.Username) {
		return apperr.Unregistered()
	}
	return nil
}

func (s *Server) joinRoom(ctx context.Context, c *Client, data json.RawMessage) error {
	key, err := decodeRoomKey(data)
	if err != nil {
		return err
	}
	if !s.opts.PermissiveRoomJoin {
		chatID, ok := room.ChatID(key)
		if !ok {
			return apperr.Validation("roomKey", "Invalid room")
		}
		member, err := s.members.IsMember(ctx, chatID, c.userID)
		if err != nil {
			return apperr.Transient(err)
		}
		if !member {
			return apperr.AccessDenied("Access denied")
		}
	}
	s.hub.JoinRoom(c, key)
	return nil
}

func (s *Server) leaveRoom(c *Client, data json.RawMessage) error {
	key, err := decodeRoomKey(data)
	if err != nil {
		return err
	}
	s.hub.LeaveRoom(c, key)
	return nil
}

func (s *Server) sendMessage(ctx context.Context, c *Client, data json.RawMessage) error {
	entry, ok := s.hub.Session(c)
	if !ok {
		return apperr.Unregistered()
	}

	var req events.SendMessageRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.SenderID != "" && req.SenderID != entry.UserID {
		return apperr.AccessDenied("Cannot send as another user")
	}
	chatID, ok := room.ChatID(req.Room)
	if !ok {
		return apperr.Validation("room", "Invalid room")
	}

	var (
		msg *models.Message
		err error
	)
	if req.FileURL != "" {
		msg, err = s.messages.SubmitAttachment(ctx, entry.UserID, chatID, delivery.BlobRef{
			URL:      req.FileURL,
			MIMEType: req.FileType,
			FileName: req.FileName,
		})
	} else {
		msg, err = s.messages.SubmitText(ctx, entry.UserID, chatID, req.Text)
	}
	if err != nil {
		return err
	}

	s.dispatcher.Deliver(msg, c.id)
	return nil
}

func (s *Server) typing(c *Client, data json.RawMessage) error {
	var req events.TypingRequest
	if err := decode(data, &req); err != nil {
		return err
	}
	if req.Room == "" {
		return nil
	}
	s.hub.SetTyping(c, req.Room, req.IsTyping, !s.opts.PermissiveRoomJoin)
	return nil
}

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return apperr.Validation("data", "Missing payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Validation("data", "Malformed payload")
	}
	return nil
}

// decodeRoomKey accepts either {"roomKey": "..."} or a bare JSON string.
func decodeRoomKey(data json.RawMessage) (string, error) {
	var key string
	if err := json.Unmarshal(data, &key); err != nil {
		var req events.RoomRequest
		if err := decode(data, &req); err != nil {
			return "", err
		}
		key = req.RoomKey
	}
	if key == "" {
		return "", apperr.Validation("roomKey", "Room is required")
	}
	return key, nil
}
