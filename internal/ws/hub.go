package ws

import (
	"context"
	"time"

	"github.com/pliu/chatroom/internal/events"
	"github.com/pliu/chatroom/internal/room"
	"github.com/pliu/chatroom/internal/session"
	"github.com/rs/zerolog/log"
)

// PresenceRecorder persists a user's online flag when their first
// connection registers or their last one goes away.
type PresenceRecorder interface {
	SetUserOnline(ctx context.Context, userID string, online bool, at time.Time) error
}

type registration struct {
	client   *Client
	userID   string
	username string
	done     chan bool
}

type membership struct {
	client  *Client
	roomKey string
}

type outbound struct {
	roomKey string
	event   string
	data    any
	except  string
}

type typingSignal struct {
	client        *Client
	roomKey       string
	isTyping      bool
	requireJoined bool
}

type direct struct {
	client *Client
	userID string
	event  string
	data   any
}

// Hub owns the session registry and the room router. Every read and write
// of that state happens on the Run goroutine; the exported methods only
// post requests to it. The request channels are unbuffered so that events
// posted by one goroutine are emitted in the order they were posted.
type Hub struct {
	sessions *session.Registry
	rooms    *room.Router
	clients  map[string]*Client

	attach     chan *Client
	detach     chan *Client
	register   chan registration
	logout     chan string
	join       chan membership
	leave      chan membership
	broadcast  chan outbound
	typing     chan typingSignal
	direct     chan direct
	query      chan func()
	done       chan struct{}
	presence   PresenceRecorder
	presenceTO time.Duration
}

func NewHub(presence PresenceRecorder) *Hub {
	return &Hub{
		sessions:   session.NewRegistry(),
		rooms:      room.NewRouter(),
		clients:    make(map[string]*Client),
		attach:     make(chan *Client),
		detach:     make(chan *Client),
		register:   make(chan registration),
		logout:     make(chan string),
		join:       make(chan membership),
		leave:      make(chan membership),
		broadcast:  make(chan outbound),
		typing:     make(chan typingSignal),
		direct:     make(chan direct),
		query:      make(chan func()),
		done:       make(chan struct{}),
		presence:   presence,
		presenceTO: 5 * time.Second,
	}
}

// Run processes hub requests until ctx is cancelled. On return every client
// is closed and all session and room state is dropped.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.attach:
			h.clients[client.id] = client
		case client := <-h.detach:
			h.disconnect(client)
		case r := <-h.register:
			r.done <- h.handleRegister(r)
		case userID := <-h.logout:
			h.handleLogout(userID)
		case m := <-h.join:
			if _, ok := h.clients[m.client.id]; ok {
				h.rooms.Join(m.client.id, m.roomKey)
				h.emit([]*Client{m.client}, events.RoomJoined, events.RoomAck{RoomKey: m.roomKey})
			}
		case m := <-h.leave:
			if _, ok := h.clients[m.client.id]; ok {
				h.rooms.Leave(m.client.id, m.roomKey)
				h.emit([]*Client{m.client}, events.RoomLeft, events.RoomAck{RoomKey: m.roomKey})
			}
		case o := <-h.broadcast:
			h.emit(h.roomTargets(o.roomKey, o.except), o.event, o.data)
		case t := <-h.typing:
			h.handleTyping(t)
		case d := <-h.direct:
			h.handleDirect(d)
		case q := <-h.query:
			q()
		}
	}
}

func (h *Hub) shutdown() {
	close(h.done)
	for _, client := range h.clients {
		close(client.send)
	}
	h.clients = make(map[string]*Client)
	h.sessions.Reset()
	h.rooms.Reset()
	log.Info().Msg("ws: hub stopped")
}

// post delivers a request to the Run loop, giving up once the hub stopped.
func post[T any](h *Hub, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-h.done:
		return false
	}
}

// Attach makes a freshly upgraded connection reachable. It is not a chat
// session until Register succeeds.
func (h *Hub) Attach(client *Client) {
	post(h, h.attach, client)
}

// Detach drops the connection from every room and from the registry.
func (h *Hub) Detach(client *Client) {
	post(h, h.detach, client)
}

// Register binds the connection to a user and announces it to everybody.
// It returns false when the registration was refused.
func (h *Hub) Register(client *Client, userID, username string) bool {
	done := make(chan bool, 1)
	if !post(h, h.register, registration{client: client, userID: userID, username: username, done: done}) {
		return false
	}
	select {
	case ok := <-done:
		return ok
	case <-h.done:
		return false
	}
}

// LogoutUser ends every chat session of userID. The sockets stay open but
// are unregistered.
func (h *Hub) LogoutUser(userID string) {
	post(h, h.logout, userID)
}

func (h *Hub) JoinRoom(client *Client, roomKey string) {
	post(h, h.join, membership{client: client, roomKey: roomKey})
}

func (h *Hub) LeaveRoom(client *Client, roomKey string) {
	post(h, h.leave, membership{client: client, roomKey: roomKey})
}

// Broadcast sends event to every connection joined to roomKey except
// exceptConnID, which may be empty.
func (h *Hub) Broadcast(roomKey, event string, data any, exceptConnID string) {
	post(h, h.broadcast, outbound{roomKey: roomKey, event: event, data: data, except: exceptConnID})
}

// SetTyping relays a typing indicator to the rest of the room. Signals from
// connections without a session are dropped, as are signals for rooms the
// connection has not joined when requireJoined is set.
func (h *Hub) SetTyping(client *Client, roomKey string, isTyping, requireJoined bool) {
	post(h, h.typing, typingSignal{client: client, roomKey: roomKey, isTyping: isTyping, requireJoined: requireJoined})
}

// SendTo queues an event for a single connection.
func (h *Hub) SendTo(client *Client, event string, data any) {
	post(h, h.direct, direct{client: client, event: event, data: data})
}

// SendToUser queues an event for every registered connection of userID.
func (h *Hub) SendToUser(userID, event string, data any) {
	post(h, h.direct, direct{userID: userID, event: event, data: data})
}

// run executes fn on the hub loop and waits for it.
func (h *Hub) run(fn func()) bool {
	done := make(chan struct{})
	if !post(h, h.query, func() { fn(); close(done) }) {
		return false
	}
	select {
	case <-done:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) IsOnline(userID string) bool {
	var online bool
	h.run(func() { online = h.sessions.IsOnline(userID) })
	return online
}

func (h *Hub) Snapshot() []session.Entry {
	var snap []session.Entry
	h.run(func() { snap = h.sessions.Snapshot() })
	return snap
}

// Session returns the session entry of a connection, if it registered.
func (h *Hub) Session(client *Client) (session.Entry, bool) {
	var (
		entry session.Entry
		ok    bool
	)
	h.run(func() { entry, ok = h.sessions.Lookup(client.id) })
	return entry, ok
}

func (h *Hub) RoomMembers(roomKey string) []string {
	var members []string
	h.run(func() { members = h.rooms.Members(roomKey, "") })
	return members
}

func (h *Hub) handleRegister(r registration) bool {
	if _, ok := h.clients[r.client.id]; !ok {
		return false
	}
	wasOnline := h.sessions.IsOnline(r.userID)
	if !h.sessions.Register(r.client.id, r.userID, r.username) {
		return false
	}
	if !wasOnline {
		h.recordPresence(r.userID, true)
	}
	h.emit(h.allClients(), events.UserJoined, events.Presence{
		Username:    r.username,
		UserID:      r.userID,
		ActiveUsers: h.sessions.Snapshot(),
	})
	log.Info().Str("connID", r.client.id).Str("userID", r.userID).Str("username", r.username).Msg("ws: user joined chat")
	return true
}

func (h *Hub) handleLogout(userID string) {
	for _, connID := range h.sessions.Connections(userID) {
		h.unregister(connID)
	}
}

// disconnect tears a connection down completely. It is a no-op for
// connections that are already gone.
func (h *Hub) disconnect(client *Client) {
	if _, ok := h.clients[client.id]; !ok {
		return
	}
	left := h.rooms.LeaveAll(client.id)
	delete(h.clients, client.id)
	close(client.send)
	h.unregister(client.id)
	log.Debug().Str("connID", client.id).Strs("rooms", left).Msg("ws: connection closed")
}

func (h *Hub) unregister(connID string) {
	entry, removed := h.sessions.Unregister(connID)
	if !removed {
		return
	}
	if !h.sessions.IsOnline(entry.UserID) {
		h.recordPresence(entry.UserID, false)
	}
	h.emit(h.allClients(), events.UserLeft, events.Presence{
		Username:    entry.Username,
		UserID:      entry.UserID,
		ActiveUsers: h.sessions.Snapshot(),
	})
	log.Info().Str("connID", connID).Str("userID", entry.UserID).Msg("ws: user left chat")
}

func (h *Hub) handleTyping(t typingSignal) {
	entry, ok := h.sessions.Lookup(t.client.id)
	if !ok {
		return
	}
	if t.requireJoined && !h.rooms.Has(t.client.id, t.roomKey) {
		return
	}
	h.emit(h.roomTargets(t.roomKey, t.client.id), events.UserTyping, events.TypingPayload{
		UserID:   entry.UserID,
		Username: entry.Username,
		IsTyping: t.isTyping,
	})
}

func (h *Hub) handleDirect(d direct) {
	var targets []*Client
	if d.client != nil {
		if c, ok := h.clients[d.client.id]; ok {
			targets = append(targets, c)
		}
	} else {
		for _, connID := range h.sessions.Connections(d.userID) {
			if c, ok := h.clients[connID]; ok {
				targets = append(targets, c)
			}
		}
	}
	h.emit(targets, d.event, d.data)
}

func (h *Hub) roomTargets(roomKey, except string) []*Client {
	ids := h.rooms.Members(roomKey, except)
	targets := make([]*Client, 0, len(ids))
	for _, id := range ids {
		if c, ok := h.clients[id]; ok {
			targets = append(targets, c)
		}
	}
	return targets
}

func (h *Hub) allClients() []*Client {
	targets := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		targets = append(targets, c)
	}
	return targets
}

// emit encodes the event once and queues it on every target. Targets whose
// queue is full are disconnected after the pass.
func (h *Hub) emit(targets []*Client, event string, data any) {
	if len(targets) == 0 {
		return
	}
	msg, err := events.Encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("ws: failed to encode event")
		return
	}

	var slow []*Client
	for _, client := range targets {
		select {
		case client.send <- msg:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		log.Warn().Str("connID", client.id).Str("event", event).Msg("ws: slow consumer, disconnecting")
		h.disconnect(client)
	}
}

func (h *Hub) recordPresence(userID string, online bool) {
	if h.presence == nil {
		return
	}
	at := time.Now().UTC()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), h.presenceTO)
		defer cancel()
		if err := h.presence.SetUserOnline(ctx, userID, online, at); err != nil {
			log.Warn().Err(err).Str("userID", userID).Bool("online", online).Msg("ws: failed to record presence")
		}
	}()
}
