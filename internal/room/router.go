// Package room maps connections to the conversation rooms they listen on.
//
// Like session.Registry, a Router is owned by the hub event loop and is not
// safe for concurrent use.
package room

import (
	"sort"
	"strings"
)

const chatPrefix = "chat:"

// ChatKey returns the room key of a chat.
func ChatKey(chatID string) string {
	return chatPrefix + chatID
}

// ChatID extracts the chat id from a room key of the form "chat:<id>".
func ChatID(roomKey string) (string, bool) {
	id, ok := strings.CutPrefix(roomKey, chatPrefix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

type set map[string]struct{}

type Router struct {
	rooms map[string]set // room key -> connection ids
	joins map[string]set // connection id -> room keys
}

func NewRouter() *Router {
	return &Router{
		rooms: make(map[string]set),
		joins: make(map[string]set),
	}
}

func (r *Router) Join(connID, roomKey string) {
	add(r.rooms, roomKey, connID)
	add(r.joins, connID, roomKey)
}

// Leave removes connID from roomKey and reports whether it was a member.
func (r *Router) Leave(connID, roomKey string) bool {
	if _, ok := r.rooms[roomKey][connID]; !ok {
		return false
	}
	remove(r.rooms, roomKey, connID)
	remove(r.joins, connID, roomKey)
	return true
}

// LeaveAll removes connID from every room and returns the rooms it left.
func (r *Router) LeaveAll(connID string) []string {
	left := sorted(r.joins[connID])
	for _, roomKey := range left {
		remove(r.rooms, roomKey, connID)
	}
	delete(r.joins, connID)
	return left
}

// Members returns the connections joined to roomKey, minus except.
func (r *Router) Members(roomKey, except string) []string {
	members := r.rooms[roomKey]
	out := make([]string, 0, len(members))
	for connID := range members {
		if connID != except {
			out = append(out, connID)
		}
	}
	sort.Strings(out)
	return out
}

func (r *Router) Rooms(connID string) []string {
	return sorted(r.joins[connID])
}

func (r *Router) Has(connID, roomKey string) bool {
	_, ok := r.rooms[roomKey][connID]
	return ok
}

// Len returns the number of non-empty rooms.
func (r *Router) Len() int {
	return len(r.rooms)
}

func (r *Router) Reset() {
	r.rooms = make(map[string]set)
	r.joins = make(map[string]set)
}

func add(m map[string]set, key, member string) {
	s, ok := m[key]
	if !ok {
		s = make(set)
		m[key] = s
	}
	s[member] = struct{}{}
}

func remove(m map[string]set, key, member string) {
	s, ok := m[key]
	if !ok {
		return
	}
	delete(s, member)
	if len(s) == 0 {
		delete(m, key)
	}
}

func sorted(s set) []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
