// Package session tracks which users are connected right now.
//
// A Registry is not safe for concurrent use. It is owned by the websocket
// hub, which serializes every call on its event loop.
package session

import "sort"

// Entry binds one live connection to an authenticated user.
type Entry struct {
	ConnectionID string `json:"socketId"`
	UserID       string `json:"userId"`
	Username     string `json:"username"`
}

type Registry struct {
	entries map[string]Entry
	// userID -> set of connection ids, kept in step with entries.
	byUser map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		byUser:  make(map[string]map[string]struct{}),
	}
}

// Register inserts or replaces the entry for connID. It refuses entries
// without a user id and reports whether the entry was stored.
func (r *Registry) Register(connID, userID, username string) bool {
	if connID == "" || userID == "" {
		return false
	}
	if prev, ok := r.entries[connID]; ok {
		r.unindex(prev)
	}

	e := Entry{ConnectionID: connID, UserID: userID, Username: username}
	r.entries[connID] = e
	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[string]struct{})
		r.byUser[userID] = conns
	}
	conns[connID] = struct{}{}
	return true
}

// Unregister removes the entry for connID, returning it if one existed.
func (r *Registry) Unregister(connID string) (Entry, bool) {
	e, ok := r.entries[connID]
	if !ok {
		return Entry{}, false
	}
	delete(r.entries, connID)
	r.unindex(e)
	return e, true
}

func (r *Registry) unindex(e Entry) {
	conns := r.byUser[e.UserID]
	delete(conns, e.ConnectionID)
	if len(conns) == 0 {
		delete(r.byUser, e.UserID)
	}
}

func (r *Registry) Lookup(connID string) (Entry, bool) {
	e, ok := r.entries[connID]
	return e, ok
}

func (r *Registry) IsOnline(userID string) bool {
	return len(r.byUser[userID]) > 0
}

// Connections returns the connection ids registered for userID.
func (r *Registry) Connections(userID string) []string {
	conns := r.byUser[userID]
	ids := make([]string, 0, len(conns))
	for id := range conns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Snapshot returns every entry ordered by connection id.
func (r *Registry) Snapshot() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectionID < out[j].ConnectionID
	})
	return out
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Reset drops every entry.
func (r *Registry) Reset() {
	r.entries = make(map[string]Entry)
	r.byUser = make(map[string]map[string]struct{})
}
