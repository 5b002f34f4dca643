package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/pliu/chatroom/internal/events"
	"github.com/pliu/chatroom/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateDirectChat(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")

	rr := env.do(t, http.MethodPost, "/api/chats/direct", CreateDirectChatRequest{UserID: bob.ID}, alice)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var chat models.Chat
	decode(t, rr, &chat)
	assert.False(t, chat.IsGroup)
	assert.Len(t, chat.Members, 2)

	created := env.hub.events(env.hub.sent, events.ChatCreated)
	require.Len(t, created, 2)
	assert.ElementsMatch(t, []string{alice.ID, bob.ID}, []string{created[0].target, created[1].target})
	assert.Equal(t, events.ChatPayload{ChatID: chat.ID, Room: "chat:" + chat.ID}, created[0].data)

	// The pair already has a chat, from either side.
	rr = env.do(t, http.MethodPost, "/api/chats/direct", CreateDirectChatRequest{UserID: alice.ID}, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	var again models.Chat
	res := decode(t, rr, &again)
	assert.Equal(t, "Direct chat already exists", res.Message)
	assert.Equal(t, chat.ID, again.ID)
	assert.Len(t, env.hub.events(env.hub.sent, events.ChatCreated), 2)
}

func TestCreateDirectChatErrors(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/chats/direct", CreateDirectChatRequest{UserID: alice.ID}, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Cannot create chat with yourself", decode(t, rr, nil).Message)

	rr = env.do(t, http.MethodPost, "/api/chats/direct", CreateDirectChatRequest{UserID: "missing"}, alice)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/chats/direct", map[string]string{}, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateGroupChat(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")

	body := CreateGroupChatRequest{Name: "Team", UserIDs: []string{bob.ID, carol.ID, bob.ID, alice.ID}}
	rr := env.do(t, http.MethodPost, "/api/chats/group", body, alice)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var chat models.Chat
	decode(t, rr, &chat)
	assert.True(t, chat.IsGroup)
	assert.Equal(t, "Team", chat.Name)
	assert.Len(t, chat.Members, 3, "creator added once, duplicates dropped")
	assert.Len(t, env.hub.events(env.hub.sent, events.ChatCreated), 3)
}

func TestCreateGroupChatErrors(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")

	rr := env.do(t, http.MethodPost, "/api/chats/group", CreateGroupChatRequest{Name: "Team"}, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "userIds", decode(t, rr, nil).Field)

	rr = env.do(t, http.MethodPost, "/api/chats/group", CreateGroupChatRequest{Name: "   ", UserIDs: []string{"x"}}, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(t, http.MethodPost, "/api/chats/group", CreateGroupChatRequest{Name: "Solo", UserIDs: []string{alice.ID}}, alice)
	assert.Equal(t, http.StatusBadRequest, rr.Code, "the creator alone is not a group")
	assert.Equal(t, "userIds", decode(t, rr, nil).Field)

	rr = env.do(t, http.MethodPost, "/api/chats/group", CreateGroupChatRequest{Name: "Team", UserIDs: []string{"missing"}}, alice)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	chats, err := env.store.GetUserChats(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Empty(t, chats, "a failed create leaves nothing behind")
}

func TestGetChats(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")
	chat := env.directChat(t, alice, bob)

	rr := env.do(t, http.MethodGet, "/api/chats", nil, alice)
	require.Equal(t, http.StatusOK, rr.Code)
	var chats []models.Chat
	decode(t, rr, &chats)
	require.Len(t, chats, 1)
	assert.Equal(t, chat.ID, chats[0].ID)

	rr = env.do(t, http.MethodGet, "/api/chats/"+chat.ID, nil, bob)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/chats/"+chat.ID, nil, carol)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodGet, "/api/chats/missing", nil, alice)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestDeleteChat(t *testing.T) {
	env := newTestEnv(t)
	alice := env.user(t, "alice")
	bob := env.user(t, "bob")
	carol := env.user(t, "carol")
	chat := env.directChat(t, alice, bob)

	rr := env.do(t, http.MethodDelete, "/api/chats/"+chat.ID, nil, carol)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = env.do(t, http.MethodDelete, "/api/chats/"+chat.ID, nil, bob)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Chat deleted successfully", decode(t, rr, nil).Message)

	deleted := env.hub.events(env.hub.broadcasts, events.ChatDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "chat:"+chat.ID, deleted[0].target)

	rr = env.do(t, http.MethodGet, "/api/chats/"+chat.ID, nil, alice)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
