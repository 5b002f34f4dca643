package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChatKeyRoundTrip(t *testing.T) {
	assert.Equal(t, "chat:c1", ChatKey("c1"))

	id, ok := ChatID("chat:c1")
	assert.True(t, ok)
	assert.Equal(t, "c1", id)

	for _, bad := range []string{"", "chat:", "room:c1", "c1"} {
		_, ok := ChatID(bad)
		assert.False(t, ok, bad)
	}
}

func TestJoinMultipleRooms(t *testing.T) {
	r := NewRouter()
	r.Join("a", "chat:1")
	r.Join("a", "chat:2")
	r.Join("b", "chat:1")

	assert.Equal(t, []string{"chat:1", "chat:2"}, r.Rooms("a"))
	assert.Equal(t, []string{"a", "b"}, r.Members("chat:1", ""))
	assert.Equal(t, []string{"b"}, r.Members("chat:1", "a"))
	assert.True(t, r.Has("b", "chat:1"))
	assert.False(t, r.Has("b", "chat:2"))
}

func TestJoinIsIdempotent(t *testing.T) {
	r := NewRouter()
	r.Join("a", "chat:1")
	r.Join("a", "chat:1")

	assert.Equal(t, []string{"a"}, r.Members("chat:1", ""))
}

func TestLeave(t *testing.T) {
	r := NewRouter()
	r.Join("a", "chat:1")

	assert.False(t, r.Leave("b", "chat:1"))
	assert.True(t, r.Leave("a", "chat:1"))
	assert.False(t, r.Leave("a", "chat:1"))

	assert.Empty(t, r.Members("chat:1", ""))
	assert.Equal(t, 0, r.Len(), "empty rooms are dropped")
}

func TestLeaveAll(t *testing.T) {
	r := NewRouter()
	r.Join("a", "chat:1")
	r.Join("a", "chat:2")
	r.Join("b", "chat:2")

	assert.Equal(t, []string{"chat:1", "chat:2"}, r.LeaveAll("a"))
	assert.Empty(t, r.Rooms("a"))
	assert.Equal(t, []string{"b"}, r.Members("chat:2", ""))
	assert.Equal(t, 1, r.Len())

	assert.Empty(t, r.LeaveAll("a"))
}
