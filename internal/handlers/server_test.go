package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/pliu/chatroom/internal/auth"
	"github.com/pliu/chatroom/internal/blob"
	"github.com/pliu/chatroom/internal/delivery"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/store/sqlstore"
	"github.com/stretchr/testify/require"
)

type sentEvent struct {
	target string
	event  string
	data   any
}

// fakeHub records what the handlers push to live connections.
type fakeHub struct {
	mu         sync.Mutex
	sent       []sentEvent
	broadcasts []sentEvent
	loggedOut  []string
}

func (f *fakeHub) SendToUser(userID, event string, data any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentEvent{userID, event, data})
}

func (f *fakeHub) LogoutUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loggedOut = append(f.loggedOut, userID)
}

func (f *fakeHub) Broadcast(roomKey, event string, data any, _ string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, sentEvent{roomKey, event, data})
}

func (f *fakeHub) events(list []sentEvent, event string) []sentEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentEvent
	for _, e := range list {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type testEnv struct {
	store  *sqlstore.SQLStore
	issuer *auth.Issuer
	hub    *fakeHub
	blobs  *blob.DiskStore
	router *mux.Router
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	s, err := sqlstore.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	issuer, err := auth.NewIssuer("test-secret", time.Minute)
	require.NoError(t, err)

	blobs, err := blob.NewDiskStore(t.TempDir())
	require.NoError(t, err)

	hub := &fakeHub{}
	svc := delivery.NewService(s)
	dispatcher := delivery.NewDispatcher(hub)

	r := mux.NewRouter()
	RegisterRoutes(r,
		&AuthHandler{Store: s, Tokens: issuer, Hub: hub},
		&ChatHandler{Store: s, Hub: hub, Dispatcher: dispatcher},
		&MessageHandler{Store: s, Messages: svc, Dispatcher: dispatcher, Blobs: blobs, BaseURL: "http://files.test", MaxUploadBytes: 1 << 20},
		issuer,
	)

	return &testEnv{store: s, issuer: issuer, hub: hub, blobs: blobs, router: r}
}

// user creates an account whose password is "password123".
func (e *testEnv) user(t *testing.T, username string) *models.User {
	t.Helper()
	hashed, err := auth.HashPassword("password123")
	require.NoError(t, err)
	u := &models.User{Username: username, Email: username + "@example.com", Password: hashed}
	require.NoError(t, e.store.CreateUser(context.Background(), u))
	return u
}

func (e *testEnv) directChat(t *testing.T, a, b *models.User) *models.Chat {
	t.Helper()
	chat, _, err := e.store.CreateDirectChat(context.Background(), a.ID, b.ID)
	require.NoError(t, err)
	return chat
}

func (e *testEnv) do(t *testing.T, method, path string, body any, as *models.User) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	e.authorize(t, req, as)

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) authorize(t *testing.T, req *http.Request, as *models.User) {
	t.Helper()
	if as == nil {
		return
	}
	token, err := e.issuer.Issue(as.ID, as.Username)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Field   string          `json:"field"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &env), rr.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data), rr.Body.String())
	}
	return env
}
