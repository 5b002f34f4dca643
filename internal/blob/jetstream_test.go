package blob

import (
	"context"
	"io"
	"strings"
	"testing"

	natstest "github.com/nats-io/nats-server/v2/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runJetStream(t *testing.T) string {
	t.Helper()
	opts := natstest.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	srv := natstest.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv.ClientURL()
}

func TestJetStreamStoreRoundTrip(t *testing.T) {
	url := runJetStream(t)
	ctx := context.Background()

	s, err := NewJetStreamStore(ctx, url, "attachments")
	require.NoError(t, err)
	defer s.Close()

	obj, err := s.Put(ctx, "abc-notes.txt", "text/plain", strings.NewReader("hello"))
	require.NoError(t, err)
	assert.Equal(t, "abc-notes.txt", obj.Name)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "text/plain", obj.ContentType)

	body, info, err := s.Open(ctx, "abc-notes.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, int64(5), info.Size)
	assert.Equal(t, "text/plain", info.ContentType)

	_, _, err = s.Open(ctx, "missing.txt")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJetStreamStoreReopensExistingBucket(t *testing.T) {
	url := runJetStream(t)
	ctx := context.Background()

	first, err := NewJetStreamStore(ctx, url, "attachments")
	require.NoError(t, err)
	_, err = first.Put(ctx, "abc-photo.png", "image/png", strings.NewReader("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewJetStreamStore(ctx, url, "attachments")
	require.NoError(t, err)
	defer second.Close()

	body, info, err := second.Open(ctx, "abc-photo.png")
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, "image/png", info.ContentType)
}

func TestJetStreamStoreUnreachable(t *testing.T) {
	_, err := NewJetStreamStore(context.Background(), "nats://127.0.0.1:1", "attachments")
	assert.Error(t, err)
}
