package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.App.Addr)
	assert.Equal(t, "sqlite3", cfg.Database.Driver)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "disk", cfg.Blob.Backend)
	assert.Equal(t, 256, cfg.WS.SendBuffer)
	assert.False(t, cfg.WS.PermissiveRoomJoin)
	assert.True(t, cfg.Receipts.ConflateDelivery)
	assert.Equal(t, int64(10<<20), cfg.Upload.MaxBytes)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	yaml := `
app:
  addr: ":9090"
database:
  driver: postgres
  dsn: postgres://chat@localhost/chat
ws:
  permissive_room_join: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "application.yaml"), []byte(yaml), 0o644))
	t.Setenv("CHATROOM_APP_ADDR", ":7070")
	t.Setenv("CHATROOM_RECEIPTS_CONFLATE_DELIVERY", "false")
	t.Setenv("CHATROOM_AUTH_TOKEN_TTL", "1h")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.App.Addr, "environment wins over the file")
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://chat@localhost/chat", cfg.Database.DSN)
	assert.True(t, cfg.WS.PermissiveRoomJoin)
	assert.False(t, cfg.Receipts.ConflateDelivery)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("CHATROOM_DATABASE_DRIVER", "oracle")
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadRequiresSecretInProduction(t *testing.T) {
	t.Setenv("CHATROOM_APP_ENV", "production")
	_, err := Load(t.TempDir())
	assert.Error(t, err)

	t.Setenv("CHATROOM_AUTH_JWT_SECRET", "a-real-secret")
	_, err = Load(t.TempDir())
	assert.NoError(t, err)
}
