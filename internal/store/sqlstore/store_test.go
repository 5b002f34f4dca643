package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pliu/chatroom/internal/models"
	"github.com/stretchr/testify/require"
)

var testStore *SQLStore

func SetupTestDB(t *testing.T) {
	var err error
	testStore, err = New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
}

func TeardownTestDB() {
	testStore.db.Close()
}

func createUser(t *testing.T, username string) *models.User {
	t.Helper()
	user := &models.User{Username: username, Email: username + "@example.com", Password: "hash"}
	require.NoError(t, testStore.CreateUser(context.Background(), user))
	return user
}

func TestSqliteDSN(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:?_foreign_keys=on"},
		{"chat.db?cache=shared", "chat.db?cache=shared&_foreign_keys=on"},
		{"chat.db?_foreign_keys=off", "chat.db?_foreign_keys=off"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.dsn); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestForeignKeysOnFreshConnection(t *testing.T) {
	s, err := New("sqlite3", filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	defer s.Close()

	// No idle connections are kept, so each query dials a new one.
	s.db.SetMaxIdleConns(0)
	for i := 0; i < 2; i++ {
		var enabled int
		require.NoError(t, s.db.QueryRowContext(context.Background(), "PRAGMA foreign_keys").Scan(&enabled))
		require.Equal(t, 1, enabled)
	}
}
