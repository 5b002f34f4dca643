package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pliu/chatroom/internal/models"
	"github.com/rs/zerolog/log"
)

const userColumns = "id, username, email, password, avatar, is_online, last_seen, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		user     models.User
		lastSeen sql.NullTime
	)
	err := row.Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.Avatar, &user.IsOnline, &lastSeen, &user.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		user.LastSeen = &t
	}
	return &user, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	query := s.rebind("INSERT INTO users (id, username, email, password, avatar, is_online, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, user.ID, user.Username, user.Email, user.Password, user.Avatar, user.IsOnline, user.CreatedAt)
	return translate(err)
}

func (s *SQLStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE username = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE email = ?")
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *SQLStore) ListUsers(ctx context.Context, exceptID string) ([]models.User, error) {
	query := s.rebind("SELECT " + userColumns + " FROM users WHERE id <> ? ORDER BY username ASC")
	rows, err := s.db.QueryContext(ctx, query, exceptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

// SetUserOnline records a presence transition observed at at. Transitions
// older than the stored last_seen are ignored, so writes that arrive out of
// order cannot leave a user marked online after a later disconnect.
func (s *SQLStore) SetUserOnline(ctx context.Context, userID string, online bool, at time.Time) error {
	at = at.UTC()
	query := s.rebind("UPDATE users SET is_online = ?, last_seen = ? WHERE id = ? AND (last_seen IS NULL OR last_seen <= ?)")
	result, err := s.db.ExecContext(ctx, query, online, at, userID, at)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, s.rebind("SELECT 1 FROM users WHERE id = ?"), userID).Scan(&exists)
	if err != nil {
		return translate(err)
	}
	log.Debug().Str("userID", userID).Bool("online", online).Msg("sqlstore: stale presence update ignored")
	return nil
}
