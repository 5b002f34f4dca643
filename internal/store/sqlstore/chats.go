package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/store"
)

// directKey identifies the unordered pair of a direct chat.
func directKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

func (s *SQLStore) FindDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error) {
	var id string
	query := s.rebind("SELECT id FROM chats WHERE direct_key = ?")
	if err := s.db.QueryRowContext(ctx, query, directKey(userA, userB)).Scan(&id); err != nil {
		return nil, translate(err)
	}
	return s.GetChat(ctx, id)
}

// CreateDirectChat returns the existing chat for the pair when there is one;
// the boolean reports whether a new chat was created.
func (s *SQLStore) CreateDirectChat(ctx context.Context, userA, userB string) (*models.Chat, bool, error) {
	existing, err := s.FindDirectChat(ctx, userA, userB)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, false, err
	}

	key := directKey(userA, userB)
	id, err := s.insertChat(ctx, false, "", &key, []string{userA, userB})
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with a concurrent create for the same pair.
		existing, err := s.FindDirectChat(ctx, userA, userB)
		return existing, false, err
	}
	if err != nil {
		return nil, false, err
	}

	chat, err := s.GetChat(ctx, id)
	return chat, true, err
}

func (s *SQLStore) CreateGroupChat(ctx context.Context, name string, memberIDs []string) (*models.Chat, error) {
	id, err := s.insertChat(ctx, true, name, nil, memberIDs)
	if err != nil {
		return nil, err
	}
	return s.GetChat(ctx, id)
}

func (s *SQLStore) insertChat(ctx context.Context, isGroup bool, name string, key *string, memberIDs []string) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	id := uuid.NewString()
	now := time.Now().UTC()

	var directKey sql.NullString
	if key != nil {
		directKey = sql.NullString{String: *key, Valid: true}
	}

	query := s.rebind("INSERT INTO chats (id, is_group, name, direct_key, created_at) VALUES (?, ?, ?, ?, ?)")
	if _, err := tx.ExecContext(ctx, query, id, isGroup, name, directKey, now); err != nil {
		return "", translate(err)
	}

	query = s.rebind("INSERT INTO chat_members (chat_id, user_id, joined_at) VALUES (?, ?, ?)")
	for _, userID := range memberIDs {
		if _, err := tx.ExecContext(ctx, query, id, userID, now); err != nil {
			return "", translate(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", translate(err)
	}
	return id, nil
}

func (s *SQLStore) GetChat(ctx context.Context, chatID string) (*models.Chat, error) {
	var chat models.Chat
	query := s.rebind("SELECT id, is_group, name, created_at FROM chats WHERE id = ?")
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(&chat.ID, &chat.IsGroup, &chat.Name, &chat.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}

	chat.Members, err = s.GetChatMembers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (s *SQLStore) GetUserChats(ctx context.Context, userID string) ([]models.Chat, error) {
	query := s.rebind(`
		SELECT c.id, c.is_group, c.name, c.created_at
		FROM chats c
		JOIN chat_members m ON c.id = m.chat_id
		WHERE m.user_id = ?
		ORDER BY c.created_at DESC
	`)
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	chats := []models.Chat{}
	for rows.Next() {
		var chat models.Chat
		if err := rows.Scan(&chat.ID, &chat.IsGroup, &chat.Name, &chat.CreatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		chats = append(chats, chat)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the connection before the per-chat lookups below.
	rows.Close()

	for i := range chats {
		if chats[i].Members, err = s.GetChatMembers(ctx, chats[i].ID); err != nil {
			return nil, err
		}
		if chats[i].Messages, err = s.GetChatMessages(ctx, chats[i].ID, 1); err != nil {
			return nil, err
		}
	}
	return chats, nil
}

func (s *SQLStore) GetChatMembers(ctx context.Context, chatID string) ([]models.ChatMember, error) {
	query := s.rebind(`
		SELECT m.chat_id, m.user_id, m.joined_at, u.username, u.avatar, u.is_online, u.last_seen, u.created_at
		FROM chat_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.chat_id = ?
		ORDER BY m.joined_at ASC, u.username ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.ChatMember
	for rows.Next() {
		var (
			m        models.ChatMember
			u        models.User
			lastSeen sql.NullTime
		)
		if err := rows.Scan(&m.ChatID, &m.UserID, &m.JoinedAt, &u.Username, &u.Avatar, &u.IsOnline, &lastSeen, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.ID = m.UserID
		if lastSeen.Valid {
			t := lastSeen.Time
			u.LastSeen = &t
		}
		m.User = &u
		members = append(members, m)
	}
	return members, rows.Err()
}

func (s *SQLStore) DeleteChat(ctx context.Context, chatID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Children first so the delete does not depend on cascade support.
	steps := []string{
		"DELETE FROM message_reads WHERE message_id IN (SELECT id FROM messages WHERE chat_id = ?)",
		"DELETE FROM messages WHERE chat_id = ?",
		"DELETE FROM chat_members WHERE chat_id = ?",
	}
	for _, q := range steps {
		if _, err := tx.ExecContext(ctx, s.rebind(q), chatID); err != nil {
			return err
		}
	}

	result, err := tx.ExecContext(ctx, s.rebind("DELETE FROM chats WHERE id = ?"), chatID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLStore) IsMember(ctx context.Context, chatID, userID string) (bool, error) {
	var exists bool
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM chat_members WHERE chat_id = ? AND user_id = ?)")
	err := s.db.QueryRowContext(ctx, query, chatID, userID).Scan(&exists)
	return exists, err
}

func (s *SQLStore) CountChatMembers(ctx context.Context, chatID string) (int, error) {
	var n int
	query := s.rebind("SELECT COUNT(*) FROM chat_members WHERE chat_id = ?")
	err := s.db.QueryRowContext(ctx, query, chatID).Scan(&n)
	return n, err
}
