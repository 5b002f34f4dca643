package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pliu/chatroom/internal/models"
)

const messageColumns = `m.id, m.chat_id, m.sender_id, u.username, m.content, m.file_url, m.file_type, m.file_name, m.created_at`

func scanMessage(row rowScanner) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ChatID, &m.SenderID, &m.SenderName, &m.Content, &m.FileURL, &m.FileType, &m.FileName, &m.CreatedAt)
	if err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

func (s *SQLStore) queryMessages(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *m)
	}
	return messages, rows.Err()
}

// CreateMessage assigns the id and timestamp and fills SenderName. A chat
// that vanished before the insert surfaces as store.ErrNotFound.
func (s *SQLStore) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	query := s.rebind(`
		INSERT INTO messages (id, chat_id, sender_id, content, file_url, file_type, file_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	_, err := s.db.ExecContext(ctx, query, msg.ID, msg.ChatID, msg.SenderID, msg.Content, msg.FileURL, msg.FileType, msg.FileName, msg.CreatedAt)
	if err != nil {
		return translate(err)
	}

	query = s.rebind("SELECT username FROM users WHERE id = ?")
	return translate(s.db.QueryRowContext(ctx, query, msg.SenderID).Scan(&msg.SenderName))
}

func (s *SQLStore) GetMessage(ctx context.Context, messageID string) (*models.Message, error) {
	query := s.rebind("SELECT " + messageColumns + " FROM messages m JOIN users u ON m.sender_id = u.id WHERE m.id = ?")
	return scanMessage(s.db.QueryRowContext(ctx, query, messageID))
}

// GetChatMessages returns the newest limit messages in chronological order.
// A non-positive limit returns the whole history.
func (s *SQLStore) GetChatMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error) {
	query := "SELECT " + messageColumns + `
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.chat_id = ?
		ORDER BY m.created_at DESC, m.id DESC`
	args := []any{chatID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	messages, err := s.queryMessages(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *SQLStore) FindUndeliveredMessages(ctx context.Context, chatID, userID string) ([]models.Message, error) {
	query := "SELECT " + messageColumns + `
		FROM messages m
		JOIN users u ON m.sender_id = u.id
		WHERE m.chat_id = ?
		  AND m.sender_id <> ?
		  AND NOT EXISTS (
			SELECT 1 FROM message_reads r WHERE r.message_id = m.id AND r.user_id = ?
		  )
		ORDER BY m.created_at ASC, m.id ASC`
	return s.queryMessages(ctx, query, chatID, userID, userID)
}

// CreateManyMessageReads inserts the rows that do not exist yet and returns
// how many were created.
func (s *SQLStore) CreateManyMessageReads(ctx context.Context, reads []models.MessageRead) (int, error) {
	if len(reads) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	query := s.rebind(`
		INSERT INTO message_reads (message_id, user_id, delivered_at, read_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`)
	created := 0
	for _, r := range reads {
		var readAt sql.NullTime
		if r.ReadAt != nil {
			readAt = sql.NullTime{Time: *r.ReadAt, Valid: true}
		}
		result, err := tx.ExecContext(ctx, query, r.MessageID, r.UserID, r.DeliveredAt, readAt)
		if err != nil {
			return 0, translate(err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return created, nil
}

// UpdateMessageReadsReadAt stamps read_at on the viewer's existing rows for
// messages of the chat sent by others. An empty messageIDs means all of them.
// It never inserts rows.
func (s *SQLStore) UpdateMessageReadsReadAt(ctx context.Context, chatID, userID string, messageIDs []string, at time.Time) (int, error) {
	query := `
		UPDATE message_reads SET read_at = ?
		WHERE user_id = ?
		  AND message_id IN (
			SELECT id FROM messages WHERE chat_id = ? AND sender_id <> ?`
	args := []any{at, userID, chatID, userID}
	if len(messageIDs) > 0 {
		query += " AND id IN (" + placeholders(len(messageIDs)) + ")"
		for _, id := range messageIDs {
			args = append(args, id)
		}
	}
	query += ")"

	result, err := s.db.ExecContext(ctx, s.rebind(query), args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	return int(n), err
}

func scanRead(row rowScanner) (*models.MessageRead, error) {
	var (
		r      models.MessageRead
		readAt sql.NullTime
	)
	if err := row.Scan(&r.MessageID, &r.UserID, &r.Username, &r.DeliveredAt, &readAt); err != nil {
		return nil, err
	}
	if readAt.Valid {
		t := readAt.Time
		r.ReadAt = &t
	}
	return &r, nil
}

func (s *SQLStore) FindReadReceipts(ctx context.Context, messageID string) ([]models.MessageRead, error) {
	query := s.rebind(`
		SELECT r.message_id, r.user_id, u.username, r.delivered_at, r.read_at
		FROM message_reads r
		JOIN users u ON u.id = r.user_id
		WHERE r.message_id = ?
		ORDER BY r.delivered_at ASC, u.username ASC
	`)
	rows, err := s.db.QueryContext(ctx, query, messageID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reads := []models.MessageRead{}
	for rows.Next() {
		r, err := scanRead(rows)
		if err != nil {
			return nil, err
		}
		reads = append(reads, *r)
	}
	return reads, rows.Err()
}

// FindViewerReads returns the viewer's rows in a chat keyed by message id.
func (s *SQLStore) FindViewerReads(ctx context.Context, chatID, userID string) (map[string]models.MessageRead, error) {
	query := s.rebind(`
		SELECT r.message_id, r.user_id, u.username, r.delivered_at, r.read_at
		FROM message_reads r
		JOIN messages m ON m.id = r.message_id
		JOIN users u ON u.id = r.user_id
		WHERE m.chat_id = ? AND r.user_id = ?
	`)
	rows, err := s.db.QueryContext(ctx, query, chatID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reads := make(map[string]models.MessageRead)
	for rows.Next() {
		r, err := scanRead(rows)
		if err != nil {
			return nil, err
		}
		reads[r.MessageID] = *r
	}
	return reads, rows.Err()
}

// CountUnread counts messages from others the user has not read yet.
func (s *SQLStore) CountUnread(ctx context.Context, chatID, userID string) (int, error) {
	var n int
	query := s.rebind(`
		SELECT COUNT(*)
		FROM messages m
		LEFT JOIN message_reads r ON r.message_id = m.id AND r.user_id = ?
		WHERE m.chat_id = ? AND m.sender_id <> ? AND r.read_at IS NULL
	`)
	err := s.db.QueryRowContext(ctx, query, userID, chatID, userID).Scan(&n)
	return n, err
}
