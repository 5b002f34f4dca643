package store

import (
	"context"
	"errors"
	"time"

	"github.com/pliu/chatroom/internal/models"
)

var (
	// ErrNotFound is returned when a row is absent, including when a write
	// references a chat or user that no longer exists.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("store: conflict")
)

type Store interface {
	// User operations
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, exceptID string) ([]models.User, error)
	SetUserOnline(ctx context.Context, userID string, online bool, at time.Time) error

	// Chat operations
	CreateDirectChat(ctx context.Context, userA, userB string) (*models.Chat, bool, error)
	FindDirectChat(ctx context.Context, userA, userB string) (*models.Chat, error)
	CreateGroupChat(ctx context.Context, name string, memberIDs []string) (*models.Chat, error)
	GetChat(ctx context.Context, chatID string) (*models.Chat, error)
	GetUserChats(ctx context.Context, userID string) ([]models.Chat, error)
	GetChatMembers(ctx context.Context, chatID string) ([]models.ChatMember, error)
	DeleteChat(ctx context.Context, chatID string) error
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	CountChatMembers(ctx context.Context, chatID string) (int, error)

	// Message operations
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	GetChatMessages(ctx context.Context, chatID string, limit int) ([]models.Message, error)

	// Receipt operations
	FindUndeliveredMessages(ctx context.Context, chatID, userID string) ([]models.Message, error)
	CreateManyMessageReads(ctx context.Context, reads []models.MessageRead) (int, error)
	UpdateMessageReadsReadAt(ctx context.Context, chatID, userID string, messageIDs []string, at time.Time) (int, error)
	FindReadReceipts(ctx context.Context, messageID string) ([]models.MessageRead, error)
	FindViewerReads(ctx context.Context, chatID, userID string) (map[string]models.MessageRead, error)
	CountUnread(ctx context.Context, chatID, userID string) (int, error)
}
