// Package delivery persists chat messages, hands them to the room fan-out
// and reconciles delivered/read receipts.
package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/pliu/chatroom/internal/apperr"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/store"
	"github.com/rs/zerolog/log"
)

// Store is the slice of the durable store the pipeline depends on.
type Store interface {
	IsMember(ctx context.Context, chatID, userID string) (bool, error)
	CountChatMembers(ctx context.Context, chatID string) (int, error)
	CreateMessage(ctx context.Context, msg *models.Message) error
	GetMessage(ctx context.Context, messageID string) (*models.Message, error)
	FindUndeliveredMessages(ctx context.Context, chatID, userID string) ([]models.Message, error)
	CreateManyMessageReads(ctx context.Context, reads []models.MessageRead) (int, error)
	UpdateMessageReadsReadAt(ctx context.Context, chatID, userID string, messageIDs []string, at time.Time) (int, error)
	FindReadReceipts(ctx context.Context, messageID string) ([]models.MessageRead, error)
	CountUnread(ctx context.Context, chatID, userID string) (int, error)
}

// BlobRef points at an attachment already stored in the blob store.
type BlobRef struct {
	URL      string
	MIMEType string
	FileName string
}

type Service struct {
	store            Store
	now              func() time.Time
	conflateDelivery bool
}

type Option func(*Service)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithConflatedDelivery controls whether MarkDelivered also stamps readAt.
// It is on by default.
func WithConflatedDelivery(on bool) Option {
	return func(s *Service) { s.conflateDelivery = on }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:            store,
		now:              func() time.Time { return time.Now().UTC() },
		conflateDelivery: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitText persists a text message. Nothing is written when validation
// or the membership check fails.
func (s *Service) SubmitText(ctx context.Context, senderID, chatID, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("content", "Message content is required")
	}
	if err := validateIDs(senderID, chatID); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: s.now(),
	}
	if err := s.persist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// SubmitAttachment persists a file message pointing at ref.
func (s *Service) SubmitAttachment(ctx context.Context, senderID, chatID string, ref BlobRef) (*models.Message, error) {
	if ref.URL == "" {
		return nil, apperr.Validation("fileUrl", "No file uploaded")
	}
	if ref.FileName == "" {
		ref.FileName = fileNameFromURL(ref.URL)
	}
	if err := validateIDs(senderID, chatID); err != nil {
		return nil, err
	}
	if err := s.requireMember(ctx, chatID, senderID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		ChatID:    chatID,
		SenderID:  senderID,
		FileURL:   ref.URL,
		FileType:  string(ClassifyMedia(ref.MIMEType, ref.FileName)),
		FileName:  ref.FileName,
		CreatedAt: s.now(),
	}
	if err := s.persist(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (s *Service) persist(ctx context.Context, msg *models.Message) error {
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The chat went away between the membership check and the insert.
			return apperr.NotFound("Chat not found")
		}
		log.Error().Err(err).Str("chatID", msg.ChatID).Str("senderID", msg.SenderID).Msg("delivery: failed to persist message")
		return apperr.Transient(err)
	}
	return nil
}

func (s *Service) requireMember(ctx context.Context, chatID, userID string) error {
	ok, err := s.store.IsMember(ctx, chatID, userID)
	if err != nil {
		return apperr.Transient(err)
	}
	if !ok {
		return apperr.AccessDenied("Access denied")
	}
	return nil
}

func validateIDs(userID, chatID string) error {
	if userID == "" {
		return apperr.Validation("senderId", "Sender is required")
	}
	if chatID == "" {
		return apperr.Validation("chatId", "Chat is required")
	}
	return nil
}

func fileNameFromURL(u string) string {
	if i := strings.LastIndex(u, "/"); i >= 0 {
		u = u[i+1:]
	}
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	return u
}
