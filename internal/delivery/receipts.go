package delivery

import (
	"context"
	"errors"

	"github.com/pliu/chatroom/internal/apperr"
	"github.com/pliu/chatroom/internal/models"
	"github.com/pliu/chatroom/internal/store"
)

// Receipts summarises who has received and read one message.
type Receipts struct {
	MessageID    string               `json:"messageId"`
	Reads        []models.MessageRead `json:"reads"`
	TotalMembers int                  `json:"totalMembers"`
	Delivered    int                  `json:"delivered"`
	Read         int                  `json:"read"`
}

// MarkDelivered creates a receipt row for every message in the chat the user
// has not acknowledged yet and returns how many rows were created. With
// conflated delivery the rows are also marked read.
func (s *Service) MarkDelivered(ctx context.Context, userID, chatID string) (int, error) {
	if err := validateIDs(userID, chatID); err != nil {
		return 0, err
	}
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return 0, err
	}

	pending, err := s.store.FindUndeliveredMessages(ctx, chatID, userID)
	if err != nil {
		return 0, apperr.Transient(err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	now := s.now()
	reads := make([]models.MessageRead, 0, len(pending))
	for _, m := range pending {
		r := models.MessageRead{MessageID: m.ID, UserID: userID, DeliveredAt: now}
		if s.conflateDelivery {
			readAt := now
			r.ReadAt = &readAt
		}
		reads = append(reads, r)
	}

	created, err := s.store.CreateManyMessageReads(ctx, reads)
	if err != nil {
		return 0, apperr.Transient(err)
	}
	return created, nil
}

// MarkRead stamps readAt on delivered messages sent by others. Only the
// given messageIDs are touched when any are passed. Rows are never created,
// so messages that were not delivered yet stay unread.
func (s *Service) MarkRead(ctx context.Context, userID, chatID string, messageIDs []string) (int, error) {
	if err := validateIDs(userID, chatID); err != nil {
		return 0, err
	}
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return 0, err
	}

	updated, err := s.store.UpdateMessageReadsReadAt(ctx, chatID, userID, messageIDs, s.now())
	if err != nil {
		return 0, apperr.Transient(err)
	}
	return updated, nil
}

// ReadReceiptsFor lists the receipt rows of a message for a member of its
// chat.
func (s *Service) ReadReceiptsFor(ctx context.Context, messageID, requesterID string) (*Receipts, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Message not found")
	}
	if err != nil {
		return nil, apperr.Transient(err)
	}
	if err := s.requireMember(ctx, msg.ChatID, requesterID); err != nil {
		return nil, err
	}

	reads, err := s.store.FindReadReceipts(ctx, messageID)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	total, err := s.store.CountChatMembers(ctx, msg.ChatID)
	if err != nil {
		return nil, apperr.Transient(err)
	}

	r := &Receipts{
		MessageID:    messageID,
		Reads:        reads,
		TotalMembers: total,
		Delivered:    len(reads),
	}
	for _, row := range reads {
		if row.ReadAt != nil {
			r.Read++
		}
	}
	return r, nil
}

// UnreadCount returns how many messages from others the user has not read.
func (s *Service) UnreadCount(ctx context.Context, userID, chatID string) (int, error) {
	if err := s.requireMember(ctx, chatID, userID); err != nil {
		return 0, err
	}
	n, err := s.store.CountUnread(ctx, chatID, userID)
	if err != nil {
		return 0, apperr.Transient(err)
	}
	return n, nil
}

// StatusOf derives the read status of msg for viewerID from the viewer's
// receipt row, which is nil when none exists. Senders always see "sent".
func StatusOf(msg *models.Message, viewerID string, row *models.MessageRead) models.ReadStatus {
	switch {
	case msg.SenderID == viewerID || row == nil:
		return models.StatusSent
	case row.ReadAt != nil:
		return models.StatusRead
	default:
		return models.StatusDelivered
	}
}
