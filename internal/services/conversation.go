package services

import (
	"context"
	"fmt"
	"strings"

	"kissan-connect-backend/internal/models"
	"kissan-connect-backend/internal/monitoring"
	"kissan-connect-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BlobStore persists uploaded files and returns the URL they are served at
type BlobStore interface {
	Save(ctx context.Context, file *models.Attachment) (string, error)
}

// ConversationService stores direct messages and tracks their read state
type ConversationService struct {
	users    repository.UserStore
	messages repository.MessageStore
	blobs    BlobStore
	notifier MessageNotifier
	clock    monotonicClock
}

// NewConversationService creates a new conversation service
func NewConversationService(
	users repository.UserStore,
	messages repository.MessageStore,
	blobs BlobStore,
	notifier MessageNotifier,
) *ConversationService {
	return &ConversationService{
		users:    users,
		messages: messages,
		blobs:    blobs,
		notifier: notifier,
	}
}

// Send stores a message from sender to receiver and pushes it to the
// receiver's live connections. At least one of text or image is required.
func (s *ConversationService) Send(ctx context.Context, senderName, receiverName, text string, image *models.Attachment) (*models.Message, error) {
	text = strings.TrimSpace(text)
	if senderName == "" || receiverName == "" {
		return nil, fmt.Errorf("sender and receiver are required: %w", models.ErrInvalidOperation)
	}
	if text == "" && image == nil {
		return nil, fmt.Errorf("message must carry text or an image: %w", models.ErrInvalidOperation)
	}

	sender, err := s.users.GetByName(ctx, senderName)
	if err != nil {
		return nil, err
	}
	receiver, err := s.users.GetByName(ctx, receiverName)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ID:         uuid.New().String(),
		SenderID:   sender.ID,
		ReceiverID: receiver.ID,
		Sender:     sender.Name,
		Receiver:   receiver.Name,
		Text:       text,
	}

	if image != nil {
		if s.blobs == nil {
			return nil, fmt.Errorf("attachments are not supported: %w", models.ErrInvalidOperation)
		}
		url, err := s.blobs.Save(ctx, image)
		if err != nil {
			return nil, fmt.Errorf("failed to store attachment: %w", err)
		}
		msg.Image = &url
	}

	msg.CreatedAt = s.clock.Now()
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to store message: %w", err)
	}

	monitoring.MessagesSent.Inc()
	log.Info().
		Str("message_id", msg.ID).
		Str("sender_id", sender.ID).
		Str("receiver_id", receiver.ID).
		Bool("image", msg.Image != nil).
		Msg("Message sent")

	if s.notifier != nil {
		s.notifier.NewMessage(ctx, msg, receiver)
	}
	return msg, nil
}

// GetConversation returns the messages between a and b in both directions,
// oldest first. Reading it as a marks everything b sent to a as read, and
// the returned messages already reflect that.
func (s *ConversationService) GetConversation(ctx context.Context, aName, bName string) ([]*models.Message, error) {
	a, err := s.users.GetByName(ctx, aName)
	if err != nil {
		return nil, err
	}
	b, err := s.users.GetByName(ctx, bName)
	if err != nil {
		return nil, err
	}

	if _, err := s.MarkRead(ctx, a.ID, b.ID); err != nil {
		return nil, err
	}

	msgs, err := s.messages.Conversation(ctx, a.ID, b.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	names := map[string]string{a.ID: a.Name, b.ID: b.Name}
	for _, m := range msgs {
		m.Sender = names[m.SenderID]
		m.Receiver = names[m.ReceiverID]
	}
	return msgs, nil
}

// MarkRead flags as read every unread message otherID sent to viewerID
func (s *ConversationService) MarkRead(ctx context.Context, viewerID, otherID string) (int, error) {
	n, err := s.messages.MarkRead(ctx, otherID, viewerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	if n > 0 {
		log.Debug().Str("viewer_id", viewerID).Str("other_id", otherID).Int("count", n).Msg("Messages marked read")
	}
	return n, nil
}

// UnreadCount returns how many messages addressed to name are unread
func (s *ConversationService) UnreadCount(ctx context.Context, name string) (int, error) {
	user, err := s.users.GetByName(ctx, name)
	if err != nil {
		return 0, err
	}
	return s.messages.UnreadCount(ctx, user.ID)
}
