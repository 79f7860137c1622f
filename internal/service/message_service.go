package service

import (
	"Parley/internal/model"
	"Parley/internal/reactive"
	"Parley/internal/repo"
	"context"
	"strings"

	"go.uber.org/zap"
)

const previewLength = 60

// MessageService owns the message lifecycle: append, list, soft delete.
// Soft-deleted content is redacted here, server-side, so it never reaches
// a client regardless of what the UI renders.
type MessageService interface {
	// Send appends a message and patches the owning conversation's
	// preview fields as one logical transaction.
	Send(ctx context.Context, conversationID, senderID, content string) (*model.Message, error)
	// List returns all messages in ascending creation order. Deleted
	// messages are present with their content replaced by a marker.
	List(ctx context.Context, conversationID string) ([]model.Message, error)
	// SoftDelete marks a message deleted. Only the sender may delete;
	// deleting an already-deleted message succeeds as a no-op.
	SoftDelete(ctx context.Context, messageID, requesterID string) error
}

type messageService struct {
	messages      repo.MessageRepository
	conversations repo.ConversationRepository
	notifier      reactive.Notifier
	logger        *zap.Logger
}

func NewMessageService(
	messages repo.MessageRepository,
	conversations repo.ConversationRepository,
	notifier reactive.Notifier,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		messages:      messages,
		conversations: conversations,
		notifier:      notifier,
		logger:        logger,
	}
}

func (s *messageService) Send(ctx context.Context, conversationID, senderID, content string) (*model.Message, error) {
	if senderID == "" {
		return nil, validationf("sender id is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, validationf("message content cannot be empty")
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	msg, err := s.messages.Insert(ctx, conv.ID, senderID, content)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if err := s.conversations.SetLastMessage(ctx, conversationID, msg.CreatedAt, Truncate(content, previewLength)); err != nil {
		// The message is already committed; the preview catches up on the
		// next send. Log rather than fail the whole operation.
		s.logger.Error("failed to patch conversation preview",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}

	keys := []string{
		reactive.MessagesKey(conversationID),
		reactive.ConversationKey(conversationID),
	}
	for _, participant := range conv.ParticipantIDs {
		keys = append(keys, reactive.UserConversationsKey(participant))
	}
	s.notifier.NotifyMutation(reactive.Change{
		EntityKind: "message",
		EntityID:   msg.ID.Hex(),
		Keys:       keys,
	})
	return msg, nil
}

func (s *messageService) List(ctx context.Context, conversationID string) ([]model.Message, error) {
	if conversationID == "" {
		return nil, validationf("conversation id is required")
	}

	messages, err := s.messages.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	for i := range messages {
		if messages[i].IsDeleted {
			messages[i].Content = model.DeletedContent
		}
	}
	return messages, nil
}

func (s *messageService) SoftDelete(ctx context.Context, messageID, requesterID string) error {
	if messageID == "" || requesterID == "" {
		return validationf("message id and requester id are required")
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return mapStoreErr(err)
	}
	if msg.SenderID != requesterID {
		return ErrUnauthorized
	}
	if msg.IsDeleted {
		return nil
	}

	if err := s.messages.MarkDeleted(ctx, messageID); err != nil {
		return mapStoreErr(err)
	}

	s.logger.Info("message soft-deleted",
		zap.String("message_id", messageID),
		zap.String("requester_id", requesterID),
	)
	s.notifier.NotifyMutation(reactive.Change{
		EntityKind: "message",
		EntityID:   messageID,
		Keys:       []string{reactive.MessagesKey(msg.ConversationID.Hex())},
	})
	return nil
}
