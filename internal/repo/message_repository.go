package repo

import (
	"Parley/internal/db"
	"Parley/internal/model"
	"context"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// MessageRepository is the system of record for messages. Messages are
// append-only; the only mutation after insert is the soft-delete flag.
type MessageRepository interface {
	// Insert appends a message with a store-assigned creation timestamp
	// and returns the stored message.
	Insert(ctx context.Context, conversationID primitive.ObjectID, senderID, content string) (*model.Message, error)
	GetByID(ctx context.Context, messageID string) (*model.Message, error)
	// ListByConversation returns all messages of a conversation in
	// ascending creation order.
	ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error)
	// MarkDeleted flips isDeleted to true. Idempotent.
	MarkDeleted(ctx context.Context, messageID string) error
	// CountUnread counts messages created after the given time whose
	// sender is not excludeSender.
	CountUnread(ctx context.Context, conversationID string, after int64, excludeSender string) (int, error)
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(repo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (m *messageRepository) Insert(ctx context.Context, conversationID primitive.ObjectID, senderID, content string) (*model.Message, error) {
	if conversationID.IsZero() {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	msg := model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		IsDeleted:      false,
		CreatedAt:      time.Now().UnixMilli(),
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			// Re-stamp so retries keep creation order honest.
			msg.CreatedAt = time.Now().UnixMilli()
		}

		id, err := m.mongoRepo.Create(ctx, msg)
		if err == nil {
			msg.ID = id
			m.logger.Info("message inserted",
				zap.String("message_id", id.Hex()),
				zap.String("conversation_id", conversationID.Hex()),
				zap.Int("attempt", attempt+1),
			)
			return &msg, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		m.logger.Warn("insert attempt failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", maxRetries),
		)
	}

	m.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.String("conversation_id", conversationID.Hex()),
	)
	return nil, pkgerrors.Wrap(lastErr, "insert message")
}

func (m *messageRepository) GetByID(ctx context.Context, messageID string) (*model.Message, error) {
	if _, err := parseObjectID(messageID); err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	msg, err := m.mongoRepo.FindByID(ctx, messageID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "find message")
	}
	return msg, nil
}

func (m *messageRepository) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	convOID, err := parseObjectID(conversationID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", convOID).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			m.logger.Warn("retrying message list",
				zap.String("conversation_id", conversationID),
				zap.Int("attempt", attempt+1),
			)
		}

		messages, err := m.mongoRepo.FindAllSorted(ctx, filter, "created_at", false)
		if err == nil {
			return messages, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	return nil, pkgerrors.Wrap(lastErr, "list messages")
}

func (m *messageRepository) MarkDeleted(ctx context.Context, messageID string) error {
	if _, err := parseObjectID(messageID); err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := m.mongoRepo.UpdateByID(ctx, messageID, bson.M{"is_deleted": true})
	if err != nil {
		return pkgerrors.Wrap(err, "mark message deleted")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (m *messageRepository) CountUnread(ctx context.Context, conversationID string, after int64, excludeSender string) (int, error) {
	convOID, err := parseObjectID(conversationID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", convOID).
		Gt("created_at", after).
		Ne("sender_id", excludeSender).
		Build()

	count, err := m.mongoRepo.Count(ctx, filter)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "count unread")
	}
	return int(count), nil
}
