package repo

import (
	"Parley/internal/db"
	"Parley/internal/model"
	"context"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ConversationRepository is the system of record for conversations.
type ConversationRepository interface {
	// GetOrCreate returns the conversation for the canonical pair key,
	// inserting it when absent. The returned flag reports whether a new
	// conversation was created. Atomic given a unique index on pair_key.
	GetOrCreate(ctx context.Context, pairKey string, participantIDs []string, now int64) (*model.Conversation, bool, error)
	GetByID(ctx context.Context, conversationID string) (*model.Conversation, error)
	// ListForUser returns all conversations containing userID, ordered by
	// lastMessageTime descending.
	ListForUser(ctx context.Context, userID string) ([]model.Conversation, error)
	// SetLastMessage patches the preview fields after a message is sent.
	SetLastMessage(ctx context.Context, conversationID string, at int64, preview string) error
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(repo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *conversationRepository) GetOrCreate(ctx context.Context, pairKey string, participantIDs []string, now int64) (*model.Conversation, bool, error) {
	if pairKey == "" {
		return nil, false, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("pair_key", pairKey).Build()

	existing, err := r.mongoRepo.FindOne(ctx, filter)
	if err == nil {
		return existing, false, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, false, pkgerrors.Wrap(err, "find conversation by pair")
	}

	// Find-or-create is retried because a lost race against a concurrent
	// insert surfaces as a duplicate key error on the pair_key index.
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, false, err
			}
		}

		conv, err := r.mongoRepo.FindOneAndUpsert(ctx, filter, bson.M{
			"pair_key":             pairKey,
			"participant_ids":      participantIDs,
			"last_message_time":    now,
			"last_message_preview": "",
			"created_at":           now,
		})
		if err == nil {
			created := conv.CreatedAt == now
			r.logger.Info("conversation resolved",
				zap.String("conversation_id", conv.ID.Hex()),
				zap.Bool("created", created),
			)
			return conv, created, nil
		}

		lastErr = err
		if !isRetryableError(err) && !mongo.IsDuplicateKeyError(err) {
			break
		}
	}

	return nil, false, pkgerrors.Wrap(lastErr, "get or create conversation")
}

func (r *conversationRepository) GetByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if _, err := parseObjectID(conversationID); err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conv, err := r.mongoRepo.FindByID(ctx, conversationID)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "find conversation")
	}
	return conv, nil
}

func (r *conversationRepository) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("participant_ids", userID).Build()
	conversations, err := r.mongoRepo.FindAllSorted(ctx, filter, "last_message_time", true)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list conversations")
	}

	r.logger.Debug("conversations retrieved",
		zap.String("user_id", userID),
		zap.Int("count", len(conversations)),
	)
	return conversations, nil
}

func (r *conversationRepository) SetLastMessage(ctx context.Context, conversationID string, at int64, preview string) error {
	if _, err := parseObjectID(conversationID); err != nil {
		return err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.mongoRepo.UpdateByID(ctx, conversationID, bson.M{
		"last_message_time":    at,
		"last_message_preview": preview,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "set last message")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
