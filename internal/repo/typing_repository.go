package repo

import (
	"Parley/internal/db"
	"Parley/internal/model"
	"context"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// TypingRepository stores ephemeral typing indicators. Staleness filtering
// is the caller's concern; this layer only stores rows.
type TypingRepository interface {
	Upsert(ctx context.Context, conversationID, userID string, updatedAt int64) error
	Delete(ctx context.Context, conversationID, userID string) error
	ListByConversation(ctx context.Context, conversationID string) ([]model.TypingIndicator, error)
	// DeleteStale removes rows last updated before the given time. Used by
	// the periodic compaction job; read-time TTL semantics do not depend
	// on it.
	DeleteStale(ctx context.Context, before int64) (int64, error)
}

type typingRepository struct {
	mongoRepo *db.Repository[model.TypingIndicator]
	logger    *zap.Logger
}

func NewTypingRepository(repo *db.Repository[model.TypingIndicator], logger *zap.Logger) TypingRepository {
	return &typingRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *typingRepository) Upsert(ctx context.Context, conversationID, userID string, updatedAt int64) error {
	convOID, err := parseObjectID(conversationID)
	if err != nil || userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", convOID).
		Eq("user_id", userID).
		Build()

	if _, err := r.mongoRepo.Upsert(ctx, filter, bson.M{"updated_at": updatedAt}); err != nil {
		return pkgerrors.Wrap(err, "upsert typing indicator")
	}
	return nil
}

func (r *typingRepository) Delete(ctx context.Context, conversationID, userID string) error {
	convOID, err := parseObjectID(conversationID)
	if err != nil || userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", convOID).
		Eq("user_id", userID).
		Build()

	if _, err := r.mongoRepo.Delete(ctx, filter); err != nil {
		return pkgerrors.Wrap(err, "delete typing indicator")
	}
	return nil
}

func (r *typingRepository) ListByConversation(ctx context.Context, conversationID string) ([]model.TypingIndicator, error) {
	convOID, err := parseObjectID(conversationID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("conversation_id", convOID).Build()
	indicators, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list typing indicators")
	}
	return indicators, nil
}

func (r *typingRepository) DeleteStale(ctx context.Context, before int64) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Lt("updated_at", before).Build()
	result, err := r.mongoRepo.DeleteMany(ctx, filter)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "delete stale typing indicators")
	}

	if result.DeletedCount > 0 {
		r.logger.Debug("stale typing indicators removed", zap.Int64("count", result.DeletedCount))
	}
	return result.DeletedCount, nil
}
