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

// ReceiptRepository stores read high-water marks, one per
// (conversation, user) pair.
type ReceiptRepository interface {
	Upsert(ctx context.Context, conversationID, userID string, lastReadTime int64) error
	// Get returns ErrNotFound when the user has never read the
	// conversation.
	Get(ctx context.Context, conversationID, userID string) (*model.ReadReceipt, error)
}

type receiptRepository struct {
	mongoRepo *db.Repository[model.ReadReceipt]
	logger    *zap.Logger
}

func NewReceiptRepository(repo *db.Repository[model.ReadReceipt], logger *zap.Logger) ReceiptRepository {
	return &receiptRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *receiptRepository) Upsert(ctx context.Context, conversationID, userID string, lastReadTime int64) error {
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

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return err
			}
		}

		_, err := r.mongoRepo.Upsert(ctx, filter, bson.M{"last_read_time": lastReadTime})
		if err == nil {
			return nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		r.logger.Warn("receipt upsert attempt failed, retrying",
			zap.Error(err),
			zap.String("conversation_id", conversationID),
			zap.Int("attempt", attempt+1),
		)
	}

	return pkgerrors.Wrap(lastErr, "upsert read receipt")
}

func (r *receiptRepository) Get(ctx context.Context, conversationID, userID string) (*model.ReadReceipt, error) {
	convOID, err := parseObjectID(conversationID)
	if err != nil || userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("conversation_id", convOID).
		Eq("user_id", userID).
		Build()

	receipt, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "find read receipt")
	}
	return receipt, nil
}
