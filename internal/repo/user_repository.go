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

// UserRepository is the system of record for user profiles and presence.
type UserRepository interface {
	// Upsert creates or updates a profile from the identity provider,
	// marking the user online. CreatedAt is preserved on update.
	Upsert(ctx context.Context, user *model.User) (*model.User, error)
	// SetPresence patches isOnline and lastSeen. Returns ErrNotFound when
	// the user was never synced.
	SetPresence(ctx context.Context, userID string, online bool, at int64) error
	GetByUserID(ctx context.Context, userID string) (*model.User, error)
	GetMany(ctx context.Context, userIDs []string) (map[string]*model.User, error)
	// List returns all users, optionally filtered by a case-insensitive
	// substring of the display name.
	List(ctx context.Context, nameContains string) ([]model.User, error)
}

type userRepository struct {
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(repo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		mongoRepo: repo,
		logger:    logger,
	}
}

func (r *userRepository) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	if user == nil || user.UserID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", user.UserID).Build()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
		}

		_, err := r.mongoRepo.UpsertWithDefaults(ctx, filter,
			bson.M{
				"name":       user.Name,
				"email":      user.Email,
				"avatar_url": user.AvatarURL,
				"is_online":  user.IsOnline,
				"last_seen":  user.LastSeen,
				"synced_at":  user.SyncedAt,
			},
			bson.M{"created_at": user.SyncedAt},
		)
		if err == nil {
			saved, ferr := r.mongoRepo.FindOne(ctx, filter)
			if ferr != nil {
				return nil, pkgerrors.Wrap(ferr, "reload synced user")
			}
			return saved, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}

		r.logger.Warn("user upsert attempt failed, retrying",
			zap.Error(err),
			zap.String("user_id", user.UserID),
			zap.Int("attempt", attempt+1),
		)
	}

	return nil, pkgerrors.Wrap(lastErr, "upsert user")
}

func (r *userRepository) SetPresence(ctx context.Context, userID string, online bool, at int64) error {
	if userID == "" {
		return ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("user_id", userID).Build()
	result, err := r.mongoRepo.Update(ctx, filter, bson.M{
		"is_online": online,
		"last_seen": at,
	})
	if err != nil {
		return pkgerrors.Wrap(err, "set presence")
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByUserID(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, pkgerrors.Wrap(err, "find user")
	}
	return user, nil
}

func (r *userRepository) GetMany(ctx context.Context, userIDs []string) (map[string]*model.User, error) {
	out := make(map[string]*model.User, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	users, err := r.mongoRepo.FindAll(ctx, db.NewFilter().In("user_id", userIDs).Build())
	if err != nil {
		return nil, pkgerrors.Wrap(err, "find users")
	}
	for i := range users {
		u := users[i]
		out[u.UserID] = &u
	}
	return out, nil
}

func (r *userRepository) List(ctx context.Context, nameContains string) ([]model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter()
	if nameContains != "" {
		filter.Contains("name", nameContains)
	}

	users, err := r.mongoRepo.FindAllSorted(ctx, filter.Build(), "name", false)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "list users")
	}
	return users, nil
}
