package service

import (
	"Parley/internal/model"
	"Parley/internal/reactive"
	"Parley/internal/repo"
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// UserService syncs profiles from the external identity provider and
// serves the user directory.
type UserService interface {
	// Sync creates or updates a profile on login, marking the user
	// online.
	Sync(ctx context.Context, userID, name, email, avatarURL string) (*model.User, error)
	// Get returns ErrNotFound when the user was never synced.
	Get(ctx context.Context, userID string) (*model.User, error)
	// ListOthers returns all users except the caller, optionally filtered
	// by a case-insensitive substring of the display name.
	ListOthers(ctx context.Context, callerID, search string) ([]model.User, error)
}

type userService struct {
	users    repo.UserRepository
	notifier reactive.Notifier
	logger   *zap.Logger
}

func NewUserService(users repo.UserRepository, notifier reactive.Notifier, logger *zap.Logger) UserService {
	return &userService{
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *userService) Sync(ctx context.Context, userID, name, email, avatarURL string) (*model.User, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationf("user id is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, validationf("name is required")
	}

	now := time.Now().UnixMilli()
	user, err := s.users.Upsert(ctx, &model.User{
		UserID:    userID,
		Name:      name,
		Email:     email,
		AvatarURL: avatarURL,
		IsOnline:  true,
		LastSeen:  now,
		SyncedAt:  now,
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	s.logger.Info("user synced", zap.String("user_id", userID))
	s.notifier.NotifyMutation(reactive.Change{
		EntityKind: "user",
		EntityID:   userID,
		Keys:       []string{reactive.UserKey(userID), reactive.KeyAllUsers},
	})
	return user, nil
}

func (s *userService) Get(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, validationf("user id is required")
	}
	user, err := s.users.GetByUserID(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return user, nil
}

func (s *userService) ListOthers(ctx context.Context, callerID, search string) ([]model.User, error) {
	if callerID == "" {
		return nil, validationf("user id is required")
	}

	users, err := s.users.List(ctx, search)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return Filter(users, func(u model.User) bool { return u.UserID != callerID }), nil
}
