package service

import (
	"Parley/internal/reactive"
	"Parley/internal/repo"
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// PresenceService maintains the isOnline flag and lastSeen timestamp on
// user rows. Online status has no server-side expiry; it relies on clients
// signalling disconnects, and the session manager calls SetOnline(false)
// on teardown as a backstop.
type PresenceService interface {
	SetOnline(ctx context.Context, userID string, online bool) error
}

type presenceService struct {
	users    repo.UserRepository
	notifier reactive.Notifier
	logger   *zap.Logger
}

func NewPresenceService(users repo.UserRepository, notifier reactive.Notifier, logger *zap.Logger) PresenceService {
	return &presenceService{
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *presenceService) SetOnline(ctx context.Context, userID string, online bool) error {
	if userID == "" {
		return validationf("user id is required")
	}

	err := s.users.SetPresence(ctx, userID, online, time.Now().UnixMilli())
	if errors.Is(err, repo.ErrNotFound) {
		// Heartbeat for a user that never synced; nothing to update.
		s.logger.Debug("presence update for unknown user", zap.String("user_id", userID))
		return nil
	}
	if err != nil {
		return mapStoreErr(err)
	}

	// A redundant heartbeat still bumps lastSeen, so dependents are
	// notified even when the flag did not flip.
	s.notifier.NotifyMutation(reactive.Change{
		EntityKind: "user",
		EntityID:   userID,
		Keys:       []string{reactive.UserKey(userID), reactive.KeyAllUsers},
	})
	return nil
}
