package service

import (
	"Parley/internal/model"
	"Parley/internal/reactive"
	"Parley/internal/repo"
	"context"
	"time"

	"go.uber.org/zap"
)

// typingFallbackName is used when a typist's profile cannot be resolved.
const typingFallbackName = "Someone"

// staleTypingAfter is how old a typing row must be before the compaction
// job removes it. Far past the visibility TTL, so compaction never
// changes read results.
const staleTypingAfter = 10 * model.TypingTTLMillis * time.Millisecond

// TypingService maintains ephemeral typing indicators. Visibility is
// decided at read time against the TTL; rows that were never explicitly
// cleared age out of results and are eventually swept by SweepStale.
type TypingService interface {
	SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error
	// ListTyping returns who is typing in the conversation right now,
	// excluding the caller, ids resolved to display names.
	ListTyping(ctx context.Context, conversationID, excludingUserID string) ([]model.TypingUser, error)
	// SweepStale removes long-dead rows; run periodically.
	SweepStale(ctx context.Context) (int64, error)
}

type typingService struct {
	typing   repo.TypingRepository
	users    repo.UserRepository
	notifier reactive.Notifier
	logger   *zap.Logger
}

func NewTypingService(typing repo.TypingRepository, users repo.UserRepository, notifier reactive.Notifier, logger *zap.Logger) TypingService {
	return &typingService{
		typing:   typing,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *typingService) SetTyping(ctx context.Context, conversationID, userID string, isTyping bool) error {
	if conversationID == "" || userID == "" {
		return validationf("conversation id and user id are required")
	}

	var err error
	if isTyping {
		err = s.typing.Upsert(ctx, conversationID, userID, time.Now().UnixMilli())
	} else {
		err = s.typing.Delete(ctx, conversationID, userID)
	}
	if err != nil {
		return mapStoreErr(err)
	}

	s.notifier.NotifyMutation(reactive.Change{
		EntityKind: "typingIndicator",
		EntityID:   conversationID + ":" + userID,
		Keys:       []string{reactive.TypingKey(conversationID)},
	})
	return nil
}

func (s *typingService) ListTyping(ctx context.Context, conversationID, excludingUserID string) ([]model.TypingUser, error) {
	if conversationID == "" {
		return nil, validationf("conversation id is required")
	}

	indicators, err := s.typing.ListByConversation(ctx, conversationID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	cutoff := time.Now().UnixMilli() - model.TypingTTLMillis
	active := Filter(indicators, func(t model.TypingIndicator) bool {
		return t.UserID != excludingUserID && t.UpdatedAt > cutoff
	})
	if len(active) == 0 {
		return []model.TypingUser{}, nil
	}

	profiles, err := s.users.GetMany(ctx, Map(active, func(t model.TypingIndicator) string { return t.UserID }))
	if err != nil {
		return nil, mapStoreErr(err)
	}

	return Map(active, func(t model.TypingIndicator) model.TypingUser {
		name := typingFallbackName
		if user, ok := profiles[t.UserID]; ok {
			name = user.Name
		}
		return model.TypingUser{UserID: t.UserID, Name: name}
	}), nil
}

func (s *typingService) SweepStale(ctx context.Context) (int64, error) {
	before := time.Now().Add(-staleTypingAfter).UnixMilli()
	removed, err := s.typing.DeleteStale(ctx, before)
	if err != nil {
		return 0, mapStoreErr(err)
	}
	if removed > 0 {
		s.logger.Info("typing indicator compaction", zap.Int64("removed", removed))
	}
	return removed, nil
}
