package service

import (
	"Parley/internal/model"
	"Parley/internal/reactive"
	"Parley/internal/repo"
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ConversationService owns the conversation lifecycle and read receipts.
type ConversationService interface {
	// GetOrCreate returns the unique conversation for the unordered pair
	// {userA, userB}, creating it on first contact. Serialized per pair.
	GetOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error)
	// ListForUser returns the caller's conversations, newest activity
	// first, each annotated with the other participant's profile.
	ListForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error)
	// MarkRead moves the caller's read high-water mark to now.
	MarkRead(ctx context.Context, conversationID, userID string) error
	// UnreadCount counts messages newer than the caller's high-water mark
	// that the caller did not send.
	UnreadCount(ctx context.Context, conversationID, userID string) (int, error)
}

type conversationService struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	receipts      repo.ReceiptRepository
	users         repo.UserRepository
	notifier      reactive.Notifier
	logger        *zap.Logger

	// pairLocks serializes find-or-create per unordered pair so two
	// concurrent first contacts cannot produce duplicate conversations.
	pairLocksMu sync.Mutex
	pairLocks   map[string]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func NewConversationService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	receipts repo.ReceiptRepository,
	users repo.UserRepository,
	notifier reactive.Notifier,
	logger *zap.Logger,
) ConversationService {
	return &conversationService{
		conversations: conversations,
		messages:      messages,
		receipts:      receipts,
		users:         users,
		notifier:      notifier,
		logger:        logger,
		pairLocks:     make(map[string]*pairLock),
	}
}

func (s *conversationService) lockPair(key string) func() {
	s.pairLocksMu.Lock()
	l, ok := s.pairLocks[key]
	if !ok {
		l = &pairLock{}
		s.pairLocks[key] = l
	}
	l.refs++
	s.pairLocksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.pairLocksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.pairLocks, key)
		}
		s.pairLocksMu.Unlock()
	}
}

func (s *conversationService) GetOrCreate(ctx context.Context, userA, userB string) (*model.Conversation, error) {
	if userA == "" || userB == "" {
		return nil, validationf("both participant ids are required")
	}
	if userA == userB {
		return nil, validationf("cannot open a conversation with yourself")
	}

	pairKey := model.PairKey(userA, userB)
	unlock := s.lockPair(pairKey)
	defer unlock()

	now := time.Now().UnixMilli()
	conv, created, err := s.conversations.GetOrCreate(ctx, pairKey, []string{userA, userB}, now)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	if created {
		s.logger.Info("conversation created",
			zap.String("conversation_id", conv.ID.Hex()),
			zap.String("pair_key", pairKey),
		)
		s.notifier.NotifyMutation(reactive.Change{
			EntityKind: "conversation",
			EntityID:   conv.ID.Hex(),
			Keys: []string{
				reactive.UserConversationsKey(userA),
				reactive.UserConversationsKey(userB),
			},
		})
	}
	return conv, nil
}

func (s *conversationService) ListForUser(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	if userID == "" {
		return nil, validationf("user id is required")
	}

	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	otherIDs := Map(conversations, func(c model.Conversation) string {
		return c.OtherParticipant(userID)
	})
	profiles, err := s.users.GetMany(ctx, otherIDs)
	if err != nil {
		return nil, mapStoreErr(err)
	}

	summaries := make([]model.ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summaries = append(summaries, model.ConversationSummary{
			Conversation: conv,
			OtherUser:    profiles[conv.OtherParticipant(userID)],
		})
	}
	return summaries, nil
}

func (s *conversationService) MarkRead(ctx context.Context, conversationID, userID string) error {
	if conversationID == "" || userID == "" {
		return validationf("conversation id and user id are required")
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return mapStoreErr(err)
	}

	// The store may assign message timestamps slightly ahead of the wall
	// clock to keep per-conversation order; clamp the high-water mark so
	// the mark always covers the newest message.
	at := time.Now().UnixMilli()
	if conv.LastMessageTime > at {
		at = conv.LastMessageTime
	}
	if err := s.receipts.Upsert(ctx, conversationID, userID, at); err != nil {
		return mapStoreErr(err)
	}

	s.notifier.NotifyMutation(reactive.Change{
		EntityKind: "readReceipt",
		EntityID:   conversationID + ":" + userID,
		Keys:       []string{reactive.ReceiptKey(conversationID, userID)},
	})
	return nil
}

func (s *conversationService) UnreadCount(ctx context.Context, conversationID, userID string) (int, error) {
	if conversationID == "" || userID == "" {
		return 0, validationf("conversation id and user id are required")
	}

	var lastRead int64
	receipt, err := s.receipts.Get(ctx, conversationID, userID)
	switch {
	case err == nil:
		lastRead = receipt.LastReadTime
	case errors.Is(err, repo.ErrNotFound):
		lastRead = 0
	default:
		return 0, mapStoreErr(err)
	}

	count, err := s.messages.CountUnread(ctx, conversationID, lastRead, userID)
	if err != nil {
		return 0, mapStoreErr(err)
	}
	return count, nil
}
