package repo

import (
	"Parley/internal/model"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore is an in-process implementation of the entity store, selected
// by the "memory" storage backend. It backs embedded deployments and the
// test suite. All operations take the store lock, which gives every
// read-check-write path row-level atomicity.
type MemoryStore struct {
	mu sync.RWMutex

	users         map[string]*model.User         // by external user id
	conversations map[string]*model.Conversation // by hex object id
	byPair        map[string]string              // pair key -> conversation hex id
	messages      map[string][]*model.Message    // conversation hex id -> ascending by creation
	receipts      map[string]*model.ReadReceipt  // convID|userID
	typing        map[string]*model.TypingIndicator

	lastMessageAt map[string]int64 // per-conversation monotonic clock guard
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:         make(map[string]*model.User),
		conversations: make(map[string]*model.Conversation),
		byPair:        make(map[string]string),
		messages:      make(map[string][]*model.Message),
		receipts:      make(map[string]*model.ReadReceipt),
		typing:        make(map[string]*model.TypingIndicator),
		lastMessageAt: make(map[string]int64),
	}
}

func (s *MemoryStore) Users() UserRepository                 { return (*memoryUsers)(s) }
func (s *MemoryStore) Conversations() ConversationRepository { return (*memoryConversations)(s) }
func (s *MemoryStore) Messages() MessageRepository           { return (*memoryMessages)(s) }
func (s *MemoryStore) Receipts() ReceiptRepository           { return (*memoryReceipts)(s) }
func (s *MemoryStore) Typing() TypingRepository              { return (*memoryTyping)(s) }

func pairRowKey(conversationID, userID string) string {
	return conversationID + "|" + userID
}

// ---------------------------------------------------------------------------
// users

type memoryUsers MemoryStore

func (s *memoryUsers) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	if user == nil || user.UserID == "" {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[user.UserID]
	if ok {
		existing.Name = user.Name
		existing.Email = user.Email
		existing.AvatarURL = user.AvatarURL
		existing.IsOnline = user.IsOnline
		existing.LastSeen = user.LastSeen
		existing.SyncedAt = user.SyncedAt
		saved := *existing
		return &saved, nil
	}

	stored := *user
	stored.ID = primitive.NewObjectID()
	stored.CreatedAt = user.SyncedAt
	s.users[user.UserID] = &stored
	saved := stored
	return &saved, nil
}

func (s *memoryUsers) SetPresence(ctx context.Context, userID string, online bool, at int64) error {
	if userID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[userID]
	if !ok {
		return ErrNotFound
	}
	user.IsOnline = online
	user.LastSeen = at
	return nil
}

func (s *memoryUsers) GetByUserID(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *user
	return &snapshot, nil
}

func (s *memoryUsers) GetMany(ctx context.Context, userIDs []string) (map[string]*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*model.User, len(userIDs))
	for _, id := range userIDs {
		if user, ok := s.users[id]; ok {
			snapshot := *user
			out[id] = &snapshot
		}
	}
	return out, nil
}

func (s *memoryUsers) List(ctx context.Context, nameContains string) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(nameContains)
	var out []model.User
	for _, user := range s.users {
		if needle != "" && !strings.Contains(strings.ToLower(user.Name), needle) {
			continue
		}
		out = append(out, *user)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ---------------------------------------------------------------------------
// conversations

type memoryConversations MemoryStore

func (s *memoryConversations) GetOrCreate(ctx context.Context, pairKey string, participantIDs []string, now int64) (*model.Conversation, bool, error) {
	if pairKey == "" {
		return nil, false, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byPair[pairKey]; ok {
		snapshot := *s.conversations[id]
		return &snapshot, false, nil
	}

	conv := &model.Conversation{
		ID:              primitive.NewObjectID(),
		PairKey:         pairKey,
		ParticipantIDs:  append([]string(nil), participantIDs...),
		LastMessageTime: now,
		CreatedAt:       now,
	}
	hex := conv.ID.Hex()
	s.conversations[hex] = conv
	s.byPair[pairKey] = hex
	snapshot := *conv
	return &snapshot, true, nil
}

func (s *memoryConversations) GetByID(ctx context.Context, conversationID string) (*model.Conversation, error) {
	if _, err := parseObjectID(conversationID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *conv
	return &snapshot, nil
}

func (s *memoryConversations) ListForUser(ctx context.Context, userID string) ([]model.Conversation, error) {
	if userID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Conversation
	for _, conv := range s.conversations {
		for _, id := range conv.ParticipantIDs {
			if id == userID {
				out = append(out, *conv)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastMessageTime > out[j].LastMessageTime })
	return out, nil
}

func (s *memoryConversations) SetLastMessage(ctx context.Context, conversationID string, at int64, preview string) error {
	if _, err := parseObjectID(conversationID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[conversationID]
	if !ok {
		return ErrNotFound
	}
	conv.LastMessageTime = at
	conv.LastMessagePreview = preview
	return nil
}

// ---------------------------------------------------------------------------
// messages

type memoryMessages MemoryStore

func (s *memoryMessages) Insert(ctx context.Context, conversationID primitive.ObjectID, senderID, content string) (*model.Message, error) {
	if conversationID.IsZero() {
		return nil, ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hex := conversationID.Hex()
	at := time.Now().UnixMilli()
	// Creation timestamps are strictly increasing within a conversation so
	// insertion order equals delivery order.
	if last := s.lastMessageAt[hex]; at <= last {
		at = last + 1
	}
	s.lastMessageAt[hex] = at

	msg := &model.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		CreatedAt:      at,
	}
	s.messages[hex] = append(s.messages[hex], msg)
	snapshot := *msg
	return &snapshot, nil
}

func (s *memoryMessages) GetByID(ctx context.Context, messageID string) (*model.Message, error) {
	if _, err := parseObjectID(messageID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, msgs := range s.messages {
		for _, msg := range msgs {
			if msg.ID.Hex() == messageID {
				snapshot := *msg
				return &snapshot, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (s *memoryMessages) ListByConversation(ctx context.Context, conversationID string) ([]model.Message, error) {
	if _, err := parseObjectID(conversationID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	out := make([]model.Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, *msg)
	}
	return out, nil
}

func (s *memoryMessages) MarkDeleted(ctx context.Context, messageID string) error {
	if _, err := parseObjectID(messageID); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msgs := range s.messages {
		for _, msg := range msgs {
			if msg.ID.Hex() == messageID {
				msg.IsDeleted = true
				return nil
			}
		}
	}
	return ErrNotFound
}

func (s *memoryMessages) CountUnread(ctx context.Context, conversationID string, after int64, excludeSender string) (int, error) {
	if _, err := parseObjectID(conversationID); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, msg := range s.messages[conversationID] {
		if msg.CreatedAt > after && msg.SenderID != excludeSender {
			count++
		}
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// read receipts

type memoryReceipts MemoryStore

func (s *memoryReceipts) Upsert(ctx context.Context, conversationID, userID string, lastReadTime int64) error {
	convOID, err := parseObjectID(conversationID)
	if err != nil || userID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairRowKey(conversationID, userID)
	if receipt, ok := s.receipts[key]; ok {
		receipt.LastReadTime = lastReadTime
		return nil
	}
	s.receipts[key] = &model.ReadReceipt{
		ID:             primitive.NewObjectID(),
		ConversationID: convOID,
		UserID:         userID,
		LastReadTime:   lastReadTime,
	}
	return nil
}

func (s *memoryReceipts) Get(ctx context.Context, conversationID, userID string) (*model.ReadReceipt, error) {
	if _, err := parseObjectID(conversationID); err != nil || userID == "" {
		return nil, ErrInvalidID
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	receipt, ok := s.receipts[pairRowKey(conversationID, userID)]
	if !ok {
		return nil, ErrNotFound
	}
	snapshot := *receipt
	return &snapshot, nil
}

// ---------------------------------------------------------------------------
// typing indicators

type memoryTyping MemoryStore

func (s *memoryTyping) Upsert(ctx context.Context, conversationID, userID string, updatedAt int64) error {
	convOID, err := parseObjectID(conversationID)
	if err != nil || userID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairRowKey(conversationID, userID)
	if indicator, ok := s.typing[key]; ok {
		indicator.UpdatedAt = updatedAt
		return nil
	}
	s.typing[key] = &model.TypingIndicator{
		ID:             primitive.NewObjectID(),
		ConversationID: convOID,
		UserID:         userID,
		UpdatedAt:      updatedAt,
	}
	return nil
}

func (s *memoryTyping) Delete(ctx context.Context, conversationID, userID string) error {
	if _, err := parseObjectID(conversationID); err != nil || userID == "" {
		return ErrInvalidID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.typing, pairRowKey(conversationID, userID))
	return nil
}

func (s *memoryTyping) ListByConversation(ctx context.Context, conversationID string) ([]model.TypingIndicator, error) {
	if _, err := parseObjectID(conversationID); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.TypingIndicator
	for _, indicator := range s.typing {
		if indicator.ConversationID.Hex() == conversationID {
			out = append(out, *indicator)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (s *memoryTyping) DeleteStale(ctx context.Context, before int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed int64
	for key, indicator := range s.typing {
		if indicator.UpdatedAt < before {
			delete(s.typing, key)
			removed++
		}
	}
	return removed, nil
}
