package service

import (
	"Parley/internal/model"
	"Parley/internal/reactive"
	"Parley/internal/repo"
	"context"
	"sync"
	"testing"

	"github.com/go-playground/assert/v2"
	"go.uber.org/zap"
)

// recordingNotifier captures published mutations so tests can assert on
// the dependency keys a service touched.
type recordingNotifier struct {
	mu      sync.Mutex
	changes []reactive.Change
}

func (n *recordingNotifier) NotifyMutation(change reactive.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, change)
}

func (n *recordingNotifier) all() []reactive.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]reactive.Change(nil), n.changes...)
}

func (n *recordingNotifier) keys() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, c := range n.changes {
		out = append(out, c.Keys...)
	}
	return out
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = nil
}

type testEnv struct {
	store    *repo.MemoryStore
	notifier *recordingNotifier

	users         UserService
	presence      PresenceService
	conversations ConversationService
	messages      MessageService
	typing        TypingService
}

func newTestEnv() *testEnv {
	store := repo.NewMemoryStore()
	notifier := &recordingNotifier{}
	logger := zap.NewNop()

	return &testEnv{
		store:    store,
		notifier: notifier,
		users:    NewUserService(store.Users(), notifier, logger),
		presence: NewPresenceService(store.Users(), notifier, logger),
		conversations: NewConversationService(
			store.Conversations(), store.Messages(), store.Receipts(), store.Users(), notifier, logger,
		),
		messages: NewMessageService(store.Messages(), store.Conversations(), notifier, logger),
		typing:   NewTypingService(store.Typing(), store.Users(), notifier, logger),
	}
}

func (e *testEnv) syncUser(t *testing.T, userID, name string) *model.User {
	t.Helper()
	user, err := e.users.Sync(context.Background(), userID, name, userID+"@example.com", "")
	assert.Equal(t, err, nil)
	return user
}

func (e *testEnv) openConversation(t *testing.T, userA, userB string) *model.Conversation {
	t.Helper()
	conv, err := e.conversations.GetOrCreate(context.Background(), userA, userB)
	assert.Equal(t, err, nil)
	return conv
}

func containsKey(keys []string, key string) bool {
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}
