package service

import (
	"Parley/internal/reactive"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestGetOrCreateIsIdempotentPerPair(t *testing.T) {
	env := newTestEnv()
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")

	first := env.openConversation(t, "alice", "bob")
	// Same pair in either order resolves to the same conversation.
	second := env.openConversation(t, "bob", "alice")
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.PairKey, second.PairKey)
}

func TestGetOrCreateRejectsSelfAndEmpty(t *testing.T) {
	env := newTestEnv()

	_, err := env.conversations.GetOrCreate(context.Background(), "alice", "alice")
	assert.Equal(t, errors.Is(err, ErrValidation), true)

	_, err = env.conversations.GetOrCreate(context.Background(), "", "bob")
	assert.Equal(t, errors.Is(err, ErrValidation), true)
}

func TestGetOrCreateNotifiesOnlyOnCreation(t *testing.T) {
	env := newTestEnv()
	env.openConversation(t, "alice", "bob")

	keys := env.notifier.keys()
	assert.Equal(t, containsKey(keys, reactive.UserConversationsKey("alice")), true)
	assert.Equal(t, containsKey(keys, reactive.UserConversationsKey("bob")), true)

	// Reopening an existing pair publishes nothing.
	env.notifier.reset()
	env.openConversation(t, "alice", "bob")
	assert.Equal(t, len(env.notifier.all()), 0)
}

func TestConcurrentGetOrCreateConvergesToOneConversation(t *testing.T) {
	env := newTestEnv()

	const callers = 16
	ids := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			conv, err := env.conversations.GetOrCreate(context.Background(), a, b)
			if err != nil {
				t.Error(err)
				return
			}
			ids[i] = conv.ID.Hex()
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, ids[i], ids[0])
	}
}

func TestListForUserOrdersByActivityAndAnnotatesPeer(t *testing.T) {
	env := newTestEnv()
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	env.syncUser(t, "carol", "Carol")

	withBob := env.openConversation(t, "alice", "bob")
	withCarol := env.openConversation(t, "alice", "carol")

	// Activity in the bob conversation moves it to the top.
	time.Sleep(2 * time.Millisecond)
	_, err := env.messages.Send(context.Background(), withBob.ID.Hex(), "bob", "hi alice")
	assert.Equal(t, err, nil)

	summaries, err := env.conversations.ListForUser(context.Background(), "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(summaries), 2)
	assert.Equal(t, summaries[0].ID, withBob.ID)
	assert.Equal(t, summaries[0].OtherUser.Name, "Bob")
	assert.Equal(t, summaries[1].ID, withCarol.ID)
	assert.Equal(t, summaries[1].OtherUser.Name, "Carol")
	assert.Equal(t, summaries[0].LastMessagePreview, "hi alice")
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	env := newTestEnv()
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	// No receipt yet: everything from the peer counts as unread.
	for i := 0; i < 3; i++ {
		_, err := env.messages.Send(ctx, convID, "bob", "ping")
		assert.Equal(t, err, nil)
	}
	_, err := env.messages.Send(ctx, convID, "alice", "own message")
	assert.Equal(t, err, nil)

	count, err := env.conversations.UnreadCount(ctx, convID, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, count, 3)

	// Own messages never count against the sender.
	count, err = env.conversations.UnreadCount(ctx, convID, "bob")
	assert.Equal(t, err, nil)
	assert.Equal(t, count, 1)

	err = env.conversations.MarkRead(ctx, convID, "alice")
	assert.Equal(t, err, nil)

	count, err = env.conversations.UnreadCount(ctx, convID, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, count, 0)

	// A new message after the mark is unread again.
	_, err = env.messages.Send(ctx, convID, "bob", "after mark")
	assert.Equal(t, err, nil)
	count, err = env.conversations.UnreadCount(ctx, convID, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, count, 1)
}

func TestMarkReadCoversSameMillisecondBursts(t *testing.T) {
	env := newTestEnv()
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	// A burst within one millisecond pushes store-assigned timestamps
	// ahead of the wall clock; an immediate mark-read must still cover
	// every message.
	for i := 0; i < 20; i++ {
		_, err := env.messages.Send(ctx, convID, "bob", "burst")
		assert.Equal(t, err, nil)
	}
	assert.Equal(t, env.conversations.MarkRead(ctx, convID, "alice"), nil)

	count, err := env.conversations.UnreadCount(ctx, convID, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, count, 0)
}

func TestMarkReadUnknownConversation(t *testing.T) {
	env := newTestEnv()
	err := env.conversations.MarkRead(context.Background(), "0123456789abcdef01234567", "alice")
	assert.Equal(t, errors.Is(err, ErrNotFound), true)
}
