package service

import (
	"Parley/internal/model"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestTypingExcludesCaller(t *testing.T) {
	env := newTestEnv()
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	assert.Equal(t, env.typing.SetTyping(ctx, convID, "alice", true), nil)
	assert.Equal(t, env.typing.SetTyping(ctx, convID, "bob", true), nil)

	typing, err := env.typing.ListTyping(ctx, convID, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(typing), 1)
	assert.Equal(t, typing[0].UserID, "bob")
	assert.Equal(t, typing[0].Name, "Bob")

	// Nobody typing from bob's perspective after alice stops.
	assert.Equal(t, env.typing.SetTyping(ctx, convID, "alice", false), nil)
	typing, err = env.typing.ListTyping(ctx, convID, "bob")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(typing), 0)
}

func TestTypingRejectsMalformedConversationID(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	err := env.typing.SetTyping(ctx, "not-an-id", "alice", true)
	assert.Equal(t, errors.Is(err, ErrValidation), true)

	err = env.typing.SetTyping(ctx, "not-an-id", "alice", false)
	assert.Equal(t, errors.Is(err, ErrValidation), true)

	_, err = env.typing.ListTyping(ctx, "not-an-id", "alice")
	assert.Equal(t, errors.Is(err, ErrValidation), true)
}

func TestTypingExpiresByAge(t *testing.T) {
	env := newTestEnv()
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	// A row older than the TTL is invisible even though it was never
	// explicitly cleared.
	stale := time.Now().UnixMilli() - model.TypingTTLMillis - 1
	assert.Equal(t, env.store.Typing().Upsert(ctx, convID, "bob", stale), nil)

	typing, err := env.typing.ListTyping(ctx, convID, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(typing), 0)

	// A fresh signal makes it visible again.
	assert.Equal(t, env.typing.SetTyping(ctx, convID, "bob", true), nil)
	typing, err = env.typing.ListTyping(ctx, convID, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(typing), 1)
}

func TestTypingUnknownProfileFallsBack(t *testing.T) {
	env := newTestEnv()
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	// A typist without a synced profile still shows up, under a
	// placeholder name.
	assert.Equal(t, env.store.Typing().Upsert(ctx, convID, "ghost", time.Now().UnixMilli()), nil)

	typing, err := env.typing.ListTyping(ctx, convID, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(typing), 1)
	assert.Equal(t, typing[0].UserID, "ghost")
	assert.Equal(t, typing[0].Name, "Someone")
}

func TestSweepStaleRemovesOnlyLongDeadRows(t *testing.T) {
	env := newTestEnv()
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	longDead := time.Now().Add(-2 * staleTypingAfter).UnixMilli()
	assert.Equal(t, env.store.Typing().Upsert(ctx, convID, "bob", longDead), nil)
	assert.Equal(t, env.typing.SetTyping(ctx, convID, "alice", true), nil)

	removed, err := env.typing.SweepStale(ctx)
	assert.Equal(t, err, nil)
	assert.Equal(t, removed, int64(1))

	// The fresh row survived.
	typing, err := env.typing.ListTyping(ctx, convID, "bob")
	assert.Equal(t, err, nil)
	assert.Equal(t, len(typing), 1)
	assert.Equal(t, typing[0].UserID, "alice")
}
