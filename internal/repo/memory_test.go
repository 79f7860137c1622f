package repo

import (
	"Parley/internal/model"
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestMemoryGetOrCreateReportsCreation(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UnixMilli()

	first, created, err := store.Conversations().GetOrCreate(ctx, "alice|bob", []string{"alice", "bob"}, now)
	assert.Equal(t, err, nil)
	assert.Equal(t, created, true)

	second, created, err := store.Conversations().GetOrCreate(ctx, "alice|bob", []string{"alice", "bob"}, now+5)
	assert.Equal(t, err, nil)
	assert.Equal(t, created, false)
	assert.Equal(t, second.ID, first.ID)
	assert.Equal(t, second.CreatedAt, now)
}

func TestMemoryMessageTimestampsAreStrictlyIncreasing(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	conv, _, err := store.Conversations().GetOrCreate(ctx, "alice|bob", []string{"alice", "bob"}, time.Now().UnixMilli())
	assert.Equal(t, err, nil)

	var prev int64
	for i := 0; i < 50; i++ {
		msg, err := store.Messages().Insert(ctx, conv.ID, "alice", "tick")
		assert.Equal(t, err, nil)
		assert.Equal(t, msg.CreatedAt > prev, true)
		prev = msg.CreatedAt
	}

	msgs, err := store.Messages().ListByConversation(ctx, conv.ID.Hex())
	assert.Equal(t, err, nil)
	assert.Equal(t, len(msgs), 50)
}

func TestMemoryReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UnixMilli()

	_, err := store.Users().Upsert(ctx, &model.User{UserID: "alice", Name: "Alice", SyncedAt: now})
	assert.Equal(t, err, nil)

	got, err := store.Users().GetByUserID(ctx, "alice")
	assert.Equal(t, err, nil)
	got.Name = "mutated"

	again, err := store.Users().GetByUserID(ctx, "alice")
	assert.Equal(t, err, nil)
	assert.Equal(t, again.Name, "Alice")
}

func TestMemoryPresenceUnknownUser(t *testing.T) {
	store := NewMemoryStore()
	err := store.Users().SetPresence(context.Background(), "nobody", true, time.Now().UnixMilli())
	assert.Equal(t, err, ErrNotFound)
}
