package service

import (
	"Parley/internal/model"
	"Parley/internal/reactive"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestSendValidatesContent(t *testing.T) {
	env := newTestEnv()
	conv := env.openConversation(t, "alice", "bob")
	ctx := context.Background()

	_, err := env.messages.Send(ctx, conv.ID.Hex(), "alice", "")
	assert.Equal(t, errors.Is(err, ErrValidation), true)

	_, err = env.messages.Send(ctx, conv.ID.Hex(), "alice", "   \n\t ")
	assert.Equal(t, errors.Is(err, ErrValidation), true)

	_, err = env.messages.Send(ctx, conv.ID.Hex(), "", "hi")
	assert.Equal(t, errors.Is(err, ErrValidation), true)
}

func TestMalformedIDsAreRejected(t *testing.T) {
	env := newTestEnv()
	env.openConversation(t, "alice", "bob")
	ctx := context.Background()

	// A malformed object id is a validation error, never a filter that
	// quietly matches nothing (or worse, everything).
	_, err := env.messages.Send(ctx, "not-an-id", "alice", "hi")
	assert.Equal(t, errors.Is(err, ErrValidation), true)

	_, err = env.messages.List(ctx, "not-an-id")
	assert.Equal(t, errors.Is(err, ErrValidation), true)

	err = env.messages.SoftDelete(ctx, "not-an-id", "alice")
	assert.Equal(t, errors.Is(err, ErrValidation), true)
}

func TestSendUnknownConversation(t *testing.T) {
	env := newTestEnv()
	_, err := env.messages.Send(context.Background(), "0123456789abcdef01234567", "alice", "hi")
	assert.Equal(t, errors.Is(err, ErrNotFound), true)
}

func TestSendUpdatesPreviewAndNotifies(t *testing.T) {
	env := newTestEnv()
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	env.notifier.reset()
	ctx := context.Background()

	msg, err := env.messages.Send(ctx, convID, "alice", "hello bob")
	assert.Equal(t, err, nil)
	assert.Equal(t, msg.SenderID, "alice")
	assert.Equal(t, msg.Content, "hello bob")

	updated, err := env.conversations.GetOrCreate(ctx, "alice", "bob")
	assert.Equal(t, err, nil)
	assert.Equal(t, updated.LastMessagePreview, "hello bob")
	assert.Equal(t, updated.LastMessageTime >= conv.LastMessageTime, true)

	keys := env.notifier.keys()
	assert.Equal(t, containsKey(keys, reactive.MessagesKey(convID)), true)
	assert.Equal(t, containsKey(keys, reactive.ConversationKey(convID)), true)
	assert.Equal(t, containsKey(keys, reactive.UserConversationsKey("alice")), true)
	assert.Equal(t, containsKey(keys, reactive.UserConversationsKey("bob")), true)
}

func TestLongContentPreviewIsTruncated(t *testing.T) {
	env := newTestEnv()
	conv := env.openConversation(t, "alice", "bob")
	ctx := context.Background()

	long := strings.Repeat("a", 200)
	_, err := env.messages.Send(ctx, conv.ID.Hex(), "alice", long)
	assert.Equal(t, err, nil)

	updated, err := env.conversations.GetOrCreate(ctx, "alice", "bob")
	assert.Equal(t, err, nil)
	// Preview keeps the first 60 characters; the message keeps all of them.
	assert.Equal(t, len(updated.LastMessagePreview), previewLength)

	msgs, err := env.messages.List(ctx, conv.ID.Hex())
	assert.Equal(t, err, nil)
	assert.Equal(t, msgs[0].Content, long)
}

func TestListReturnsAscendingOrder(t *testing.T) {
	env := newTestEnv()
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	for _, content := range []string{"one", "two", "three"} {
		_, err := env.messages.Send(ctx, convID, "alice", content)
		assert.Equal(t, err, nil)
	}

	msgs, err := env.messages.List(ctx, convID)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(msgs), 3)
	assert.Equal(t, msgs[0].Content, "one")
	assert.Equal(t, msgs[1].Content, "two")
	assert.Equal(t, msgs[2].Content, "three")
	assert.Equal(t, msgs[0].CreatedAt < msgs[1].CreatedAt, true)
	assert.Equal(t, msgs[1].CreatedAt < msgs[2].CreatedAt, true)
}

func TestSoftDeleteRedactsContent(t *testing.T) {
	env := newTestEnv()
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	msg, err := env.messages.Send(ctx, convID, "alice", "secret")
	assert.Equal(t, err, nil)

	err = env.messages.SoftDelete(ctx, msg.ID.Hex(), "alice")
	assert.Equal(t, err, nil)

	msgs, err := env.messages.List(ctx, convID)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(msgs), 1)
	assert.Equal(t, msgs[0].IsDeleted, true)
	assert.Equal(t, msgs[0].Content, model.DeletedContent)
}

func TestSoftDeleteOnlySender(t *testing.T) {
	env := newTestEnv()
	conv := env.openConversation(t, "alice", "bob")
	ctx := context.Background()

	msg, err := env.messages.Send(ctx, conv.ID.Hex(), "alice", "mine")
	assert.Equal(t, err, nil)

	err = env.messages.SoftDelete(ctx, msg.ID.Hex(), "bob")
	assert.Equal(t, errors.Is(err, ErrUnauthorized), true)

	msgs, err := env.messages.List(ctx, conv.ID.Hex())
	assert.Equal(t, err, nil)
	assert.Equal(t, msgs[0].Content, "mine")
}

func TestSoftDeleteIsIdempotent(t *testing.T) {
	env := newTestEnv()
	conv := env.openConversation(t, "alice", "bob")
	ctx := context.Background()

	msg, err := env.messages.Send(ctx, conv.ID.Hex(), "alice", "bye")
	assert.Equal(t, err, nil)

	assert.Equal(t, env.messages.SoftDelete(ctx, msg.ID.Hex(), "alice"), nil)
	assert.Equal(t, env.messages.SoftDelete(ctx, msg.ID.Hex(), "alice"), nil)

	err = env.messages.SoftDelete(ctx, "0123456789abcdef01234567", "alice")
	assert.Equal(t, errors.Is(err, ErrNotFound), true)
}
