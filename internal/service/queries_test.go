package service

import (
	"Parley/internal/model"
	"Parley/internal/reactive"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"go.uber.org/zap"
)

// liveEnv wires the real engine against the memory store, so mutations
// flow through the services into live query pushes end to end.
type liveEnv struct {
	*testEnv
	engine *reactive.Engine
}

func newLiveEnv(t *testing.T) *liveEnv {
	t.Helper()
	env := newTestEnv()
	engine := reactive.NewEngine(zap.NewNop())
	t.Cleanup(engine.Stop)

	// Rebuild the services so they publish into the engine instead of
	// the recorder.
	logger := zap.NewNop()
	env.users = NewUserService(env.store.Users(), engine, logger)
	env.presence = NewPresenceService(env.store.Users(), engine, logger)
	env.conversations = NewConversationService(
		env.store.Conversations(), env.store.Messages(), env.store.Receipts(), env.store.Users(), engine, logger,
	)
	env.messages = NewMessageService(env.store.Messages(), env.store.Conversations(), engine, logger)
	env.typing = NewTypingService(env.store.Typing(), env.store.Users(), engine, logger)
	engine.SetExecutor(NewQueryExecutor(env.users, env.conversations, env.messages, env.typing))

	return &liveEnv{testEnv: env, engine: engine}
}

type testSink struct {
	pushes chan json.RawMessage
}

func newTestSink() *testSink {
	return &testSink{pushes: make(chan json.RawMessage, 16)}
}

func (s *testSink) Push(subscriptionID string, result json.RawMessage) {
	s.pushes <- result
}

func (s *testSink) wait(t *testing.T) json.RawMessage {
	t.Helper()
	select {
	case p := <-s.pushes:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for push")
		return nil
	}
}

func TestMessageSubscriptionReceivesNewMessages(t *testing.T) {
	env := newLiveEnv(t)
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	sink := newTestSink()
	_, initial, err := env.engine.Subscribe(ctx, reactive.QuerySpec{
		Kind:           reactive.QueryMessages,
		ConversationID: convID,
	}, sink)
	assert.Equal(t, err, nil)

	var initialMsgs []model.Message
	assert.Equal(t, json.Unmarshal(initial, &initialMsgs), nil)
	assert.Equal(t, len(initialMsgs), 0)

	_, err = env.messages.Send(ctx, convID, "alice", "hi bob")
	assert.Equal(t, err, nil)

	var msgs []model.Message
	assert.Equal(t, json.Unmarshal(sink.wait(t), &msgs), nil)
	assert.Equal(t, len(msgs), 1)
	assert.Equal(t, msgs[0].Content, "hi bob")
	assert.Equal(t, msgs[0].SenderID, "alice")
}

func TestConversationListReactsToPeerActivity(t *testing.T) {
	env := newLiveEnv(t)
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	ctx := context.Background()

	sink := newTestSink()
	_, _, err := env.engine.Subscribe(ctx, reactive.QuerySpec{
		Kind:   reactive.QueryConversations,
		UserID: "alice",
	}, sink)
	assert.Equal(t, err, nil)

	// Bob sending a message refreshes alice's conversation list with the
	// new preview.
	_, err = env.messages.Send(ctx, conv.ID.Hex(), "bob", "dinner tonight?")
	assert.Equal(t, err, nil)

	var summaries []model.ConversationSummary
	assert.Equal(t, json.Unmarshal(sink.wait(t), &summaries), nil)
	assert.Equal(t, len(summaries), 1)
	assert.Equal(t, summaries[0].LastMessagePreview, "dinner tonight?")
	assert.Equal(t, summaries[0].OtherUser.Name, "Bob")

	// Bob going offline refreshes it too, via the peer profile
	// dependency.
	assert.Equal(t, env.presence.SetOnline(ctx, "bob", false), nil)
	assert.Equal(t, json.Unmarshal(sink.wait(t), &summaries), nil)
	assert.Equal(t, summaries[0].OtherUser.IsOnline, false)
}

func TestUnreadSubscriptionTracksReadMark(t *testing.T) {
	env := newLiveEnv(t)
	env.syncUser(t, "alice", "Alice")
	env.syncUser(t, "bob", "Bob")
	conv := env.openConversation(t, "alice", "bob")
	convID := conv.ID.Hex()
	ctx := context.Background()

	sink := newTestSink()
	_, initial, err := env.engine.Subscribe(ctx, reactive.QuerySpec{
		Kind:           reactive.QueryUnread,
		ConversationID: convID,
		UserID:         "alice",
	}, sink)
	assert.Equal(t, err, nil)
	assert.Equal(t, string(initial), "0")

	_, err = env.messages.Send(ctx, convID, "bob", "one")
	assert.Equal(t, err, nil)
	assert.Equal(t, string(sink.wait(t)), "1")

	assert.Equal(t, env.conversations.MarkRead(ctx, convID, "alice"), nil)
	assert.Equal(t, string(sink.wait(t)), "0")
}

func TestUserQueryMissingProfileIsNull(t *testing.T) {
	env := newLiveEnv(t)
	ctx := context.Background()

	sink := newTestSink()
	_, initial, err := env.engine.Subscribe(ctx, reactive.QuerySpec{
		Kind:   reactive.QueryUser,
		UserID: "alice",
	}, sink)
	assert.Equal(t, err, nil)
	assert.Equal(t, string(initial), "null")

	// The profile appearing resolves the subscription to a value.
	env.syncUser(t, "alice", "Alice")
	var user model.User
	assert.Equal(t, json.Unmarshal(sink.wait(t), &user), nil)
	assert.Equal(t, user.UserID, "alice")
}
