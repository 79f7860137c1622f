package service

import (
	"Parley/internal/model"
	"Parley/internal/reactive"
	"context"
	"errors"
)

// QueryExecutor runs the closed set of live query shapes against the
// domain services and reports the dependency keys each execution read.
// The engine re-runs these bodies whenever a mutation touches one of the
// returned keys.
type QueryExecutor struct {
	users         UserService
	conversations ConversationService
	messages      MessageService
	typing        TypingService
}

func NewQueryExecutor(
	users UserService,
	conversations ConversationService,
	messages MessageService,
	typing TypingService,
) *QueryExecutor {
	return &QueryExecutor{
		users:         users,
		conversations: conversations,
		messages:      messages,
		typing:        typing,
	}
}

func (q *QueryExecutor) Execute(ctx context.Context, spec reactive.QuerySpec) (any, []string, error) {
	switch spec.Kind {
	case reactive.QueryConversations:
		return q.executeConversations(ctx, spec)
	case reactive.QueryMessages:
		return q.executeMessages(ctx, spec)
	case reactive.QueryTyping:
		return q.executeTyping(ctx, spec)
	case reactive.QueryUnread:
		return q.executeUnread(ctx, spec)
	case reactive.QueryUsers:
		return q.executeUsers(ctx, spec)
	case reactive.QueryUser:
		return q.executeUser(ctx, spec)
	default:
		return nil, nil, reactive.ErrInvalidQuery
	}
}

func (q *QueryExecutor) executeConversations(ctx context.Context, spec reactive.QuerySpec) (any, []string, error) {
	summaries, err := q.conversations.ListForUser(ctx, spec.UserID)
	if err != nil {
		return nil, nil, err
	}
	if summaries == nil {
		summaries = []model.ConversationSummary{}
	}

	// The list depends on each conversation's preview fields and on the
	// peer profiles it resolves, so presence changes refresh it too.
	deps := []string{reactive.UserConversationsKey(spec.UserID)}
	for _, summary := range summaries {
		deps = append(deps, reactive.ConversationKey(summary.ID.Hex()))
		if other := summary.OtherParticipant(spec.UserID); other != "" {
			deps = append(deps, reactive.UserKey(other))
		}
	}
	return summaries, deps, nil
}

func (q *QueryExecutor) executeMessages(ctx context.Context, spec reactive.QuerySpec) (any, []string, error) {
	messages, err := q.messages.List(ctx, spec.ConversationID)
	if err != nil {
		return nil, nil, err
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, []string{reactive.MessagesKey(spec.ConversationID)}, nil
}

func (q *QueryExecutor) executeTyping(ctx context.Context, spec reactive.QuerySpec) (any, []string, error) {
	typing, err := q.typing.ListTyping(ctx, spec.ConversationID, spec.UserID)
	if err != nil {
		return nil, nil, err
	}

	deps := []string{reactive.TypingKey(spec.ConversationID)}
	for _, t := range typing {
		deps = append(deps, reactive.UserKey(t.UserID))
	}
	return typing, deps, nil
}

func (q *QueryExecutor) executeUnread(ctx context.Context, spec reactive.QuerySpec) (any, []string, error) {
	count, err := q.conversations.UnreadCount(ctx, spec.ConversationID, spec.UserID)
	if err != nil {
		return nil, nil, err
	}
	deps := []string{
		reactive.MessagesKey(spec.ConversationID),
		reactive.ReceiptKey(spec.ConversationID, spec.UserID),
	}
	return count, deps, nil
}

func (q *QueryExecutor) executeUsers(ctx context.Context, spec reactive.QuerySpec) (any, []string, error) {
	users, err := q.users.ListOthers(ctx, spec.UserID, spec.Search)
	if err != nil {
		return nil, nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, []string{reactive.KeyAllUsers}, nil
}

func (q *QueryExecutor) executeUser(ctx context.Context, spec reactive.QuerySpec) (any, []string, error) {
	deps := []string{reactive.UserKey(spec.UserID)}
	user, err := q.users.Get(ctx, spec.UserID)
	if errors.Is(err, ErrNotFound) {
		// Reads surface a missing entity as an absent result.
		return nil, deps, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return user, deps, nil
}
