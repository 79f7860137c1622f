package reactive

import (
	"context"
	"encoding/json"
	"errors"
)

// QueryKind identifies one of the closed set of live query shapes.
type QueryKind string

const (
	// QueryConversations is the conversation list of UserID, annotated
	// with the other participant's profile.
	QueryConversations QueryKind = "conversations"
	// QueryMessages is all messages of ConversationID, ascending.
	QueryMessages QueryKind = "messages"
	// QueryTyping is the users currently typing in ConversationID,
	// excluding UserID.
	QueryTyping QueryKind = "typing"
	// QueryUnread is the unread count of (ConversationID, UserID).
	QueryUnread QueryKind = "unread"
	// QueryUsers is the user directory excluding UserID, optionally
	// filtered by Search.
	QueryUsers QueryKind = "users"
	// QueryUser is the profile of UserID.
	QueryUser QueryKind = "user"
)

var ErrInvalidQuery = errors.New("invalid query spec")

// QuerySpec is the declarative description of a live query.
type QuerySpec struct {
	Kind           QueryKind `json:"kind"`
	UserID         string    `json:"userId,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Search         string    `json:"search,omitempty"`
}

func (s QuerySpec) Validate() error {
	switch s.Kind {
	case QueryConversations, QueryUsers, QueryUser:
		if s.UserID == "" {
			return ErrInvalidQuery
		}
	case QueryMessages:
		if s.ConversationID == "" {
			return ErrInvalidQuery
		}
	case QueryTyping, QueryUnread:
		if s.ConversationID == "" || s.UserID == "" {
			return ErrInvalidQuery
		}
	default:
		return ErrInvalidQuery
	}
	return nil
}

// baseKeys returns the dependency keys derivable from the spec's
// parameters alone. They are a subset of what an execution reports (a
// conversation list also depends on per-conversation and peer keys) and
// exist so a subscription can be indexed before its first execution.
func (s QuerySpec) baseKeys() []string {
	switch s.Kind {
	case QueryConversations:
		return []string{UserConversationsKey(s.UserID)}
	case QueryMessages:
		return []string{MessagesKey(s.ConversationID)}
	case QueryTyping:
		return []string{TypingKey(s.ConversationID)}
	case QueryUnread:
		return []string{MessagesKey(s.ConversationID), ReceiptKey(s.ConversationID, s.UserID)}
	case QueryUsers:
		return []string{KeyAllUsers}
	case QueryUser:
		return []string{UserKey(s.UserID)}
	default:
		return nil
	}
}

// Executor runs a query body against the entity store, returning the
// current result and the dependency keys the execution read. The key set
// may change between executions; the engine re-indexes after each one.
type Executor interface {
	Execute(ctx context.Context, spec QuerySpec) (result any, deps []string, err error)
}

// Change describes a committed mutation: what entity changed and which
// dependency keys it touched. The store writes are complete by the time a
// Change is published, so recomputations read a consistent state.
type Change struct {
	EntityKind string
	EntityID   string
	Keys       []string
}

// Notifier receives committed mutations. Implemented by the engine;
// domain services depend on this interface only.
type Notifier interface {
	NotifyMutation(change Change)
}

// Sink receives pushed results for the subscriptions it owns. Push must
// not block indefinitely; a slow sink drops or disconnects on its own.
type Sink interface {
	Push(subscriptionID string, result json.RawMessage)
}
