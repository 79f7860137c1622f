package event

import (
	"Parley/internal/reactive"
	"encoding/json"
)

// Client -> server events.
const (
	EventSubscribe   = "subscribe"
	EventUnsubscribe = "unsubscribe"
	EventMutate      = "mutate"
)

// Server -> client events.
const (
	EventSubscribed   = "subscribed"
	EventUpdate       = "update"
	EventUnsubscribed = "unsubscribed"
	EventMutated      = "mutated"
	EventError        = "error"
)

// WsEvent is the framing envelope for everything on the socket. RequestID
// echoes the client's correlation id on replies; SubscriptionID identifies
// the live query an update belongs to.
type WsEvent struct {
	Event          string          `json:"event"`
	RequestID      string          `json:"requestId,omitempty"`
	SubscriptionID string          `json:"subscriptionId,omitempty"`
	Payload        json.RawMessage `json:"payload,omitempty"`
}

// SubscribeRequest opens a live query.
type SubscribeRequest struct {
	Query reactive.QuerySpec `json:"query"`
}

// UnsubscribeRequest releases a live query.
type UnsubscribeRequest struct {
	SubscriptionID string `json:"subscriptionId"`
}

// Command kinds (closed set).
const (
	CommandSyncUser         = "sync_user"
	CommandSetOnline        = "set_online"
	CommandOpenConversation = "open_conversation"
	CommandSendMessage      = "send_message"
	CommandDeleteMessage    = "delete_message"
	CommandMarkRead         = "mark_read"
	CommandSetTyping        = "set_typing"
)

// Command is a mutation request. Kind decides which fields are read.
type Command struct {
	Kind           string `json:"kind"`
	UserID         string `json:"userId,omitempty"`
	OtherUserID    string `json:"otherUserId,omitempty"`
	ConversationID string `json:"conversationId,omitempty"`
	MessageID      string `json:"messageId,omitempty"`
	Content        string `json:"content,omitempty"`
	IsTyping       bool   `json:"isTyping,omitempty"`
	IsOnline       bool   `json:"isOnline,omitempty"`
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	AvatarURL      string `json:"avatarUrl,omitempty"`
}

// MutateRequest carries a command.
type MutateRequest struct {
	Command Command `json:"command"`
}

// Error codes mirror the service error taxonomy.
const (
	CodeValidation   = "validation"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
	CodeInternal     = "internal"
)

// ErrorPayload represents an error response sent to a client.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
