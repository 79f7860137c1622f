package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TypingTTLMillis is how long a typing indicator stays visible after its
// last update. The filter is applied at read time; rows that were never
// explicitly cleared simply age out.
const TypingTTLMillis = 2000

// TypingIndicator is an ephemeral marker that a user is typing in a
// conversation. Keyed by (conversation, user); deleted outright when the
// user explicitly stops typing.
type TypingIndicator struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	UserID         string             `json:"userId" bson:"user_id"`
	UpdatedAt      int64              `json:"updatedAt" bson:"updated_at"` // unix millis
}

// TypingUser is one entry of the typing-users query: the typist's identity
// resolved to a display name.
type TypingUser struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
}
