package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReadReceipt tracks the read high-water mark for one user in one
// conversation. At most one exists per (conversation, user) pair.
type ReadReceipt struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	UserID         string             `json:"userId" bson:"user_id"`
	LastReadTime   int64              `json:"lastReadTime" bson:"last_read_time"` // unix millis
}
