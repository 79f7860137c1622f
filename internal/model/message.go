package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeletedContent replaces the content of soft-deleted messages before they
// leave the message service. The original text never crosses the API.
const DeletedContent = "This message was deleted"

// Message represents a chat message in MongoDB. Messages are append-only:
// content is immutable and only IsDeleted may transition false to true.
type Message struct {
	ID             primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ConversationID primitive.ObjectID `json:"conversationId" bson:"conversation_id"`
	SenderID       string             `json:"senderId" bson:"sender_id"`
	Content        string             `json:"content" bson:"content"`
	IsDeleted      bool               `json:"isDeleted" bson:"is_deleted"`
	CreatedAt      int64              `json:"createdAt" bson:"created_at"` // store-assigned, unix millis
}
