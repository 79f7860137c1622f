package model

import (
	"sort"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation represents a two-party conversation in MongoDB. PairKey is
// the canonical identity of the participant pair; at most one conversation
// exists per pair.
type Conversation struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	PairKey            string             `json:"-" bson:"pair_key"`
	ParticipantIDs     []string           `json:"participantIds" bson:"participant_ids"`
	LastMessageTime    int64              `json:"lastMessageTime" bson:"last_message_time"`
	LastMessagePreview string             `json:"lastMessagePreview" bson:"last_message_preview"`
	CreatedAt          int64              `json:"createdAt" bson:"created_at"`
}

// OtherParticipant returns the first participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	for _, id := range c.ParticipantIDs {
		if id != userID {
			return id
		}
	}
	return ""
}

// ConversationSummary is a conversation annotated with the resolved profile
// of the other participant, as returned by the conversation list query.
type ConversationSummary struct {
	Conversation
	OtherUser *User `json:"otherUser"`
}

// PairKey canonicalizes an unordered participant pair into a single key.
func PairKey(userA, userB string) string {
	ids := []string{userA, userB}
	sort.Strings(ids)
	return strings.Join(ids, "|")
}
