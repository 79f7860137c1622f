package model

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user profile in MongoDB, synced from the external
// identity provider on login. Presence fields are mutated by heartbeats.
type User struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID    string             `json:"userId" bson:"user_id"`
	Name      string             `json:"name" bson:"name"`
	Email     string             `json:"email" bson:"email"`
	AvatarURL string             `json:"avatarUrl" bson:"avatar_url"`
	IsOnline  bool               `json:"isOnline" bson:"is_online"`
	LastSeen  int64              `json:"lastSeen" bson:"last_seen"` // unix millis
	CreatedAt int64              `json:"createdAt" bson:"created_at"`
	SyncedAt  int64              `json:"syncedAt" bson:"synced_at"`
}
