package db

import (
	"testing"

	"github.com/go-playground/assert/v2"
	"go.mongodb.org/mongo-driver/bson"
)

func TestContainsQuotesMetacharacters(t *testing.T) {
	filter := NewFilter().Contains("name", "a(b").Build()
	assert.Equal(t, filter["name"], bson.M{"$regex": `a\(b`, "$options": "i"})

	// ".*" must match the literal two characters, not everything.
	filter = NewFilter().Contains("name", ".*").Build()
	assert.Equal(t, filter["name"], bson.M{"$regex": `\.\*`, "$options": "i"})
}

func TestBuilderComposesConditions(t *testing.T) {
	filter := NewFilter().
		Eq("user_id", "alice").
		Gt("created_at", int64(5)).
		Ne("sender_id", "bob").
		Build()

	assert.Equal(t, filter["user_id"], "alice")
	assert.Equal(t, filter["created_at"], bson.M{"$gt": int64(5)})
	assert.Equal(t, filter["sender_id"], bson.M{"$ne": "bob"})
}
