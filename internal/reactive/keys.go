package reactive

// Dependency keys name slices of stored data. A live query registers the
// keys it read; a mutation reports the keys it touched; the engine
// recomputes every subscription whose key sets intersect.

// KeyAllUsers covers the whole user directory.
const KeyAllUsers = "users"

// UserKey covers one user's profile and presence fields.
func UserKey(userID string) string {
	return "user:" + userID
}

// UserConversationsKey covers the set of conversations containing a user.
func UserConversationsKey(userID string) string {
	return "user-conversations:" + userID
}

// ConversationKey covers one conversation row (preview, lastMessageTime).
func ConversationKey(conversationID string) string {
	return "conversation:" + conversationID
}

// MessagesKey covers all messages of one conversation.
func MessagesKey(conversationID string) string {
	return "messages:" + conversationID
}

// ReceiptKey covers the read receipt of one user in one conversation.
func ReceiptKey(conversationID, userID string) string {
	return "receipt:" + conversationID + ":" + userID
}

// TypingKey covers the typing indicators of one conversation.
func TypingKey(conversationID string) string {
	return "typing:" + conversationID
}
