package models

// ChatRole tags who produced a prompt or transcript message.
type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleUser      ChatRole = "user"
	RoleAssistant ChatRole = "assistant"
)

// ChatMessage is one message in a model prompt.
type ChatMessage struct {
	Role    ChatRole `json:"role"`
	Content string   `json:"content"`
}

// MemoryDocument is the denormalized copy of a message held in the vector
// store. Embedding carries the storage vector (capped at the store's indexable
// array limit); the similarity vector travels separately as the document's
// $vector and always has the collection's declared dimension.
type MemoryDocument struct {
	ID      string    `json:"_id"`
	ChatID  string    `json:"chat_id"`
	UserID  string    `json:"user_id"`
	Role    ChatRole  `json:"role"`
	Content string    `json:"content"`
	Vector  []float32 `json:"embedding"`
}
