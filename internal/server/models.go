package server

import "github.com/smoradi/memochat/internal/store"

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// ChatTurnRequest is the /api/chat payload.
type ChatTurnRequest struct {
	Message string `json:"message"`
	ChatID  string `json:"chatId"`
	UserID  string `json:"userId"`
}

// ChatTurnResponse carries the assistant reply and the resolved chat id.
type ChatTurnResponse struct {
	Reply  string `json:"reply"`
	ChatID string `json:"chatId"`
}

// NewChatRequest is the /api/chat/new payload. UserID is the account email.
type NewChatRequest struct {
	UserID string `json:"userId"`
	Title  string `json:"title"`
}

// NewChatResponse confirms a created chat.
type NewChatResponse struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

// RenameChatRequest is the PATCH /api/chat/:chatId payload.
type RenameChatRequest struct {
	Title string `json:"title"`
}

// ChatDetailResponse is a chat with its full ordered transcript.
type ChatDetailResponse struct {
	store.Chat
	Messages []store.Message `json:"messages"`
}

// RegisterRequest is the /api/register payload.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}
