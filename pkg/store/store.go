// Package store persists users, chats, messages, votes, documents and
// suggestions in a SQL database.
package store

import (
	"context"
	"time"

	"github.com/go-go-golems/colloquy/pkg/turns"
)

type UserStore interface {
	GetUser(ctx context.Context, email string) ([]User, error)
	CreateUser(ctx context.Context, email, password string) (User, error)
}

type ChatStore interface {
	SaveChat(ctx context.Context, chat Chat) (Chat, error)
	DeleteChatByID(ctx context.Context, id string) error
	GetChatsByUserID(ctx context.Context, userID string) ([]Chat, error)
	GetChatByID(ctx context.Context, id string) (Chat, error)
	UpdateChatVisibilityByID(ctx context.Context, chatID string, visibility Visibility) error
}

type MessageStore interface {
	SaveMessages(ctx context.Context, messages []turns.Turn) error
	GetMessagesByChatID(ctx context.Context, chatID string) ([]turns.Turn, error)
	GetMessageByID(ctx context.Context, id string) ([]turns.Turn, error)
	DeleteMessagesByChatIDAfterTimestamp(ctx context.Context, chatID string, timestamp time.Time) error
}

type VoteStore interface {
	VoteMessage(ctx context.Context, chatID, messageID string, vote VoteType) error
	GetVotesByChatID(ctx context.Context, chatID string) ([]Vote, error)
}

type DocumentStore interface {
	SaveDocument(ctx context.Context, doc Document) (Document, error)
	GetDocumentsByID(ctx context.Context, id string) ([]Document, error)
	GetDocumentByID(ctx context.Context, id string) (Document, error)
	DeleteDocumentsByIDAfterTimestamp(ctx context.Context, id string, timestamp time.Time) error
	SaveSuggestions(ctx context.Context, suggestions []Suggestion) error
	GetSuggestionsByDocumentID(ctx context.Context, documentID string) ([]Suggestion, error)
}

// Store is the persistence abstraction used by the chat service.
type Store interface {
	UserStore
	ChatStore
	MessageStore
	VoteStore
	DocumentStore
	Close() error
}
