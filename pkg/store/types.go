package store

import "time"

type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityPublic  Visibility = "public"
)

func (v Visibility) Valid() bool {
	return v == VisibilityPrivate || v == VisibilityPublic
}

// ArtifactKind is the kind of a stored document.
type ArtifactKind string

const (
	ArtifactText  ArtifactKind = "text"
	ArtifactCode  ArtifactKind = "code"
	ArtifactImage ArtifactKind = "image"
	ArtifactSheet ArtifactKind = "sheet"
)

func (k ArtifactKind) Valid() bool {
	switch k {
	case ArtifactText, ArtifactCode, ArtifactImage, ArtifactSheet:
		return true
	default:
		return false
	}
}

type VoteType string

const (
	VoteUp   VoteType = "up"
	VoteDown VoteType = "down"
)

type User struct {
	ID       string `db:"id" json:"id"`
	Email    string `db:"email" json:"email"`
	Password string `db:"password" json:"-"`
}

type Chat struct {
	ID         string     `json:"id"`
	CreatedAt  time.Time  `json:"createdAt"`
	Title      string     `json:"title"`
	UserID     string     `json:"userId"`
	Visibility Visibility `json:"visibility"`
}

type Vote struct {
	ChatID    string `db:"chat_id" json:"chatId"`
	MessageID string `db:"message_id" json:"messageId"`
	IsUpvoted bool   `db:"is_upvoted" json:"isUpvoted"`
}

// Document is one version of an artifact. Versions share an ID and are
// distinguished by CreatedAt.
type Document struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"createdAt"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Kind      ArtifactKind `json:"kind"`
	UserID    string       `json:"userId"`
}

type Suggestion struct {
	ID                string    `json:"id"`
	DocumentID        string    `json:"documentId"`
	DocumentCreatedAt time.Time `json:"documentCreatedAt"`
	OriginalText      string    `json:"originalText"`
	SuggestedText     string    `json:"suggestedText"`
	Description       string    `json:"description"`
	IsResolved        bool      `json:"isResolved"`
	UserID            string    `json:"userId"`
	CreatedAt         time.Time `json:"createdAt"`
}
