package store

// Schema statements are portable between SQLite and Postgres. Timestamps are
// unix milliseconds.
var schemaV1 = []string{
	`CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    password TEXT NOT NULL DEFAULT ''
)`,
	`CREATE INDEX IF NOT EXISTS users_email_idx ON users (email)`,
	`CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    created_at_ms BIGINT NOT NULL,
    title TEXT NOT NULL,
    user_id TEXT NOT NULL,
    visibility TEXT NOT NULL DEFAULT 'private'
)`,
	`CREATE INDEX IF NOT EXISTS chats_user_idx ON chats (user_id, created_at_ms)`,
	`CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    chat_id TEXT NOT NULL REFERENCES chats(id),
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS messages_chat_idx ON messages (chat_id, created_at_ms)`,
	`CREATE TABLE IF NOT EXISTS votes (
    chat_id TEXT NOT NULL REFERENCES chats(id),
    message_id TEXT NOT NULL REFERENCES messages(id),
    is_upvoted BOOLEAN NOT NULL,
    PRIMARY KEY (chat_id, message_id)
)`,
	`CREATE TABLE IF NOT EXISTS documents (
    id TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    kind TEXT NOT NULL DEFAULT 'text',
    user_id TEXT NOT NULL,
    PRIMARY KEY (id, created_at_ms)
)`,
	`CREATE TABLE IF NOT EXISTS suggestions (
    id TEXT PRIMARY KEY,
    document_id TEXT NOT NULL,
    document_created_at_ms BIGINT NOT NULL,
    original_text TEXT NOT NULL,
    suggested_text TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    is_resolved BOOLEAN NOT NULL DEFAULT FALSE,
    user_id TEXT NOT NULL,
    created_at_ms BIGINT NOT NULL,
    FOREIGN KEY (document_id, document_created_at_ms) REFERENCES documents(id, created_at_ms)
)`,
}

type chatRow struct {
	ID          string `db:"id"`
	CreatedAtMs int64  `db:"created_at_ms"`
	Title       string `db:"title"`
	UserID      string `db:"user_id"`
	Visibility  string `db:"visibility"`
}

func (r chatRow) toChat() Chat {
	return Chat{
		ID:         r.ID,
		CreatedAt:  fromMillis(r.CreatedAtMs),
		Title:      r.Title,
		UserID:     r.UserID,
		Visibility: Visibility(r.Visibility),
	}
}

type messageRow struct {
	ID          string `db:"id"`
	ChatID      string `db:"chat_id"`
	Role        string `db:"role"`
	Content     string `db:"content"`
	CreatedAtMs int64  `db:"created_at_ms"`
}

type documentRow struct {
	ID          string `db:"id"`
	CreatedAtMs int64  `db:"created_at_ms"`
	Title       string `db:"title"`
	Content     string `db:"content"`
	Kind        string `db:"kind"`
	UserID      string `db:"user_id"`
}

func (r documentRow) toDocument() Document {
	return Document{
		ID:        r.ID,
		CreatedAt: fromMillis(r.CreatedAtMs),
		Title:     r.Title,
		Content:   r.Content,
		Kind:      ArtifactKind(r.Kind),
		UserID:    r.UserID,
	}
}

type suggestionRow struct {
	ID                  string `db:"id"`
	DocumentID          string `db:"document_id"`
	DocumentCreatedAtMs int64  `db:"document_created_at_ms"`
	OriginalText        string `db:"original_text"`
	SuggestedText       string `db:"suggested_text"`
	Description         string `db:"description"`
	IsResolved          bool   `db:"is_resolved"`
	UserID              string `db:"user_id"`
	CreatedAtMs         int64  `db:"created_at_ms"`
}

func (r suggestionRow) toSuggestion() Suggestion {
	return Suggestion{
		ID:                r.ID,
		DocumentID:        r.DocumentID,
		DocumentCreatedAt: fromMillis(r.DocumentCreatedAtMs),
		OriginalText:      r.OriginalText,
		SuggestedText:     r.SuggestedText,
		Description:       r.Description,
		IsResolved:        r.IsResolved,
		UserID:            r.UserID,
		CreatedAt:         fromMillis(r.CreatedAtMs),
	}
}
