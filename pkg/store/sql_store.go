package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/go-go-golems/colloquy/pkg/turns"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// SQLStore implements Store on top of sqlx. Queries are written with `?`
// placeholders and rebound for the configured driver.
type SQLStore struct {
	mu     sync.RWMutex
	db     *sqlx.DB
	closed bool
}

var _ Store = (*SQLStore)(nil)

// Open connects to the database and applies the schema.
func Open(ctx context.Context, driver string, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("sql store: empty dsn")
	}
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, errors.Errorf("sql store: unsupported driver %q", driver)
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "connect %s", driver)
	}
	if driver == DriverSQLite {
		// a single writer avoids SQLITE_BUSY under concurrent requests
		db.SetMaxOpenConns(1)
	}

	s := NewSQLStore(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug().Str("driver", driver).Msg("sql store opened")
	return s, nil
}

func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// SQLiteDSNForFile returns a DSN for a SQLite database file with WAL, a busy
// timeout and foreign keys enabled.
func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sql store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", path), nil
}

func (s *SQLStore) Migrate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	for _, stmt := range schemaV1 {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "migrate schema")
		}
	}
	return nil
}

func (s *SQLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLStore) ensureOpen() error {
	if s.closed {
		return ErrClosed
	}
	if s.db == nil {
		return errors.New("sql store db is nil")
	}
	return nil
}

// failed logs a database failure and wraps it. Not-found and validation errors
// are returned untouched.
func failed(err error, what string) error {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	log.Error().Err(err).Msgf("Failed to %s", what)
	return errors.Wrap(err, what)
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return fromMillis(toMillis(t))
}

func (s *SQLStore) GetUser(ctx context.Context, email string) ([]User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	users := []User{}
	q := s.db.Rebind(`SELECT id, email, password FROM users WHERE email = ?`)
	if err := s.db.SelectContext(ctx, &users, q, email); err != nil {
		return nil, failed(err, "get user from database")
	}
	return users, nil
}

func (s *SQLStore) CreateUser(ctx context.Context, email, password string) (User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return User{}, err
	}
	if email == "" {
		return User{}, &ValidationError{Field: "email", Reason: "must not be empty"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, errors.Wrap(err, "hash password")
	}
	u := User{ID: uuid.NewString(), Email: email, Password: string(hash)}
	q := s.db.Rebind(`INSERT INTO users (id, email, password) VALUES (?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, u.ID, u.Email, u.Password); err != nil {
		return User{}, failed(err, "create user in database")
	}
	return u, nil
}

// CheckPassword reports whether password matches the stored hash of u.
func CheckPassword(u User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (s *SQLStore) SaveChat(ctx context.Context, chat Chat) (Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return Chat{}, err
	}
	if chat.ID == "" {
		return Chat{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if chat.UserID == "" {
		return Chat{}, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if chat.Visibility == "" {
		chat.Visibility = VisibilityPrivate
	}
	if !chat.Visibility.Valid() {
		return Chat{}, &ValidationError{Field: "visibility", Reason: fmt.Sprintf("unknown visibility %q", chat.Visibility)}
	}
	chat.CreatedAt = nowIfZero(chat.CreatedAt)

	q := s.db.Rebind(`INSERT INTO chats (id, created_at_ms, title, user_id, visibility) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, chat.ID, toMillis(chat.CreatedAt), chat.Title, chat.UserID, string(chat.Visibility)); err != nil {
		return Chat{}, failed(err, "save chat in database")
	}
	return chat, nil
}

func (s *SQLStore) DeleteChatByID(ctx context.Context, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM votes WHERE chat_id = ?`), id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM messages WHERE chat_id = ?`), id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM chats WHERE id = ?`), id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return &NotFoundError{Resource: "chat", ID: id}
		}
		return nil
	})
	if err != nil {
		return failed(err, "delete chat by id from database")
	}
	return nil
}

func (s *SQLStore) GetChatsByUserID(ctx context.Context, userID string) ([]Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	var rows []chatRow
	q := s.db.Rebind(`SELECT id, created_at_ms, title, user_id, visibility FROM chats WHERE user_id = ? ORDER BY created_at_ms DESC`)
	if err := s.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, failed(err, "get chats by user from database")
	}
	ret := make([]Chat, 0, len(rows))
	for _, r := range rows {
		ret = append(ret, r.toChat())
	}
	return ret, nil
}

func (s *SQLStore) GetChatByID(ctx context.Context, id string) (Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return Chat{}, err
	}
	var row chatRow
	q := s.db.Rebind(`SELECT id, created_at_ms, title, user_id, visibility FROM chats WHERE id = ?`)
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Chat{}, &NotFoundError{Resource: "chat", ID: id}
		}
		return Chat{}, failed(err, "get chat by id from database")
	}
	return row.toChat(), nil
}

func (s *SQLStore) UpdateChatVisibilityByID(ctx context.Context, chatID string, visibility Visibility) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if !visibility.Valid() {
		return &ValidationError{Field: "visibility", Reason: fmt.Sprintf("unknown visibility %q", visibility)}
	}
	q := s.db.Rebind(`UPDATE chats SET visibility = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, q, string(visibility), chatID)
	if err != nil {
		return failed(err, "update chat visibility in database")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return failed(err, "update chat visibility in database")
	}
	if n == 0 {
		return &NotFoundError{Resource: "chat", ID: chatID}
	}
	return nil
}

func (s *SQLStore) SaveMessages(ctx context.Context, messages []turns.Turn) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if len(messages) == 0 {
		return nil
	}
	for _, m := range messages {
		if m.ID == "" || m.ChatID == "" || m.Role == "" {
			return &ValidationError{Field: "message", Reason: fmt.Sprintf("message %q needs id, chatId and role", m.ID)}
		}
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO messages (id, chat_id, role, content, created_at_ms) VALUES (?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer func() {
			_ = stmt.Close()
		}()
		for _, m := range messages {
			content, err := turns.EncodeContent(m.Content)
			if err != nil {
				return errors.Wrapf(err, "encode message %s", m.ID)
			}
			createdAt := nowIfZero(m.CreatedAt)
			if _, err := stmt.ExecContext(ctx, m.ID, m.ChatID, string(m.Role), string(content), toMillis(createdAt)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return failed(err, "save messages in database")
	}
	return nil
}

func messageRowsToTurns(rows []messageRow) []turns.Turn {
	ret := make([]turns.Turn, 0, len(rows))
	for _, r := range rows {
		content, err := turns.DecodeContent([]byte(r.Content))
		if err != nil {
			log.Warn().Err(err).Str("message_id", r.ID).Msg("stored content is not valid JSON, keeping it as text")
			content = turns.Text(r.Content)
		}
		ret = append(ret, turns.Turn{
			ID:        r.ID,
			ChatID:    r.ChatID,
			Role:      turns.Role(r.Role),
			Content:   content,
			CreatedAt: fromMillis(r.CreatedAtMs),
		})
	}
	return ret
}

func (s *SQLStore) GetMessagesByChatID(ctx context.Context, chatID string) ([]turns.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	var rows []messageRow
	q := s.db.Rebind(`SELECT id, chat_id, role, content, created_at_ms FROM messages WHERE chat_id = ? ORDER BY created_at_ms ASC`)
	if err := s.db.SelectContext(ctx, &rows, q, chatID); err != nil {
		return nil, failed(err, "get messages by chat id from database")
	}
	return messageRowsToTurns(rows), nil
}

func (s *SQLStore) GetMessageByID(ctx context.Context, id string) ([]turns.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	var rows []messageRow
	q := s.db.Rebind(`SELECT id, chat_id, role, content, created_at_ms FROM messages WHERE id = ?`)
	if err := s.db.SelectContext(ctx, &rows, q, id); err != nil {
		return nil, failed(err, "get message by id from database")
	}
	return messageRowsToTurns(rows), nil
}

// DeleteMessagesByChatIDAfterTimestamp removes the messages of a chat created
// at or after timestamp together with their votes.
func (s *SQLStore) DeleteMessagesByChatIDAfterTimestamp(ctx context.Context, chatID string, timestamp time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var ids []string
		q := tx.Rebind(`SELECT id FROM messages WHERE chat_id = ? AND created_at_ms >= ?`)
		if err := tx.SelectContext(ctx, &ids, q, chatID, toMillis(timestamp)); err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		q, args, err := sqlx.In(`DELETE FROM votes WHERE chat_id = ? AND message_id IN (?)`, chatID, ids)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, tx.Rebind(q), args...); err != nil {
			return err
		}

		q, args, err = sqlx.In(`DELETE FROM messages WHERE chat_id = ? AND id IN (?)`, chatID, ids)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, tx.Rebind(q), args...)
		return err
	})
	if err != nil {
		return failed(err, "delete messages by id after timestamp from database")
	}
	return nil
}

func (s *SQLStore) VoteMessage(ctx context.Context, chatID, messageID string, vote VoteType) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if vote != VoteUp && vote != VoteDown {
		return &ValidationError{Field: "type", Reason: fmt.Sprintf("unknown vote type %q", vote)}
	}
	q := s.db.Rebind(`INSERT INTO votes (chat_id, message_id, is_upvoted) VALUES (?, ?, ?)
ON CONFLICT (chat_id, message_id) DO UPDATE SET is_upvoted = excluded.is_upvoted`)
	if _, err := s.db.ExecContext(ctx, q, chatID, messageID, vote == VoteUp); err != nil {
		return failed(err, "upvote message in database")
	}
	return nil
}

func (s *SQLStore) GetVotesByChatID(ctx context.Context, chatID string) ([]Vote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	votes := []Vote{}
	q := s.db.Rebind(`SELECT chat_id, message_id, is_upvoted FROM votes WHERE chat_id = ?`)
	if err := s.db.SelectContext(ctx, &votes, q, chatID); err != nil {
		return nil, failed(err, "get votes by chat id from database")
	}
	return votes, nil
}

func (s *SQLStore) SaveDocument(ctx context.Context, doc Document) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return Document{}, err
	}
	if doc.ID == "" {
		return Document{}, &ValidationError{Field: "id", Reason: "must not be empty"}
	}
	if doc.UserID == "" {
		return Document{}, &ValidationError{Field: "userId", Reason: "must not be empty"}
	}
	if doc.Kind == "" {
		doc.Kind = ArtifactText
	}
	if !doc.Kind.Valid() {
		return Document{}, &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown artifact kind %q", doc.Kind)}
	}
	doc.CreatedAt = nowIfZero(doc.CreatedAt)

	q := s.db.Rebind(`INSERT INTO documents (id, created_at_ms, title, content, kind, user_id) VALUES (?, ?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, q, doc.ID, toMillis(doc.CreatedAt), doc.Title, doc.Content, string(doc.Kind), doc.UserID); err != nil {
		return Document{}, failed(err, "save document in database")
	}
	return doc, nil
}

func (s *SQLStore) GetDocumentsByID(ctx context.Context, id string) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	var rows []documentRow
	q := s.db.Rebind(`SELECT id, created_at_ms, title, content, kind, user_id FROM documents WHERE id = ? ORDER BY created_at_ms ASC`)
	if err := s.db.SelectContext(ctx, &rows, q, id); err != nil {
		return nil, failed(err, "get documents by id from database")
	}
	ret := make([]Document, 0, len(rows))
	for _, r := range rows {
		ret = append(ret, r.toDocument())
	}
	return ret, nil
}

// GetDocumentByID returns the latest version of a document.
func (s *SQLStore) GetDocumentByID(ctx context.Context, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return Document{}, err
	}
	var row documentRow
	q := s.db.Rebind(`SELECT id, created_at_ms, title, content, kind, user_id FROM documents WHERE id = ? ORDER BY created_at_ms DESC LIMIT 1`)
	if err := s.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Document{}, &NotFoundError{Resource: "document", ID: id}
		}
		return Document{}, failed(err, "get document by id from database")
	}
	return row.toDocument(), nil
}

// DeleteDocumentsByIDAfterTimestamp removes the versions of a document created
// strictly after timestamp, and their suggestions.
func (s *SQLStore) DeleteDocumentsByIDAfterTimestamp(ctx context.Context, id string, timestamp time.Time) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	ms := toMillis(timestamp)
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM suggestions WHERE document_id = ? AND document_created_at_ms > ?`), id, ms); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM documents WHERE id = ? AND created_at_ms > ?`), id, ms)
		return err
	})
	if err != nil {
		return failed(err, "delete documents by id after timestamp from database")
	}
	return nil
}

func (s *SQLStore) SaveSuggestions(ctx context.Context, suggestions []Suggestion) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if len(suggestions) == 0 {
		return nil
	}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		stmt, err := tx.PreparexContext(ctx, tx.Rebind(`INSERT INTO suggestions
(id, document_id, document_created_at_ms, original_text, suggested_text, description, is_resolved, user_id, created_at_ms)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`))
		if err != nil {
			return err
		}
		defer func() {
			_ = stmt.Close()
		}()
		for _, sg := range suggestions {
			if sg.ID == "" {
				sg.ID = uuid.NewString()
			}
			if _, err := stmt.ExecContext(ctx,
				sg.ID, sg.DocumentID, toMillis(sg.DocumentCreatedAt), sg.OriginalText, sg.SuggestedText,
				sg.Description, sg.IsResolved, sg.UserID, toMillis(nowIfZero(sg.CreatedAt)),
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return failed(err, "save suggestions in database")
	}
	return nil
}

func (s *SQLStore) GetSuggestionsByDocumentID(ctx context.Context, documentID string) ([]Suggestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	var rows []suggestionRow
	q := s.db.Rebind(`SELECT id, document_id, document_created_at_ms, original_text, suggested_text, description, is_resolved, user_id, created_at_ms
FROM suggestions WHERE document_id = ? ORDER BY created_at_ms ASC`)
	if err := s.db.SelectContext(ctx, &rows, q, documentID); err != nil {
		return nil, failed(err, "get suggestions by document version from database")
	}
	ret := make([]Suggestion, 0, len(rows))
	for _, r := range rows {
		ret = append(ret, r.toSuggestion())
	}
	return ret, nil
}
