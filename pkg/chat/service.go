// Package chat is the application service behind the HTTP API. It enforces
// chat ownership and visibility, drives generation and persists its results
// through the transcript reconciler.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/inference"
	"github.com/go-go-golems/colloquy/pkg/models"
	"github.com/go-go-golems/colloquy/pkg/store"
	"github.com/go-go-golems/colloquy/pkg/transcript"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

// Generator produces the assistant and tool turns answering a transcript.
// *inference.Loop implements it.
type Generator interface {
	Run(ctx context.Context, req inference.Request) (inference.Result, error)
}

var _ Generator = (*inference.Loop)(nil)

type Service struct {
	store     store.Store
	models    *models.Registry
	generator Generator
	titler    Titler
	prompt    *SystemPrompt
	toolNames []string
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Service) error

func WithSystemPrompt(text string) Option {
	return func(s *Service) error {
		p, err := ParseSystemPrompt(text)
		if err != nil {
			return err
		}
		s.prompt = p
		return nil
	}
}

func WithTitler(t Titler) Option {
	return func(s *Service) error {
		s.titler = t
		return nil
	}
}

// WithToolNames lists the tools the generator offers, for the system prompt.
func WithToolNames(names ...string) Option {
	return func(s *Service) error {
		s.toolNames = append([]string(nil), names...)
		return nil
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		s.now = now
		return nil
	}
}

func NewService(st store.Store, registry *models.Registry, generator Generator, options ...Option) (*Service, error) {
	if st == nil {
		return nil, errors.New("chat service requires a store")
	}
	if registry == nil {
		registry = models.NewRegistry(nil)
	}
	s := &Service{
		store:     st,
		models:    registry,
		generator: generator,
		titler:    TruncateTitler{},
		now:       time.Now,
		locks:     map[string]*chatLock{},
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// lockChat serializes sends on one chat so stored turns keep their order.
func (s *Service) lockChat(chatID string) func() {
	s.mu.Lock()
	l, ok := s.locks[chatID]
	if !ok {
		l = &chatLock{}
		s.locks[chatID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, chatID)
		}
		s.mu.Unlock()
	}
}

// readableChat loads a chat the caller may see: their own, or a public one.
func (s *Service) readableChat(ctx context.Context, chatID, userID string) (store.Chat, error) {
	c, err := s.store.GetChatByID(ctx, chatID)
	if err != nil {
		return store.Chat{}, translate(err, "get chat")
	}
	if c.UserID != userID && c.Visibility != store.VisibilityPublic {
		return store.Chat{}, errors.Wrap(ErrNotFound, "get chat")
	}
	return c, nil
}

// ownedChat loads a chat the caller owns.
func (s *Service) ownedChat(ctx context.Context, chatID, userID string) (store.Chat, error) {
	if userID == "" {
		return store.Chat{}, ErrUnauthenticated
	}
	c, err := s.readableChat(ctx, chatID, userID)
	if err != nil {
		return store.Chat{}, err
	}
	if c.UserID != userID {
		return store.Chat{}, errors.Wrap(ErrForbidden, "chat belongs to another user")
	}
	return c, nil
}

// View is what the chat page renders.
type View struct {
	Chat              store.Chat             `json:"chat"`
	Messages          []conversation.Message `json:"messages"`
	SelectedChatModel string                 `json:"selectedChatModel"`
	Visibility        store.Visibility       `json:"visibility"`
	IsReadonly        bool                   `json:"isReadonly"`
}

// ChatView loads a chat for display. Missing chats and private chats of
// other users are both ErrNotFound. selectedModel is the model the client last
// picked; unknown ids fall back to the default model.
func (s *Service) ChatView(ctx context.Context, chatID, userID, selectedModel string) (View, error) {
	c, err := s.readableChat(ctx, chatID, userID)
	if err != nil {
		return View{}, err
	}
	stored, err := s.store.GetMessagesByChatID(ctx, chatID)
	if err != nil {
		return View{}, translate(err, "get messages")
	}
	isOwner := userID != "" && userID == c.UserID

	return View{
		Chat:              c,
		Messages:          transcript.ToUIView(stored),
		SelectedChatModel: s.models.Resolve(selectedModel).ID,
		Visibility:        c.Visibility,
		IsReadonly:        !isOwner,
	}, nil
}

type SendRequest struct {
	ChatID  string
	UserID  string
	ModelID string
	// MessageID is the client-chosen id of the user message. A fresh id is
	// generated when empty.
	MessageID  string
	Message    string
	Visibility store.Visibility
}

type SendResult struct {
	Chat     store.Chat             `json:"chat"`
	Messages []conversation.Message `json:"messages"`
}

// Send stores the user message, runs generation and stores its sanitized
// output. The chat is created on its first message. Events are published to
// the sinks carried by ctx, ending with a finish event holding the messages.
func (s *Service) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	if req.UserID == "" {
		return SendResult{}, ErrUnauthenticated
	}
	if req.ChatID == "" {
		return SendResult{}, errors.Wrap(ErrInvalidRequest, "chat id is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return SendResult{}, errors.Wrap(ErrInvalidRequest, "no user message found")
	}
	if s.generator == nil {
		return SendResult{}, errors.New("chat service has no generator")
	}

	unlock := s.lockChat(req.ChatID)
	defer unlock()

	c, err := s.ensureChat(ctx, req)
	if err != nil {
		return SendResult{}, err
	}

	history, err := s.store.GetMessagesByChatID(ctx, c.ID)
	if err != nil {
		return SendResult{}, translate(err, "get messages")
	}

	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}
	userTurn := turns.NewUserTextTurn(req.Message,
		turns.WithID(messageID),
		turns.WithChatID(c.ID),
		turns.WithCreatedAt(s.after(history)),
	)
	if err := s.store.SaveMessages(ctx, []turns.Turn{userTurn}); err != nil {
		return SendResult{}, translate(err, "save user message")
	}
	history = append(history, userTurn)

	model := s.models.Resolve(req.ModelID)
	system, err := s.renderPrompt(model, req.UserID)
	if err != nil {
		return SendResult{}, err
	}

	log.Info().Str("chat_id", c.ID).Str("model", model.ID).Int("history", len(history)).Msg("Generating response")
	result, err := s.generator.Run(ctx, inference.Request{
		ChatID: c.ID,
		Model:  model,
		System: system,
		Turns:  history,
	})
	if err != nil {
		events.PublishToContext(ctx, events.NewError(c.ID, err))
		return SendResult{}, errors.Wrap(err, "generate response")
	}

	generated := transcript.SanitizeGeneratedTurns(result.Turns, result.Reasoning)
	last := userTurn.CreatedAt
	for i := range generated {
		generated[i].ChatID = c.ID
		generated[i].CreatedAt = generated[i].CreatedAt.UTC().Truncate(time.Millisecond)
		if !generated[i].CreatedAt.After(last) {
			generated[i].CreatedAt = last.Add(time.Millisecond)
		}
		last = generated[i].CreatedAt
	}
	if len(generated) > 0 {
		if err := s.store.SaveMessages(ctx, generated); err != nil {
			return SendResult{}, translate(err, "save response")
		}
	}
	history = append(history, generated...)

	msgs := transcript.SanitizeUIView(transcript.ToUIView(history))
	events.PublishToContext(ctx, events.NewFinish(c.ID, msgs))
	log.Info().Str("chat_id", c.ID).Int("generated", len(generated)).Int("steps", result.Steps).Msg("Response stored")

	return SendResult{Chat: c, Messages: msgs}, nil
}

func (s *Service) ensureChat(ctx context.Context, req SendRequest) (store.Chat, error) {
	c, err := s.store.GetChatByID(ctx, req.ChatID)
	if err == nil {
		if c.UserID != req.UserID {
			if c.Visibility == store.VisibilityPublic {
				return store.Chat{}, errors.Wrap(ErrForbidden, "chat belongs to another user")
			}
			return store.Chat{}, errors.Wrap(ErrNotFound, "get chat")
		}
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return store.Chat{}, translate(err, "get chat")
	}

	title, err := s.titler.Title(ctx, req.Message)
	if err != nil {
		return store.Chat{}, errors.Wrap(err, "generate title")
	}
	visibility := req.Visibility
	if visibility == "" {
		visibility = store.VisibilityPrivate
	}
	c, err = s.store.SaveChat(ctx, store.Chat{
		ID:         req.ChatID,
		UserID:     req.UserID,
		Title:      title,
		Visibility: visibility,
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return store.Chat{}, translate(err, "save chat")
	}
	log.Info().Str("chat_id", c.ID).Str("user_id", c.UserID).Msg("Chat created")
	return c, nil
}

// after returns a timestamp that sorts after every stored turn, at the
// millisecond resolution the store keeps.
func (s *Service) after(history []turns.Turn) time.Time {
	ts := s.now().UTC().Truncate(time.Millisecond)
	for _, t := range history {
		if !ts.After(t.CreatedAt) {
			ts = t.CreatedAt.Add(time.Millisecond).Truncate(time.Millisecond)
		}
	}
	return ts
}

func (s *Service) renderPrompt(model models.ChatModel, userID string) (string, error) {
	if s.prompt == nil {
		return "", nil
	}
	return s.prompt.Render(PromptData{
		Now:       s.now(),
		Model:     model,
		ToolNames: s.toolNames,
		UserID:    userID,
	})
}

// CanSubscribe reports whether the caller may follow the event stream of a
// chat. A chat that does not exist yet may be followed by any signed-in
// caller, since clients subscribe before their first message creates it.
func (s *Service) CanSubscribe(ctx context.Context, chatID, userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	_, err := s.readableChat(ctx, chatID, userID)
	if err != nil && errors.Is(err, ErrNotFound) {
		if _, getErr := s.store.GetChatByID(ctx, chatID); errors.Is(getErr, store.ErrNotFound) {
			return nil
		}
	}
	return err
}

// Models lists the user-selectable chat models.
func (s *Service) Models() []models.ChatModel {
	return s.models.Selectable()
}

func (s *Service) DeleteChat(ctx context.Context, chatID, userID string) error {
	if _, err := s.ownedChat(ctx, chatID, userID); err != nil {
		return err
	}
	return translate(s.store.DeleteChatByID(ctx, chatID), "delete chat")
}

// History lists the caller's chats, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]store.Chat, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	chats, err := s.store.GetChatsByUserID(ctx, userID)
	if err != nil {
		return nil, translate(err, "get chats")
	}
	return chats, nil
}

func (s *Service) UpdateVisibility(ctx context.Context, chatID, userID string, visibility store.Visibility) error {
	if !visibility.Valid() {
		return errors.Wrapf(ErrInvalidRequest, "visibility %q", visibility)
	}
	if _, err := s.ownedChat(ctx, chatID, userID); err != nil {
		return err
	}
	return translate(s.store.UpdateChatVisibilityByID(ctx, chatID, visibility), "update visibility")
}

// DeleteTrailingMessages removes messageID and every later message of its
// chat, e.g. before regenerating an answer.
func (s *Service) DeleteTrailingMessages(ctx context.Context, messageID, userID string) error {
	found, err := s.store.GetMessageByID(ctx, messageID)
	if err != nil {
		return translate(err, "get message")
	}
	if len(found) == 0 {
		return errors.Wrap(ErrNotFound, "get message")
	}
	msg := found[0]
	if _, err := s.ownedChat(ctx, msg.ChatID, userID); err != nil {
		return err
	}

	unlock := s.lockChat(msg.ChatID)
	defer unlock()
	return translate(s.store.DeleteMessagesByChatIDAfterTimestamp(ctx, msg.ChatID, msg.CreatedAt), "delete trailing messages")
}

func (s *Service) Votes(ctx context.Context, chatID, userID string) ([]store.Vote, error) {
	if _, err := s.readableChat(ctx, chatID, userID); err != nil {
		return nil, err
	}
	votes, err := s.store.GetVotesByChatID(ctx, chatID)
	if err != nil {
		return nil, translate(err, "get votes")
	}
	return votes, nil
}

func (s *Service) Vote(ctx context.Context, chatID, messageID, userID string, vote store.VoteType) error {
	if vote != store.VoteUp && vote != store.VoteDown {
		return errors.Wrapf(ErrInvalidRequest, "vote type %q", vote)
	}
	if _, err := s.ownedChat(ctx, chatID, userID); err != nil {
		return err
	}
	return translate(s.store.VoteMessage(ctx, chatID, messageID, vote), "vote message")
}

// Conversation returns the sanitized UI view of a chat as plain messages,
// e.g. for export.
func (s *Service) Conversation(ctx context.Context, chatID, userID string) (conversation.Conversation, error) {
	v, err := s.ChatView(ctx, chatID, userID, "")
	if err != nil {
		return nil, err
	}
	return conversation.Conversation(transcript.SanitizeUIView(v.Messages)), nil
}
