package chat

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/inference"
	"github.com/go-go-golems/colloquy/pkg/models"
	"github.com/go-go-golems/colloquy/pkg/store"
	"github.com/go-go-golems/colloquy/pkg/turns"
)

var start = time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)

type fakeGenerator struct {
	result inference.Result
	err    error
	reqs   []inference.Request
}

func (f *fakeGenerator) Run(_ context.Context, req inference.Request) (inference.Result, error) {
	f.reqs = append(f.reqs, req)
	return f.result, f.err
}

type eventLog struct {
	events []events.Event
}

func (l *eventLog) PublishEvent(e events.Event) error {
	l.events = append(l.events, e)
	return nil
}

func newTestService(t *testing.T, gen Generator, opts ...Option) (*Service, *store.SQLStore) {
	t.Helper()
	dsn, err := store.SQLiteDSNForFile(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	st, err := store.Open(context.Background(), store.DriverSQLite, dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clock := start
	opts = append([]Option{WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})}, opts...)
	s, err := NewService(st, models.NewRegistry(nil), gen, opts...)
	require.NoError(t, err)
	return s, st
}

// toolRoundTrip is a generation that called a tool, got its result, answered,
// and also left one call unanswered.
func toolRoundTrip(chatID string) inference.Result {
	at := start.Add(time.Hour)
	return inference.Result{
		Turns: []turns.Turn{
			{ID: "a1", ChatID: chatID, Role: turns.RoleAssistant, CreatedAt: at, Content: turns.Blocks{
				turns.NewTextBlock(""),
				turns.NewToolCallBlock("call-1", "generateImage", map[string]any{"prompt": "cat"}),
			}},
			{ID: "t1", ChatID: chatID, Role: turns.RoleTool, CreatedAt: at.Add(time.Millisecond), Content: turns.Blocks{
				turns.NewToolResultBlock("call-1", "generateImage", map[string]any{"imageUrl": "https://i.imgur.com/cat.png"}),
			}},
			{ID: "a2", ChatID: chatID, Role: turns.RoleAssistant, CreatedAt: at.Add(2 * time.Millisecond), Content: turns.Blocks{
				turns.NewTextBlock("Here is your cat."),
				turns.NewToolCallBlock("call-2", "generateImage", map[string]any{"prompt": "dog"}),
			}},
		},
		Reasoning: "user wants a cat",
		Steps:     2,
	}
}

func TestSendCreatesChatAndPersistsSanitizedTurns(t *testing.T) {
	gen := &fakeGenerator{result: toolRoundTrip("chat-1")}
	s, st := newTestService(t, gen, WithSystemPrompt("Tools: {{ .ToolNames | join \",\" }}"), WithToolNames("generateImage"))

	var published []events.Event
	ctx := events.WithSinks(context.Background(), sinkFunc(func(e events.Event) error {
		published = append(published, e)
		return nil
	}))

	res, err := s.Send(ctx, SendRequest{ChatID: "chat-1", UserID: "u1", ModelID: "chat-model-large", Message: "draw a cat", MessageID: "m-user"})
	require.NoError(t, err)

	assert.Equal(t, "draw a cat", res.Chat.Title)
	assert.Equal(t, store.VisibilityPrivate, res.Chat.Visibility)

	require.Len(t, gen.reqs, 1)
	assert.Equal(t, "Tools: generateImage", gen.reqs[0].System)
	assert.Equal(t, models.ChatModelLarge, gen.reqs[0].Model.ID)
	require.Len(t, gen.reqs[0].Turns, 1)
	assert.Equal(t, "m-user", gen.reqs[0].Turns[0].ID)

	stored, err := st.GetMessagesByChatID(context.Background(), "chat-1")
	require.NoError(t, err)
	require.Len(t, stored, 4)
	// the unanswered call-2 was stripped before persisting
	assert.Empty(t, turns.FindBlocksByKind(stored[3], turns.BlockKindToolCall))
	assert.Len(t, turns.FindBlocksByKind(stored[3], turns.BlockKindReasoning), 1)

	require.Len(t, res.Messages, 3)
	assert.Equal(t, turns.RoleUser, res.Messages[0].Role)
	inv := res.Messages[1].ToolInvocations
	require.Len(t, inv, 1)
	assert.Equal(t, conversation.StateResult, inv[0].State)
	assert.Equal(t, map[string]any{"imageUrl": "https://i.imgur.com/cat.png"}, inv[0].Result)
	assert.Equal(t, "Here is your cat.", res.Messages[2].Content)
	assert.Equal(t, "user wants a cat", res.Messages[2].Reasoning)

	require.NotEmpty(t, published)
	finish := published[len(published)-1]
	assert.Equal(t, events.EventTypeFinish, finish.Type)
	assert.Equal(t, res.Messages, finish.Messages)
}

func TestSendAppendsAfterExistingTurns(t *testing.T) {
	gen := &fakeGenerator{result: inference.Result{Turns: []turns.Turn{
		{ID: "a", Role: turns.RoleAssistant, Content: turns.Text("first answer"), CreatedAt: start.Add(time.Hour)},
	}}}
	s, st := newTestService(t, gen)
	ctx := context.Background()

	_, err := s.Send(ctx, SendRequest{ChatID: "c", UserID: "u1", Message: "one"})
	require.NoError(t, err)

	gen.result = inference.Result{Turns: []turns.Turn{
		{ID: "b", Role: turns.RoleAssistant, Content: turns.Text("second answer"), CreatedAt: start.Add(2 * time.Hour)},
	}}
	res, err := s.Send(ctx, SendRequest{ChatID: "c", UserID: "u1", Message: "two"})
	require.NoError(t, err)
	require.Len(t, res.Messages, 4)
	assert.Equal(t, "two", res.Messages[2].Content)

	stored, err := st.GetMessagesByChatID(ctx, "c")
	require.NoError(t, err)
	require.Len(t, stored, 4)
	// the second user message sorts after the first answer
	assert.Equal(t, "a", stored[1].ID)
	assert.Equal(t, "two", mustText(t, stored[2]))
}

func TestSendValidation(t *testing.T) {
	s, _ := newTestService(t, &fakeGenerator{})
	ctx := context.Background()

	_, err := s.Send(ctx, SendRequest{ChatID: "c", Message: "hi"})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = s.Send(ctx, SendRequest{ChatID: "c", UserID: "u", Message: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = s.Send(ctx, SendRequest{UserID: "u", Message: "hi"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestSendKeepsUserMessageWhenGenerationFails(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("provider down")}
	s, st := newTestService(t, gen)
	ctx := context.Background()

	sink := &eventLog{}
	_, err := s.Send(events.WithSinks(ctx, sink), SendRequest{ChatID: "c", UserID: "u1", Message: "hello"})
	require.Error(t, err)
	require.Len(t, sink.events, 1, "one failure, one error event")
	assert.Equal(t, events.EventTypeError, sink.events[0].Type)
	assert.Equal(t, "c", sink.events[0].ChatID)

	stored, err := st.GetMessagesByChatID(ctx, "c")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, turns.RoleUser, stored[0].Role)
}

func TestSendToSomeoneElsesChat(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := newTestService(t, gen)
	ctx := context.Background()
	_, err := s.Send(ctx, SendRequest{ChatID: "c", UserID: "owner", Message: "mine"})
	require.NoError(t, err)

	_, err = s.Send(ctx, SendRequest{ChatID: "c", UserID: "intruder", Message: "hi"})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpdateVisibility(ctx, "c", "owner", store.VisibilityPublic))
	_, err = s.Send(ctx, SendRequest{ChatID: "c", UserID: "intruder", Message: "hi"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestChatView(t *testing.T) {
	gen := &fakeGenerator{result: toolRoundTrip("c")}
	s, _ := newTestService(t, gen)
	ctx := context.Background()
	_, err := s.Send(ctx, SendRequest{ChatID: "c", UserID: "owner", Message: "draw a cat"})
	require.NoError(t, err)

	v, err := s.ChatView(ctx, "c", "owner", "chat-model-reasoning")
	require.NoError(t, err)
	assert.False(t, v.IsReadonly)
	assert.Equal(t, models.ChatModelReasoning, v.SelectedChatModel)
	assert.Len(t, v.Messages, 3)

	v, err = s.ChatView(ctx, "c", "owner", "gpt-unknown")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultChatModel, v.SelectedChatModel)

	_, err = s.ChatView(ctx, "c", "stranger", "")
	assert.ErrorIs(t, err, ErrNotFound, "private chats are hidden")
	_, err = s.ChatView(ctx, "missing", "owner", "")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.UpdateVisibility(ctx, "c", "owner", store.VisibilityPublic))
	v, err = s.ChatView(ctx, "c", "", "")
	require.NoError(t, err)
	assert.True(t, v.IsReadonly)
	assert.Equal(t, store.VisibilityPublic, v.Visibility)

	assert.ErrorIs(t, s.UpdateVisibility(ctx, "c", "stranger", store.VisibilityPrivate), ErrForbidden)
	assert.ErrorIs(t, s.UpdateVisibility(ctx, "c", "owner", "friends"), ErrInvalidRequest)

	conv, err := s.Conversation(ctx, "c", "owner")
	require.NoError(t, err)
	assert.Contains(t, conv.GetSinglePrompt(), "[user]: draw a cat")
}

func TestDeleteTrailingMessagesAndChat(t *testing.T) {
	gen := &fakeGenerator{result: inference.Result{Turns: []turns.Turn{
		{ID: "answer", Role: turns.RoleAssistant, Content: turns.Text("42")},
	}}}
	s, st := newTestService(t, gen)
	ctx := context.Background()
	_, err := s.Send(ctx, SendRequest{ChatID: "c", UserID: "u1", Message: "q", MessageID: "question"})
	require.NoError(t, err)

	assert.ErrorIs(t, s.DeleteTrailingMessages(ctx, "answer", "u2"), ErrNotFound)
	require.NoError(t, s.DeleteTrailingMessages(ctx, "answer", "u1"))
	stored, err := st.GetMessagesByChatID(ctx, "c")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "question", stored[0].ID)

	assert.ErrorIs(t, s.DeleteTrailingMessages(ctx, "answer", "u1"), ErrNotFound)

	chats, err := s.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, chats, 1)

	assert.ErrorIs(t, s.DeleteChat(ctx, "c", ""), ErrUnauthenticated)
	require.NoError(t, s.DeleteChat(ctx, "c", "u1"))
	assert.ErrorIs(t, s.DeleteChat(ctx, "c", "u1"), ErrNotFound)
}

func TestVotes(t *testing.T) {
	gen := &fakeGenerator{result: inference.Result{Turns: []turns.Turn{
		{ID: "answer", Role: turns.RoleAssistant, Content: turns.Text("42")},
	}}}
	s, _ := newTestService(t, gen)
	ctx := context.Background()
	_, err := s.Send(ctx, SendRequest{ChatID: "c", UserID: "u1", Message: "q"})
	require.NoError(t, err)

	require.NoError(t, s.Vote(ctx, "c", "answer", "u1", store.VoteUp))
	assert.ErrorIs(t, s.Vote(ctx, "c", "answer", "u1", "meh"), ErrInvalidRequest)
	assert.ErrorIs(t, s.Vote(ctx, "c", "answer", "u2", store.VoteDown), ErrNotFound)

	votes, err := s.Votes(ctx, "c", "u1")
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.True(t, votes[0].IsUpvoted)
}

func TestModels(t *testing.T) {
	s, _ := newTestService(t, &fakeGenerator{})
	ids := []string{}
	for _, m := range s.Models() {
		ids = append(ids, m.ID)
	}
	assert.ElementsMatch(t, []string{models.ChatModelSmall, models.ChatModelLarge, models.ChatModelReasoning}, ids)
}

func mustText(t *testing.T, turn turns.Turn) string {
	t.Helper()
	text, ok := turns.TextOf(turn.Content)
	require.True(t, ok)
	return text
}

type sinkFunc func(events.Event) error

func (f sinkFunc) PublishEvent(e events.Event) error { return f(e) }
