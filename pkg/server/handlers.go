package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-go-golems/colloquy/pkg/chat"
	"github.com/go-go-golems/colloquy/pkg/conversation"
	"github.com/go-go-golems/colloquy/pkg/events"
	"github.com/go-go-golems/colloquy/pkg/store"
	"github.com/go-go-golems/colloquy/pkg/transcript"
)

func (s *Server) listModels(c *gin.Context) {
	success(c, s.chats.Models())
}

func (s *Server) getChat(c *gin.Context) {
	selected := c.Query("model")
	if selected == "" {
		if cookie, err := c.Cookie(ModelCookie); err == nil {
			selected = cookie
		}
	}
	view, err := s.chats.ChatView(c.Request.Context(), c.Param("id"), userID(c), selected)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, view)
}

// sendMessageRequest accepts either the full client-side message list, of
// which only the most recent user message is used, or a single message text.
type sendMessageRequest struct {
	ID                string                 `json:"id"`
	Messages          []conversation.Message `json:"messages"`
	Message           string                 `json:"message"`
	MessageID         string                 `json:"messageId"`
	SelectedChatModel string                 `json:"selectedChatModel"`
	Visibility        store.Visibility       `json:"visibility"`
}

func (s *Server) sendMessage(c *gin.Context) {
	var body sendMessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if body.ID == "" {
		badRequest(c, "id is required")
		return
	}

	req := chat.SendRequest{
		ChatID:     body.ID,
		UserID:     userID(c),
		ModelID:    body.SelectedChatModel,
		MessageID:  body.MessageID,
		Message:    body.Message,
		Visibility: body.Visibility,
	}
	if msg, ok := transcript.MostRecentUserMessage(body.Messages); ok {
		req.Message = msg.Content
		if req.MessageID == "" {
			req.MessageID = msg.ID
		}
	}

	ctx := c.Request.Context()
	if s.events != nil {
		ctx = events.WithSinks(ctx, s.events.SinkForChat(body.ID))
	}
	result, err := s.chats.Send(ctx, req)
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, result)
}

func (s *Server) deleteChat(c *gin.Context) {
	if err := s.chats.DeleteChat(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	success(c, gin.H{"id": c.Param("id")})
}

func (s *Server) updateVisibility(c *gin.Context) {
	var body struct {
		Visibility store.Visibility `json:"visibility"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if err := s.chats.UpdateVisibility(c.Request.Context(), c.Param("id"), userID(c), body.Visibility); err != nil {
		respondError(c, err)
		return
	}
	success(c, gin.H{"id": c.Param("id"), "visibility": body.Visibility})
}

func (s *Server) deleteTrailingMessages(c *gin.Context) {
	if err := s.chats.DeleteTrailingMessages(c.Request.Context(), c.Param("id"), userID(c)); err != nil {
		respondError(c, err)
		return
	}
	success(c, gin.H{"messageId": c.Param("id")})
}

func (s *Server) history(c *gin.Context) {
	chats, err := s.chats.History(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, chats)
}

func (s *Server) getVotes(c *gin.Context) {
	chatID := c.Query("chatId")
	if chatID == "" {
		badRequest(c, "chatId is required")
		return
	}
	votes, err := s.chats.Votes(c.Request.Context(), chatID, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, votes)
}

func (s *Server) vote(c *gin.Context) {
	var body struct {
		ChatID    string         `json:"chatId"`
		MessageID string         `json:"messageId"`
		Type      store.VoteType `json:"type"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.ChatID == "" || body.MessageID == "" || body.Type == "" {
		badRequest(c, "chatId, messageId and type are required")
		return
	}
	if err := s.chats.Vote(c.Request.Context(), body.ChatID, body.MessageID, userID(c), body.Type); err != nil {
		respondError(c, err)
		return
	}
	success(c, gin.H{"messageId": body.MessageID, "type": body.Type})
}

func (s *Server) getDocuments(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		badRequest(c, "id is required")
		return
	}
	docs, err := s.chats.Documents(c.Request.Context(), id, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, docs)
}

func (s *Server) saveDocument(c *gin.Context) {
	id := c.Query("id")
	if id == "" {
		badRequest(c, "id is required")
		return
	}
	var body struct {
		Title   string             `json:"title"`
		Content string             `json:"content"`
		Kind    store.ArtifactKind `json:"kind"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	if body.Kind == "" {
		body.Kind = store.ArtifactText
	}
	doc, err := s.chats.SaveDocument(c.Request.Context(), userID(c), store.Document{
		ID:      id,
		Title:   body.Title,
		Content: body.Content,
		Kind:    body.Kind,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	success(c, doc)
}

// deleteDocuments removes every version of a document newer than the
// RFC 3339 timestamp query parameter, or newer than the version at the
// zero-based index parameter.
func (s *Server) deleteDocuments(c *gin.Context) {
	id := c.Query("id")
	raw := c.Query("timestamp")
	rawIndex := c.Query("index")
	if id == "" || (raw == "" && rawIndex == "") {
		badRequest(c, "id and timestamp or index are required")
		return
	}

	var ts time.Time
	if raw != "" {
		var err error
		if ts, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			badRequest(c, "timestamp must be RFC 3339")
			return
		}
	} else {
		index, err := strconv.Atoi(rawIndex)
		if err != nil {
			badRequest(c, "index must be an integer")
			return
		}
		docs, err := s.chats.Documents(c.Request.Context(), id, userID(c))
		if err != nil {
			respondError(c, err)
			return
		}
		// an index past the last version keeps every version
		ts = chat.DocumentTimestampByIndex(docs, index, docs[len(docs)-1].CreatedAt)
	}

	if err := s.chats.DeleteDocumentsAfter(c.Request.Context(), id, userID(c), ts); err != nil {
		respondError(c, err)
		return
	}
	success(c, gin.H{"id": id, "deletedAfter": ts})
}

func (s *Server) getSuggestions(c *gin.Context) {
	documentID := c.Query("documentId")
	if documentID == "" {
		badRequest(c, "documentId is required")
		return
	}
	sugs, err := s.chats.Suggestions(c.Request.Context(), documentID, userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	if sugs == nil {
		sugs = []store.Suggestion{}
	}
	success(c, sugs)
}

type suggestionRequest struct {
	DocumentCreatedAt time.Time `json:"documentCreatedAt"`
	OriginalText      string    `json:"originalText"`
	SuggestedText     string    `json:"suggestedText"`
	Description       string    `json:"description"`
}

func (s *Server) saveSuggestions(c *gin.Context) {
	documentID := c.Query("documentId")
	if documentID == "" {
		badRequest(c, "documentId is required")
		return
	}
	var body []suggestionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	sugs := make([]store.Suggestion, 0, len(body))
	for _, b := range body {
		sugs = append(sugs, store.Suggestion{
			DocumentID:        documentID,
			DocumentCreatedAt: b.DocumentCreatedAt,
			OriginalText:      b.OriginalText,
			SuggestedText:     b.SuggestedText,
			Description:       b.Description,
		})
	}
	if err := s.chats.SaveSuggestions(c.Request.Context(), userID(c), sugs); err != nil {
		respondError(c, err)
		return
	}
	success(c, sugs)
}

// exportChat returns the resolved messages of a chat, as JSON or, with
// format=prompt, as one role-prefixed plain text prompt.
func (s *Server) exportChat(c *gin.Context) {
	conv, err := s.chats.Conversation(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	switch c.DefaultQuery("format", "json") {
	case "json":
		success(c, conv)
	case "prompt":
		c.String(http.StatusOK, conv.GetSinglePrompt())
	default:
		badRequest(c, "format must be json or prompt")
	}
}
