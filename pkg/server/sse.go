package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/events"
)

// streamChat relays the events of one chat as server-sent events until a
// generation pass finishes or fails, or the client goes away. Idle
// connections get a ping every keepalive interval.
func (s *Server) streamChat(c *gin.Context) {
	if s.events == nil {
		failure(c, http.StatusServiceUnavailable, "unavailable", "streaming is not enabled")
		return
	}
	chatID := c.Param("id")
	uid := userID(c)
	if err := s.chats.CanSubscribe(c.Request.Context(), chatID, uid); err != nil {
		respondError(c, err)
		return
	}

	ch, err := s.events.Subscribe(c.Request.Context(), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	log.Debug().Str("chat_id", chatID).Str("user_id", uid).Msg("Stream client connected")
	defer log.Debug().Str("chat_id", chatID).Msg("Stream client disconnected")

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	keepalive := time.NewTimer(s.keepalive)
	defer keepalive.Stop()
	resetKeepalive := func() {
		if !keepalive.Stop() {
			select {
			case <-keepalive.C:
			default:
			}
		}
		keepalive.Reset(s.keepalive)
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Type), e)
			resetKeepalive()
			return e.Type != events.EventTypeFinish && e.Type != events.EventTypeError
		case <-keepalive.C:
			c.SSEvent("ping", "keepalive")
			keepalive.Reset(s.keepalive)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
