package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/colloquy/pkg/chat"
)

// Every response uses the same envelope:
// {"success": true, "data": ...} or {"success": false, "error": {"code", "message"}}.

func success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func failure(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": gin.H{"code": code, "message": message}})
}

func badRequest(c *gin.Context, message string) {
	failure(c, http.StatusBadRequest, "bad_request", message)
}

// respondError maps service errors onto HTTP statuses. Unexpected errors are
// logged and reported without detail.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat.ErrUnauthenticated):
		failure(c, http.StatusUnauthorized, "unauthorized", "Unauthorized")
	case errors.Is(err, chat.ErrNotFound):
		failure(c, http.StatusNotFound, "not_found", "Not found")
	case errors.Is(err, chat.ErrForbidden):
		failure(c, http.StatusForbidden, "forbidden", "Forbidden")
	case errors.Is(err, chat.ErrInvalidRequest):
		badRequest(c, err.Error())
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Str("method", c.Request.Method).Msg("Request failed")
		failure(c, http.StatusInternalServerError, "internal_error", "An error occurred while processing your request")
	}
}
