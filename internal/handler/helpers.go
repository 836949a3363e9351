package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"grapevpn/keyhub/internal/service"
	"grapevpn/keyhub/pkg/response"
)

// parseIDParam reads a positive int64 path parameter, writing a 400 when
// it is malformed.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, response.CodeBadRequest)
		return 0, false
	}
	return id, true
}

// writeServiceError maps service errors to HTTP responses. Unknown errors
// are attached to the context for the request logger and surface as 500.
func writeServiceError(c *gin.Context, err error) {
	var rl *service.RateLimitError
	switch {
	case errors.As(err, &rl):
		response.TooManyRequests(c, response.CodeRateLimited, gin.H{"limit": rl.Limit})
	case errors.Is(err, service.ErrAccountNotFound):
		response.NotFound(c, response.CodeNotFound)
	case errors.Is(err, service.ErrNotAdmin):
		response.Forbidden(c, response.CodeForbidden)
	case errors.Is(err, service.ErrNoActiveSession):
		response.Conflict(c, response.CodeNoActiveSession)
	case errors.Is(err, service.ErrInvalidAccountID):
		response.BadRequest(c, response.CodeInvalidAccountID)
	case errors.Is(err, service.ErrUnknownAction):
		response.BadRequest(c, response.CodeUnknownAction)
	case errors.Is(err, service.ErrEmptyMessage):
		response.BadRequest(c, response.CodeEmptyMessage)
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalError)
	}
}
