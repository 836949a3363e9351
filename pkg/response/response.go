package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Reason codes surfaced in the "error" field.
const (
	CodeBadJSON          = "bad_json"
	CodeBadRequest       = "bad_request"
	CodeMissingFields    = "missing_jwt_or_token"
	CodeBadJWT           = "bad_jwt"
	CodeBadSecret        = "bad_secret"
	CodeUnauthorized     = "unauthorized"
	CodeForbidden        = "forbidden"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeRateLimited      = "rate_limited"
	CodeInvalidAccountID = "invalid_account_id"
	CodeUnknownAction    = "unknown_action"
	CodeEmptyMessage     = "empty_message"
	CodeNoActiveSession  = "no_active_session"
	CodeInternalError    = "internal_error"
)

// Success writes {"ok": true, ...fields}.
func Success(c *gin.Context, fields gin.H) {
	body := gin.H{"ok": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Error writes {"ok": false, "error": code}. Extra fields are merged in.
func Error(c *gin.Context, httpStatus int, code string, extra ...gin.H) {
	body := gin.H{"ok": false, "error": code}
	for _, fields := range extra {
		for k, v := range fields {
			body[k] = v
		}
	}
	c.JSON(httpStatus, body)
}

func BadRequest(c *gin.Context, code string) {
	Error(c, http.StatusBadRequest, code)
}

func Unauthorized(c *gin.Context, code string) {
	Error(c, http.StatusUnauthorized, code)
}

func Forbidden(c *gin.Context, code string) {
	Error(c, http.StatusForbidden, code)
}

func NotFound(c *gin.Context, code string) {
	Error(c, http.StatusNotFound, code)
}

func Conflict(c *gin.Context, code string) {
	Error(c, http.StatusConflict, code)
}

func TooManyRequests(c *gin.Context, code string, extra gin.H) {
	Error(c, http.StatusTooManyRequests, code, extra)
}

func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, CodeInternalError)
}
