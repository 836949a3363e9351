package middleware

import (
	"github.com/gin-gonic/gin"

	"grapevpn/keyhub/pkg/response"
)

const HeaderAdminSecret = "X-ADMIN-SECRET"

// SecretChecker compares a presented admin secret with the configured one.
type SecretChecker interface {
	SecretMatches(candidate string) bool
}

// AdminSecret rejects requests whose X-ADMIN-SECRET header does not match.
func AdminSecret(checker SecretChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !checker.SecretMatches(c.GetHeader(HeaderAdminSecret)) {
			response.Forbidden(c, response.CodeBadSecret)
			c.Abort()
			return
		}
		c.Next()
	}
}
