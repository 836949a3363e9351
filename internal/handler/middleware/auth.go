package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	jwtpkg "grapevpn/keyhub/pkg/jwt"
	"grapevpn/keyhub/pkg/response"
)

const ContextKeyClaims = "bearer_claims"

// BearerValidator validates a bearer credential and returns its claims.
type BearerValidator interface {
	Validate(token string) (*jwtpkg.Claims, error)
}

func BearerAuth(validator BearerValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, response.CodeUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, response.CodeUnauthorized)
			c.Abort()
			return
		}

		claims, err := validator.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, response.CodeBadJWT)
			c.Abort()
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}
