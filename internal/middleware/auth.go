package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mir-codes/PhoSocial/pkg/errors"
	"github.com/mir-codes/PhoSocial/pkg/utils"
)

// AuthMiddleware validates the Bearer token and resolves the authenticated
// user id once, as a typed int64 under the "userId" context key. Handlers
// never re-parse claims.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			AbortWithAppError(c, errors.Unauthorized("Authorization header required"))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			AbortWithAppError(c, errors.Unauthorized("Invalid authorization header format"))
			return
		}

		claims, err := utils.ValidateToken(parts[1])
		if err != nil {
			AbortWithAppError(c, errors.Unauthorized("Invalid or expired token"))
			return
		}

		c.Set("userId", claims.UserID)
		c.Next()
	}
}
