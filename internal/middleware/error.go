package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/mir-codes/PhoSocial/pkg/errors"
	"github.com/mir-codes/PhoSocial/pkg/logger"
)

// ErrorHandlerMiddleware recovers panics anywhere below it in the chain and
// turns them into a JSON 500, with the stack logged.
func ErrorHandlerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error().
					Str("panic", fmt.Sprintf("%v", r)).
					Str("stack", stack).
					Msg("Panic recovered")

				AbortWithAppError(c, errors.Internal("Internal server error"))
			}
		}()

		c.Next()
	}
}

// AbortWithAppError renders an AppError response and stops the chain.
func AbortWithAppError(c *gin.Context, appErr *errors.AppError) {
	c.AbortWithStatusJSON(appErr.Code, gin.H{"error": appErr.Message})
}
