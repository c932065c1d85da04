package middlewares

import (
	"github.com/gin-gonic/gin"

	"direct-chat/services"
	"direct-chat/utils"
)

const userIDKey = "user_id"

// TokenAuthMiddleware rejects requests without a valid bearer token and
// stores the caller's id in the context.
func TokenAuthMiddleware(tokens *services.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := services.TokenFromRequest(c.Request)
		if token == "" {
			utils.RespondError(c, &services.UnauthenticatedError{Reason: "missing token"})
			return
		}
		claims, err := tokens.ParseToken(token)
		if err != nil {
			utils.RespondError(c, err)
			return
		}
		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

// CurrentUserID returns the authenticated caller, or "" if none.
func CurrentUserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
