package middleware

import (
	"net/http"
	"strings"

	"projectron-api/internal/auth"

	"github.com/gin-gonic/gin"
)

// TokenCookie holds the access token for browser sessions.
const TokenCookie = "access_token"

// JWTAuthMiddleware validates the access token and stores the caller in the context.
// The token is read from the session cookie, the Authorization header, or
// the token query parameter used by WebSocket clients.
func JWTAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := bearerToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization token is required",
			})
			return
		}

		claims, err := auth.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("email", claims.Email)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	if cookie, err := c.Cookie(TokenCookie); err == nil && cookie != "" {
		return strings.TrimPrefix(cookie, "Bearer ")
	}
	if parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return c.Query("token")
}
