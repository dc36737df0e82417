package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/learnloop/campaign-engine/pkg/jwt"
	"golang.org/x/exp/slog"
)

// Context keys set by JWTAuthMiddleware
const (
	ContextUserID    = "userID"
	ContextUserEmail = "userEmail"
	ContextUserRoles = "userRoles"
)

// JWTAuthMiddleware creates a gin middleware for JWT authentication.
// The access token may also arrive as the access_token query parameter, which
// EventSource clients need because they cannot set headers.
func JWTAuthMiddleware(tokens *jwt.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			return
		}

		claims, err := tokens.Parse(tokenString)
		if err != nil {
			slog.Warn("token validation failed", "error", err, "path", c.FullPath())
			if jwt.IsExpired(err) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			return
		}

		c.Set(ContextUserID, claims.Subject)
		c.Set(ContextUserEmail, claims.Email)
		c.Set(ContextUserRoles, claims.Roles)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	const bearerSchema = "Bearer "
	if header := c.GetHeader("Authorization"); header != "" {
		if !strings.HasPrefix(header, bearerSchema) {
			return "", false
		}
		token := strings.TrimSpace(header[len(bearerSchema):])
		return token, token != ""
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// UserID returns the authenticated user ID
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

// Roles returns the authenticated user's roles
func Roles(c *gin.Context) []string {
	return c.GetStringSlice(ContextUserRoles)
}
