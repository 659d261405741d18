package auth

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

var errNoToken = errors.New("no bearer token")

// bearerClaims validates the "Bearer <token>" Authorization header.
func bearerClaims(c *gin.Context) (*Claims, error) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, errNoToken
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errors.New("invalid authorization header format")
	}
	return ValidateToken(parts[1])
}

func setIdentity(c *gin.Context, claims *Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("handle", claims.Handle)
}

// AuthMiddleware validates JWT tokens and protects routes
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c)
		switch {
		case errors.Is(err, errNoToken):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		case err != nil:
			log.Printf("[Auth] %s %s rejected: %v", c.Request.Method, c.Request.URL.Path, err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		setIdentity(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware identifies the caller on public routes. Requests
// without a usable token continue anonymously.
func OptionalAuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c)
		if err == nil {
			setIdentity(c, claims)
		} else if !errors.Is(err, errNoToken) {
			log.Printf("[Auth] Ignoring token on public %s: %v", c.Request.URL.Path, err)
		}
		c.Next()
	}
}

// GetUserID retrieves the user ID from the context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}

	id, ok := userID.(uint)
	return id, ok
}

// GetHandle retrieves the caller's handle from the context
func GetHandle(c *gin.Context) string {
	return c.GetString("handle")
}
