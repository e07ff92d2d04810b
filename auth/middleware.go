package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// RequireAuth rejects requests without a valid bearer token.
func RequireAuth(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abort(c, "UNAUTHORIZED", "Missing bearer token")
			return
		}

		id, err := v.Verify(token)
		if err != nil {
			if errors.Is(err, ErrExpired) {
				abort(c, "TOKEN_EXPIRED", "Token expired")
				return
			}
			abort(c, "UNAUTHORIZED", "Invalid token")
			return
		}

		c.Set(identityKey, id)
		c.Request = c.Request.WithContext(ContextWithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

// FromGin returns the identity stored by RequireAuth.
func FromGin(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func abort(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}
