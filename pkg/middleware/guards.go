package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireAuthenticated rejects anonymous requests with 401. When identity
// resolution failed on infrastructure (not on a bad credential), it answers
// 500 so callers retry instead of silently losing their session.
func RequireAuthenticated() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUserFrom(c); ok {
			c.Next()
			return
		}
		if identityError(c) != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error checking authentication"})
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
	}
}

// RequireAdmin rejects non-admin callers with 403. The reason is not
// elaborated beyond "admin access required". Composes after
// RequireAuthenticated but also stands alone.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUserFrom(c)
		if !ok {
			if identityError(c) != nil {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"message": "Server error checking admin status"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authentication required"})
			return
		}
		if !u.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden: Admin access required"})
			return
		}
		c.Next()
	}
}
