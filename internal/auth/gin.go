package auth

import (
	"fmt"
	"net/http"

	"ms-watchmarket/internal/logger"

	"github.com/gin-gonic/gin"
)

// GinMiddleware is Middleware for gin routers. Verified callers are put on
// the request context so UserID and HasRole work the same in both stacks.
func GinMiddleware(v Verifier, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		rawToken, err := ExtractTokenFromRequest(c.Request)
		if err != nil {
			log.LogSecurity("AUTH_MISSING", fmt.Sprintf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": err.Error()})
			return
		}
		claims, err := v.Verify(c.Request.Context(), rawToken)
		if err != nil {
			log.LogSecurity("AUTH_INVALID", fmt.Sprintf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid token"})
			return
		}
		c.Request = c.Request.WithContext(WithUser(c.Request.Context(), claims.Subject, claims.Roles...))
		c.Next()
	}
}

// GinRequireRole rejects callers lacking role. It must run after GinMiddleware.
func GinRequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !HasRole(c.Request.Context(), role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "forbidden"})
			return
		}
		c.Next()
	}
}
