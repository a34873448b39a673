package auth

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pilotdev/pilotd/pkg/apierr"
)

// RequireBearer builds gin middleware that verifies an Authorization:
// Bearer <token> header against mgr, rejecting with 401 on a missing,
// invalid, or expired token. Per spec.md §4.10 this only gates the
// knowledge routes; other daemon routes are loopback-only and trust the
// connection.
func RequireBearer(mgr *Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			apierr.Respond(c, apierr.New(apierr.CategoryUnauthorized, "missing bearer token"))
			c.Abort()
			return
		}

		if _, err := mgr.Verify(token); err != nil {
			apierr.Respond(c, err)
			c.Abort()
			return
		}

		c.Next()
	}
}
