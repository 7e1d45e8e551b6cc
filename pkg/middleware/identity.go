package middleware

import (
	"strconv"

	"crowdfund-platform/pkg/identity"

	"github.com/gin-gonic/gin"
)

const (
	headerUserID   = "X-User-Id"
	headerUserRole = "X-User-Role"
)

// Identity lifts the principal forwarded by the external auth layer into the
// request context. Requests without the headers pass through anonymously;
// services reject them where authentication is required.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := c.GetHeader(headerUserID)
		rawRole := c.GetHeader(headerUserRole)
		if rawID == "" || rawRole == "" {
			c.Next()
			return
		}

		userID, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil {
			c.Next()
			return
		}

		role := identity.Role(rawRole)
		if !role.Valid() {
			c.Next()
			return
		}

		ctx := identity.NewContext(c.Request.Context(), identity.Identity{ID: userID, Role: role})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
