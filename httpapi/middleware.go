package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"warehousematch/auth"
)

const identityKey = "httpapi.identity"

// AuthMiddleware resolves the bearer token into an auth.Identity and aborts
// unauthenticated requests.
func AuthMiddleware(authService *auth.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearer(c)
		if token == "" {
			c.JSON(http.StatusUnauthorized, failure("missing bearer token", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		identity, err := authService.VerifyToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, failure("invalid token", "UNAUTHORIZED"))
			c.Abort()
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func callerIdentity(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	identity, ok := v.(auth.Identity)
	return identity, ok
}

func extractBearer(c *gin.Context) string {
	value := c.GetHeader("Authorization")
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
