package middleware

import (
	"net/http"
	"strings"

	"github.com/dfryer1193/storefront/api"
	"github.com/gin-gonic/gin"
)

const userIDKey = "userID"

// Authenticator resolves a bearer token to a user ID
type Authenticator interface {
	Authenticate(token string) (string, error)
}

// RequireAuth rejects requests without a valid bearer token with 401
func RequireAuth(authn Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, api.CodeUnauthorized, "Authentication required")
			return
		}

		userID, err := authn.Authenticate(token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, api.CodeUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// UserID returns the authenticated user, or "" outside RequireAuth
func UserID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
