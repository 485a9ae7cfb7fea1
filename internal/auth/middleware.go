package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	Verify(token string) (Identity, error)
}

// RequireUser enforces a valid, non-revoked provider token from the
// Authorization header.
func RequireUser(verifier TokenVerifier, revocations Revocations) gin.HandlerFunc {
	return requireUser(verifier, revocations, false)
}

// RequireStreamUser is RequireUser for event streams. EventSource clients
// cannot set headers, so an access_token query parameter is also accepted.
func RequireStreamUser(verifier TokenVerifier, revocations Revocations) gin.HandlerFunc {
	return requireUser(verifier, revocations, true)
}

func requireUser(verifier TokenVerifier, revocations Revocations, allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" && allowQuery {
			tokenStr = strings.TrimSpace(c.Query("access_token"))
		}
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		id, err := verifier.Verify(tokenStr)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if revocations != nil {
			revoked, err := revocations.Revoked(c.Request.Context(), tokenStr)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session check failed"})
				return
			}
			if revoked {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session signed out"})
				return
			}
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// CurrentIdentity returns the identity set by RequireUser.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

func bearerToken(c *gin.Context) string {
	authz := c.GetHeader("Authorization")
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		return strings.TrimSpace(authz[len("bearer "):])
	}
	return ""
}
