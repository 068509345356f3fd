// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements session authentication. Login hands the client an
// opaque session token (set as an HttpOnly cookie and returned in the body
// for non-browser clients); SessionAuth resolves that token back to a user on
// every protected request and stores the user ID under the "userID" context
// key that logging, rate limiting, and handlers already consume.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// SessionCookie is the cookie that carries the session token.
	SessionCookie = "session_token"
	// userIDCtxKey is the Gin context key for the authenticated user ID.
	userIDCtxKey = "userID"
)

// Authenticator resolves a session token to a user ID. An expired or unknown
// token must return an error.
type Authenticator interface {
	Authenticate(c *gin.Context, token string) (userID string, err error)
}

// AuthenticatorFunc adapts a plain function to the Authenticator interface.
type AuthenticatorFunc func(c *gin.Context, token string) (string, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(c *gin.Context, token string) (string, error) {
	return f(c, token)
}

// SessionToken extracts the session token from the request: the session
// cookie first, then a Bearer Authorization header. Empty when neither is
// present.
func SessionToken(c *gin.Context) string {
	if tok, err := c.Cookie(SessionCookie); err == nil && tok != "" {
		return tok
	}
	if auth := c.GetHeader("Authorization"); auth != "" {
		if rest, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return strings.TrimSpace(rest)
		}
	}
	return ""
}

// SessionAuth returns a middleware that rejects requests without a valid
// session and stores the resolved user ID under the "userID" context key.
func SessionAuth(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := SessionToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "authentication required",
			})
			return
		}
		uid, err := auth.Authenticate(c, token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"request_id": c.Writer.Header().Get("X-Request-ID"),
				"code":       "unauthorized",
				"message":    "session expired or invalid",
			})
			return
		}
		c.Set(userIDCtxKey, uid)
		c.Next()
	}
}
