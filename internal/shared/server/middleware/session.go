package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"findoc-gateway/internal/shared/server/respond"
)

const (
	// SessionHeader carries the browser-tab session id in both directions.
	SessionHeader = "X-Session-Id"

	sessionIDKey       = "sessionId"
	sessionSuppliedKey = "sessionSupplied"
	maxSessionIDLen    = 128
)

// Session resolves the caller's session id. A request without one gets a
// fresh id, returned in the response header so the client can keep it.
func Session() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		id := strings.TrimSpace(c.GetHeader(SessionHeader))
		c.Set(sessionSuppliedKey, id != "")
		if id == "" {
			id = uuid.NewString()
		} else if !validSessionID(id) {
			respond.Error(c, http.StatusBadRequest, "validation_error", "invalid "+SessionHeader+" header", nil)
			return
		}

		c.Set(sessionIDKey, id)
		c.Writer.Header().Set(SessionHeader, id)
		c.Next()
	}
}

func validSessionID(id string) bool {
	if len(id) > maxSessionIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return true
}

// SessionIDFromContext fetches the session id stored by Session.
func SessionIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(sessionIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// SessionSupplied reports whether the session id came from the request
// rather than being minted by Session.
func SessionSupplied(c *gin.Context) bool {
	return c != nil && c.GetBool(sessionSuppliedKey)
}
