package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Devvor/tabchat/internal/auth"
	"github.com/Devvor/tabchat/internal/common"
)

const (
	UserIDKey      = "auth_user_id"
	RequestIDKey   = "request_id"
	requestIDHdr   = "X-Request-ID"
	extensionToken = "X-Extension-Token"
)

// AuthRequired validates the Bearer JWT and stashes the user id.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			c.Abort()
			return
		}
		uid, err := auth.ParseJWT(strings.TrimPrefix(header, "Bearer "), secret)
		if err != nil {
			common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
			c.Abort()
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// SessionStore resolves extension tokens to user ids. Expired or
// unknown tokens surface as redis.Nil. Satisfied by redisstore.Store.
type SessionStore interface {
	GetExtensionSession(ctx context.Context, token string) (uint64, error)
}

// ExtensionAuth resolves the X-Extension-Token header against the
// session store. Expired tokens read as missing and get a 401; the
// extension re-authenticates explicitly rather than refreshing a
// cached token.
func ExtensionAuth(store SessionStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(extensionToken))
		if token == "" {
			common.Fail(c, http.StatusUnauthorized, 40102, "extension token required")
			c.Abort()
			return
		}
		uid, err := store.GetExtensionSession(c.Request.Context(), token)
		if err != nil {
			if err == redis.Nil {
				common.Fail(c, http.StatusUnauthorized, 40103, "extension session expired or not found")
			} else {
				common.Fail(c, http.StatusInternalServerError, 20001, "session store error")
			}
			c.Abort()
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHdr)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(RequestIDKey, id)
		c.Header(requestIDHdr, id)
		c.Next()
	}
}

func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				common.Fail(c, http.StatusInternalServerError, 50000, "internal error")
				c.Abort()
			}
		}()
		c.Next()
	}
}
