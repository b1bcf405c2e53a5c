package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Devvor/tabchat/internal/common"
)

// CreateExtensionSession mints an opaque token for the browser
// extension. The token maps to the caller's user id in Redis with a
// TTL; the extension presents it on save requests via
// X-Extension-Token.
func (h *Handler) CreateExtensionSession(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	token, err := common.NewULID()
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50020, "failed to mint token")
		return
	}

	ttl := h.Cfg.ExtensionSessionTTL
	if err := h.Redis.PutExtensionSession(c.Request.Context(), token, uid, ttl); err != nil {
		h.Log.WithError(err).Error("store extension session failed")
		common.Fail(c, http.StatusInternalServerError, 20001, "session store error")
		return
	}

	common.OK(c, gin.H{
		"token":      token,
		"expires_in": int64(ttl.Seconds()),
	})
}

func (h *Handler) RevokeExtensionSession(c *gin.Context) {
	if _, ok := userIDFromContext(c); !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		common.Fail(c, http.StatusBadRequest, 10001, "token required")
		return
	}
	if err := h.Redis.DeleteExtensionSession(c.Request.Context(), token); err != nil {
		common.Fail(c, http.StatusInternalServerError, 20001, "session store error")
		return
	}
	common.OK(c, nil)
}
