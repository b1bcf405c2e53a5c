package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Devvor/tabchat/internal/common"
	"github.com/Devvor/tabchat/internal/convo"
)

type createConversationReq struct {
	Title  string  `json:"title"`
	LinkID *string `json:"link_id"`
}

func (h *Handler) CreateConversation(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req createConversationReq
	_ = c.ShouldBindJSON(&req) // allow empty {}

	conv, err := h.Convos.Create(c.Request.Context(), uid, req.Title, req.LinkID)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50010, "failed to create conversation")
		return
	}
	common.OK(c, gin.H{"conversation": conv})
}

func (h *Handler) ListConversations(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	convos, err := h.Convos.List(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50011, "failed to list conversations")
		return
	}
	common.OK(c, gin.H{"conversations": convos})
}

func (h *Handler) DeleteConversation(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.Convos.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50012, "failed to delete conversation")
		return
	}
	common.OK(c, nil)
}

func (h *Handler) ListMessages(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	conversationID := c.Param("id")
	limit, _ := strconv.Atoi(c.Query("limit"))
	var beforeID uint64
	if v := c.Query("before_id"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			beforeID = n
		}
	}

	msgs, err := h.Convos.ListMessages(c.Request.Context(), uid, conversationID, limit, beforeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50013, "failed to list messages")
		return
	}

	var nextBeforeID uint64
	if len(msgs) > 0 {
		nextBeforeID = msgs[len(msgs)-1].ID
	}

	common.OK(c, gin.H{
		"messages":       msgs,
		"next_before_id": nextBeforeID,
	})
}

type postMessageReq struct {
	Role    string `json:"role" binding:"required"`
	Content string `json:"content" binding:"required"`
}

func (h *Handler) PostMessage(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req postMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "invalid json")
		return
	}

	idempoKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if len(idempoKey) > 128 {
		common.Fail(c, http.StatusBadRequest, 10003, "idempotency key too long")
		return
	}
	var idempoKeyPtr *string
	if idempoKey != "" {
		idempoKeyPtr = &idempoKey
	}

	msg, created, err := h.Convos.AppendMessage(c.Request.Context(), uid, c.Param("id"), req.Role, req.Content, idempoKeyPtr)
	if err != nil {
		switch {
		case errors.Is(err, convo.ErrInvalidInput):
			common.Fail(c, http.StatusBadRequest, 10004, "invalid role or empty content")
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40403, "conversation not found")
		default:
			h.Log.WithError(err).Error("append message failed")
			common.Fail(c, http.StatusInternalServerError, 50014, "failed to store message")
		}
		return
	}

	common.OK(c, gin.H{
		"message": msg,
		"created": created,
	})
}
