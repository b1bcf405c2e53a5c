package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/Devvor/tabchat/internal/common"
	"github.com/Devvor/tabchat/internal/link"
)

type saveLinkReq struct {
	URL         string `json:"url" binding:"required"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Favicon     string `json:"favicon"`
}

// SaveLink is the intake endpoint used by both the web app and the
// browser extension. Duplicate (user, url) submissions return the
// existing link id without re-triggering extraction.
func (h *Handler) SaveLink(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req saveLinkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "url and title required")
		return
	}

	linkID, err := h.Links.Submit(c.Request.Context(), uid, link.SubmitInput{
		URL:         req.URL,
		Title:       req.Title,
		Description: req.Description,
		Favicon:     req.Favicon,
	})
	if err != nil {
		switch {
		case errors.Is(err, link.ErrInvalidInput):
			common.Fail(c, http.StatusBadRequest, 10002, "url and title required")
		case errors.Is(err, gorm.ErrRecordNotFound):
			common.Fail(c, http.StatusNotFound, 40401, "user not found")
		default:
			h.Log.WithError(err).Error("save link failed")
			common.Fail(c, http.StatusInternalServerError, 50001, "failed to save link")
		}
		return
	}

	common.OK(c, gin.H{"link_id": linkID})
}

type processLinkReq struct {
	LinkID string `json:"link_id" binding:"required"`
}

// ProcessLink manually re-triggers extraction, regardless of the
// link's current status.
func (h *Handler) ProcessLink(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req processLinkReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "link_id required")
		return
	}

	if err := h.Links.Reprocess(c.Request.Context(), uid, req.LinkID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "link not found")
			return
		}
		h.Log.WithError(err).Error("reprocess failed")
		common.Fail(c, http.StatusInternalServerError, 50002, "failed to schedule reprocess")
		return
	}

	common.OK(c, gin.H{"link_id": req.LinkID})
}

func (h *Handler) ListLinks(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	links, err := h.Links.ListByUser(c.Request.Context(), uid)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to list links")
		return
	}
	common.OK(c, gin.H{"links": links})
}

func (h *Handler) GetLink(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	l, err := h.Links.Get(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "link not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50003, "failed to get link")
		return
	}
	common.OK(c, gin.H{"link": l})
}

func (h *Handler) DeleteLink(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	if err := h.Links.Delete(c.Request.Context(), uid, c.Param("id")); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "link not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50004, "failed to delete link")
		return
	}
	common.OK(c, nil)
}

type markReadReq struct {
	Read *bool `json:"read" binding:"required"`
}

func (h *Handler) MarkLinkRead(c *gin.Context) {
	uid, ok := userIDFromContext(c)
	if !ok {
		common.Fail(c, http.StatusUnauthorized, 40101, "unauthorized")
		return
	}

	var req markReadReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, 10001, "read flag required")
		return
	}

	if err := h.Links.SetRead(c.Request.Context(), uid, c.Param("id"), *req.Read); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			common.Fail(c, http.StatusNotFound, 40402, "link not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, 50005, "failed to update link")
		return
	}
	common.OK(c, nil)
}
