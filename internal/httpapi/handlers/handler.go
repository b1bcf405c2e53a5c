package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Devvor/tabchat/internal/common"
	"github.com/Devvor/tabchat/internal/config"
	"github.com/Devvor/tabchat/internal/convo"
	"github.com/Devvor/tabchat/internal/httpapi/middleware"
	"github.com/Devvor/tabchat/internal/link"
	"github.com/Devvor/tabchat/internal/store/redisstore"
)

type Handler struct {
	DB     *gorm.DB
	Cfg    config.Config
	Redis  *redisstore.Store
	Links  *link.Service
	Convos *convo.Service
	Log    logrus.FieldLogger
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, links *link.Service, convos *convo.Service, logger logrus.FieldLogger) *Handler {
	return &Handler{
		DB:     db,
		Cfg:    cfg,
		Redis:  rds,
		Links:  links,
		Convos: convos,
		Log:    logger.WithField("component", "httpapi"),
	}
}

func (h *Handler) Ping(c *gin.Context) {
	common.OK(c, gin.H{"pong": true})
}

func userIDFromContext(c *gin.Context) (uint64, bool) {
	v, ok := c.Get(middleware.UserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint64)
	return id, ok
}
