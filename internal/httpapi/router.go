package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Devvor/tabchat/internal/common"
	"github.com/Devvor/tabchat/internal/config"
	"github.com/Devvor/tabchat/internal/httpapi/handlers"
	"github.com/Devvor/tabchat/internal/httpapi/middleware"
	"github.com/Devvor/tabchat/internal/store/redisstore"
)

func NewRouter(h *handlers.Handler, cfg config.Config, rds *redisstore.Store) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())

	r.NoRoute(func(c *gin.Context) {
		common.Fail(c, http.StatusNotFound, 40400, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Fail(c, http.StatusMethodNotAllowed, 40500, "method not allowed")
	})

	r.Use(middleware.RequestID())

	r.GET("/ping", h.Ping)

	// CRUD users register
	r.POST("/users", h.CreateUser)

	// auth
	r.POST("/login", h.Login)

	authGroup := r.Group("/")
	authGroup.Use(middleware.AuthRequired(cfg.JWTSecret))
	authGroup.GET("/me", h.Me)

	// Links (JWT required)
	authGroup.POST("/links/save", h.SaveLink)
	authGroup.POST("/links/process", h.ProcessLink)
	authGroup.GET("/links", h.ListLinks)
	authGroup.GET("/links/:id", h.GetLink)
	authGroup.DELETE("/links/:id", h.DeleteLink)
	authGroup.PATCH("/links/:id/read", h.MarkLinkRead)

	// Conversations (JWT required)
	authGroup.POST("/conversations", h.CreateConversation)
	authGroup.GET("/conversations", h.ListConversations)
	authGroup.DELETE("/conversations/:id", h.DeleteConversation)
	authGroup.GET("/conversations/:id/messages", h.ListMessages)
	authGroup.POST("/conversations/:id/messages", h.PostMessage)

	// Extension session management (JWT required to mint)
	authGroup.POST("/extension/sessions", h.CreateExtensionSession)
	authGroup.DELETE("/extension/sessions/:token", h.RevokeExtensionSession)

	// Extension save path: same handler, token auth
	extGroup := r.Group("/extension")
	extGroup.Use(middleware.ExtensionAuth(rds))
	extGroup.POST("/links/save", h.SaveLink)

	return r
}
