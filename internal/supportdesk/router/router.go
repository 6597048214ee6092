// Package router wires HTTP routes for the support-desk service.
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kart-io/supportdesk/internal/supportdesk/handler"
	"github.com/kart-io/supportdesk/internal/supportdesk/metrics"
	"github.com/kart-io/supportdesk/pkg/middleware"
)

// New 构建 gin 引擎并注册全部路由。
func New(chat *handler.ChatHandler, knowledge *handler.KnowledgeHandler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
	)

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	engine.GET("/metrics", func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		c.String(http.StatusOK, metrics.Get().Export("supportdesk"))
	})

	v1 := engine.Group("/v1")
	{
		v1.POST("/documents", knowledge.UploadDocument)
		v1.DELETE("/documents/:id", knowledge.DeleteDocument)
		v1.POST("/kb/search", knowledge.Search)
		v1.GET("/kb/stats", knowledge.Stats)

		v1.POST("/sessions", chat.CreateSession)
		v1.GET("/sessions/:id", chat.GetSession)
		v1.DELETE("/sessions/:id", chat.EndSession)
		v1.POST("/sessions/:id/messages", chat.SendMessage)
		v1.GET("/sessions/:id/export", chat.ExportSession)
	}

	return engine
}
