package app

import (
	"quest_engine_backend/internal/config"
	"quest_engine_backend/internal/middleware"
	"quest_engine_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerQuestRoutes(authGroup, c)
	}
}

func (a *App) registerQuestRoutes(group *gin.RouterGroup, c *controllers) {
	quests := group.Group("/quests")
	{
		quests.GET("", c.quest.ListQuests)
		quests.POST("/:id/start", c.quest.StartQuest)
		quests.POST("/:id/submit", c.quest.SubmitQuest)
		quests.POST("/:id/fail", c.quest.FailQuest)
	}
}
