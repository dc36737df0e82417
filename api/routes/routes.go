package routes

import (
	"github.com/casbin/casbin/v2"
	"github.com/gin-gonic/gin"
	"github.com/learnloop/campaign-engine/internal/config"
	"github.com/learnloop/campaign-engine/internal/handlers"
	"github.com/learnloop/campaign-engine/internal/middleware"
	"github.com/learnloop/campaign-engine/pkg/jwt"
)

// HandlerDependencies holds the handlers the router mounts
type HandlerDependencies struct {
	PlayerHandler *handlers.PlayerHandler
	AdminHandler  *handlers.AdminHandler
	HealthHandler *handlers.HealthHandler
}

// SetupRouter sets up the router
func SetupRouter(cfg *config.Config, deps HandlerDependencies, tokens *jwt.TokenService, enforcer *casbin.Enforcer) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg))

	public := router.Group("/api/v1")
	{
		public.GET("/health", deps.HealthHandler.Health)
	}

	protected := router.Group("/api/v1")
	protected.Use(middleware.JWTAuthMiddleware(tokens))
	protected.Use(middleware.RBACMiddleware(enforcer))
	{
		campaigns := protected.Group("/campaigns/:id")
		{
			campaigns.GET("/player", deps.PlayerHandler.GetPlayer)
			campaigns.POST("/access", deps.PlayerHandler.RecordAccess)
			campaigns.POST("/progress/video", deps.PlayerHandler.RecordVideoCompletion)
			campaigns.POST("/progress/answer", deps.PlayerHandler.RecordAnswer)
			campaigns.GET("/progress/stream", deps.PlayerHandler.StreamProgress)
		}

		admin := protected.Group("/admin")
		{
			admin.GET("/jobs", deps.AdminHandler.ListJobs)
			admin.POST("/jobs/:name/run", deps.AdminHandler.RunJob)
			admin.POST("/notifications/:id/requeue", deps.AdminHandler.RequeueNotification)
			admin.POST("/campaigns/:id/notifications/requeue-failed", deps.AdminHandler.RequeueFailed)
			admin.POST("/campaigns/:id/stats/recompute", deps.AdminHandler.RecomputeStats)
			admin.POST("/campaigns/:id/enroll", deps.AdminHandler.EnrollCampaign)
		}
	}

	return router
}
