package http

import (
	"github.com/gin-gonic/gin"
	"github.com/vogiaan1904/barberqueue/config"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

func NewRouter(h *Handler, rl config.RateLimitConfig, l logger.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(l))
	r.NoRoute(h.NotFound)

	r.GET("/healthz", h.HealthCheck)

	joinLimit := newIPLimiter(rl.JoinPerMinute, rl.JoinBurst)

	api := r.Group("/api/v1")
	{
		api.POST("/devices", h.RegisterDevice)

		api.POST("/queue", joinLimit.middleware(), h.JoinQueue)
		api.GET("/queue", h.ListQueue)
		api.GET("/queue/:id/position", h.GetPosition)
		api.DELETE("/queue/:id", h.LeaveQueue)

		api.POST("/admin/login", h.Login)
	}

	admin := api.Group("/admin", adminAuth(h.Tokens))
	{
		admin.GET("/session", h.Session)
		admin.POST("/logout", h.Logout)

		admin.POST("/queue", h.AdminJoinQueue)
		admin.POST("/queue/:id/serve", h.Serve)
		admin.POST("/queue/:id/complete", h.Complete)
		admin.POST("/queue/:id/remove", h.Remove)
		admin.POST("/queue/:id/move-down", h.MoveDown)

		admin.GET("/stats", h.Stats)
		admin.GET("/stats/days", h.MonthDays)
		admin.GET("/revenue", h.RevenueLogs)

		admin.GET("/notifications", h.GetNotifications)
		admin.PUT("/notifications", h.SetNotifications)
	}

	return r
}
