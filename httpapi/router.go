package httpapi

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"warehousematch/auth"
	"warehousematch/engagement"
	"warehousematch/logging"
)

// NewRouter assembles the gin engine with all routes and middleware.
func NewRouter(mode string, log *zap.Logger, authService *auth.Service, engagements *engagement.Service) *gin.Engine {
	if mode == logging.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	authHandler := NewAuthHandler(authService)
	engagementHandler := NewEngagementHandler(engagements)

	api := r.Group("/api")
	{
		api.POST("/auth/register", authHandler.Register)
		api.POST("/auth/login", authHandler.Login)
	}

	protected := api.Group("")
	protected.Use(AuthMiddleware(authService))
	{
		protected.POST("/engagements", engagementHandler.Create)
		protected.GET("/engagements", engagementHandler.List)
		protected.GET("/engagements/:id", engagementHandler.Get)
		protected.POST("/engagements/:id/events", engagementHandler.ApplyEvent)
		protected.GET("/engagements/:id/timeline", engagementHandler.Timeline)
		protected.GET("/engagements/:id/payment-schedule", engagementHandler.PaymentSchedule)
	}

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		log.Info("request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
