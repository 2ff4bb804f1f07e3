package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mesikahq/niv-onboarding/internal/auth"
	"github.com/mesikahq/niv-onboarding/internal/middleware"
)

type Router struct {
	handler        *Handler
	authMiddleware *auth.Middleware
}

func NewRouter(handler *Handler, authService auth.Service) *Router {
	return &Router{
		handler:        handler,
		authMiddleware: auth.NewMiddleware(authService),
	}
}

func (r *Router) SetupRouter(logger *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(
		middleware.RequestIDMiddleware(),
		middleware.SecurityHeadersMiddleware(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggerMiddleware(logger),
		middleware.TimeoutMiddleware(30*time.Second),
		middleware.RateLimitMiddleware(rate.Every(time.Second), 30),
	)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	api := router.Group("/api")
	{
		api.POST("/auth/login", r.handler.Login)

		protected := api.Group("")
		protected.Use(r.authMiddleware.RequireRoles())
		{
			patients := protected.Group("/patients")
			{
				patients.GET("/:patientId", r.handler.GetPatientWithQualifications)
				patients.POST("/:patientId/assess", r.handler.AssessPatient)
			}

			onboardings := protected.Group("/onboarding")
			{
				onboardings.GET("", r.handler.ListOnboardings)
				onboardings.GET("/:id", r.handler.GetOnboarding)
				onboardings.PUT("/:id/status", r.handler.UpdateStatus)
			}

			auditGroup := protected.Group("/audit")
			auditGroup.Use(r.authMiddleware.RequireRoles("operator"))
			{
				auditGroup.GET("/logs", r.handler.GetAuditLogs)
			}
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "endpoint not found"})
	})

	return router
}
