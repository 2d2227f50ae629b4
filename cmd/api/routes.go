package main

import (
	"marketscanner-platform/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/login", h.Login)
			auth.OPTIONS("/login", h.LoginPreflight)

			auth.GET("/session", h.Session)
			auth.OPTIONS("/session", h.SessionPreflight)
		}

		api.POST("/app-token", h.AppToken)
		api.GET("/entitlements", h.EntitlementCheck)

		api.POST("/subscription/update", h.SubscriptionUpdate)

		if h.Alerts != nil {
			api.POST("/alerts/send", h.SendAlert)
		}
	}
}
