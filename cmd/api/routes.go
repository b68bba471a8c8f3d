package main

import (
	"voicegate/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Client bootstrap config (site key, call policy). No secrets.
	r.GET("/v1/config", h.ClientConfig)

	// AUTH routes (token issuance).
	// NOTE: This is a demo-only login; real credential validation is not implemented.
	r.POST("/v1/auth/login", h.Login)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", h.Me)

		calls := v1.Group("/calls")
		{
			calls.POST("/start", h.StartCall)
			calls.GET("/quota", h.Quota)
		}
	}
}
