package main

import (
	"github.com/Vivekkumarprince1/backend-vaani/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers delegate to internal modules.
func registerRoutes(r *gin.Engine, healthz, authMW gin.HandlerFunc, h httpapi.Handlers) {
	// public
	r.GET("/healthz", healthz)

	v1 := r.Group("/v1")

	// AUTH routes (token issuance).
	v1.POST("/auth/login", h.Login)

	// protected API group
	protected := v1.Group("")
	protected.Use(authMW)
	{
		// CALL routes
		protected.GET("/calls/pending", h.PendingCalls)
		protected.GET("/calls/:call_id", h.GetCall)
		protected.POST("/calls/:call_id/join", h.JoinCall)
		protected.POST("/calls/:call_id/decline", h.DeclineCall)
		protected.POST("/calls/:call_id/leave", h.LeaveCall)

		// ROOM-scoped routes
		protected.POST("/rooms/:room_id/calls", h.InitiateCall)
		protected.GET("/rooms/:room_id/calls/history", h.RoomCallHistory)
	}
}
