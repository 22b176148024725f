// Copyright (C) 2025 FinCove Pvt. Ltd.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	"github.com/fincove/maya/services/gateway/handlers"
	"github.com/fincove/maya/services/gateway/services"
)

// Deps carries everything the route table needs.
type Deps struct {
	Weaviate   *weaviate.Client
	Voice      handlers.VoiceDeps
	OTP        services.OTPProvider
	OTPLimiter *handlers.OTPLimiter
	Sessions   *services.SessionTable
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		v1.GET("/voice/ws", handlers.HandleVoiceWebSocket(deps.Voice))

		auth := v1.Group("/auth")
		{
			auth.POST("/send-otp", handlers.SendOTP(deps.OTP, deps.OTPLimiter))
			auth.POST("/verify-otp", handlers.VerifyOTP(deps.OTP, deps.Sessions))
		}

		v1.POST("/documents", handlers.CreateDocument(deps.Weaviate))
		v1.GET("/documents", handlers.ListDocuments(deps.Weaviate))

		// Session administration routes
		sessions := v1.Group("/sessions")
		{
			sessions.GET("", handlers.ListSessions(deps.Weaviate))
			sessions.GET("/:sessionId/history", handlers.SessionHistory(deps.Weaviate))
			sessions.DELETE("/:sessionId", handlers.DeleteSession(deps.Weaviate))
		}
	}
}
