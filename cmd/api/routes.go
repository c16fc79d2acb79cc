package main

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/Hons90/CRM/internal/httpapi"
	"github.com/Hons90/CRM/internal/telephony"
	"github.com/Hons90/CRM/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	DB       *sql.DB
	Handlers httpapi.Handlers
	AuthMW   gin.HandlerFunc

	// Webhook is nil unless the Twilio provider is active.
	Webhook *telephony.TwilioStatusHandler

	CORSOrigin string
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, deps routeDeps) {
	if deps.CORSOrigin != "" {
		r.Use(cors(deps.CORSOrigin))
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), deps.DB, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks are authenticated by X-Twilio-Signature, not bearer tokens.
	if deps.Webhook != nil {
		r.POST("/webhooks/twilio/status", deps.Webhook.HandleStatus)
	}

	deps.Handlers.Register(r, deps.AuthMW)
}

// cors allows one browser origin to call the API.
func cors(origin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Access-Control-Allow-Origin", origin)
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-Id")
		h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		h.Add("Vary", "Origin")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
