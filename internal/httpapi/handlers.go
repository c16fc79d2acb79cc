package httpapi

import (
	"net/http"
	"strconv"

	"github.com/Hons90/CRM/internal/apperr"
	"github.com/Hons90/CRM/internal/audit"
	"github.com/Hons90/CRM/internal/auth"
	"github.com/Hons90/CRM/internal/calls"
	"github.com/Hons90/CRM/internal/dialer"
	"github.com/Hons90/CRM/internal/pools"
	"github.com/Hons90/CRM/internal/reporting"
	"github.com/Hons90/CRM/internal/users"
	"github.com/Hons90/CRM/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Users   *users.Service
	Pools   *pools.Registry
	Calls   *calls.Ledger
	Dialer  *dialer.Service
	Reports *reporting.Service
	Audit   *audit.Service

	// UploadMaxBytes caps the multipart body of a pool upload. 0 means no cap.
	UploadMaxBytes int64
}

// writeError maps a service error to its status and public message.
// Server-side failures are attached to the gin context so the request log carries them.
func writeError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

func notConfigured(c *gin.Context, what string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": what + " not configured"})
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// identity returns the caller set by auth.RequireAccessToken.
func identity(c *gin.Context) (auth.Identity, bool) {
	id, err := auth.IdentityFrom(c.Request.Context())
	if err != nil || id.UserID <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return auth.Identity{}, false
	}
	return id, true
}

// ClientIP stores the resolved client address on the request context for audit events.
func ClientIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(audit.WithClientIP(c.Request.Context(), c.ClientIP()))
		c.Next()
	}
}

// --- Dashboard ---

func (h Handlers) Dashboard(c *gin.Context) {
	if h.Reports == nil {
		notConfigured(c, "reporting")
		return
	}
	d, err := h.Reports.Dashboard(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}
