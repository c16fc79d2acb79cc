package httpapi

import (
	"github.com/Hons90/CRM/internal/rbac"

	"github.com/gin-gonic/gin"
)

// Register mounts the /api surface on r. authMW must verify the bearer token.
// Keep this free of business logic.
func (h Handlers) Register(r gin.IRouter, authMW gin.HandlerFunc) {
	api := r.Group("/api")
	api.Use(ClientIP())

	// public
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.Refresh)

	authed := api.Group("")
	authed.Use(authMW)
	{
		authed.POST("/auth/logout", h.Logout)
		authed.PUT("/auth/users/me", h.UpdateMe)
		authed.GET("/dashboard", h.Dashboard)
	}

	pools := authed.Group("/dialer-pools")
	{
		pools.GET("", h.ListPools)
		pools.GET("/:id/numbers", h.ListNumbers)
		pools.GET("/:id/progress", h.PoolProgress)
		pools.POST("", rbac.RequireAdmin(), h.CreatePool)
		pools.POST("/:id/upload", rbac.RequireAdmin(), h.UploadNumbers)
		pools.DELETE("/:id", rbac.RequireAdmin(), h.DeletePool)
	}

	calls := authed.Group("/calls")
	calls.Use(rbac.RequireAnyRole(rbac.RoleEmployee))
	{
		calls.POST("/dial", h.Dial)
		calls.POST("/:id/qualify", h.Qualify)
		calls.GET("/logs", h.CallLogs)
	}

	admin := authed.Group("/admin")
	admin.Use(rbac.RequireAdmin())
	{
		admin.GET("/users", h.ListUsers)
		admin.POST("/users", h.CreateUser)
		admin.GET("/users/:id", h.GetUser)
		admin.PATCH("/users/:id", h.UpdateUser)
		admin.DELETE("/users/:id", h.DeleteUser)
	}
}
