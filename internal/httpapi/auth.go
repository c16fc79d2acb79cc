package httpapi

import (
	"net/http"

	"github.com/Hons90/CRM/internal/users"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Login exchanges credentials for a token pair.
func (h Handlers) Login(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "auth")
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sess, err := h.Users.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Refresh rotates the refresh token.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "auth")
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sess, err := h.Users.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshToken,
		"user":         sess.User,
	})
}

func (h Handlers) Logout(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "auth")
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Users.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// UpdateMe edits the caller's own name or password.
func (h Handlers) UpdateMe(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "users")
		return
	}
	id, ok := identity(c)
	if !ok {
		return
	}
	var req users.UpdateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := h.Users.UpdateMe(c.Request.Context(), id.UserID, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// --- Admin: users ---

func (h Handlers) ListUsers(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "users")
		return
	}
	list, err := h.Users.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h Handlers) GetUser(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "users")
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	u, err := h.Users.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) CreateUser(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "users")
		return
	}
	actor, ok := identity(c)
	if !ok {
		return
	}
	var req users.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := h.Users.Create(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (h Handlers) UpdateUser(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "users")
		return
	}
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req users.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	u, err := h.Users.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) DeleteUser(c *gin.Context) {
	if h.Users == nil {
		notConfigured(c, "users")
		return
	}
	actor, ok := identity(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.Users.Delete(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "User deleted"})
}
