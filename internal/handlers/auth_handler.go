package handlers

import (
	"errors"
	"net/http"

	"github.com/Jeet1511/FF-LIKE/internal/middleware"
	"github.com/Jeet1511/FF-LIKE/internal/models"
	"github.com/Jeet1511/FF-LIKE/internal/services"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type AuthHandler struct {
	userService *services.UserService
}

func NewAuthHandler(users *services.UserService) *AuthHandler {
	return &AuthHandler{userService: users}
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "username and password are required")
		return
	}

	resp, err := h.userService.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, resp)
}

// Verify reports the user behind the bearer token.
func (h *AuthHandler) Verify(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"valid":    true,
		"username": user.Username,
		"email":    user.Email,
		"role":     user.Role,
	})
}

func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req models.ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "old_password and new_password (min 6 characters) are required")
		return
	}
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	if err := h.userService.ChangePassword(c.Request.Context(), user.ID, req.OldPassword, req.NewPassword); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{"message": "Password changed successfully"})
}

func (h *AuthHandler) currentUser(c *gin.Context) (*models.User, bool) {
	userID := c.GetUint(middleware.ContextUserID)
	user, err := h.userService.GetByID(c.Request.Context(), userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "user no longer exists", "code": "unauthorized"})
		return nil, false
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return user, true
}
