package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tewahedanswers/answers/backend/go-services/internal/users"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/logger"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/middleware"
)

// AdminHandler exposes user administration: listing all known users with
// their persisted verdicts and mutating a user's admin flag.
type AdminHandler struct {
	usersSvc *users.Service
}

func NewAdminHandler(u *users.Service) *AdminHandler {
	return &AdminHandler{usersSvc: u}
}

// Register routes under /api/admin. Both guards apply: authentication
// first (401), then the admin verdict (403).
func (h *AdminHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/api/admin")
	g.Use(middleware.RequireAuthenticated(), middleware.RequireAdmin())
	g.GET("/users", h.ListUsers)
	g.PUT("/users/:id", h.SetAdmin)
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	list, err := h.usersSvc.List(c.Request.Context())
	if err != nil {
		logger.Errorf("failed to list users: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to list users"})
		return
	}
	c.JSON(http.StatusOK, list)
}

type setAdminRequest struct {
	// pointer so an explicit false is distinguishable from a missing field
	IsAdmin *bool `json:"isAdmin"`
}

// SetAdmin applies the privilege-mutation protocol to the target user.
// Protocol violations are caller mistakes and come back as 400 with a
// specific reason; the guards have already handled 401/403.
func (h *AdminHandler) SetAdmin(c *gin.Context) {
	var req setAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsAdmin == nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "isAdmin must be a boolean value"})
		return
	}

	caller, _ := middleware.CurrentUserFrom(c)
	targetID := c.Param("id")

	updated, err := h.usersSvc.SetAdmin(c.Request.Context(), caller.ID, targetID, *req.IsAdmin)
	if err != nil {
		switch {
		case errors.Is(err, users.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		case errors.Is(err, users.ErrSelfDemotion):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot remove your own admin privileges"})
		case errors.Is(err, users.ErrDefaultAdminDemotion):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot remove admin privileges from default admin user"})
		case errors.Is(err, users.ErrLastAdmin):
			c.JSON(http.StatusBadRequest, gin.H{"message": "Cannot remove the last admin user"})
		default:
			logger.Errorf("failed to update admin status for %s: %v", targetID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update user admin status"})
		}
		return
	}

	logger.Infof("admin %s set isAdmin=%v for user %s", caller.Email, *req.IsAdmin, updated.Email)
	c.JSON(http.StatusOK, updated)
}
