package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tewahedanswers/answers/backend/go-services/internal/storage"
	"github.com/tewahedanswers/answers/backend/go-services/internal/users"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/logger"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/middleware"
)

const maxAvatarBytes = 5 << 20 // 5 MiB

// AvatarHandler lets an authenticated user replace their profile image.
// Objects live in MinIO; the user record keeps a presigned URL.
type AvatarHandler struct {
	usersSvc *users.Service
	store    *storage.AvatarStorage
}

func NewAvatarHandler(u *users.Service, s *storage.AvatarStorage) *AvatarHandler {
	return &AvatarHandler{usersSvc: u, store: s}
}

func (h *AvatarHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/api/users/me/avatar", middleware.RequireAuthenticated(), h.Upload)
}

func (h *AvatarHandler) Upload(c *gin.Context) {
	u, _ := middleware.CurrentUserFrom(c)

	fh, err := c.FormFile("avatar")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "avatar file is required"})
		return
	}
	if fh.Size > maxAvatarBytes {
		c.JSON(http.StatusBadRequest, gin.H{"message": "avatar must be 5MB or smaller"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to read upload"})
		return
	}
	defer f.Close()

	ctx := c.Request.Context()
	key := fmt.Sprintf("avatars/%s/%d%s", u.ID, time.Now().Unix(), filepath.Ext(fh.Filename))
	contentType := fh.Header.Get("Content-Type")
	if err := h.store.Upload(ctx, key, f, fh.Size, contentType); err != nil {
		logger.Errorf("avatar upload failed for %s: %v", u.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to store avatar"})
		return
	}
	url, err := h.store.PresignedURL(ctx, key, 7*24*time.Hour)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to generate avatar URL"})
		return
	}
	updated, err := h.usersSvc.SetPhotoURL(ctx, u.ID, url)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to update profile"})
		return
	}
	c.JSON(http.StatusOK, updated)
}
