package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/tewahedanswers/answers/backend/go-services/internal/users"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/middleware"
)

func TestAvatarUpload_GuardAndValidation(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := users.NewMemoryUserRepository()
	svc := users.NewService(repo, testDefaultAdmin)

	caller := &middleware.CurrentUser{ID: "uid-1", Email: "a@example.com"}
	r := gin.New()
	r.Use(middleware.Identity(&stubAuthenticator{user: caller}, testCookieName))
	// storage is never reached by these requests
	NewAvatarHandler(svc, nil).Register(r.Group("/"))

	// anonymous
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/api/users/me/avatar", nil))
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// authenticated but no multipart file
	req := httptest.NewRequest("POST", "/api/users/me/avatar", nil)
	req.Header.Set("Authorization", "Bearer tok")
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req)
	require.Equal(t, http.StatusBadRequest, w2.Code)
	require.Contains(t, w2.Body.String(), "avatar file is required")
}
