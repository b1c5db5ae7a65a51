package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tewahedanswers/answers/backend/go-services/internal/config"
	"github.com/tewahedanswers/answers/backend/go-services/internal/sessions"
	"github.com/tewahedanswers/answers/backend/go-services/internal/tokens"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/logger"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/middleware"
)

// AuthHandler holds dependencies for login/logout/current-user endpoints.
// Clients authenticate against the identity provider on their side and
// present the resulting ID token as a bearer credential; login exchanges it
// for a server-side session referenced by a signed cookie.
type AuthHandler struct {
	cfg         *config.Config
	sessionsSvc *sessions.Service
}

func NewAuthHandler(cfg *config.Config, s *sessions.Service) *AuthHandler {
	return &AuthHandler{cfg: cfg, sessionsSvc: s}
}

// Register routes under /api/auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/api/auth")
	a.POST("/session", middleware.RequireAuthenticated(), h.Login)
	a.GET("/user", middleware.RequireAuthenticated(), h.CurrentUser)
	a.POST("/logout", h.Logout)
}

// Login issues a session for the already-resolved caller. The identity
// pipeline has verified the bearer token and upserted the user record by
// the time this runs; an unverifiable token never reaches here.
func (h *AuthHandler) Login(c *gin.Context) {
	u, _ := middleware.CurrentUserFrom(c)

	sess, err := h.sessionsSvc.Create(c.Request.Context(), u.ID, u.Email, u.IsAdmin, h.cfg.Session.TTL)
	if err != nil {
		logger.Errorf("failed to create session: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create session"})
		return
	}
	cookie, err := tokens.GenerateSessionToken(h.cfg, sess.ID, h.cfg.Session.TTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to create session cookie"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Session.CookieName, cookie, int(h.cfg.Session.TTL.Seconds()), "/", "", h.secureCookies(), true)

	logger.Infof("user logged in: %s (admin=%v)", u.Email, u.IsAdmin)
	c.JSON(http.StatusOK, gin.H{"user": u})
}

// CurrentUser returns the caller's identity and verdict.
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	u, _ := middleware.CurrentUserFrom(c)
	c.JSON(http.StatusOK, u)
}

// Logout destroys the session and blacklists a presented bearer token for
// its remaining lifetime so it cannot be replayed. Works for anonymous
// callers too (idempotent).
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()

	if auth := c.GetHeader("Authorization"); auth != "" {
		var at string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &at); n == 1 {
			if ttl, err := tokens.RemainingLifetime(at); err == nil && ttl > 0 {
				if err := sessions.BlacklistAccessToken(ctx, at, ttl); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to revoke access token"})
					return
				}
			}
		}
	}

	if cookie, err := c.Cookie(h.cfg.Session.CookieName); err == nil && cookie != "" {
		// destroy even when the record is stale; the cookie id is all we need
		if sid, err := tokens.ParseSessionToken(h.cfg, cookie); err == nil {
			if err := h.sessionsSvc.Destroy(ctx, sid); err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to remove session"})
				return
			}
		}
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.Session.CookieName, "", -1, "/", "", h.secureCookies(), true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) secureCookies() bool {
	return h.cfg.Server.Environment == "production"
}
