package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the auth service.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>tewahedo-auth — Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the auth/admin endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "tewahedo-auth", "version": "v0.1.0" },
  "paths": {
    "/api/auth/session": {
      "post": { "summary": "Exchange a bearer ID token for a session cookie", "responses": { "200": { "description": "session issued, user returned" }, "401": { "description": "missing or unverifiable token" } } }
    },
    "/api/auth/user": {
      "get": { "summary": "Current user with adjudicated admin verdict", "responses": { "200": { "description": "user" }, "401": { "description": "not authenticated" } } }
    },
    "/api/auth/logout": {
      "post": { "summary": "Destroy the session and revoke a presented bearer token", "responses": { "200": { "description": "logged out" } } }
    },
    "/api/admin/users": {
      "get": { "summary": "List all users (admin only)", "responses": { "200": { "description": "users" }, "401": { "description": "not authenticated" }, "403": { "description": "admin access required" } } }
    },
    "/api/admin/users/{id}": {
      "put": { "summary": "Set a user's admin flag (admin only, mutation protocol applies)", "responses": { "200": { "description": "updated user" }, "400": { "description": "protocol violation: self-demotion, default admin, or last admin" }, "404": { "description": "user not found" } } }
    },
    "/api/users/me/avatar": {
      "post": { "summary": "Upload a profile image", "responses": { "200": { "description": "updated user" }, "401": { "description": "not authenticated" } } }
    }
  }
}`
