package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CredentialKind discriminates what, if anything, a request presented.
type CredentialKind int

const (
	CredentialNone CredentialKind = iota
	CredentialBearer
	CredentialSession
)

// Credential is the raw, untrusted outcome of inspecting a request.
// Extraction makes no trust decisions; validation happens downstream.
type Credential struct {
	Kind CredentialKind
	// Bearer is the raw token from the Authorization header.
	Bearer string
	// SessionToken is the raw signed cookie value. Populated even when Kind
	// is CredentialBearer so a successful bearer resolution can be mirrored
	// into the existing session.
	SessionToken string
}

// ExtractCredential inspects the Authorization header and the session
// cookie. A well-formed "Bearer <token>" header takes precedence over an
// existing session; with neither, the request proceeds unauthenticated.
func ExtractCredential(c *gin.Context, cookieName string) Credential {
	var cred Credential

	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		cred.Kind = CredentialSession
		cred.SessionToken = cookie
	}

	if auth := c.GetHeader("Authorization"); auth != "" {
		// Expect 'Bearer <token>'
		var token string
		if n, _ := fmt.Sscanf(auth, "Bearer %s", &token); n == 1 {
			cred.Kind = CredentialBearer
			cred.Bearer = token
		}
	}

	return cred
}
