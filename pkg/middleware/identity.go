package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tewahedanswers/answers/backend/go-services/pkg/logger"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/metrics"
)

// Token is minimal interface for a verified token that can expose claims
type Token interface {
	Claims(v interface{}) error
}

// Verifier is the minimal interface the identity pipeline depends on
type Verifier interface {
	Verify(ctx context.Context, raw string) (Token, error)
}

// CurrentUser is the per-request identity plus the adjudicated admin
// verdict, attached to the request context by the Identity middleware.
type CurrentUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	IsAdmin     bool   `json:"isAdmin"`
}

// Authenticator turns an extracted credential into a CurrentUser.
// (nil, nil) means the credential could not be trusted and the request is
// anonymous; a non-nil error means infrastructure failed (store or provider
// unreachable) and privileged routes must not degrade to anonymous.
type Authenticator interface {
	Authenticate(ctx context.Context, cred Credential, fresh bool) (*CurrentUser, error)
}

const (
	currentUserKey   = "currentUser"
	identityErrorKey = "identityError"
)

// Identity is the single shared authentication pipeline: extract the
// credential, resolve it, adjudicate the admin verdict, attach the result.
// It never rejects a request; the guards enforce at the privileged boundary.
func Identity(a Authenticator, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		cred := ExtractCredential(c, cookieName)
		if cred.Kind == CredentialNone {
			metrics.AuthVerdicts.WithLabelValues("anonymous").Inc()
			c.Next()
			return
		}

		// write requests must not trust the session's cached verdict
		fresh := c.Request.Method != http.MethodGet &&
			c.Request.Method != http.MethodHead &&
			c.Request.Method != http.MethodOptions

		u, err := a.Authenticate(c.Request.Context(), cred, fresh)
		if err != nil {
			logger.Errorf("identity resolution failed: %v", err)
			c.Set(identityErrorKey, err)
			metrics.AuthVerdicts.WithLabelValues("anonymous").Inc()
			c.Next()
			return
		}
		if u == nil {
			metrics.AuthVerdicts.WithLabelValues("anonymous").Inc()
			c.Next()
			return
		}

		outcome := "user"
		if u.IsAdmin {
			outcome = "admin"
		}
		metrics.AuthVerdicts.WithLabelValues(outcome).Inc()
		c.Set(currentUserKey, u)
		c.Next()
	}
}

// CurrentUserFrom returns the authenticated user for this request, if any.
func CurrentUserFrom(c *gin.Context) (*CurrentUser, bool) {
	v, ok := c.Get(currentUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*CurrentUser)
	return u, ok
}

func identityError(c *gin.Context) error {
	v, ok := c.Get(identityErrorKey)
	if !ok {
		return nil
	}
	err, _ := v.(error)
	return err
}
