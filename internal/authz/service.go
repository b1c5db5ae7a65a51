// Package authz is the single authorization pipeline: it resolves an
// extracted credential into an identity and adjudicates the admin verdict
// against the persisted user store, the session cache and the configured
// default admin. Every request-handling path goes through this one
// implementation.
package authz

import (
	"context"
	"time"

	"github.com/tewahedanswers/answers/backend/go-services/internal/config"
	"github.com/tewahedanswers/answers/backend/go-services/internal/models"
	"github.com/tewahedanswers/answers/backend/go-services/internal/sessions"
	"github.com/tewahedanswers/answers/backend/go-services/internal/tokens"
	"github.com/tewahedanswers/answers/backend/go-services/internal/users"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/logger"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/metrics"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/middleware"
)

// verifyTimeout bounds the identity provider round-trip; on expiry the
// request degrades to anonymous rather than failing.
const verifyTimeout = 10 * time.Second

// Service implements middleware.Authenticator.
type Service struct {
	verifier middleware.Verifier
	users    *users.Service
	sessions *sessions.Service
	cfg      *config.Config
}

// NewService wires the pipeline. verifier may be nil when no identity
// provider is configured; bearer credentials then resolve to anonymous.
// sessionsSvc may be nil as well (no session store configured).
func NewService(verifier middleware.Verifier, userSvc *users.Service, sessionSvc *sessions.Service, cfg *config.Config) *Service {
	return &Service{verifier: verifier, users: userSvc, sessions: sessionSvc, cfg: cfg}
}

// Authenticate resolves cred into a CurrentUser carrying the adjudicated
// verdict. Unverifiable credentials return (nil, nil): identity is advisory
// everywhere except at the privileged boundary, which the route guards
// enforce. Infrastructure failures (store or provider plumbing) return a
// non-nil error. fresh forces the persisted store to be consulted even when
// the session carries a cached verdict.
func (s *Service) Authenticate(ctx context.Context, cred middleware.Credential, fresh bool) (*middleware.CurrentUser, error) {
	switch cred.Kind {
	case middleware.CredentialBearer:
		return s.authenticateBearer(ctx, cred, fresh)
	case middleware.CredentialSession:
		return s.authenticateSession(ctx, cred.SessionToken, fresh)
	default:
		return nil, nil
	}
}

func (s *Service) authenticateBearer(ctx context.Context, cred middleware.Credential, fresh bool) (*middleware.CurrentUser, error) {
	if s.verifier == nil {
		logger.Debug("bearer token presented but no verifier configured")
		return nil, nil
	}

	if revoked, err := sessions.IsAccessTokenBlacklisted(ctx, cred.Bearer); err != nil {
		return nil, err
	} else if revoked {
		logger.Debug("rejected blacklisted bearer token")
		return nil, nil
	}

	vctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()
	tok, err := s.verifier.Verify(vctx, cred.Bearer)
	if err != nil {
		// bad, expired or unverifiable token: downgrade to anonymous
		logger.Debugf("bearer token verification failed: %v", err)
		return nil, nil
	}
	var claims map[string]interface{}
	if err := tok.Claims(&claims); err != nil {
		logger.Debugf("failed to parse token claims: %v", err)
		return nil, nil
	}

	rec, err := s.users.UpsertFromClaims(ctx, claims)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// claims carried no subject
		return nil, nil
	}

	// mirror the resolved identity into the session, if the request also
	// carries one, so later requests can resolve without the provider
	sess := s.loadSession(ctx, cred.SessionToken)

	verdict, err := s.adjudicate(ctx, rec, sess, fresh)
	if err != nil {
		return nil, err
	}
	return currentUser(rec, verdict), nil
}

func (s *Service) authenticateSession(ctx context.Context, cookieValue string, fresh bool) (*middleware.CurrentUser, error) {
	if s.sessions == nil {
		return nil, nil
	}
	sid, err := tokens.ParseSessionToken(s.cfg, cookieValue)
	if err != nil {
		logger.Debugf("invalid session cookie: %v", err)
		return nil, nil
	}
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if sess == nil || sess.UserID == "" {
		return nil, nil
	}
	rec, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// stale session pointing at a deleted record; not trusted for identity
		logger.Debugf("session %s references missing user %s", sid, sess.UserID)
		return nil, nil
	}
	verdict, err := s.adjudicate(ctx, rec, sess, fresh)
	if err != nil {
		return nil, err
	}
	return currentUser(rec, verdict), nil
}

// adjudicate computes the admin verdict for a resolved identity, in strict
// priority order:
//  1. the default admin is admin unconditionally, and a persisted record
//     that disagrees is corrected in place (idempotent self-healing)
//  2. a trustworthy cached session verdict is reused on non-fresh reads
//  3. otherwise the persisted record decides
//
// Computed verdicts are written back into the session so the next request
// short-circuits via the cache.
func (s *Service) adjudicate(ctx context.Context, rec *models.User, sess *sessions.Session, fresh bool) (bool, error) {
	if s.users.IsDefaultAdmin(rec.Email) {
		healed, err := s.users.Heal(ctx, rec)
		if err != nil {
			return false, err
		}
		if healed {
			metrics.AdminSelfHeals.Inc()
			rec.IsAdmin = true
		}
		s.cacheVerdict(ctx, sess, rec, true)
		return true, nil
	}

	if !fresh && sess != nil && sess.UserID == rec.ID && sess.IsAdmin {
		return true, nil
	}

	verdict := rec.IsAdmin
	s.cacheVerdict(ctx, sess, rec, verdict)
	return verdict, nil
}

// cacheVerdict mirrors the identity and verdict into the session. Failures
// here only cost the next request a store lookup, so they are logged, not
// surfaced.
func (s *Service) cacheVerdict(ctx context.Context, sess *sessions.Session, rec *models.User, verdict bool) {
	if sess == nil || s.sessions == nil {
		return
	}
	if sess.UserID == rec.ID && sess.UserEmail == rec.Email && sess.IsAdmin == verdict {
		return
	}
	sess.UserID = rec.ID
	sess.UserEmail = rec.Email
	sess.IsAdmin = verdict
	if err := s.sessions.Update(ctx, sess); err != nil {
		logger.Warnf("failed to cache verdict in session %s: %v", sess.ID, err)
	}
}

// loadSession best-effort parses and loads the session referenced by a
// cookie accompanying a bearer request. Returns nil when absent or invalid.
func (s *Service) loadSession(ctx context.Context, cookieValue string) *sessions.Session {
	if cookieValue == "" || s.sessions == nil {
		return nil
	}
	sid, err := tokens.ParseSessionToken(s.cfg, cookieValue)
	if err != nil {
		return nil
	}
	sess, err := s.sessions.Get(ctx, sid)
	if err != nil {
		logger.Warnf("failed to load session for mirroring: %v", err)
		return nil
	}
	return sess
}

func currentUser(rec *models.User, verdict bool) *middleware.CurrentUser {
	return &middleware.CurrentUser{
		ID:          rec.ID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		PhotoURL:    rec.PhotoURL,
		IsAdmin:     verdict,
	}
}
