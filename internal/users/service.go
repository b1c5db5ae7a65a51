package users

import (
	"context"
	"strings"

	"github.com/tewahedanswers/answers/backend/go-services/internal/models"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/logger"
)

// Service encapsulates user-related business logic, including the admin
// privilege-mutation protocol.
type Service struct {
	repo              UserRepository
	defaultAdminEmail string
}

// NewService creates a Service. defaultAdminEmail is the single deploy-time
// address that is always an administrator.
func NewService(r UserRepository, defaultAdminEmail string) *Service {
	return &Service{repo: r, defaultAdminEmail: defaultAdminEmail}
}

// IsDefaultAdmin reports whether email is the configured default admin.
// Comparison is case-insensitive, uniformly.
func (s *Service) IsDefaultAdmin(email string) bool {
	return email != "" && strings.EqualFold(email, s.defaultAdminEmail)
}

func (s *Service) DefaultAdminEmail() string { return s.defaultAdminEmail }

// UpsertFromClaims creates or updates a user from verified ID-token claims.
// Returns (nil, nil) when the claims carry no subject. The record is matched
// by id first, then by email; the default admin is always written as admin.
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*models.User, error) {
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	name, _ := claims["name"].(string)
	picture, _ := claims["picture"].(string)
	if sub == "" {
		return nil, nil
	}
	if name == "" && email != "" {
		if i := strings.IndexByte(email, '@'); i > 0 {
			name = email[:i]
		}
	}
	u := &models.User{
		ID:          sub,
		Email:       email,
		DisplayName: name,
		PhotoURL:    picture,
		IsAdmin:     s.IsDefaultAdmin(email),
	}
	return s.repo.Upsert(ctx, u)
}

func (s *Service) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	return s.repo.List(ctx)
}

func (s *Service) SetPhotoURL(ctx context.Context, id, photoURL string) (*models.User, error) {
	return s.repo.SetPhotoURL(ctx, id, photoURL)
}

// Heal forces the persisted record for the default admin back to
// isAdmin=true. Idempotent: a record that already agrees is left untouched.
// Returns true when a correction was written.
func (s *Service) Heal(ctx context.Context, rec *models.User) (bool, error) {
	if rec == nil || !s.IsDefaultAdmin(rec.Email) || rec.IsAdmin {
		return false, nil
	}
	if _, err := s.repo.SetAdmin(ctx, rec.ID, true); err != nil {
		return false, err
	}
	logger.Warnf("corrected default admin record to isAdmin=true: %s", rec.Email)
	return true, nil
}

// SetAdmin applies the privilege-mutation protocol on behalf of callerID.
// All preconditions must hold or a sentinel error is returned:
//   - the default admin can never be demoted, by anyone
//   - callers cannot revoke their own admin flag
//   - the last remaining admin cannot be demoted (checked atomically
//     against the store)
func (s *Service) SetAdmin(ctx context.Context, callerID, targetID string, isAdmin bool) (*models.User, error) {
	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, ErrNotFound
	}

	if isAdmin {
		return s.repo.SetAdmin(ctx, targetID, true)
	}

	if s.IsDefaultAdmin(target.Email) {
		return nil, ErrDefaultAdminDemotion
	}
	if targetID == callerID {
		return nil, ErrSelfDemotion
	}
	return s.repo.DemoteAdminGuarded(ctx, targetID)
}

// EnsureDefaultAdmin heals the default admin's record at startup if one
// exists. A missing record is fine: it is created lazily on the admin's
// first authenticated request.
func (s *Service) EnsureDefaultAdmin(ctx context.Context) error {
	rec, err := s.repo.GetByEmail(ctx, s.defaultAdminEmail)
	if err != nil {
		return err
	}
	if rec != nil && !rec.IsAdmin {
		if _, err := s.repo.SetAdmin(ctx, rec.ID, true); err != nil {
			return err
		}
		logger.Infof("restored admin privileges for default admin: %s", s.defaultAdminEmail)
	}
	return nil
}
