package sessions

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Service wraps repository operations with business logic.
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service { return &Service{repo: r} }

// Create stores a new session for the user and returns it. The session
// carries the identity and the verdict current at login time; the verdict
// part is a cache and gets refreshed on later requests.
func (s *Service) Create(ctx context.Context, userID, userEmail string, isAdmin bool, ttl time.Duration) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &Session{
		ID:        id,
		UserID:    userID,
		UserEmail: userEmail,
		IsAdmin:   isAdmin,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Get returns the session if it exists and has not expired, nil otherwise.
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.repo.GetByID(ctx, id)
}

// Update rewrites a session in place (identity mirroring, verdict caching).
func (s *Service) Update(ctx context.Context, sess *Session) error {
	return s.repo.Update(ctx, sess)
}

// Destroy removes the session. Used on logout.
func (s *Service) Destroy(ctx context.Context, id string) error {
	return s.repo.DeleteByID(ctx, id)
}

// generateSessionID produces a cryptographically random opaque session id.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
