package authz

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/tewahedanswers/answers/backend/go-services/internal/config"
	"github.com/tewahedanswers/answers/backend/go-services/internal/models"
	"github.com/tewahedanswers/answers/backend/go-services/internal/sessions"
	"github.com/tewahedanswers/answers/backend/go-services/internal/tokens"
	"github.com/tewahedanswers/answers/backend/go-services/internal/users"
	"github.com/tewahedanswers/answers/backend/go-services/pkg/middleware"
)

const defaultAdmin = "owner@tewahedanswers.com"

type fakeToken struct{ claims map[string]interface{} }

func (f *fakeToken) Claims(v interface{}) error {
	b, err := json.Marshal(f.claims)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

type fakeVerifier struct {
	claims map[string]interface{}
	err    error
}

func (f *fakeVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fakeToken{claims: f.claims}, nil
}

// newFixture wires the pipeline against a memory user store and a
// miniredis-backed session store.
func newFixture(t *testing.T, verifier middleware.Verifier) (*Service, *users.MemoryUserRepository, *sessions.Service, *config.Config) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	sessSvc := sessions.NewService(sessions.NewRedisRepository(client, "test:session:"))

	repo := users.NewMemoryUserRepository()
	userSvc := users.NewService(repo, defaultAdmin)
	cfg := &config.Config{Session: config.SessionConfig{Secret: "test-secret-32-bytes-xxxxxxxxxxx", TTL: time.Hour}}
	return NewService(verifier, userSvc, sessSvc, cfg), repo, sessSvc, cfg
}

func newUserRecord(id, email string) *models.User {
	return &models.User{ID: id, Email: email}
}

func bearerCred(token string) middleware.Credential {
	return middleware.Credential{Kind: middleware.CredentialBearer, Bearer: token}
}

func sessionCred(cookie string) middleware.Credential {
	return middleware.Credential{Kind: middleware.CredentialSession, SessionToken: cookie}
}

func TestAuthenticate_NoCredential(t *testing.T) {
	svc, _, _, _ := newFixture(t, &fakeVerifier{})
	u, err := svc.Authenticate(context.Background(), middleware.Credential{}, false)
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestAuthenticate_BearerHappyPath(t *testing.T) {
	svc, repo, _, _ := newFixture(t, &fakeVerifier{claims: map[string]interface{}{
		"sub": "uid-1", "email": "alice@example.com", "name": "Alice",
	}})
	ctx := context.Background()

	u, err := svc.Authenticate(ctx, bearerCred("tok"), false)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "uid-1", u.ID)
	require.False(t, u.IsAdmin)

	// the record was persisted on first resolution
	rec, err := repo.GetByID(ctx, "uid-1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "alice@example.com", rec.Email)
}

func TestAuthenticate_BearerUnverifiableIsAnonymous(t *testing.T) {
	svc, _, _, _ := newFixture(t, &fakeVerifier{err: errors.New("token expired")})
	u, err := svc.Authenticate(context.Background(), bearerCred("bad"), false)
	require.NoError(t, err, "a bad token must not error the request")
	require.Nil(t, u)
}

func TestAuthenticate_BearerNoVerifier(t *testing.T) {
	svc, _, _, _ := newFixture(t, nil)
	u, err := svc.Authenticate(context.Background(), bearerCred("tok"), false)
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestAuthenticate_BlacklistedBearerIsAnonymous(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	sessions.SetBlacklistClient(client)
	defer sessions.SetBlacklistClient(nil)

	svc, _, _, _ := newFixture(t, &fakeVerifier{claims: map[string]interface{}{
		"sub": "uid-1", "email": "alice@example.com",
	}})
	ctx := context.Background()

	require.NoError(t, sessions.BlacklistAccessToken(ctx, "revoked", time.Minute))

	u, err := svc.Authenticate(ctx, bearerCred("revoked"), false)
	require.NoError(t, err)
	require.Nil(t, u)

	// a different token still resolves
	u2, err := svc.Authenticate(ctx, bearerCred("fine"), false)
	require.NoError(t, err)
	require.NotNil(t, u2)
}

func TestAuthenticate_DefaultAdminSelfHeals(t *testing.T) {
	svc, repo, _, _ := newFixture(t, &fakeVerifier{claims: map[string]interface{}{
		"sub": "uid-root", "email": "Owner@TewahedAnswers.com",
	}})
	ctx := context.Background()

	// a corrupted record: default admin persisted with isAdmin=false
	_, err := repo.Upsert(ctx, newUserRecord("uid-root", "Owner@TewahedAnswers.com"))
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, bearerCred("tok"), false)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.True(t, u.IsAdmin, "default admin must adjudicate as admin despite the stored flag")

	rec, err := repo.GetByID(ctx, "uid-root")
	require.NoError(t, err)
	require.True(t, rec.IsAdmin, "the stored record must be healed in place")
}

func TestAuthenticate_SessionHappyPath(t *testing.T) {
	svc, repo, sessSvc, cfg := newFixture(t, nil)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, newUserRecord("uid-1", "alice@example.com"))
	require.NoError(t, err)
	sess, err := sessSvc.Create(ctx, "uid-1", "alice@example.com", false, time.Hour)
	require.NoError(t, err)
	cookie, err := tokens.GenerateSessionToken(cfg, sess.ID, time.Hour)
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, sessionCred(cookie), false)
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, "uid-1", u.ID)
}

func TestAuthenticate_SessionCachedVerdictOnReads(t *testing.T) {
	svc, repo, sessSvc, cfg := newFixture(t, nil)
	ctx := context.Background()

	// persisted record says non-admin, session still carries an admin verdict
	_, err := repo.Upsert(ctx, newUserRecord("uid-1", "alice@example.com"))
	require.NoError(t, err)
	sess, err := sessSvc.Create(ctx, "uid-1", "alice@example.com", true, time.Hour)
	require.NoError(t, err)
	cookie, err := tokens.GenerateSessionToken(cfg, sess.ID, time.Hour)
	require.NoError(t, err)

	// plain read trusts the cached verdict
	u, err := svc.Authenticate(ctx, sessionCred(cookie), false)
	require.NoError(t, err)
	require.True(t, u.IsAdmin)

	// fresh adjudication consults the store and corrects the cache
	u2, err := svc.Authenticate(ctx, sessionCred(cookie), true)
	require.NoError(t, err)
	require.False(t, u2.IsAdmin)

	refreshed, err := sessSvc.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.False(t, refreshed.IsAdmin, "fresh verdict must be written back into the session")

	// and the cache now agrees on plain reads too
	u3, err := svc.Authenticate(ctx, sessionCred(cookie), false)
	require.NoError(t, err)
	require.False(t, u3.IsAdmin)
}

func TestAuthenticate_SessionVerdictWriteBack(t *testing.T) {
	svc, repo, sessSvc, cfg := newFixture(t, nil)
	ctx := context.Background()

	rec, err := repo.Upsert(ctx, newUserRecord("uid-1", "alice@example.com"))
	require.NoError(t, err)
	_, err = repo.SetAdmin(ctx, rec.ID, true)
	require.NoError(t, err)

	// session created before the promotion, non-admin verdict cached
	sess, err := sessSvc.Create(ctx, "uid-1", "alice@example.com", false, time.Hour)
	require.NoError(t, err)
	cookie, err := tokens.GenerateSessionToken(cfg, sess.ID, time.Hour)
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, sessionCred(cookie), false)
	require.NoError(t, err)
	require.True(t, u.IsAdmin, "a false cached verdict is never trusted over the store")

	refreshed, err := sessSvc.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.True(t, refreshed.IsAdmin)
}

func TestAuthenticate_StaleSessionIsAnonymous(t *testing.T) {
	svc, _, sessSvc, cfg := newFixture(t, nil)
	ctx := context.Background()

	// session references a user that was never persisted
	sess, err := sessSvc.Create(ctx, "ghost", "ghost@example.com", false, time.Hour)
	require.NoError(t, err)
	cookie, err := tokens.GenerateSessionToken(cfg, sess.ID, time.Hour)
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, sessionCred(cookie), false)
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestAuthenticate_TamperedCookieIsAnonymous(t *testing.T) {
	svc, _, _, _ := newFixture(t, nil)
	ctx := context.Background()

	otherCfg := &config.Config{Session: config.SessionConfig{Secret: "a-completely-different-secret!!!"}}
	cookie, err := tokens.GenerateSessionToken(otherCfg, "some-session", time.Hour)
	require.NoError(t, err)

	u, err := svc.Authenticate(ctx, sessionCred(cookie), false)
	require.NoError(t, err)
	require.Nil(t, u)

	u2, err := svc.Authenticate(ctx, sessionCred("garbage"), false)
	require.NoError(t, err)
	require.Nil(t, u2)
}

func TestAuthenticate_BearerMirrorsIntoSession(t *testing.T) {
	svc, _, sessSvc, cfg := newFixture(t, &fakeVerifier{claims: map[string]interface{}{
		"sub": "uid-1", "email": "alice@example.com",
	}})
	ctx := context.Background()

	// an existing session that does not yet know the identity
	sess, err := sessSvc.Create(ctx, "", "", false, time.Hour)
	require.NoError(t, err)
	cookie, err := tokens.GenerateSessionToken(cfg, sess.ID, time.Hour)
	require.NoError(t, err)

	cred := middleware.Credential{Kind: middleware.CredentialBearer, Bearer: "tok", SessionToken: cookie}
	u, err := svc.Authenticate(ctx, cred, false)
	require.NoError(t, err)
	require.NotNil(t, u)

	mirrored, err := sessSvc.Get(ctx, sess.ID)
	require.NoError(t, err)
	require.Equal(t, "uid-1", mirrored.UserID)
	require.Equal(t, "alice@example.com", mirrored.UserEmail)
}
