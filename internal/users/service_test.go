package users

import (
	"context"
	"testing"
)

const defaultAdmin = "owner@tewahedanswers.com"

func seed(t *testing.T, repo *MemoryUserRepository, id, email string, isAdmin bool) {
	t.Helper()
	_, err := repo.Upsert(context.Background(), newUser(id, email))
	if err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	if isAdmin {
		if _, err := repo.SetAdmin(context.Background(), id, true); err != nil {
			t.Fatalf("seed setadmin: %v", err)
		}
	}
}

func TestUpsertFromClaims(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	u, err := svc.UpsertFromClaims(ctx, map[string]interface{}{
		"sub":   "uid-1",
		"email": "alice@example.com",
		"name":  "Alice",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u == nil {
		t.Fatal("expected user, got nil")
	}
	if u.ID != "uid-1" || u.Email != "alice@example.com" || u.DisplayName != "Alice" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.IsAdmin {
		t.Fatal("plain user should not be admin")
	}
	if u.CreatedAt.IsZero() || u.UpdatedAt.IsZero() {
		t.Fatalf("expected timestamps to be set: %+v", u)
	}

	// missing sub => (nil, nil)
	u2, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"email": "y@e.com"})
	if err != nil {
		t.Fatalf("unexpected error on missing sub: %v", err)
	}
	if u2 != nil {
		t.Fatalf("expected nil when sub missing, got: %+v", u2)
	}
}

func TestUpsertFromClaims_NameFallsBackToEmailLocalPart(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)

	u, err := svc.UpsertFromClaims(context.Background(), map[string]interface{}{
		"sub":   "uid-2",
		"email": "bob@example.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u.DisplayName != "bob" {
		t.Fatalf("expected display name 'bob', got %q", u.DisplayName)
	}
}

func TestUpsertFromClaims_DefaultAdminAlwaysAdmin(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	// address differs only in case from the configured one
	u, err := svc.UpsertFromClaims(ctx, map[string]interface{}{
		"sub":   "uid-root",
		"email": "Owner@TewahedAnswers.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !u.IsAdmin {
		t.Fatal("default admin must resolve as admin regardless of email case")
	}
	// email stored verbatim
	if u.Email != "Owner@TewahedAnswers.com" {
		t.Fatalf("email should be stored verbatim, got %q", u.Email)
	}
}

func TestUpsertFromClaims_RepeatDoesNotDuplicate(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()
	claims := map[string]interface{}{"sub": "uid-3", "email": "carol@example.com", "name": "Carol"}

	if _, err := svc.UpsertFromClaims(ctx, claims); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := svc.UpsertFromClaims(ctx, claims); err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 user after re-resolving same identity, got %d", len(list))
	}
}

func TestUpsert_AdminFlagIsSticky(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	seed(t, repo, "uid-4", "dave@example.com", true)

	// re-resolving must not silently demote; only SetAdmin does that
	u, err := svc.UpsertFromClaims(ctx, map[string]interface{}{"sub": "uid-4", "email": "dave@example.com"})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !u.IsAdmin {
		t.Fatal("upsert must not demote an existing admin")
	}
}

func TestHeal(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	seed(t, repo, "uid-root", defaultAdmin, false)
	rec, _ := repo.GetByID(ctx, "uid-root")

	healed, err := svc.Heal(ctx, rec)
	if err != nil {
		t.Fatalf("heal: %v", err)
	}
	if !healed {
		t.Fatal("expected a correction to be written")
	}
	got, _ := repo.GetByID(ctx, "uid-root")
	if !got.IsAdmin {
		t.Fatal("persisted record not corrected")
	}

	// idempotent: second call is a no-op
	healed2, err := svc.Heal(ctx, got)
	if err != nil {
		t.Fatalf("heal: %v", err)
	}
	if healed2 {
		t.Fatal("expected no correction when record already agrees")
	}

	// never heals somebody else's record
	seed(t, repo, "uid-5", "eve@example.com", false)
	other, _ := repo.GetByID(ctx, "uid-5")
	healed3, err := svc.Heal(ctx, other)
	if err != nil || healed3 {
		t.Fatalf("heal must not touch non-default-admin records: healed=%v err=%v", healed3, err)
	}
}

func TestSetAdmin_Promote(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	seed(t, repo, "admin-1", "boss@example.com", true)
	seed(t, repo, "uid-6", "frank@example.com", false)

	u, err := svc.SetAdmin(ctx, "admin-1", "uid-6", true)
	if err != nil {
		t.Fatalf("promote: %v", err)
	}
	if !u.IsAdmin {
		t.Fatal("target not promoted")
	}
}

func TestSetAdmin_UnknownTarget(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)

	_, err := svc.SetAdmin(context.Background(), "admin-1", "nope", true)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetAdmin_SelfDemotionRejected(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	seed(t, repo, "admin-1", "boss@example.com", true)
	seed(t, repo, "admin-2", "other@example.com", true)

	_, err := svc.SetAdmin(ctx, "admin-1", "admin-1", false)
	if err != ErrSelfDemotion {
		t.Fatalf("expected ErrSelfDemotion, got %v", err)
	}
	// self "demotion" to true is fine (no-op promotion)
	if _, err := svc.SetAdmin(ctx, "admin-1", "admin-1", true); err != nil {
		t.Fatalf("self promotion should pass: %v", err)
	}
}

func TestSetAdmin_DefaultAdminDemotionRejected(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	// stored with different case than configured
	seed(t, repo, "uid-root", "OWNER@tewahedanswers.com", true)
	seed(t, repo, "admin-1", "boss@example.com", true)

	_, err := svc.SetAdmin(ctx, "admin-1", "uid-root", false)
	if err != ErrDefaultAdminDemotion {
		t.Fatalf("expected ErrDefaultAdminDemotion, got %v", err)
	}
}

func TestSetAdmin_LastAdminDemotionRejected(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	seed(t, repo, "admin-1", "boss@example.com", true)
	seed(t, repo, "admin-2", "other@example.com", true)
	seed(t, repo, "uid-7", "grace@example.com", false)

	// two admins: admin-1 demotes admin-2, fine
	u, err := svc.SetAdmin(ctx, "admin-1", "admin-2", false)
	if err != nil {
		t.Fatalf("demotion with another admin present should pass: %v", err)
	}
	if u.IsAdmin {
		t.Fatal("target still admin")
	}

	// admin-1 is now the last admin; nobody can demote them
	_, err = svc.SetAdmin(ctx, "admin-2", "admin-1", false)
	if err != ErrLastAdmin {
		t.Fatalf("expected ErrLastAdmin, got %v", err)
	}
}

func TestEnsureDefaultAdmin(t *testing.T) {
	repo := NewMemoryUserRepository()
	svc := NewService(repo, defaultAdmin)
	ctx := context.Background()

	// no record yet: nothing to do, no error
	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("ensure with no record: %v", err)
	}

	seed(t, repo, "uid-root", defaultAdmin, false)
	if err := svc.EnsureDefaultAdmin(ctx); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	got, _ := repo.GetByID(ctx, "uid-root")
	if !got.IsAdmin {
		t.Fatal("default admin record not restored at startup")
	}
}
