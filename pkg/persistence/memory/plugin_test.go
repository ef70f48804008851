package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
)

const seed = `{
  "families": [{"id": "fam-1", "name": "Silva", "ownerId": "u-1", "isActive": true}],
  "users": [
    {"id": "u-1", "email": "Ana@Example.com", "isActive": true, "isEmailVerified": true,
     "familyId": "fam-1", "roleInFamily": "OWNER", "passwordHash": "$2a$10$hash"},
    {"id": "u-2", "email": "bruno@example.com", "isActive": false}
  ]
}`

func TestMemoryPluginSeed(t *testing.T) {
	dir, err := persistence.NewDirectory(
		persistence.ProviderConfig{Type: "memory", Config: []byte(seed)},
		persistence.PluginConfig{},
	)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	defer dir.Close()
	ctx := context.Background()

	if err := dir.Health(ctx); err != nil {
		t.Errorf("Health check failed: %v", err)
	}

	u, err := dir.FindUserByID(ctx, "u-1")
	if err != nil {
		t.Fatalf("FindUserByID: %v", err)
	}
	if u.PasswordHash != "$2a$10$hash" || u.FamilyID != "fam-1" || u.RoleInFamily != "OWNER" {
		t.Fatalf("unexpected user: %+v", u)
	}

	byEmail, err := dir.FindUserByEmail(ctx, "  ana@EXAMPLE.com ")
	if err != nil || byEmail.ID != "u-1" {
		t.Fatalf("FindUserByEmail = %+v, %v", byEmail, err)
	}

	f, err := dir.FindFamilyByID(ctx, "fam-1")
	if err != nil || f.OwnerID != "u-1" || !f.IsActive {
		t.Fatalf("FindFamilyByID = %+v, %v", f, err)
	}
}

func TestMemoryPluginNotFound(t *testing.T) {
	p := New()
	ctx := context.Background()
	if _, err := p.FindUserByID(ctx, "nope"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("FindUserByID err = %v", err)
	}
	if _, err := p.FindUserByEmail(ctx, "nope@example.com"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("FindUserByEmail err = %v", err)
	}
	if _, err := p.FindFamilyByID(ctx, "nope"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("FindFamilyByID err = %v", err)
	}
}

func TestMemoryPluginReturnsCopies(t *testing.T) {
	p := New()
	if err := p.AddUser(domain.User{ID: "u-1", Email: "a@example.com", IsActive: true}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	u, _ := p.FindUserByID(context.Background(), "u-1")
	u.IsActive = false
	again, _ := p.FindUserByID(context.Background(), "u-1")
	if !again.IsActive {
		t.Fatalf("mutation of returned user leaked into the store")
	}
}

func TestMemoryPluginDuplicates(t *testing.T) {
	p := New()
	if err := p.AddUser(domain.User{ID: "u-1", Email: "a@example.com"}); err != nil {
		t.Fatalf("AddUser: %v", err)
	}
	if err := p.AddUser(domain.User{ID: "u-1", Email: "b@example.com"}); !errors.Is(err, persistence.ErrAlreadyExists) {
		t.Errorf("duplicate id err = %v", err)
	}
	if err := p.AddUser(domain.User{ID: "u-2", Email: "A@example.com"}); !errors.Is(err, persistence.ErrAlreadyExists) {
		t.Errorf("duplicate email err = %v", err)
	}
	if err := p.AddFamily(domain.Family{ID: "f"}); err != nil {
		t.Fatalf("AddFamily: %v", err)
	}
	if err := p.AddFamily(domain.Family{ID: "f"}); !errors.Is(err, persistence.ErrAlreadyExists) {
		t.Errorf("duplicate family err = %v", err)
	}
}

func TestMemoryPluginPutUserReindexesEmail(t *testing.T) {
	p := New()
	p.PutUser(domain.User{ID: "u-1", Email: "old@example.com"})
	p.PutUser(domain.User{ID: "u-1", Email: "new@example.com"})
	ctx := context.Background()
	if _, err := p.FindUserByEmail(ctx, "old@example.com"); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("old email still indexed: %v", err)
	}
	if u, err := p.FindUserByEmail(ctx, "new@example.com"); err != nil || u.ID != "u-1" {
		t.Errorf("FindUserByEmail(new) = %+v, %v", u, err)
	}
}

func TestMemoryPluginHonoursContext(t *testing.T) {
	p := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.FindUserByID(ctx, "u"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
