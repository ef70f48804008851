package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osvaldoandrade/budgetauth/internal/repository"
	"github.com/osvaldoandrade/budgetauth/pkg/auth"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence/memory"
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

type invitationEnv struct {
	clk         *testClock
	codec       *token.Codec
	dir         *memory.Plugin
	revocations RevocationService
	svc         InvitationService
	inviter     auth.Verified
}

func setupInvitations(t *testing.T) *invitationEnv {
	t.Helper()
	clk := newTestClock()
	codec := newTestCodec(t, clk)
	dir := memory.New()
	family := domain.Family{ID: "fam-1", Name: "Silva", OwnerID: "owner", IsActive: true}
	owner := domain.User{ID: "owner", Email: "owner@example.com", IsActive: true, FamilyID: "fam-1", RoleInFamily: "OWNER"}
	require.NoError(t, dir.AddFamily(family))
	require.NoError(t, dir.AddUser(owner))

	revocations := NewRevocationService(repository.NewMemoryKV(clk.Now), codec, newDiscardLogger(), clk.Now, time.Second)
	return &invitationEnv{
		clk:         clk,
		codec:       codec,
		dir:         dir,
		revocations: revocations,
		svc:         NewInvitationService(codec, revocations, dir, newDiscardLogger()),
		inviter: auth.Verified{
			User:        owner,
			Family:      &family,
			Permissions: domain.RoleOwner.Permissions(),
		},
	}
}

func TestCreateAndPreviewInvitation(t *testing.T) {
	env := setupInvitations(t)
	ctx := context.Background()

	inv, err := env.svc.Create(ctx, env.inviter, " New.Member@Example.com ", domain.RoleMember)
	require.NoError(t, err)
	require.NotEmpty(t, inv.Token)
	assert.Equal(t, "new.member@example.com", inv.Email)
	assert.Equal(t, "MEMBER", inv.Role)
	assert.Equal(t, "owner", inv.InvitedBy)
	assert.Equal(t, env.clk.Now().Add(token.DefaultInvitationTTL), inv.ExpiresAt)

	preview, err := env.svc.Preview(ctx, inv.Token)
	require.NoError(t, err)
	assert.Empty(t, preview.Token)
	assert.Equal(t, "fam-1", preview.FamilyID)
	assert.Equal(t, "Silva", preview.FamilyName)
	assert.Equal(t, "new.member@example.com", preview.Email)
	assert.Equal(t, "MEMBER", preview.Role)
	assert.Equal(t, "owner", preview.InvitedBy)
	assert.True(t, inv.ExpiresAt.Equal(preview.ExpiresAt))
}

func TestCreateInvitationRoles(t *testing.T) {
	env := setupInvitations(t)
	ctx := context.Background()

	_, err := env.svc.Create(ctx, env.inviter, "a@example.com", domain.RoleAdmin)
	assert.NoError(t, err)
	_, err = env.svc.Create(ctx, env.inviter, "a@example.com", domain.RoleOwner)
	assert.ErrorIs(t, err, ErrRoleNotInvitable)
	_, err = env.svc.Create(ctx, env.inviter, "a@example.com", domain.RoleUnknown)
	assert.ErrorIs(t, err, ErrRoleNotInvitable)
}

func TestCreateInvitationWithoutFamily(t *testing.T) {
	env := setupInvitations(t)
	_, err := env.svc.Create(context.Background(), auth.Verified{User: env.inviter.User}, "a@example.com", domain.RoleMember)
	assert.ErrorIs(t, err, auth.ErrNoFamilyMembership)
}

func TestPreviewInvitationRejects(t *testing.T) {
	env := setupInvitations(t)
	ctx := context.Background()

	access, _, err := env.codec.Issue(token.PurposeAccess, token.Subject{UserID: "owner", FamilyID: "fam-1", Role: "MEMBER"})
	require.NoError(t, err)
	_, err = env.svc.Preview(ctx, access)
	assert.ErrorIs(t, err, ErrInvalidInvitation, "access token presented as invitation")

	_, err = env.svc.Preview(ctx, "  ")
	assert.ErrorIs(t, err, ErrInvalidInvitation)

	owner, _, err := env.codec.Issue(token.PurposeInvitation, token.Subject{FamilyID: "fam-1", Role: "OWNER"})
	require.NoError(t, err)
	_, err = env.svc.Preview(ctx, owner)
	assert.ErrorIs(t, err, ErrInvalidInvitation, "owner role")

	missing, _, err := env.codec.Issue(token.PurposeInvitation, token.Subject{FamilyID: "fam-gone", Role: "MEMBER"})
	require.NoError(t, err)
	_, err = env.svc.Preview(ctx, missing)
	assert.ErrorIs(t, err, ErrInvalidInvitation, "missing family")

	inv, err := env.svc.Create(ctx, env.inviter, "b@example.com", domain.RoleMember)
	require.NoError(t, err)
	env.dir.PutFamily(domain.Family{ID: "fam-1", OwnerID: "owner", IsActive: false})
	_, err = env.svc.Preview(ctx, inv.Token)
	assert.ErrorIs(t, err, ErrInvalidInvitation, "inactive family")
}

func TestPreviewRevokedInvitation(t *testing.T) {
	env := setupInvitations(t)
	ctx := context.Background()
	inv, err := env.svc.Create(ctx, env.inviter, "c@example.com", domain.RoleMember)
	require.NoError(t, err)

	_, err = env.revocations.Revoke(ctx, inv.Token, ReasonAdmin)
	require.NoError(t, err)
	_, err = env.svc.Preview(ctx, inv.Token)
	assert.ErrorIs(t, err, ErrInvalidInvitation)
}

func TestPreviewExpiredInvitation(t *testing.T) {
	env := setupInvitations(t)
	ctx := context.Background()
	inv, err := env.svc.Create(ctx, env.inviter, "d@example.com", domain.RoleMember)
	require.NoError(t, err)

	env.clk.Advance(token.DefaultInvitationTTL + time.Second)
	_, err = env.svc.Preview(ctx, inv.Token)
	assert.ErrorIs(t, err, ErrInvalidInvitation)
}
