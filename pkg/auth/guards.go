package auth

import (
	"strings"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

// Verified is what a guard hands back on success. Family is nil only from
// guards that do not require one.
type Verified struct {
	User        domain.User
	Family      *domain.Family
	Permissions domain.PermissionSet
}

func verified(c Context) Verified {
	v := Verified{Family: c.Family(), Permissions: c.permissions}
	if u := c.User(); u != nil {
		v.User = *u
	}
	return v
}

func RequireAuth(c Context) (Verified, error) {
	if !c.authenticated || c.user == nil {
		return Verified{}, ErrUnauthenticated
	}
	return verified(c), nil
}

func RequireFamily(c Context) (Verified, error) {
	v, err := RequireAuth(c)
	if err != nil {
		return Verified{}, err
	}
	if v.Family == nil {
		return Verified{}, ErrNoFamilyMembership
	}
	return v, nil
}

func RequirePermission(c Context, perm domain.Permission) (Verified, error) {
	v, err := RequireFamily(c)
	if err != nil {
		return Verified{}, err
	}
	if !v.Permissions.Has(perm) {
		return Verified{}, permissionDenied(perm)
	}
	return v, nil
}

func RequireFamilyAccess(c Context, familyID string) (Verified, error) {
	v, err := RequireFamily(c)
	if err != nil {
		return Verified{}, err
	}
	if !SameID(v.Family.ID, familyID) {
		return Verified{}, ErrCrossTenantAccess
	}
	return v, nil
}

// RequireSelfOrAdmin passes for the target user themself, or for callers
// allowed to manage members.
func RequireSelfOrAdmin(c Context, userID string) (Verified, error) {
	v, err := RequireAuth(c)
	if err != nil {
		return Verified{}, err
	}
	if SameID(v.User.ID, userID) {
		return v, nil
	}
	if v.Permissions.CanManageMembers {
		return v, nil
	}
	return Verified{}, ErrAccessDenied
}

func RequireEmailVerified(c Context) (Verified, error) {
	v, err := RequireAuth(c)
	if err != nil {
		return Verified{}, err
	}
	if !v.User.IsEmailVerified {
		return Verified{}, ErrEmailNotVerified
	}
	return v, nil
}

// SameID compares identifiers after trimming surrounding space. Ids are
// case-sensitive. Empty ids never match.
func SameID(a, b string) bool {
	a = strings.TrimSpace(a)
	b = strings.TrimSpace(b)
	return a != "" && a == b
}
