package domain

// Permission names one capability of a PermissionSet.
type Permission string

const (
	PermViewFamily    Permission = "canViewFamily"
	PermEditFamily    Permission = "canEditFamily"
	PermInviteMembers Permission = "canInviteMembers"
	PermManageMembers Permission = "canManageMembers"
	PermDeleteFamily  Permission = "canDeleteFamily"
)

// AllPermissions lists every permission in a stable order.
var AllPermissions = []Permission{
	PermViewFamily,
	PermEditFamily,
	PermInviteMembers,
	PermManageMembers,
	PermDeleteFamily,
}

// PermissionSet is the capability vector derived from a family role.
type PermissionSet struct {
	CanViewFamily    bool `json:"canViewFamily"`
	CanEditFamily    bool `json:"canEditFamily"`
	CanInviteMembers bool `json:"canInviteMembers"`
	CanManageMembers bool `json:"canManageMembers"`
	CanDeleteFamily  bool `json:"canDeleteFamily"`
}

// NoPermissions is the all-false set.
var NoPermissions = PermissionSet{}

// Has reports whether the named permission is granted. Unknown names are never granted.
func (p PermissionSet) Has(perm Permission) bool {
	switch perm {
	case PermViewFamily:
		return p.CanViewFamily
	case PermEditFamily:
		return p.CanEditFamily
	case PermInviteMembers:
		return p.CanInviteMembers
	case PermManageMembers:
		return p.CanManageMembers
	case PermDeleteFamily:
		return p.CanDeleteFamily
	default:
		return false
	}
}

// Permissions returns the capabilities granted by r.
func (r Role) Permissions() PermissionSet {
	switch r {
	case RoleOwner:
		return PermissionSet{
			CanViewFamily:    true,
			CanEditFamily:    true,
			CanInviteMembers: true,
			CanManageMembers: true,
			CanDeleteFamily:  true,
		}
	case RoleAdmin:
		return PermissionSet{
			CanViewFamily:    true,
			CanEditFamily:    true,
			CanInviteMembers: true,
			CanManageMembers: true,
		}
	case RoleMember:
		return PermissionSet{CanViewFamily: true}
	case RoleUnknown:
		return NoPermissions
	default:
		return NoPermissions
	}
}

// CalculatePermissions derives the permission set for a role name. Matching is
// case-insensitive; empty or unrecognised roles get no permissions.
func CalculatePermissions(role string) PermissionSet {
	return ParseRole(role).Permissions()
}
