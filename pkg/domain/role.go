package domain

import (
	"encoding"
	"strings"
)

// Role is a member's role inside a family. The set is closed; anything else parses to
// RoleUnknown.
type Role int

const (
	RoleUnknown Role = iota
	RoleOwner
	RoleAdmin
	RoleMember
)

var (
	_ encoding.TextMarshaler   = Role(0)
	_ encoding.TextUnmarshaler = (*Role)(nil)
)

// ParseRole maps a role name to a Role, ignoring case and surrounding space.
func ParseRole(s string) Role {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OWNER":
		return RoleOwner
	case "ADMIN":
		return RoleAdmin
	case "MEMBER":
		return RoleMember
	default:
		return RoleUnknown
	}
}

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "OWNER"
	case RoleAdmin:
		return "ADMIN"
	case RoleMember:
		return "MEMBER"
	default:
		return "UNKNOWN"
	}
}

// Known reports whether r is one of the defined family roles.
func (r Role) Known() bool {
	return r != RoleUnknown
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	*r = ParseRole(string(b))
	return nil
}
