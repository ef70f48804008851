package token

import (
	"fmt"
	"strings"
)

// Purpose selects the audience, secret and lifetime of a token.
type Purpose int

const (
	PurposeAccess Purpose = iota
	PurposeRefresh
	PurposeInvitation
	PurposeEmailVerification
	PurposePasswordReset
)

// Purposes lists every purpose in declaration order.
var Purposes = []Purpose{
	PurposeAccess,
	PurposeRefresh,
	PurposeInvitation,
	PurposeEmailVerification,
	PurposePasswordReset,
}

// Audience returns the aud claim for the purpose.
func (p Purpose) Audience() string {
	switch p {
	case PurposeAccess:
		return "app-access"
	case PurposeRefresh:
		return "app-refresh"
	case PurposeInvitation:
		return "family-invitation"
	case PurposeEmailVerification:
		return "email-verification"
	case PurposePasswordReset:
		return "password-reset"
	default:
		return ""
	}
}

func (p Purpose) String() string {
	switch p {
	case PurposeAccess:
		return "access"
	case PurposeRefresh:
		return "refresh"
	case PurposeInvitation:
		return "invitation"
	case PurposeEmailVerification:
		return "email-verification"
	case PurposePasswordReset:
		return "password-reset"
	default:
		return fmt.Sprintf("purpose(%d)", int(p))
	}
}

func (p Purpose) valid() bool {
	return p.Audience() != ""
}

// ParsePurpose accepts either the short name ("access") or the audience tag
// ("app-access").
func ParsePurpose(s string) (Purpose, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, p := range Purposes {
		if s == p.String() || s == p.Audience() {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown token purpose: %q", s)
}
