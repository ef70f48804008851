package auth

import (
	"context"
	"encoding/json"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

// FailureKind classifies why a request ended up unauthenticated.
type FailureKind int

const (
	// FailureNone: authenticated, or anonymous without a credential.
	FailureNone FailureKind = iota
	FailureMalformedHeader
	FailureRevoked
	FailureInvalidToken
	FailureMissingUserID
	FailureUserNotFound
	FailureUserInactive
	FailureInternal
)

// Message is the caller-visible description of the failure.
func (k FailureKind) Message() string {
	switch k {
	case FailureNone:
		return ""
	case FailureMalformedHeader:
		return "Invalid authorization header format"
	case FailureRevoked:
		return "Token has been revoked"
	case FailureInvalidToken:
		return "Invalid token"
	case FailureMissingUserID:
		return "Invalid token payload: missing userId"
	case FailureUserNotFound:
		return "User not found"
	case FailureUserInactive:
		return "User account is deactivated"
	default:
		return "Authentication failed"
	}
}

// String is a stable identifier for logs and metrics.
func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureMalformedHeader:
		return "malformed_header"
	case FailureRevoked:
		return "revoked"
	case FailureInvalidToken:
		return "invalid_token"
	case FailureMissingUserID:
		return "missing_user_id"
	case FailureUserNotFound:
		return "user_not_found"
	case FailureUserInactive:
		return "user_inactive"
	default:
		return "internal"
	}
}

// Context is the per-request authorization state. It is an immutable value:
// accessors hand out copies, so guards and handlers cannot alter it.
type Context struct {
	authenticated bool
	user          *domain.User
	family        *domain.Family
	permissions   domain.PermissionSet
	token         string
	failure       FailureKind
}

// Anonymous is the context of a request that carried no credential.
func Anonymous() Context {
	return Context{}
}

// Unauthenticated is the context of a request whose credential was rejected.
func Unauthenticated(kind FailureKind) Context {
	if kind == FailureNone {
		kind = FailureInternal
	}
	return Context{failure: kind}
}

// Authenticated builds the context for an active user. family must be nil
// unless it exists and is active; permissions derive from the user's role
// only when a family is attached.
func Authenticated(user domain.User, family *domain.Family, token string) Context {
	c := Context{
		authenticated: true,
		user:          &user,
		token:         token,
		permissions:   domain.NoPermissions,
	}
	if family != nil {
		f := *family
		c.family = &f
		c.permissions = domain.CalculatePermissions(user.RoleInFamily)
	}
	return c
}

func (c Context) IsAuthenticated() bool { return c.authenticated }

// User returns a copy of the principal, or nil.
func (c Context) User() *domain.User {
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// Family returns a copy of the tenant, or nil.
func (c Context) Family() *domain.Family {
	if c.family == nil {
		return nil
	}
	f := *c.family
	return &f
}

func (c Context) Permissions() domain.PermissionSet { return c.permissions }

// Token returns the raw bearer token of an authenticated request.
func (c Context) Token() string { return c.token }

func (c Context) Failure() FailureKind { return c.failure }

// Outcome labels the context for metrics and spans: "authenticated",
// "anonymous", or the failure kind.
func (c Context) Outcome() string {
	switch {
	case c.authenticated:
		return "authenticated"
	case c.failure == FailureNone:
		return "anonymous"
	default:
		return c.failure.String()
	}
}

// Error returns the failure message, or "" when there was none.
func (c Context) Error() string { return c.failure.Message() }

func (c Context) UserID() string {
	if c.user == nil {
		return ""
	}
	return c.user.ID
}

func (c Context) FamilyID() string {
	if c.family == nil {
		return ""
	}
	return c.family.ID
}

type contextJSON struct {
	IsAuthenticated bool                 `json:"isAuthenticated"`
	User            *domain.User         `json:"user"`
	Family          *domain.Family       `json:"family"`
	Permissions     domain.PermissionSet `json:"permissions"`
	Error           string               `json:"error,omitempty"`
}

// MarshalJSON renders the context without the raw token.
func (c Context) MarshalJSON() ([]byte, error) {
	return json.Marshal(contextJSON{
		IsAuthenticated: c.authenticated,
		User:            c.User(),
		Family:          c.Family(),
		Permissions:     c.permissions,
		Error:           c.Error(),
	})
}

type ctxKey struct{}

// WithContext stores c on ctx.
func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the stored context, or Anonymous when none was stored.
func FromContext(ctx context.Context) Context {
	if c, ok := ctx.Value(ctxKey{}).(Context); ok {
		return c
	}
	return Anonymous()
}
