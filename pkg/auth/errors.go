package auth

import (
	"net/http"

	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

// Code names a guard rejection.
type Code string

const (
	CodeUnauthenticated    Code = "UNAUTHENTICATED"
	CodeNoFamilyMembership Code = "NO_FAMILY_MEMBERSHIP"
	CodePermissionDenied   Code = "PERMISSION_DENIED"
	CodeCrossTenantAccess  Code = "CROSS_TENANT_ACCESS"
	CodeAccessDenied       Code = "ACCESS_DENIED"
	CodeEmailNotVerified   Code = "EMAIL_NOT_VERIFIED"
)

// GuardError is returned by every guard.
type GuardError struct {
	Code Code
	// Permission is set for CodePermissionDenied.
	Permission domain.Permission
}

// Sentinels for errors.Is. ErrPermissionDenied matches any permission.
var (
	ErrUnauthenticated    error = &GuardError{Code: CodeUnauthenticated}
	ErrNoFamilyMembership error = &GuardError{Code: CodeNoFamilyMembership}
	ErrPermissionDenied   error = &GuardError{Code: CodePermissionDenied}
	ErrCrossTenantAccess  error = &GuardError{Code: CodeCrossTenantAccess}
	ErrAccessDenied       error = &GuardError{Code: CodeAccessDenied}
	ErrEmailNotVerified   error = &GuardError{Code: CodeEmailNotVerified}
)

func (e *GuardError) Error() string {
	switch e.Code {
	case CodeUnauthenticated:
		return "Authentication required"
	case CodeNoFamilyMembership:
		return "You must belong to a family to perform this action"
	case CodePermissionDenied:
		if e.Permission != "" {
			return "Permission denied: " + string(e.Permission)
		}
		return "Permission denied"
	case CodeCrossTenantAccess:
		return "Access denied: resource belongs to another family"
	case CodeEmailNotVerified:
		return "Email address must be verified"
	default:
		return "Access denied"
	}
}

// Is matches on Code, and on Permission when the target names one.
func (e *GuardError) Is(target error) bool {
	t, ok := target.(*GuardError)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Permission == "" || t.Permission == e.Permission
}

// HTTPStatus maps the code onto a response status.
func (e *GuardError) HTTPStatus() int {
	if e.Code == CodeUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

func permissionDenied(p domain.Permission) error {
	return &GuardError{Code: CodePermissionDenied, Permission: p}
}
