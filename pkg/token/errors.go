package token

import "errors"

// ErrInvalidCredential is the only verification failure callers see.
var ErrInvalidCredential = errors.New("invalid credential")

var (
	errUnknownPurpose = errors.New("unknown token purpose")
	errMissingSecret  = errors.New("signing secret is not configured")
	errAudience       = errors.New("token audience does not match purpose")
)

// VerifyError reports a failed verification. Error() never names the cause; it
// is reachable through errors.Is and errors.As for server-side logging.
type VerifyError struct {
	Purpose Purpose
	Cause   error
}

func (e *VerifyError) Error() string {
	return ErrInvalidCredential.Error()
}

func (e *VerifyError) Unwrap() []error {
	return []error{ErrInvalidCredential, e.Cause}
}

// Detail returns the underlying cause message for logs.
func (e *VerifyError) Detail() string {
	if e.Cause == nil {
		return ""
	}
	return e.Cause.Error()
}
