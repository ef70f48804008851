package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/osvaldoandrade/budgetauth/internal/metrics"
	"github.com/osvaldoandrade/budgetauth/internal/requestid"
	"github.com/osvaldoandrade/budgetauth/pkg/auth"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

var errMalformedHeader = errors.New("authorization header is not of the form Bearer <token>")

// RevocationChecker is the read side of the revocation store.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, raw string) bool
}

// TokenVerifier checks a token for a purpose. *token.Codec satisfies it.
type TokenVerifier interface {
	Verify(p token.Purpose, raw string) (*token.Claims, error)
}

// AuthContextService turns request headers into an auth.Context. Build never
// returns an error and never panics.
type AuthContextService interface {
	Build(ctx context.Context, header http.Header) auth.Context
}

type authContextService struct {
	revocations RevocationChecker
	verifier    TokenVerifier
	directory   persistence.Directory
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewAuthContextService(revocations RevocationChecker, verifier TokenVerifier, directory persistence.Directory, logger *slog.Logger) AuthContextService {
	if logger == nil {
		logger = slog.Default()
	}
	return &authContextService{
		revocations: revocations,
		verifier:    verifier,
		directory:   directory,
		logger:      logger,
		tracer:      otel.Tracer("budgetauth/auth"),
	}
}

// buildFailure carries the kind plus the internal cause, which is only logged.
type buildFailure struct {
	kind  auth.FailureKind
	cause error
}

func (s *authContextService) Build(ctx context.Context, header http.Header) (out auth.Context) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "budgetauth.auth.build_context")
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("auth context build panicked", "panic", fmt.Sprint(r), "request_id", requestid.From(ctx))
			out = auth.Unauthenticated(auth.FailureInternal)
		}
		outcome := out.Outcome()
		metrics.AuthContextsBuiltTotal.WithLabelValues(outcome).Inc()
		metrics.AuthContextBuildSeconds.Observe(time.Since(start).Seconds())
		span.SetAttributes(
			attribute.String("auth.outcome", outcome),
			attribute.Bool("auth.has_family", out.FamilyID() != ""),
		)
		if out.Failure() == auth.FailureInternal {
			span.SetStatus(codes.Error, out.Error())
		}
		span.End()
	}()

	c, fail := s.build(ctx, header)
	if fail != nil {
		s.logFailure(ctx, fail)
		return auth.Unauthenticated(fail.kind)
	}
	return c
}

func (s *authContextService) build(ctx context.Context, header http.Header) (auth.Context, *buildFailure) {
	value, present := lookupHeader(header, "Authorization")
	if !present || strings.TrimSpace(value) == "" {
		return auth.Anonymous(), nil
	}
	raw, err := bearerToken(value)
	if err != nil {
		return auth.Context{}, &buildFailure{kind: auth.FailureMalformedHeader, cause: err}
	}

	if s.revocations.IsRevoked(ctx, raw) {
		return auth.Context{}, &buildFailure{kind: auth.FailureRevoked}
	}

	claims, err := s.verifier.Verify(token.PurposeAccess, raw)
	if err != nil {
		metrics.TokenVerifyFailuresTotal.WithLabelValues(token.PurposeAccess.String()).Inc()
		return auth.Context{}, &buildFailure{kind: auth.FailureInvalidToken, cause: err}
	}
	if strings.TrimSpace(claims.UserID) == "" {
		return auth.Context{}, &buildFailure{kind: auth.FailureMissingUserID}
	}

	user, err := s.directory.FindUserByID(ctx, claims.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return auth.Context{}, &buildFailure{kind: auth.FailureUserNotFound, cause: err}
	}
	if err != nil {
		return auth.Context{}, &buildFailure{kind: auth.FailureInternal, cause: fmt.Errorf("load user: %w", err)}
	}
	if !user.IsActive {
		return auth.Context{}, &buildFailure{kind: auth.FailureUserInactive}
	}

	family, err := s.loadFamily(ctx, user)
	if err != nil {
		return auth.Context{}, &buildFailure{kind: auth.FailureInternal, cause: fmt.Errorf("load family: %w", err)}
	}
	return auth.Authenticated(*user, family, raw), nil
}

// loadFamily returns nil without error when the user has no family or the
// family is missing or inactive.
func (s *authContextService) loadFamily(ctx context.Context, user *domain.User) (*domain.Family, error) {
	if !user.HasFamily() {
		return nil, nil
	}
	family, err := s.directory.FindFamilyByID(ctx, user.FamilyID)
	if errors.Is(err, persistence.ErrNotFound) {
		s.logger.Info("user references a missing family", "user_id", user.ID, "family_id", user.FamilyID, "request_id", requestid.From(ctx))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !family.IsActive {
		return nil, nil
	}
	return family, nil
}

func (s *authContextService) logFailure(ctx context.Context, f *buildFailure) {
	attrs := []any{"kind", f.kind.String(), "request_id", requestid.From(ctx)}
	if f.cause != nil {
		attrs = append(attrs, "err", f.cause)
	}
	switch f.kind {
	case auth.FailureRevoked:
		s.logger.Warn("revoked token presented", append(attrs, "event", "token_revoked_presented")...)
	case auth.FailureInternal:
		s.logger.Error("auth context build failed", attrs...)
	default:
		s.logger.Warn("request not authenticated", attrs...)
	}
}

// lookupHeader matches the key case-insensitively over the raw map, since
// callers may hand in headers that were never canonicalized.
func lookupHeader(h http.Header, key string) (string, bool) {
	if h == nil {
		return "", false
	}
	if vs, ok := h[http.CanonicalHeaderKey(key)]; ok && len(vs) > 0 {
		return vs[0], true
	}
	for k, vs := range h {
		if strings.EqualFold(k, key) && len(vs) > 0 {
			return vs[0], true
		}
	}
	return "", false
}

func bearerToken(value string) (string, error) {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errMalformedHeader
	}
	raw := strings.TrimSpace(parts[1])
	if raw == "" || strings.ContainsAny(raw, " \t") {
		return "", errMalformedHeader
	}
	return raw, nil
}
