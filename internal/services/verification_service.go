package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osvaldoandrade/budgetauth/internal/metrics"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

var (
	ErrInvalidVerificationToken = errors.New("verification token is invalid or has expired")
	ErrEmailAlreadyVerified     = errors.New("email address is already verified")
)

type VerificationResult struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

// VerificationService issues and checks the one-time email verification and
// password reset tokens. Updating the user record is left to the caller.
type VerificationService interface {
	IssueEmailVerification(ctx context.Context, user domain.User) (string, time.Time, error)
	ConfirmEmailVerification(ctx context.Context, raw string) (*VerificationResult, error)
	IssuePasswordReset(ctx context.Context, email string) (string, time.Time, error)
	VerifyPasswordReset(ctx context.Context, raw string) (*VerificationResult, error)
}

type verificationService struct {
	codec       TokenCodec
	revocations RevocationService
	directory   persistence.Directory
	logger      *slog.Logger
}

func NewVerificationService(codec TokenCodec, revocations RevocationService, directory persistence.Directory, logger *slog.Logger) VerificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &verificationService{codec: codec, revocations: revocations, directory: directory, logger: logger}
}

func (s *verificationService) IssueEmailVerification(ctx context.Context, user domain.User) (string, time.Time, error) {
	if user.IsEmailVerified {
		return "", time.Time{}, ErrEmailAlreadyVerified
	}
	raw, exp, err := s.codec.Issue(token.PurposeEmailVerification, token.Subject{UserID: user.ID, Email: user.Email})
	if err != nil {
		return "", time.Time{}, err
	}
	metrics.TokensIssuedTotal.WithLabelValues(token.PurposeEmailVerification.String()).Inc()
	return raw, exp, nil
}

// ConfirmEmailVerification consumes the token: a second confirmation fails.
func (s *verificationService) ConfirmEmailVerification(ctx context.Context, raw string) (*VerificationResult, error) {
	res, err := s.check(ctx, token.PurposeEmailVerification, raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.revocations.Revoke(ctx, raw, ReasonConsumed); err != nil {
		return nil, err
	}
	s.logger.Info("email verification confirmed", "user_id", res.UserID)
	return res, nil
}

// IssuePasswordReset returns persistence.ErrNotFound for unknown or inactive users;
// callers facing the public must not reveal the difference.
func (s *verificationService) IssuePasswordReset(ctx context.Context, email string) (string, time.Time, error) {
	u, err := s.directory.FindUserByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, err
	}
	if !u.IsActive {
		return "", time.Time{}, persistence.ErrNotFound
	}
	raw, exp, err := s.codec.Issue(token.PurposePasswordReset, token.Subject{UserID: u.ID, Email: u.Email})
	if err != nil {
		return "", time.Time{}, err
	}
	metrics.TokensIssuedTotal.WithLabelValues(token.PurposePasswordReset.String()).Inc()
	return raw, exp, nil
}

func (s *verificationService) VerifyPasswordReset(ctx context.Context, raw string) (*VerificationResult, error) {
	return s.check(ctx, token.PurposePasswordReset, raw)
}

func (s *verificationService) check(ctx context.Context, p token.Purpose, raw string) (*VerificationResult, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || s.revocations.IsRevoked(ctx, raw) {
		return nil, ErrInvalidVerificationToken
	}
	claims, err := s.codec.Verify(p, raw)
	if err != nil {
		metrics.TokenVerifyFailuresTotal.WithLabelValues(p.String()).Inc()
		return nil, ErrInvalidVerificationToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidVerificationToken
	}
	u, err := s.directory.FindUserByID(ctx, claims.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrInvalidVerificationToken
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	// A token minted for an old address must not verify the new one.
	if !u.IsActive || !strings.EqualFold(u.Email, claims.Email) {
		return nil, ErrInvalidVerificationToken
	}
	return &VerificationResult{UserID: u.ID, Email: u.Email}, nil
}
