package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osvaldoandrade/budgetauth/internal/metrics"
	"github.com/osvaldoandrade/budgetauth/internal/password"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

var (
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrAccountDisabled     = errors.New("user account is deactivated")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
)

// TokenCodec is the subset of *token.Codec the session flows use.
type TokenCodec interface {
	Issue(p token.Purpose, sub token.Subject) (string, time.Time, error)
	Verify(p token.Purpose, raw string) (*token.Claims, error)
	RemainingTTL(raw string) time.Duration
}

type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
	TokenType        string    `json:"tokenType"`
}

type SessionService interface {
	Login(ctx context.Context, email, plain string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

type sessionService struct {
	codec       TokenCodec
	revocations RevocationService
	directory   persistence.Directory
	logger      *slog.Logger
}

func NewSessionService(codec TokenCodec, revocations RevocationService, directory persistence.Directory, logger *slog.Logger) SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &sessionService{codec: codec, revocations: revocations, directory: directory, logger: logger}
}

// subjectFor carries the family claims so downstream consumers can read them
// without a directory lookup. Authorization never trusts them.
func subjectFor(u *domain.User) token.Subject {
	return token.Subject{
		UserID:   u.ID,
		Email:    u.Email,
		FamilyID: u.FamilyID,
		Role:     u.RoleInFamily,
	}
}

func (s *sessionService) issuePair(u *domain.User) (*TokenPair, error) {
	sub := subjectFor(u)
	access, accessExp, err := s.codec.Issue(token.PurposeAccess, sub)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.codec.Issue(token.PurposeRefresh, token.Subject{UserID: u.ID})
	if err != nil {
		return nil, err
	}
	metrics.TokensIssuedTotal.WithLabelValues(token.PurposeAccess.String()).Inc()
	metrics.TokensIssuedTotal.WithLabelValues(token.PurposeRefresh.String()).Inc()
	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
		TokenType:        "Bearer",
	}, nil
}

func (s *sessionService) Login(ctx context.Context, email, plain string) (*TokenPair, error) {
	email = strings.TrimSpace(email)
	u, err := s.directory.FindUserByEmail(ctx, email)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if u.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := password.Compare(u.PasswordHash, plain); err != nil {
		if !errors.Is(err, password.ErrMismatch) {
			s.logger.Warn("stored password hash is unusable", "user_id", u.ID, "err", err)
		}
		return nil, ErrInvalidCredentials
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	pair, err := s.issuePair(u)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in", "user_id", u.ID)
	return pair, nil
}

// Refresh rotates the pair: the presented refresh token is revoked before new
// tokens are handed out, so a replayed refresh token fails. Only one of several
// concurrent refreshes of the same token succeeds.
func (s *sessionService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if s.revocations.IsRevoked(ctx, refreshToken) {
		return nil, ErrInvalidRefreshToken
	}
	claims, err := s.codec.Verify(token.PurposeRefresh, refreshToken)
	if err != nil {
		metrics.TokenVerifyFailuresTotal.WithLabelValues(token.PurposeRefresh.String()).Inc()
		return nil, ErrInvalidRefreshToken
	}
	if claims.UserID == "" {
		return nil, ErrInvalidRefreshToken
	}
	u, err := s.directory.FindUserByID(ctx, claims.UserID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrAccountDisabled
	}
	first, err := s.revocations.RevokeOnce(ctx, refreshToken, ReasonRefreshRotated)
	if err != nil {
		return nil, err
	}
	if !first {
		// Lost a race with a concurrent refresh of the same token.
		return nil, ErrInvalidRefreshToken
	}
	return s.issuePair(u)
}

func (s *sessionService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	if _, err := s.revocations.Revoke(ctx, accessToken, ReasonLogout); err != nil {
		return err
	}
	if refreshToken = strings.TrimSpace(refreshToken); refreshToken != "" {
		if _, err := s.revocations.Revoke(ctx, refreshToken, ReasonLogout); err != nil {
			return err
		}
	}
	return nil
}
