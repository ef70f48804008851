package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/osvaldoandrade/budgetauth/internal/metrics"
	"github.com/osvaldoandrade/budgetauth/pkg/auth"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
	"github.com/osvaldoandrade/budgetauth/pkg/persistence"
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

var (
	ErrInvalidInvitation = errors.New("invitation is invalid or has expired")
	ErrRoleNotInvitable  = errors.New("role cannot be granted by invitation")
)

const metadataInvitedBy = "invitedBy"

type Invitation struct {
	Token      string    `json:"token,omitempty"`
	FamilyID   string    `json:"familyId"`
	FamilyName string    `json:"familyName,omitempty"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	InvitedBy  string    `json:"invitedBy"`
	ExpiresAt  time.Time `json:"expiresAt"`
}

type InvitationService interface {
	Create(ctx context.Context, inviter auth.Verified, email string, role domain.Role) (*Invitation, error)
	Preview(ctx context.Context, raw string) (*Invitation, error)
}

type invitationService struct {
	codec       TokenCodec
	revocations RevocationChecker
	directory   persistence.Directory
	logger      *slog.Logger
}

func NewInvitationService(codec TokenCodec, revocations RevocationChecker, directory persistence.Directory, logger *slog.Logger) InvitationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &invitationService{codec: codec, revocations: revocations, directory: directory, logger: logger}
}

// Create issues an invitation into the inviter's family. Ownership is never
// handed out by invitation.
func (s *invitationService) Create(ctx context.Context, inviter auth.Verified, email string, role domain.Role) (*Invitation, error) {
	if inviter.Family == nil {
		return nil, auth.ErrNoFamilyMembership
	}
	switch role {
	case domain.RoleAdmin, domain.RoleMember:
	default:
		return nil, ErrRoleNotInvitable
	}
	email = strings.ToLower(strings.TrimSpace(email))
	raw, exp, err := s.codec.Issue(token.PurposeInvitation, token.Subject{
		Email:    email,
		FamilyID: inviter.Family.ID,
		Role:     role.String(),
		Metadata: map[string]any{metadataInvitedBy: inviter.User.ID},
	})
	if err != nil {
		return nil, err
	}
	metrics.TokensIssuedTotal.WithLabelValues(token.PurposeInvitation.String()).Inc()
	s.logger.Info("family invitation issued", "family_id", inviter.Family.ID, "invited_by", inviter.User.ID, "role", role.String())
	return &Invitation{
		Token:      raw,
		FamilyID:   inviter.Family.ID,
		FamilyName: inviter.Family.Name,
		Email:      email,
		Role:       role.String(),
		InvitedBy:  inviter.User.ID,
		ExpiresAt:  exp,
	}, nil
}

// Preview decodes an invitation for display before acceptance. It fails for
// revoked tokens and for families that are gone or inactive.
func (s *invitationService) Preview(ctx context.Context, raw string) (*Invitation, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || s.revocations.IsRevoked(ctx, raw) {
		return nil, ErrInvalidInvitation
	}
	claims, err := s.codec.Verify(token.PurposeInvitation, raw)
	if err != nil {
		metrics.TokenVerifyFailuresTotal.WithLabelValues(token.PurposeInvitation.String()).Inc()
		return nil, ErrInvalidInvitation
	}
	role := domain.ParseRole(claims.Role)
	if claims.FamilyID == "" || (role != domain.RoleAdmin && role != domain.RoleMember) {
		return nil, ErrInvalidInvitation
	}
	family, err := s.directory.FindFamilyByID(ctx, claims.FamilyID)
	if errors.Is(err, persistence.ErrNotFound) {
		return nil, ErrInvalidInvitation
	}
	if err != nil {
		return nil, fmt.Errorf("load family: %w", err)
	}
	if !family.IsActive {
		return nil, ErrInvalidInvitation
	}
	invitedBy, _ := claims.Metadata[metadataInvitedBy].(string)
	return &Invitation{
		FamilyID:   family.ID,
		FamilyName: family.Name,
		Email:      claims.Email,
		Role:       role.String(),
		InvitedBy:  invitedBy,
		ExpiresAt:  claims.Expires(),
	}, nil
}
