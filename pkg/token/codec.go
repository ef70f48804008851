package token

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer is the iss claim of every token this package signs.
const Issuer = "family-budget"

// Default lifetimes per purpose.
const (
	DefaultAccessTTL            = 15 * time.Minute
	DefaultRefreshTTL           = 7 * 24 * time.Hour
	DefaultInvitationTTL        = 24 * time.Hour
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultPasswordResetTTL     = time.Hour
)

// Config holds signing material and lifetimes. Zero TTLs fall back to defaults.
// RefreshSecret signs refresh tokens only; every other purpose uses AccessSecret.
type Config struct {
	AccessSecret  string
	RefreshSecret string

	AccessTTL            time.Duration
	RefreshTTL           time.Duration
	InvitationTTL        time.Duration
	EmailVerificationTTL time.Duration
	PasswordResetTTL     time.Duration
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source used for iat/exp and expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for verification diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Codec) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithIDGenerator overrides the jti generator.
func WithIDGenerator(gen func() string) Option {
	return func(c *Codec) {
		if gen != nil {
			c.newID = gen
		}
	}
}

// Codec issues and verifies purpose-scoped HS256 tokens.
type Codec struct {
	accessSecret  []byte
	refreshSecret []byte
	ttls          map[Purpose]time.Duration
	now           func() time.Time
	newID         func() string
	logger        *slog.Logger
}

// NewCodec builds a Codec. Both secrets are required.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("access secret: %w", errMissingSecret)
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("refresh secret: %w", errMissingSecret)
	}
	c := &Codec{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		ttls: map[Purpose]time.Duration{
			PurposeAccess:            orDefault(cfg.AccessTTL, DefaultAccessTTL),
			PurposeRefresh:           orDefault(cfg.RefreshTTL, DefaultRefreshTTL),
			PurposeInvitation:        orDefault(cfg.InvitationTTL, DefaultInvitationTTL),
			PurposeEmailVerification: orDefault(cfg.EmailVerificationTTL, DefaultEmailVerificationTTL),
			PurposePasswordReset:     orDefault(cfg.PasswordResetTTL, DefaultPasswordResetTTL),
		},
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// TTL returns the configured lifetime for a purpose.
func (c *Codec) TTL(p Purpose) time.Duration {
	return c.ttls[p]
}

func (c *Codec) secret(p Purpose) []byte {
	if p == PurposeRefresh {
		return c.refreshSecret
	}
	return c.accessSecret
}

// Issue signs a token for the given purpose.
func (c *Codec) Issue(p Purpose, sub Subject) (string, time.Time, error) {
	if !p.valid() {
		return "", time.Time{}, errUnknownPurpose
	}
	now := c.now()
	exp := now.Add(c.ttls[p])
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   sub.UserID,
			Audience:  jwt.ClaimStrings{p.Audience()},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        c.newID(),
		},
		UserID:   sub.UserID,
		Email:    sub.Email,
		FamilyID: sub.FamilyID,
		Role:     sub.Role,
		Metadata: sub.Metadata,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret(p))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", p, err)
	}
	return signed, claims.Expires(), nil
}

// Verify checks signature, issuer, audience and expiry for the purpose.
// Every failure is a *VerifyError.
func (c *Codec) Verify(p Purpose, raw string) (*Claims, error) {
	if !p.valid() {
		return nil, &VerifyError{Purpose: p, Cause: errUnknownPurpose}
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(p.Audience()),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	claims := &Claims{}
	tok, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return c.secret(p), nil
	})
	if err != nil {
		c.logger.Debug("token verification failed", "purpose", p.String(), "err", err)
		return nil, &VerifyError{Purpose: p, Cause: err}
	}
	if !tok.Valid {
		return nil, &VerifyError{Purpose: p, Cause: jwt.ErrTokenSignatureInvalid}
	}
	if !claims.HasAudience(p.Audience()) {
		return nil, &VerifyError{Purpose: p, Cause: errAudience}
	}
	return claims, nil
}

// DecodeUnsafe parses claims without checking the signature or any claim.
// Only for bookkeeping such as revocation TTLs. Returns nil when undecodable.
func (c *Codec) DecodeUnsafe(raw string) *Claims {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil
	}
	return claims
}

// RemainingTTL returns exp minus now, floored to the millisecond, or zero when
// the token is undecodable, has no exp or has already expired.
func (c *Codec) RemainingTTL(raw string) time.Duration {
	claims := c.DecodeUnsafe(raw)
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	d := claims.ExpiresAt.Time.Sub(c.now())
	if d <= 0 {
		return 0
	}
	return d.Truncate(time.Millisecond)
}

// IsExpired reports whether a decodable token is past its exp. Tokens without
// exp count as expired.
func (c *Codec) IsExpired(raw string) bool {
	return c.RemainingTTL(raw) == 0
}

// IsVerifyError reports whether err came from Verify.
func IsVerifyError(err error) bool {
	var ve *VerifyError
	return errors.As(err, &ve)
}
