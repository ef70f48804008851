package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Subject carries the caller-supplied claims embedded in a token.
type Subject struct {
	UserID   string
	Email    string
	FamilyID string
	Role     string
	Metadata map[string]any
}

// Claims is the decoded claim set of a token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string         `json:"userId,omitempty"`
	Email    string         `json:"email,omitempty"`
	FamilyID string         `json:"familyId,omitempty"`
	Role     string         `json:"role,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Expires returns the exp claim, or the zero time when absent.
func (c *Claims) Expires() time.Time {
	if c == nil || c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Issued returns the iat claim, or the zero time when absent.
func (c *Claims) Issued() time.Time {
	if c == nil || c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// HasAudience reports whether aud contains the tag.
func (c *Claims) HasAudience(tag string) bool {
	if c == nil {
		return false
	}
	for _, a := range c.Audience {
		if a == tag {
			return true
		}
	}
	return false
}
