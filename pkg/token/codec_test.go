package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testAccessSecret  = "access-secret-for-tests-0123456789abcdef"
	testRefreshSecret = "refresh-secret-for-tests-0123456789abcdef"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func setupCodec(t *testing.T) (*Codec, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	c, err := NewCodec(Config{AccessSecret: testAccessSecret, RefreshSecret: testRefreshSecret}, WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c, clk
}

func TestNewCodecRequiresSecrets(t *testing.T) {
	if _, err := NewCodec(Config{RefreshSecret: "x"}); err == nil {
		t.Fatalf("expected error for missing access secret")
	}
	if _, err := NewCodec(Config{AccessSecret: "x"}); err == nil {
		t.Fatalf("expected error for missing refresh secret")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	c, clk := setupCodec(t)
	sub := Subject{
		UserID:   "user-1",
		Email:    "ana@example.com",
		FamilyID: "fam-1",
		Role:     "ADMIN",
		Metadata: map[string]any{"invitedBy": "user-0"},
	}
	for _, p := range Purposes {
		t.Run(p.String(), func(t *testing.T) {
			raw, exp, err := c.Issue(p, sub)
			if err != nil {
				t.Fatalf("Issue: %v", err)
			}
			if want := clk.Now().Add(c.TTL(p)); !exp.Equal(want) {
				t.Fatalf("expiresAt = %v, want %v", exp, want)
			}
			claims, err := c.Verify(p, raw)
			if err != nil {
				t.Fatalf("Verify: %v", err)
			}
			if claims.UserID != "user-1" || claims.Subject != "user-1" {
				t.Fatalf("unexpected subject: %+v", claims)
			}
			if claims.Email != sub.Email || claims.FamilyID != sub.FamilyID || claims.Role != sub.Role {
				t.Fatalf("claims mismatch: %+v", claims)
			}
			if claims.Issuer != Issuer {
				t.Fatalf("issuer = %q", claims.Issuer)
			}
			if !claims.HasAudience(p.Audience()) {
				t.Fatalf("audience = %v", claims.Audience)
			}
			if claims.ID == "" {
				t.Fatalf("expected jti")
			}
			if claims.Metadata["invitedBy"] != "user-0" {
				t.Fatalf("metadata = %v", claims.Metadata)
			}
		})
	}
}

func TestDefaultTTLs(t *testing.T) {
	c, _ := setupCodec(t)
	cases := map[Purpose]time.Duration{
		PurposeAccess:            15 * time.Minute,
		PurposeRefresh:           7 * 24 * time.Hour,
		PurposeInvitation:        24 * time.Hour,
		PurposeEmailVerification: 24 * time.Hour,
		PurposePasswordReset:     time.Hour,
	}
	for p, want := range cases {
		if got := c.TTL(p); got != want {
			t.Errorf("%s ttl = %v, want %v", p, got, want)
		}
	}
}

func TestCrossPurposeReplayRejected(t *testing.T) {
	c, _ := setupCodec(t)
	for _, issued := range Purposes {
		raw, _, err := c.Issue(issued, Subject{UserID: "u"})
		if err != nil {
			t.Fatalf("Issue(%s): %v", issued, err)
		}
		for _, verified := range Purposes {
			if verified == issued {
				continue
			}
			_, err := c.Verify(verified, raw)
			if err == nil {
				t.Fatalf("%s token accepted as %s", issued, verified)
			}
			if !errors.Is(err, ErrInvalidCredential) {
				t.Fatalf("expected ErrInvalidCredential, got %v", err)
			}
			if err.Error() != "invalid credential" {
				t.Fatalf("error message leaks detail: %q", err.Error())
			}
		}
	}
}

func TestVerifyExpired(t *testing.T) {
	c, clk := setupCodec(t)
	raw, _, err := c.Issue(PurposePasswordReset, Subject{UserID: "u"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clk.Advance(time.Hour + time.Second)
	_, err = c.Verify(PurposePasswordReset, raw)
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected cause ErrTokenExpired, got %v", err)
	}
	var ve *VerifyError
	if !errors.As(err, &ve) || ve.Purpose != PurposePasswordReset || ve.Detail() == "" {
		t.Fatalf("expected VerifyError with detail, got %#v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	c, _ := setupCodec(t)
	other, err := NewCodec(Config{AccessSecret: "another-access-secret-0123456789abcd", RefreshSecret: testRefreshSecret})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	raw, _, err := other.Issue(PurposeAccess, Subject{UserID: "u"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := c.Verify(PurposeAccess, raw); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected invalid credential, got %v", err)
	}
}

func TestVerifyRejectsTamperedPayload(t *testing.T) {
	c, _ := setupCodec(t)
	raw, _, err := c.Issue(PurposeAccess, Subject{UserID: "user-1", Role: "MEMBER"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	parts := strings.Split(raw, ".")
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	m["role"] = "OWNER"
	forged, _ := json.Marshal(m)
	parts[1] = base64.RawURLEncoding.EncodeToString(forged)
	if _, err := c.Verify(PurposeAccess, strings.Join(parts, ".")); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected tampered token to fail, got %v", err)
	}
}

func TestVerifyRejectsNoneAlgorithm(t *testing.T) {
	c, clk := setupCodec(t)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{PurposeAccess.Audience()},
			ExpiresAt: jwt.NewNumericDate(clk.Now().Add(time.Hour)),
		},
		UserID: "u",
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := c.Verify(PurposeAccess, raw); err == nil {
		t.Fatalf("expected alg=none to be rejected")
	}
}

func TestVerifyRejectsWrongIssuerAndMissingExpiry(t *testing.T) {
	c, clk := setupCodec(t)
	sign := func(rc jwt.RegisteredClaims) string {
		raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: rc, UserID: "u"}).SignedString([]byte(testAccessSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return raw
	}
	aud := jwt.ClaimStrings{PurposeAccess.Audience()}
	exp := jwt.NewNumericDate(clk.Now().Add(time.Hour))

	cases := map[string]string{
		"wrong issuer": sign(jwt.RegisteredClaims{Issuer: "someone-else", Audience: aud, ExpiresAt: exp}),
		"no expiry":    sign(jwt.RegisteredClaims{Issuer: Issuer, Audience: aud}),
		"no audience":  sign(jwt.RegisteredClaims{Issuer: Issuer, ExpiresAt: exp}),
		"garbage":      "not-a-token",
		"empty":        "",
	}
	for name, raw := range cases {
		if _, err := c.Verify(PurposeAccess, raw); !errors.Is(err, ErrInvalidCredential) {
			t.Errorf("%s: expected invalid credential, got %v", name, err)
		}
	}
}

func TestDecodeUnsafe(t *testing.T) {
	c, clk := setupCodec(t)
	raw, _, err := c.Issue(PurposeInvitation, Subject{UserID: "u", FamilyID: "f"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	// Expired and wrong-purpose tokens still decode.
	clk.Advance(48 * time.Hour)
	claims := c.DecodeUnsafe(raw)
	if claims == nil || claims.FamilyID != "f" {
		t.Fatalf("DecodeUnsafe = %+v", claims)
	}
	if c.DecodeUnsafe("garbage") != nil {
		t.Fatalf("expected nil for garbage")
	}
}

func TestRemainingTTL(t *testing.T) {
	c, clk := setupCodec(t)
	raw, _, err := c.Issue(PurposeAccess, Subject{UserID: "u"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if got := c.RemainingTTL(raw); got != 15*time.Minute {
		t.Fatalf("RemainingTTL = %v, want 15m", got)
	}
	clk.Advance(1500*time.Millisecond + 300*time.Microsecond)
	if got, want := c.RemainingTTL(raw), 15*time.Minute-1501*time.Millisecond; got != want {
		t.Fatalf("RemainingTTL = %v, want %v", got, want)
	}
	clk.Advance(15 * time.Minute)
	if got := c.RemainingTTL(raw); got != 0 {
		t.Fatalf("expired RemainingTTL = %v, want 0", got)
	}
	if !c.IsExpired(raw) {
		t.Fatalf("expected IsExpired")
	}
	if got := c.RemainingTTL("garbage"); got != 0 {
		t.Fatalf("garbage RemainingTTL = %v", got)
	}
}

func TestParsePurpose(t *testing.T) {
	cases := map[string]Purpose{
		"access":             PurposeAccess,
		"app-refresh":        PurposeRefresh,
		" Invitation ":       PurposeInvitation,
		"email-verification": PurposeEmailVerification,
		"PASSWORD-RESET":     PurposePasswordReset,
	}
	for in, want := range cases {
		got, err := ParsePurpose(in)
		if err != nil || got != want {
			t.Errorf("ParsePurpose(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParsePurpose("session"); err == nil {
		t.Fatalf("expected error")
	}
}
