package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"

	"github.com/osvaldoandrade/budgetauth/internal/repository"
	"github.com/osvaldoandrade/budgetauth/pkg/token"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC)}
}

func newTestCodec(t *testing.T, clk *testClock) *token.Codec {
	t.Helper()
	c, err := token.NewCodec(token.Config{
		AccessSecret:  "access-secret-for-service-tests-0123456789",
		RefreshSecret: "refresh-secret-for-service-tests-0123456789",
	}, token.WithClock(clk.Now))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func setupRevocation(t *testing.T) (context.Context, *miniredis.Miniredis, *token.Codec, *testClock, RevocationService) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	clk := newTestClock()
	codec := newTestCodec(t, clk)
	svc := NewRevocationService(repository.NewRedisKV(repository.StaticClient(rdb)), codec, nil, clk.Now, time.Second)
	return context.Background(), mr, codec, clk, svc
}

func TestRevokeThenIsRevoked(t *testing.T) {
	ctx, _, codec, _, svc := setupRevocation(t)
	raw, _, err := codec.Issue(token.PurposeAccess, token.Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if svc.IsRevoked(ctx, raw) {
		t.Fatalf("fresh token reported revoked")
	}
	ok, err := svc.Revoke(ctx, raw, ReasonLogout)
	if err != nil || !ok {
		t.Fatalf("Revoke = %v, %v", ok, err)
	}
	if !svc.IsRevoked(ctx, raw) {
		t.Fatalf("revoked token not reported revoked")
	}

	other, _, _ := codec.Issue(token.PurposeAccess, token.Subject{UserID: "u2"})
	if svc.IsRevoked(ctx, other) {
		t.Fatalf("unrelated token reported revoked")
	}
}

func TestRevokeTTLNeverExceedsRemainingValidity(t *testing.T) {
	ctx, mr, codec, clk, svc := setupRevocation(t)
	raw, _, err := codec.Issue(token.PurposeAccess, token.Subject{UserID: "u1"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	clk.Advance(5 * time.Minute)
	remaining := codec.RemainingTTL(raw)

	if _, err := svc.Revoke(ctx, raw, ReasonLogout); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	ttl := mr.TTL("revoked:" + raw)
	if ttl <= 0 || ttl > remaining {
		t.Fatalf("entry ttl = %v, remaining = %v", ttl, remaining)
	}

	mr.FastForward(remaining + time.Millisecond)
	if svc.IsRevoked(ctx, raw) {
		t.Fatalf("entry outlived the token")
	}
}

func TestRevokeExpiredTokenIsNoop(t *testing.T) {
	ctx, mr, codec, clk, svc := setupRevocation(t)
	raw, _, _ := codec.Issue(token.PurposeAccess, token.Subject{UserID: "u1"})
	clk.Advance(16 * time.Minute)

	ok, err := svc.Revoke(ctx, raw, ReasonLogout)
	if err != nil || !ok {
		t.Fatalf("Revoke = %v, %v", ok, err)
	}
	if mr.Exists("revoked:" + raw) {
		t.Fatalf("expected no entry for expired token")
	}

	ok, err = svc.Revoke(ctx, "garbage", ReasonLogout)
	if err != nil || !ok {
		t.Fatalf("Revoke(garbage) = %v, %v", ok, err)
	}
}

func TestRevokeOnce(t *testing.T) {
	ctx, mr, codec, clk, svc := setupRevocation(t)
	raw, _, _ := codec.Issue(token.PurposeRefresh, token.Subject{UserID: "u1"})

	first, err := svc.RevokeOnce(ctx, raw, ReasonRefreshRotated)
	if err != nil || !first {
		t.Fatalf("RevokeOnce = %v, %v", first, err)
	}
	again, err := svc.RevokeOnce(ctx, raw, ReasonAdmin)
	if err != nil || again {
		t.Fatalf("second RevokeOnce = %v, %v", again, err)
	}
	entry, err := svc.Info(ctx, raw)
	if err != nil || entry == nil || entry.Reason != ReasonRefreshRotated {
		t.Fatalf("Info = %+v, %v", entry, err)
	}

	clk.Advance(token.DefaultRefreshTTL + time.Second)
	expired, _, _ := codec.Issue(token.PurposeAccess, token.Subject{UserID: "u2"})
	clk.Advance(token.DefaultAccessTTL + time.Second)
	if ok, err := svc.RevokeOnce(ctx, expired, ReasonLogout); err != nil || ok {
		t.Fatalf("RevokeOnce(expired) = %v, %v", ok, err)
	}

	mr.Close()
	other, _, _ := codec.Issue(token.PurposeAccess, token.Subject{UserID: "u3"})
	if _, err := svc.RevokeOnce(ctx, other, ReasonLogout); !errors.Is(err, ErrRevocationStoreUnavailable) {
		t.Fatalf("RevokeOnce during outage err = %v", err)
	}
}

func TestRevocationStoreOutage(t *testing.T) {
	ctx, mr, codec, _, svc := setupRevocation(t)
	raw, _, _ := codec.Issue(token.PurposeAccess, token.Subject{UserID: "u1"})
	if _, err := svc.Revoke(ctx, raw, ReasonLogout); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	mr.Close()

	// Reads fail open.
	if svc.IsRevoked(ctx, raw) {
		t.Fatalf("IsRevoked must fail open during an outage")
	}
	// Writes fail closed.
	fresh, _, _ := codec.Issue(token.PurposeAccess, token.Subject{UserID: "u2"})
	ok, err := svc.Revoke(ctx, fresh, ReasonLogout)
	if ok || !errors.Is(err, ErrRevocationStoreUnavailable) {
		t.Fatalf("Revoke during outage = %v, %v", ok, err)
	}
	st := svc.Stats(ctx)
	if st.StoreConnected || st.ActiveCount != 0 {
		t.Fatalf("Stats during outage = %+v", st)
	}
}

func TestRevocationInfo(t *testing.T) {
	ctx, _, codec, clk, svc := setupRevocation(t)
	raw, _, _ := codec.Issue(token.PurposeRefresh, token.Subject{UserID: "u1"})

	entry, err := svc.Info(ctx, raw)
	if err != nil || entry != nil {
		t.Fatalf("Info(not revoked) = %+v, %v", entry, err)
	}
	if _, err := svc.Revoke(ctx, raw, ReasonAdmin); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	entry, err = svc.Info(ctx, raw)
	if err != nil || entry == nil {
		t.Fatalf("Info = %+v, %v", entry, err)
	}
	if entry.Reason != ReasonAdmin || !entry.BlacklistedAt.Equal(clk.Now()) {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.TTL <= 0 || entry.TTL > 7*24*time.Hour {
		t.Fatalf("entry ttl = %v", entry.TTL)
	}
}

func TestRevocationStats(t *testing.T) {
	ctx, _, codec, _, svc := setupRevocation(t)
	for _, id := range []string{"a", "b", "c"} {
		raw, _, _ := codec.Issue(token.PurposeAccess, token.Subject{UserID: id})
		if _, err := svc.Revoke(ctx, raw, ReasonLogout); err != nil {
			t.Fatalf("Revoke: %v", err)
		}
	}
	st := svc.Stats(ctx)
	if !st.StoreConnected || st.ActiveCount != 3 || st.EstimatedMemoryKB <= 0 {
		t.Fatalf("Stats = %+v", st)
	}
}

func TestRevocationCleanupExpired(t *testing.T) {
	ctx, mr, codec, clk, svc := setupRevocation(t)

	live, _, _ := codec.Issue(token.PurposeRefresh, token.Subject{UserID: "live"})
	if _, err := svc.Revoke(ctx, live, ReasonLogout); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	// Written without expiry by an older deployment.
	if err := mr.Set("revoked:legacy-token", `{"reason":"logout"}`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Token expired but entry TTL outlived it.
	stale, _, _ := codec.Issue(token.PurposeAccess, token.Subject{UserID: "stale"})
	if err := mr.Set("revoked:"+stale, `{"reason":"logout"}`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	mr.SetTTL("revoked:"+stale, time.Hour)
	clk.Advance(20 * time.Minute)

	n, err := svc.CleanupExpired(ctx)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 2 {
		t.Fatalf("removed %d, want 2", n)
	}
	if !svc.IsRevoked(ctx, live) {
		t.Fatalf("live entry removed")
	}
	if mr.Exists("revoked:legacy-token") || mr.Exists("revoked:"+stale) {
		t.Fatalf("stale entries left behind")
	}
}

func TestRevocationCleanupServiceStopsOnCancel(t *testing.T) {
	ctx, mr, _, _, svc := setupRevocation(t)
	if err := mr.Set("revoked:legacy-token", "{}"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	cleanup := &revocationCleanupService{revocations: svc, logger: nil, interval: 5 * time.Millisecond}
	cleanup.logger = newDiscardLogger()

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		cleanup.Start(runCtx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for mr.Exists("revoked:legacy-token") && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	if mr.Exists("revoked:legacy-token") {
		t.Fatalf("cleanup service did not remove the stale entry")
	}
}
