package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/osvaldoandrade/budgetauth/internal/metrics"
	"github.com/osvaldoandrade/budgetauth/internal/repository"
	"github.com/osvaldoandrade/budgetauth/pkg/domain"
)

// ErrRevocationStoreUnavailable is returned when a revocation could not be persisted.
var ErrRevocationStoreUnavailable = errors.New("revocation store unavailable")

const revokedKeyPrefix = "revoked:"

// Well-known revocation reasons. Any other string is accepted and stored as is.
const (
	ReasonLogout         = "logout"
	ReasonRefreshRotated = "refresh_rotated"
	ReasonPasswordChange = "password_change"
	ReasonAdmin          = "admin"
	// ReasonConsumed marks one-time tokens that have been used.
	ReasonConsumed       = "consumed"
)

// entryOverheadBytes approximates the stored JSON value plus per-key bookkeeping.
const entryOverheadBytes = 128

// TTLSource reports how long a token remains valid. *token.Codec satisfies it.
type TTLSource interface {
	RemainingTTL(raw string) time.Duration
}

type RevocationService interface {
	Revoke(ctx context.Context, raw string, reason string) (bool, error)
	RevokeOnce(ctx context.Context, raw string, reason string) (bool, error)
	IsRevoked(ctx context.Context, raw string) bool
	Info(ctx context.Context, raw string) (*domain.RevocationEntry, error)
	Stats(ctx context.Context) domain.RevocationStats
	CleanupExpired(ctx context.Context) (int, error)
}

type revocationService struct {
	kv           repository.KV
	ttl          TTLSource
	logger       *slog.Logger
	now          func() time.Time
	checkTimeout time.Duration
}

func NewRevocationService(kv repository.KV, ttl TTLSource, logger *slog.Logger, now func() time.Time, checkTimeout time.Duration) RevocationService {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	if checkTimeout <= 0 {
		checkTimeout = 250 * time.Millisecond
	}
	return &revocationService{kv: kv, ttl: ttl, logger: logger, now: now, checkTimeout: checkTimeout}
}

func revokedKey(raw string) string { return revokedKeyPrefix + raw }

func (s *revocationService) Revoke(ctx context.Context, raw string, reason string) (bool, error) {
	ttl := s.ttl.RemainingTTL(raw)
	if ttl <= 0 {
		// Already expired or undecodable: nothing left to block.
		return true, nil
	}
	b, err := s.entry(reason)
	if err != nil {
		return false, err
	}
	if err := s.kv.SetWithExpiry(ctx, revokedKey(raw), b, ttl); err != nil {
		return false, s.writeFailed(reason, err)
	}
	s.revoked(reason, ttl)
	return true, nil
}

// RevokeOnce revokes raw and reports whether this call was the one that did it.
// Concurrent callers racing on the same token see exactly one true. Expired or
// undecodable tokens report false.
func (s *revocationService) RevokeOnce(ctx context.Context, raw string, reason string) (bool, error) {
	ttl := s.ttl.RemainingTTL(raw)
	if ttl <= 0 {
		return false, nil
	}
	b, err := s.entry(reason)
	if err != nil {
		return false, err
	}
	first, err := s.kv.SetIfAbsent(ctx, revokedKey(raw), b, ttl)
	if err != nil {
		return false, s.writeFailed(reason, err)
	}
	if first {
		s.revoked(reason, ttl)
	}
	return first, nil
}

func (s *revocationService) entry(reason string) (string, error) {
	b, err := json.Marshal(domain.RevocationEntry{Reason: reason, BlacklistedAt: s.now().UTC()})
	return string(b), err
}

func (s *revocationService) writeFailed(reason string, err error) error {
	metrics.RevocationStoreDegradedTotal.WithLabelValues("revoke").Inc()
	s.logger.Error("token revocation failed", "event", "revocation_write_failed", "reason", reason, "err", err)
	return fmt.Errorf("%w: %w", ErrRevocationStoreUnavailable, err)
}

func (s *revocationService) revoked(reason string, ttl time.Duration) {
	metrics.TokensRevokedTotal.WithLabelValues(reasonLabel(reason)).Inc()
	s.logger.Info("token revoked", "reason", reason, "ttl", ttl.String())
}

// IsRevoked fails open: store errors are logged and reported as not revoked.
func (s *revocationService) IsRevoked(ctx context.Context, raw string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.checkTimeout)
	defer cancel()
	ok, err := s.kv.Exists(ctx, revokedKey(raw))
	if err != nil {
		metrics.RevocationStoreDegradedTotal.WithLabelValues("check").Inc()
		s.logger.Error("revocation check failed, treating token as not revoked",
			"event", "revocation_store_degraded", "err", err)
		return false
	}
	return ok
}

// Info returns nil, nil when the token is not revoked.
func (s *revocationService) Info(ctx context.Context, raw string) (*domain.RevocationEntry, error) {
	key := revokedKey(raw)
	v, err := s.kv.Get(ctx, key)
	if errors.Is(err, repository.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRevocationStoreUnavailable, err)
	}
	var entry domain.RevocationEntry
	if err := json.Unmarshal([]byte(v), &entry); err != nil {
		return nil, fmt.Errorf("decode revocation entry: %w", err)
	}
	ttl, err := s.kv.TTL(ctx, key)
	switch {
	case errors.Is(err, repository.ErrKeyNotFound):
		// Expired between the two reads.
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("%w: %w", ErrRevocationStoreUnavailable, err)
	}
	entry.TTL = ttl
	return &entry, nil
}

func (s *revocationService) Stats(ctx context.Context) domain.RevocationStats {
	if err := s.kv.Ping(ctx); err != nil {
		s.logger.Warn("revocation store ping failed", "err", err)
		return domain.RevocationStats{}
	}
	keys, err := s.kv.KeysByPrefix(ctx, revokedKeyPrefix)
	if err != nil {
		s.logger.Warn("revocation stats scan failed", "err", err)
		return domain.RevocationStats{StoreConnected: true}
	}
	var bytes int
	for _, k := range keys {
		bytes += len(k) + entryOverheadBytes
	}
	return domain.RevocationStats{
		ActiveCount:       len(keys),
		EstimatedMemoryKB: math.Round(float64(bytes)/1024*100) / 100,
		StoreConnected:    true,
	}
}

// CleanupExpired removes entries the store will not expire on its own: keys
// without a TTL and keys whose token is already past exp.
func (s *revocationService) CleanupExpired(ctx context.Context) (int, error) {
	keys, err := s.kv.KeysByPrefix(ctx, revokedKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRevocationStoreUnavailable, err)
	}
	var stale []string
	for _, k := range keys {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		ttl, err := s.kv.TTL(ctx, k)
		if errors.Is(err, repository.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrRevocationStoreUnavailable, err)
		}
		if ttl == repository.NoExpiry || s.ttl.RemainingTTL(strings.TrimPrefix(k, revokedKeyPrefix)) <= 0 {
			stale = append(stale, k)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}
	n, err := s.kv.Delete(ctx, stale...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrRevocationStoreUnavailable, err)
	}
	metrics.RevocationCleanupDeletedTotal.Add(float64(n))
	return n, nil
}

func reasonLabel(reason string) string {
	switch reason {
	case ReasonLogout, ReasonRefreshRotated, ReasonPasswordChange, ReasonAdmin, ReasonConsumed:
		return reason
	default:
		return "other"
	}
}
