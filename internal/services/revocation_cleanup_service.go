package services

import (
	"context"
	"log/slog"
	"time"
)

type RevocationCleanupService interface {
	Start(ctx context.Context)
}

type revocationCleanupService struct {
	revocations RevocationService
	logger      *slog.Logger
	interval    time.Duration
}

func NewRevocationCleanupService(revocations RevocationService, logger *slog.Logger, intervalSeconds int) RevocationCleanupService {
	if intervalSeconds <= 0 {
		intervalSeconds = 300
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &revocationCleanupService{
		revocations: revocations,
		logger:      logger,
		interval:    time.Duration(intervalSeconds) * time.Second,
	}
}

func (s *revocationCleanupService) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.revocations.CleanupExpired(ctx)
			if err != nil {
				s.logger.Warn("revocation cleanup failed", "err", err)
				continue
			}
			if removed > 0 {
				s.logger.Info("revocation cleanup removed", "count", removed)
			}
		}
	}
}
