package db

import (
	"context"
	"log/slog"
	"time"
)

const (
	DefaultCleanupInterval = 1 * time.Hour

	// staleTokenAge is well past the 1h expiry window, so deleted rows can
	// never change a check outcome: anything this old is expired already.
	staleTokenAge = 48 * time.Hour
)

// CleanupService garbage-collects long-dead verification token rows. Token
// expiry itself is evaluated lazily at check time; this only trims storage.
type CleanupService struct {
	tokens   *TokenRepository
	interval time.Duration
}

func NewCleanupService(tokens *TokenRepository) *CleanupService {
	return &CleanupService{
		tokens:   tokens,
		interval: DefaultCleanupInterval,
	}
}

func (s *CleanupService) Start(ctx context.Context) {
	slog.Info("starting token cleanup service", "component", "cleanup", "interval", s.interval)

	s.runCleanup(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping token cleanup service", "component", "cleanup")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *CleanupService) runCleanup(ctx context.Context) {
	deleted, err := s.tokens.DeleteStale(ctx, time.Now().Add(-staleTokenAge))
	if err != nil {
		slog.Error("error deleting stale verification tokens", "component", "cleanup", "error", err)
	} else if deleted > 0 {
		slog.Info("deleted stale verification tokens", "component", "cleanup", "count", deleted)
	}
}
