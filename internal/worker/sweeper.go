package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/presence-service/internal/config"
	"github.com/spec-kit/presence-service/internal/service"
)

// Sweeper periodically drops presence records that aged far past the liveness
// TTL. Stale records are already invisible to rosters; the sweep only keeps
// the store from growing without bound when clients vanish without a leave.
type Sweeper struct {
	presence  *service.PresenceService
	logger    *zap.Logger
	interval  time.Duration
	retention time.Duration
}

// NewSweeper builds the sweeper from presence configuration.
func NewSweeper(presence *service.PresenceService, cfg config.PresenceConfig, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		presence:  presence,
		logger:    logger,
		interval:  cfg.SweepInterval(),
		retention: cfg.SweepRetention(),
	}
}

// Run loops until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	removed, err := s.presence.SweepStale(ctx, cutoff)
	if err != nil {
		s.logger.Warn("presence sweep failed", zap.Error(err))
		return
	}
	if removed > 0 {
		s.logger.Info("presence sweep", zap.Int64("removed", removed))
	}
}
