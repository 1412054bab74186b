package usecase

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper reclaims abandoned rooms: every interval it deletes rooms older
// than the retention window, terminal or not, occupied or not. A coarse
// TTL, not an LRU; it only bounds memory growth.
type Sweeper struct {
	logger   *slog.Logger
	rooms    roomStore
	ttl      time.Duration
	interval time.Duration
}

func NewSweeper(logger *slog.Logger, rooms roomStore, ttl, interval time.Duration) *Sweeper {
	return &Sweeper{
		logger:   logger,
		rooms:    rooms,
		ttl:      ttl,
		interval: interval,
	}
}

// Run sweeps until ctx is cancelled. Owned by the application lifecycle.
func (that *Sweeper) Run(ctx context.Context) {
	log := that.logger.With("component", "sweeper")

	ticker := time.NewTicker(that.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("sweeper stopped")
			return
		case <-ticker.C:
			that.SweepOnce(ctx, time.Now())
		}
	}
}

// SweepOnce deletes every room whose retention window has elapsed at now.
func (that *Sweeper) SweepOnce(ctx context.Context, now time.Time) {
	log := that.logger.With("component", "sweeper")

	expired, err := that.rooms.ListExpired(ctx, now, that.ttl)
	if err != nil {
		log.Error("failed to list expired rooms", "error", err)
		return
	}

	for _, id := range expired {
		if err = that.rooms.DeleteByID(ctx, id); err != nil {
			log.Error("failed to delete expired room", "roomID", id, "error", err)
			continue
		}

		log.Info("cleaned up old room", "roomID", id)
	}
}
