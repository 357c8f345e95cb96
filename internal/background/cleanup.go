package background

import (
	"context"
	"log/slog"
	"time"
)

// ExpiredStore is any store that can purge its expired rows.
type ExpiredStore interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// CleanupManager periodically removes expired authorization codes, tokens and
// sessions from the database
type CleanupManager struct {
	stores   map[string]ExpiredStore
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager over the named stores
func NewCleanupManager(
	stores map[string]ExpiredStore,
	logger *slog.Logger,
	interval time.Duration,
) *CleanupManager {
	return &CleanupManager{
		stores:   stores,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// runCleanup sweeps every registered store
func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cm.logger.Info("starting expired credential cleanup")

	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	for name, store := range cm.stores {
		rowsDeleted, err := store.DeleteExpired(cleanupCtx)
		if err != nil {
			cm.logger.Error("failed to cleanup expired rows",
				slog.String("store", name),
				slog.Any("error", err))
			continue
		}

		if rowsDeleted > 0 {
			cm.logger.Info("expired rows removed",
				slog.String("store", name),
				slog.Int64("rows_deleted", rowsDeleted))
		}
	}
}

// Stop signals the cleanup manager to stop
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
