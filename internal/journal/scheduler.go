package journal

import (
	"context"
	"time"

	"mt5-journal-sync/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Scheduler periodically syncs every active account. Accounts are synced
// one after another: a single sync per account at a time is the
// serialization the pipeline expects, and a slow broker for one account
// must not pile up concurrent runs for it.
type Scheduler struct {
	db       *gorm.DB
	syncer   *Syncer
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a new sync scheduler.
func NewScheduler(db *gorm.DB, syncer *Syncer, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		db:       db,
		syncer:   syncer,
		interval: interval,
		logger:   logger.Named("scheduler"),
	}
}

// Run starts the periodic sync loop and blocks until the context is done.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting sync loop", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping sync loop...")
			return
		case <-ticker.C:
			s.SyncAll(ctx)
		}
	}
}

// SyncAll runs one sync pass over all active accounts. A failing account
// is logged and skipped; it does not block the others.
func (s *Scheduler) SyncAll(ctx context.Context) {
	var accounts []models.Account
	if err := s.db.Where("is_active = ?", true).Find(&accounts).Error; err != nil {
		s.logger.Error("Failed to list accounts for sync", zap.Error(err))
		return
	}

	for _, account := range accounts {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.syncer.Sync(ctx, account.ID, false); err != nil {
			s.logger.Error("Scheduled sync failed",
				zap.Uint("account_id", account.ID),
				zap.Error(err),
			)
		}
	}
}
